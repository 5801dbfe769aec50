package session

import "github.com/prometheus/client_golang/prometheus"

// Revocation reasons used as metric labels.
const (
	ReasonLogout        = "logout"
	ReasonLogoutAll     = "logout_all"
	ReasonRotation      = "rotation"
	ReasonEviction      = "eviction"
	ReasonPasswordReset = "password_reset"
	ReasonAdmin         = "admin"
)

// Metrics holds the session counters. A nil *Metrics records nothing.
type Metrics struct {
	issued         prometheus.Counter
	evicted        prometheus.Counter
	revoked        *prometheus.CounterVec
	refresh        *prometheus.CounterVec
	accessRejected *prometheus.CounterVec
}

// NewMetrics creates the session counters and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		issued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zuperior",
			Name:      "sessions_issued_total",
			Help:      "Sessions admitted by login or refresh rotation.",
		}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zuperior",
			Name:      "sessions_evicted_total",
			Help:      "Sessions revoked to keep a user under the live-session cap.",
		}),
		revoked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zuperior",
			Name:      "sessions_revoked_total",
			Help:      "Sessions revoked, by reason.",
		}, []string{"reason"}),
		refresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zuperior",
			Name:      "refresh_total",
			Help:      "Refresh rotations, by result.",
		}, []string{"result"}),
		accessRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zuperior",
			Name:      "access_rejected_total",
			Help:      "Access credentials rejected, by reason.",
		}, []string{"reason"}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.issued, m.evicted, m.revoked, m.refresh, m.accessRejected} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) sessionIssued() {
	if m != nil {
		m.issued.Inc()
	}
}

func (m *Metrics) sessionEvicted() {
	if m != nil {
		m.evicted.Inc()
		m.revoked.WithLabelValues(ReasonEviction).Inc()
	}
}

func (m *Metrics) sessionsRevoked(reason string, n int) {
	if m != nil && n > 0 {
		m.revoked.WithLabelValues(reason).Add(float64(n))
	}
}

func (m *Metrics) refreshResult(result string) {
	if m != nil {
		m.refresh.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) accessRejectedFor(reason string) {
	if m != nil {
		m.accessRejected.WithLabelValues(reason).Inc()
	}
}
