package api

import "time"

// Config controls auth API behaviour and security defaults.
type Config struct {
	// TrustProxy makes client IPs come from X-Forwarded-For / X-Real-IP.
	TrustProxy   bool
	MaxBodyBytes int64

	// RatePerMinute and RateBurst size the per-IP token bucket guarding
	// login, forgot-password and email-code endpoints. Zero disables it.
	RatePerMinute int
	RateBurst     int

	// RateIdleTTL drops buckets for addresses not seen for this long.
	RateIdleTTL time.Duration
}

// DefaultConfig returns the defaults used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes:  1 << 20, // 1 MiB
		RatePerMinute: 20,
		RateBurst:     5,
		RateIdleTTL:   10 * time.Minute,
	}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = def.MaxBodyBytes
	}
	if c.RatePerMinute < 0 {
		c.RatePerMinute = 0
	}
	if c.RatePerMinute > 0 && c.RateBurst <= 0 {
		c.RateBurst = 1
	}
	if c.RateIdleTTL <= 0 {
		c.RateIdleTTL = def.RateIdleTTL
	}
	return c
}
