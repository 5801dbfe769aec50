package session

import (
	"context"
	"time"
)

// admit makes room for one more session of userID under limit. When the user
// is at or over the cap it revokes exactly one session, the least recently
// active, and returns it. Callers must hold the user lock.
func admit(ctx context.Context, q Queries, userID string, now time.Time, limit int) (*Session, error) {
	live, err := q.LiveSessions(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	if len(live) < limit {
		return nil, nil
	}

	oldest := live[0]
	if err := q.Revoke(ctx, oldest.ID, now); err != nil {
		return nil, err
	}
	oldest.State = StateRevoked
	return &oldest, nil
}
