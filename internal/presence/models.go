package presence

import "time"

// Record is the per-identity availability row. One row per user, upserted on
// every transition.
//
// Invariants:
// - LastSeen is preserved when transitioning to offline ("last seen" semantics).
// - UpdatedAt is stamped on every write.
// - Only the stale sweep moves a user offline automatically; everything else
//   is an explicit update or a connect/disconnect transition.
type Record struct {
	UserID    string    `json:"user_id" db:"user_id"`
	Status    Status    `json:"status" db:"status"`
	LastSeen  time.Time `json:"last_seen" db:"last_seen"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusAway    Status = "away"
	StatusBusy    Status = "busy"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOnline, StatusOffline, StatusAway, StatusBusy:
		return true
	default:
		return false
	}
}
