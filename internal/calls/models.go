package calls

import "time"

// Call is one signaling exchange's full lifecycle: a persisted, append-only
// row per call attempt. Rows are never deleted; history queries and the
// signaling path read the same truth.
//
// Status is monotonic: pending → accepted|rejected|busy|missed, and
// accepted → ended. Terminal statuses never transition again.
type Call struct {
	ID     string `json:"id" db:"id"`
	CallID string `json:"call_id" db:"call_id"`

	CallerID    string `json:"caller_id" db:"caller_id"`
	RecipientID string `json:"recipient_id" db:"recipient_id"`

	Type   CallType   `json:"call_type" db:"call_type"`
	Status CallStatus `json:"status" db:"status"`

	StartedAt *time.Time `json:"started_at,omitempty" db:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty" db:"ended_at"`

	// DurationSeconds is set on end when the call was accepted; nil for
	// calls that never connected.
	DurationSeconds *int `json:"duration_seconds,omitempty" db:"duration_seconds"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type CallType string

const (
	CallTypeAudio CallType = "audio"
	CallTypeVideo CallType = "video"
)

func (t CallType) Valid() bool {
	return t == CallTypeAudio || t == CallTypeVideo
}

type CallStatus string

const (
	CallStatusPending  CallStatus = "pending"
	CallStatusAccepted CallStatus = "accepted"
	CallStatusRejected CallStatus = "rejected"
	CallStatusBusy     CallStatus = "busy"
	CallStatusMissed   CallStatus = "missed"
	CallStatusEnded    CallStatus = "ended"
)

// Terminal reports whether no further transition is allowed.
func (s CallStatus) Terminal() bool {
	switch s {
	case CallStatusRejected, CallStatusBusy, CallStatusMissed, CallStatusEnded:
		return true
	default:
		return false
	}
}

// Active reports whether the status occupies a party for the
// one-active-call-per-identity rule.
func (s CallStatus) Active() bool {
	return s == CallStatusPending || s == CallStatusAccepted
}

// ResponseAction is the client's answer to a call_request.
type ResponseAction string

const (
	ActionAccept ResponseAction = "accept"
	ActionReject ResponseAction = "reject"
	ActionBusy   ResponseAction = "busy"
	ActionEnd    ResponseAction = "end"
)

func (a ResponseAction) Valid() bool {
	switch a {
	case ActionAccept, ActionReject, ActionBusy, ActionEnd:
		return true
	default:
		return false
	}
}
