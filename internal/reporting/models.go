package reporting

import "time"

// Common filtering inputs.

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// ActivitySummaryRequest requests aggregated activity for one user.

type ActivitySummaryRequest struct {
	UserID string    `json:"user_id"`
	Range  TimeRange `json:"range"`
}

// ActivitySummary aggregates a user's call and messaging activity over a
// time range. Message counts cover metadata only; content never reaches
// this service.
type ActivitySummary struct {
	UserID string    `json:"user_id"`
	Range  TimeRange `json:"range"`

	TotalCalls    int `json:"total_calls"`
	AnsweredCalls int `json:"answered_calls"`
	MissedCalls   int `json:"missed_calls"`
	RejectedCalls int `json:"rejected_calls"`
	BusyCalls     int `json:"busy_calls"`
	EndedCalls    int `json:"ended_calls"`

	TotalCallSeconds   int `json:"total_call_seconds"`
	AverageCallSeconds int `json:"average_call_seconds"`

	MessagesSent     int `json:"messages_sent"`
	MessagesReceived int `json:"messages_received"`
}
