package domain

import (
	"encoding/json"
	"time"
)

// AttemptStatus is the outcome of a single delivery attempt.
type AttemptStatus string

const (
	AttemptStatusSuccess AttemptStatus = "SUCCESS"
	AttemptStatusFailed  AttemptStatus = "FAILED"
	AttemptStatusPending AttemptStatus = "PENDING"
)

func (s AttemptStatus) String() string { return string(s) }

func (s AttemptStatus) IsValid() bool {
	switch s {
	case AttemptStatusSuccess, AttemptStatusFailed, AttemptStatusPending:
		return true
	}
	return false
}

// MessageAttempt is the append-only audit record of one delivery try.
type MessageAttempt struct {
	ID            string
	MessageID     string
	AttemptNumber int
	Status        AttemptStatus
	Provider      string
	ProviderMsgID *string
	FromAddress   *string
	RawResponse   json.RawMessage
	CreatedAt     time.Time
}
