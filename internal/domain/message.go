package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the delivery lifecycle state of a message.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSending Status = "SENDING"
	StatusSent    Status = "SENT"
	StatusFailed  Status = "FAILED"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusSending, StatusSent, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further delivery may change the status.
func (s Status) IsTerminal() bool {
	return s == StatusSent
}

func ParseStatusFromString(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid status %q", ErrValidation, s)
	}
	return st, nil
}

// Channel represents the outbound delivery channel.
type Channel string

const (
	ChannelEmail Channel = "EMAIL"
	ChannelSMS   Channel = "SMS"
)

func (c Channel) String() string { return string(c) }

func (c Channel) IsValid() bool {
	switch c {
	case ChannelEmail, ChannelSMS:
		return true
	}
	return false
}

func ParseChannelFromString(s string) (Channel, error) {
	ch := Channel(strings.ToUpper(strings.TrimSpace(s)))
	if !ch.IsValid() {
		return "", fmt.Errorf("%w: invalid channel %q", ErrValidation, s)
	}
	return ch, nil
}

// Body limits per channel (in characters).
const (
	MaxSMSBody   = 1600
	MaxEmailBody = 100000
)

// Message is a unit of outbound dispatch addressed to a lead.
type Message struct {
	ID           string
	AgencyID     string
	LeadID       string
	CampaignID   string
	Channel      Channel
	Subject      *string
	Body         string
	Status       Status
	AttemptCount int
	SentAt       *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// FailedPermanently is set when the last failure cannot succeed on retry.
	FailedPermanently bool

	// Lead is populated when the message is loaded for dispatch.
	Lead *Lead
}

func (m *Message) Validate() error {
	if err := requireUUID("agencyId", m.AgencyID); err != nil {
		return err
	}
	if err := requireUUID("leadId", m.LeadID); err != nil {
		return err
	}
	if err := requireUUID("campaignId", m.CampaignID); err != nil {
		return err
	}
	if !m.Channel.IsValid() {
		return fmt.Errorf("%w: invalid channel %q", ErrValidation, m.Channel)
	}
	if m.Body == "" {
		return fmt.Errorf("%w: body is required", ErrValidation)
	}
	if m.Channel == ChannelSMS && m.Subject != nil {
		return fmt.Errorf("%w: subject is only supported for email", ErrValidation)
	}

	bodyLen := len([]rune(m.Body))
	switch m.Channel {
	case ChannelSMS:
		if bodyLen > MaxSMSBody {
			return fmt.Errorf("%w: SMS body exceeds %d characters (got %d)", ErrValidation, MaxSMSBody, bodyLen)
		}
	case ChannelEmail:
		if bodyLen > MaxEmailBody {
			return fmt.Errorf("%w: email body exceeds %d characters (got %d)", ErrValidation, MaxEmailBody, bodyLen)
		}
	}

	return nil
}

// RecipientFor returns the lead address used by the given channel.
func (l *Lead) RecipientFor(channel Channel) (string, bool) {
	if l == nil {
		return "", false
	}

	var value *string
	switch channel {
	case ChannelEmail:
		value = l.Email
	case ChannelSMS:
		value = l.Phone
	}
	if value == nil || strings.TrimSpace(*value) == "" {
		return "", false
	}
	return *value, true
}
