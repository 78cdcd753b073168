package domain

import (
	"encoding/json"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OutcomeStatus tracks progress toward a campaign outcome.
type OutcomeStatus string

const (
	OutcomeStatusPlanned    OutcomeStatus = "PLANNED"
	OutcomeStatusInProgress OutcomeStatus = "IN_PROGRESS"
	OutcomeStatusAchieved   OutcomeStatus = "ACHIEVED"
	OutcomeStatusMissed     OutcomeStatus = "MISSED"
)

func (s OutcomeStatus) IsValid() bool {
	switch s {
	case OutcomeStatusPlanned, OutcomeStatusInProgress, OutcomeStatusAchieved, OutcomeStatusMissed:
		return true
	}
	return false
}

// DecisionType is the action an agent chose for a lead.
type DecisionType string

const (
	DecisionPrioritize DecisionType = "PRIORITIZE"
	DecisionFollowUp   DecisionType = "FOLLOW_UP"
	DecisionPause      DecisionType = "PAUSE"
	DecisionEscalate   DecisionType = "ESCALATE"
)

func (d DecisionType) IsValid() bool {
	switch d {
	case DecisionPrioritize, DecisionFollowUp, DecisionPause, DecisionEscalate:
		return true
	}
	return false
}

type Agency struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (a *Agency) Validate() error {
	return requireText("name", a.Name)
}

type User struct {
	ID        string    `json:"id"`
	AgencyID  string    `json:"agencyId"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u *User) Validate() error {
	if err := requireUUID("agencyId", u.AgencyID); err != nil {
		return err
	}
	if err := requireEmail("email", u.Email); err != nil {
		return err
	}
	if err := requireText("name", u.Name); err != nil {
		return err
	}
	return requireText("role", u.Role)
}

type Client struct {
	ID        string    `json:"id"`
	AgencyID  string    `json:"agencyId"`
	Name      string    `json:"name"`
	Industry  string    `json:"industry"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (c *Client) Validate() error {
	if err := requireUUID("agencyId", c.AgencyID); err != nil {
		return err
	}
	if err := requireText("name", c.Name); err != nil {
		return err
	}
	return requireText("industry", c.Industry)
}

// Lead is a prospect reachable by email and/or phone.
type Lead struct {
	ID        string    `json:"id"`
	AgencyID  string    `json:"agencyId"`
	ClientID  string    `json:"clientId"`
	FullName  string    `json:"fullName"`
	Email     *string   `json:"email,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

const minPhoneLength = 6

func (l *Lead) Validate() error {
	if err := requireUUID("agencyId", l.AgencyID); err != nil {
		return err
	}
	if err := requireUUID("clientId", l.ClientID); err != nil {
		return err
	}
	if err := requireText("fullName", l.FullName); err != nil {
		return err
	}
	if l.Email != nil {
		if err := requireEmail("email", *l.Email); err != nil {
			return err
		}
	}
	if l.Phone != nil && len(strings.TrimSpace(*l.Phone)) < minPhoneLength {
		return fmt.Errorf("%w: phone must be at least %d characters", ErrValidation, minPhoneLength)
	}
	return requireText("status", l.Status)
}

type Campaign struct {
	ID          string    `json:"id"`
	AgencyID    string    `json:"agencyId"`
	ClientID    string    `json:"clientId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (c *Campaign) Validate() error {
	if err := requireUUID("agencyId", c.AgencyID); err != nil {
		return err
	}
	if err := requireUUID("clientId", c.ClientID); err != nil {
		return err
	}
	if err := requireText("name", c.Name); err != nil {
		return err
	}
	return requireText("description", c.Description)
}

type Outcome struct {
	ID          string          `json:"id"`
	AgencyID    string          `json:"agencyId"`
	LeadID      string          `json:"leadId"`
	CampaignID  string          `json:"campaignId"`
	Name        string          `json:"name"`
	Status      OutcomeStatus   `json:"status"`
	SuccessRule json.RawMessage `json:"successRule"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func (o *Outcome) Validate() error {
	for field, value := range map[string]string{
		"agencyId":   o.AgencyID,
		"leadId":     o.LeadID,
		"campaignId": o.CampaignID,
	} {
		if err := requireUUID(field, value); err != nil {
			return err
		}
	}
	if err := requireText("name", o.Name); err != nil {
		return err
	}
	if !o.Status.IsValid() {
		return fmt.Errorf("%w: invalid outcome status %q", ErrValidation, o.Status)
	}
	return requireObject("successRule", o.SuccessRule)
}

type Agent struct {
	ID        string    `json:"id"`
	AgencyID  string    `json:"agencyId"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (a *Agent) Validate() error {
	if err := requireUUID("agencyId", a.AgencyID); err != nil {
		return err
	}
	if err := requireText("name", a.Name); err != nil {
		return err
	}
	return requireText("role", a.Role)
}

// AgentDecisionLog records why an agent acted on a lead.
type AgentDecisionLog struct {
	ID         string          `json:"id"`
	AgencyID   string          `json:"agencyId"`
	AgentID    string          `json:"agentId"`
	LeadID     string          `json:"leadId"`
	CampaignID string          `json:"campaignId"`
	Decision   DecisionType    `json:"decision"`
	Reasoning  string          `json:"reasoning"`
	Confidence float64         `json:"confidence"`
	Snapshot   json.RawMessage `json:"snapshot"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

func (d *AgentDecisionLog) Validate() error {
	for field, value := range map[string]string{
		"agencyId":   d.AgencyID,
		"agentId":    d.AgentID,
		"leadId":     d.LeadID,
		"campaignId": d.CampaignID,
	} {
		if err := requireUUID(field, value); err != nil {
			return err
		}
	}
	if !d.Decision.IsValid() {
		return fmt.Errorf("%w: invalid decision %q", ErrValidation, d.Decision)
	}
	if err := requireText("reasoning", d.Reasoning); err != nil {
		return err
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("%w: confidence must be between 0 and 1", ErrValidation)
	}
	return requireObject("snapshot", d.Snapshot)
}

// DecisionLogFilter narrows decision log listings; empty fields are ignored.
type DecisionLogFilter struct {
	AgencyID   string
	AgentID    string
	LeadID     string
	CampaignID string
}

func (f DecisionLogFilter) Validate() error {
	for field, value := range map[string]string{
		"agencyId":   f.AgencyID,
		"agentId":    f.AgentID,
		"leadId":     f.LeadID,
		"campaignId": f.CampaignID,
	} {
		if value == "" {
			continue
		}
		if err := requireUUID(field, value); err != nil {
			return err
		}
	}
	return nil
}

func requireText(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", ErrValidation, field)
	}
	return nil
}

func requireUUID(field, value string) error {
	if _, err := uuid.Parse(strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("%w: %s must be a valid uuid", ErrValidation, field)
	}
	return nil
}

func requireEmail(field, value string) error {
	addr, err := mail.ParseAddress(strings.TrimSpace(value))
	if err != nil || addr.Address != strings.TrimSpace(value) {
		return fmt.Errorf("%w: %s must be a valid email", ErrValidation, field)
	}
	return nil
}

func requireObject(field string, raw json.RawMessage) error {
	var obj map[string]any
	if len(raw) == 0 || json.Unmarshal(raw, &obj) != nil || obj == nil {
		return fmt.Errorf("%w: %s must be a JSON object", ErrValidation, field)
	}
	return nil
}
