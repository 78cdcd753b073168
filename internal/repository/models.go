package repository

import (
	"encoding/json"
	"time"

	"github.com/kursadbilgin/followupos/internal/domain"
	"gorm.io/datatypes"
)

// MessageModel is the persistence model for the messages table.
type MessageModel struct {
	ID           string         `gorm:"type:uuid;primaryKey"`
	AgencyID     string         `gorm:"type:uuid;not null"`
	LeadID       string         `gorm:"type:uuid;not null"`
	CampaignID   string         `gorm:"type:uuid;not null"`
	Channel      domain.Channel `gorm:"type:varchar(10);not null"`
	Subject      *string        `gorm:"type:varchar(255)"`
	Body         string         `gorm:"type:text;not null"`
	Status       domain.Status  `gorm:"type:varchar(20);not null"`
	AttemptCount int            `gorm:"not null"`
	SentAt       *time.Time     `gorm:"type:timestamptz"`
	CreatedAt    time.Time      `gorm:"type:timestamptz"`
	UpdatedAt    time.Time      `gorm:"type:timestamptz"`

	// FailedPermanently keeps the reconciler from re-enqueuing a failure the
	// provider rejected outright.
	FailedPermanently bool `gorm:"not null;default:false"`

	Lead *LeadModel `gorm:"foreignKey:LeadID"`
}

func (MessageModel) TableName() string {
	return "messages"
}

// MessageAttemptModel is the persistence model for message_attempts.
type MessageAttemptModel struct {
	ID            string               `gorm:"type:uuid;primaryKey"`
	MessageID     string               `gorm:"type:uuid;not null"`
	AttemptNumber int                  `gorm:"not null"`
	Status        domain.AttemptStatus `gorm:"type:varchar(20);not null"`
	Provider      string               `gorm:"type:varchar(100);not null"`
	ProviderMsgID *string              `gorm:"type:varchar(255)"`
	FromAddress   *string              `gorm:"type:varchar(255)"`
	RawResponse   datatypes.JSON       `gorm:"type:jsonb"`
	CreatedAt     time.Time            `gorm:"type:timestamptz"`
}

func (MessageAttemptModel) TableName() string {
	return "message_attempts"
}

type AgencyModel struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	Name      string `gorm:"type:varchar(255);not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (AgencyModel) TableName() string { return "agencies" }

type UserModel struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	AgencyID  string `gorm:"type:uuid;not null;index"`
	Email     string `gorm:"type:varchar(255);not null;uniqueIndex"`
	Name      string `gorm:"type:varchar(255);not null"`
	Role      string `gorm:"type:varchar(50);not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (UserModel) TableName() string { return "users" }

type ClientModel struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	AgencyID  string `gorm:"type:uuid;not null;index"`
	Name      string `gorm:"type:varchar(255);not null"`
	Industry  string `gorm:"type:varchar(255);not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ClientModel) TableName() string { return "clients" }

type LeadModel struct {
	ID        string  `gorm:"type:uuid;primaryKey"`
	AgencyID  string  `gorm:"type:uuid;not null;index"`
	ClientID  string  `gorm:"type:uuid;not null;index"`
	FullName  string  `gorm:"type:varchar(255);not null"`
	Email     *string `gorm:"type:varchar(255)"`
	Phone     *string `gorm:"type:varchar(50)"`
	Status    string  `gorm:"type:varchar(50);not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (LeadModel) TableName() string { return "leads" }

type CampaignModel struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	AgencyID    string `gorm:"type:uuid;not null;index"`
	ClientID    string `gorm:"type:uuid;not null;index"`
	Name        string `gorm:"type:varchar(255);not null"`
	Description string `gorm:"type:text;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (CampaignModel) TableName() string { return "campaigns" }

type OutcomeModel struct {
	ID          string               `gorm:"type:uuid;primaryKey"`
	AgencyID    string               `gorm:"type:uuid;not null;index"`
	LeadID      string               `gorm:"type:uuid;not null;index"`
	CampaignID  string               `gorm:"type:uuid;not null;index"`
	Name        string               `gorm:"type:varchar(255);not null"`
	Status      domain.OutcomeStatus `gorm:"type:varchar(20);not null"`
	SuccessRule datatypes.JSON       `gorm:"type:jsonb;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (OutcomeModel) TableName() string { return "outcomes" }

type AgentModel struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	AgencyID  string `gorm:"type:uuid;not null;index"`
	Name      string `gorm:"type:varchar(255);not null"`
	Role      string `gorm:"type:varchar(50);not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (AgentModel) TableName() string { return "agents" }

type AgentDecisionLogModel struct {
	ID         string              `gorm:"type:uuid;primaryKey"`
	AgencyID   string              `gorm:"type:uuid;not null"`
	AgentID    string              `gorm:"type:uuid;not null"`
	LeadID     string              `gorm:"type:uuid;not null"`
	CampaignID string              `gorm:"type:uuid;not null"`
	Decision   domain.DecisionType `gorm:"type:varchar(20);not null"`
	Reasoning  string              `gorm:"type:text;not null"`
	Confidence float64             `gorm:"not null"`
	Snapshot   datatypes.JSON      `gorm:"type:jsonb;not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (AgentDecisionLogModel) TableName() string { return "agent_decision_logs" }

func messageModelFromDomain(m *domain.Message) *MessageModel {
	if m == nil {
		return nil
	}

	return &MessageModel{
		ID:                m.ID,
		AgencyID:          m.AgencyID,
		LeadID:            m.LeadID,
		CampaignID:        m.CampaignID,
		Channel:           m.Channel,
		Subject:           m.Subject,
		Body:              m.Body,
		Status:            m.Status,
		AttemptCount:      m.AttemptCount,
		FailedPermanently: m.FailedPermanently,
		SentAt:            m.SentAt,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func messageModelToDomain(m *MessageModel) *domain.Message {
	if m == nil {
		return nil
	}

	return &domain.Message{
		ID:                m.ID,
		AgencyID:          m.AgencyID,
		LeadID:            m.LeadID,
		CampaignID:        m.CampaignID,
		Channel:           m.Channel,
		Subject:           m.Subject,
		Body:              m.Body,
		Status:            m.Status,
		AttemptCount:      m.AttemptCount,
		FailedPermanently: m.FailedPermanently,
		SentAt:            m.SentAt,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
		Lead:              leadModelToDomain(m.Lead),
	}
}

func attemptModelFromDomain(a *domain.MessageAttempt) *MessageAttemptModel {
	if a == nil {
		return nil
	}

	return &MessageAttemptModel{
		ID:            a.ID,
		MessageID:     a.MessageID,
		AttemptNumber: a.AttemptNumber,
		Status:        a.Status,
		Provider:      a.Provider,
		ProviderMsgID: a.ProviderMsgID,
		FromAddress:   a.FromAddress,
		RawResponse:   datatypes.JSON(a.RawResponse),
		CreatedAt:     a.CreatedAt,
	}
}

func attemptModelToDomain(m *MessageAttemptModel) *domain.MessageAttempt {
	if m == nil {
		return nil
	}

	return &domain.MessageAttempt{
		ID:            m.ID,
		MessageID:     m.MessageID,
		AttemptNumber: m.AttemptNumber,
		Status:        m.Status,
		Provider:      m.Provider,
		ProviderMsgID: m.ProviderMsgID,
		FromAddress:   m.FromAddress,
		RawResponse:   json.RawMessage(m.RawResponse),
		CreatedAt:     m.CreatedAt,
	}
}

func agencyModelFromDomain(a *domain.Agency) *AgencyModel {
	return &AgencyModel{ID: a.ID, Name: a.Name, CreatedAt: a.CreatedAt, UpdatedAt: a.UpdatedAt}
}

func agencyModelToDomain(m *AgencyModel) *domain.Agency {
	return &domain.Agency{ID: m.ID, Name: m.Name, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}
}

func userModelFromDomain(u *domain.User) *UserModel {
	return &UserModel{
		ID: u.ID, AgencyID: u.AgencyID, Email: u.Email, Name: u.Name, Role: u.Role,
		CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt,
	}
}

func userModelToDomain(m *UserModel) *domain.User {
	return &domain.User{
		ID: m.ID, AgencyID: m.AgencyID, Email: m.Email, Name: m.Name, Role: m.Role,
		CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt,
	}
}

func clientModelFromDomain(c *domain.Client) *ClientModel {
	return &ClientModel{
		ID: c.ID, AgencyID: c.AgencyID, Name: c.Name, Industry: c.Industry,
		CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt,
	}
}

func clientModelToDomain(m *ClientModel) *domain.Client {
	return &domain.Client{
		ID: m.ID, AgencyID: m.AgencyID, Name: m.Name, Industry: m.Industry,
		CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt,
	}
}

func leadModelFromDomain(l *domain.Lead) *LeadModel {
	return &LeadModel{
		ID: l.ID, AgencyID: l.AgencyID, ClientID: l.ClientID, FullName: l.FullName,
		Email: l.Email, Phone: l.Phone, Status: l.Status,
		CreatedAt: l.CreatedAt, UpdatedAt: l.UpdatedAt,
	}
}

func leadModelToDomain(m *LeadModel) *domain.Lead {
	if m == nil {
		return nil
	}
	return &domain.Lead{
		ID: m.ID, AgencyID: m.AgencyID, ClientID: m.ClientID, FullName: m.FullName,
		Email: m.Email, Phone: m.Phone, Status: m.Status,
		CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt,
	}
}

func campaignModelFromDomain(c *domain.Campaign) *CampaignModel {
	return &CampaignModel{
		ID: c.ID, AgencyID: c.AgencyID, ClientID: c.ClientID, Name: c.Name, Description: c.Description,
		CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt,
	}
}

func campaignModelToDomain(m *CampaignModel) *domain.Campaign {
	return &domain.Campaign{
		ID: m.ID, AgencyID: m.AgencyID, ClientID: m.ClientID, Name: m.Name, Description: m.Description,
		CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt,
	}
}

func outcomeModelFromDomain(o *domain.Outcome) *OutcomeModel {
	return &OutcomeModel{
		ID: o.ID, AgencyID: o.AgencyID, LeadID: o.LeadID, CampaignID: o.CampaignID,
		Name: o.Name, Status: o.Status, SuccessRule: datatypes.JSON(o.SuccessRule),
		CreatedAt: o.CreatedAt, UpdatedAt: o.UpdatedAt,
	}
}

func outcomeModelToDomain(m *OutcomeModel) *domain.Outcome {
	return &domain.Outcome{
		ID: m.ID, AgencyID: m.AgencyID, LeadID: m.LeadID, CampaignID: m.CampaignID,
		Name: m.Name, Status: m.Status, SuccessRule: json.RawMessage(m.SuccessRule),
		CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt,
	}
}

func agentModelFromDomain(a *domain.Agent) *AgentModel {
	return &AgentModel{
		ID: a.ID, AgencyID: a.AgencyID, Name: a.Name, Role: a.Role,
		CreatedAt: a.CreatedAt, UpdatedAt: a.UpdatedAt,
	}
}

func agentModelToDomain(m *AgentModel) *domain.Agent {
	return &domain.Agent{
		ID: m.ID, AgencyID: m.AgencyID, Name: m.Name, Role: m.Role,
		CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt,
	}
}

func decisionLogModelFromDomain(d *domain.AgentDecisionLog) *AgentDecisionLogModel {
	return &AgentDecisionLogModel{
		ID: d.ID, AgencyID: d.AgencyID, AgentID: d.AgentID, LeadID: d.LeadID, CampaignID: d.CampaignID,
		Decision: d.Decision, Reasoning: d.Reasoning, Confidence: d.Confidence,
		Snapshot:  datatypes.JSON(d.Snapshot),
		CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}
}

func decisionLogModelToDomain(m *AgentDecisionLogModel) *domain.AgentDecisionLog {
	return &domain.AgentDecisionLog{
		ID: m.ID, AgencyID: m.AgencyID, AgentID: m.AgentID, LeadID: m.LeadID, CampaignID: m.CampaignID,
		Decision: m.Decision, Reasoning: m.Reasoning, Confidence: m.Confidence,
		Snapshot:  json.RawMessage(m.Snapshot),
		CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt,
	}
}
