package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/followupos/internal/domain"
	"github.com/kursadbilgin/followupos/internal/repository"
)

type MessageService interface {
	Create(ctx context.Context, msg *domain.Message) (*domain.Message, error)
	GetByID(ctx context.Context, id string) (*domain.Message, error)
	List(ctx context.Context, params repository.ListParams) ([]domain.Message, int64, error)
	ListAttempts(ctx context.Context, messageID string) ([]domain.MessageAttempt, error)
}

type MessageHandler struct {
	service MessageService
}

func NewMessageHandler(service MessageService) (*MessageHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("message service is required")
	}
	return &MessageHandler{service: service}, nil
}

func RegisterMessageRoutes(router fiber.Router, service MessageService) error {
	h, err := NewMessageHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/messages", h.CreateMessage)
	v1.Get("/messages", h.ListMessages)
	v1.Get("/messages/:id", h.GetMessage)
	v1.Get("/messages/:id/attempts", h.ListAttempts)

	return nil
}

type createMessageRequest struct {
	AgencyID   string  `json:"agencyId"`
	LeadID     string  `json:"leadId"`
	CampaignID string  `json:"campaignId"`
	Channel    string  `json:"channel"`
	Subject    *string `json:"subject"`
	Body       string  `json:"body"`
}

type messageResponse struct {
	ID           string     `json:"id"`
	AgencyID     string     `json:"agencyId"`
	LeadID       string     `json:"leadId"`
	CampaignID   string     `json:"campaignId"`
	Channel      string     `json:"channel"`
	Subject      *string    `json:"subject"`
	Body         string     `json:"body"`
	Status       string     `json:"status"`
	AttemptCount int        `json:"attemptCount"`
	SentAt       *time.Time `json:"sentAt"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

type attemptResponse struct {
	ID            string          `json:"id"`
	MessageID     string          `json:"messageId"`
	AttemptNumber int             `json:"attemptNumber"`
	Status        string          `json:"status"`
	Provider      string          `json:"provider"`
	ProviderMsgID *string         `json:"providerMsgId"`
	FromAddress   *string         `json:"fromAddress"`
	RawResponse   json.RawMessage `json:"rawResponse"`
	CreatedAt     time.Time       `json:"createdAt"`
}

func (h *MessageHandler) CreateMessage(c *fiber.Ctx) error {
	var req createMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	channel, err := domain.ParseChannelFromString(req.Channel)
	if err != nil {
		return toHTTPError(err)
	}

	created, err := h.service.Create(c.UserContext(), &domain.Message{
		AgencyID:   req.AgencyID,
		LeadID:     req.LeadID,
		CampaignID: req.CampaignID,
		Channel:    channel,
		Subject:    req.Subject,
		Body:       req.Body,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toMessageResponse(created))
}

func (h *MessageHandler) GetMessage(c *fiber.Ctx) error {
	msg, err := h.service.GetByID(c.UserContext(), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toMessageResponse(msg))
}

func (h *MessageHandler) ListMessages(c *fiber.Ctx) error {
	params, err := parseMessageListParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	messages, total, err := h.service.List(c.UserContext(), params)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]messageResponse, 0, len(messages))
	for i := range messages {
		data = append(data, toMessageResponse(&messages[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listResponse[messageResponse]{
		Data: data,
		Meta: listMeta{Page: params.Page, PageSize: params.PageSize, Total: total},
	})
}

func (h *MessageHandler) ListAttempts(c *fiber.Ctx) error {
	attempts, err := h.service.ListAttempts(c.UserContext(), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]attemptResponse, 0, len(attempts))
	for _, a := range attempts {
		data = append(data, attemptResponse{
			ID:            a.ID,
			MessageID:     a.MessageID,
			AttemptNumber: a.AttemptNumber,
			Status:        a.Status.String(),
			Provider:      a.Provider,
			ProviderMsgID: a.ProviderMsgID,
			FromAddress:   a.FromAddress,
			RawResponse:   a.RawResponse,
			CreatedAt:     a.CreatedAt,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": data})
}

func parseMessageListParams(c *fiber.Ctx) (repository.ListParams, error) {
	page, pageSize, err := parsePage(c)
	if err != nil {
		return repository.ListParams{}, err
	}
	params := repository.ListParams{Page: page, PageSize: pageSize}

	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseStatusFromString(rawStatus)
		if err != nil {
			return repository.ListParams{}, err
		}
		params.Status = &status
	}

	if rawChannel := strings.TrimSpace(c.Query("channel")); rawChannel != "" {
		channel, err := domain.ParseChannelFromString(rawChannel)
		if err != nil {
			return repository.ListParams{}, err
		}
		params.Channel = &channel
	}

	for name, dst := range map[string]*string{
		"agencyId":   &params.AgencyID,
		"leadId":     &params.LeadID,
		"campaignId": &params.CampaignID,
	} {
		value, err := queryID(c, name)
		if err != nil {
			return repository.ListParams{}, err
		}
		*dst = value
	}

	return params, nil
}

func toMessageResponse(m *domain.Message) messageResponse {
	if m == nil {
		return messageResponse{}
	}

	return messageResponse{
		ID:           m.ID,
		AgencyID:     m.AgencyID,
		LeadID:       m.LeadID,
		CampaignID:   m.CampaignID,
		Channel:      m.Channel.String(),
		Subject:      m.Subject,
		Body:         m.Body,
		Status:       m.Status.String(),
		AttemptCount: m.AttemptCount,
		SentAt:       m.SentAt,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}
