package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/followupos/internal/domain"
	"github.com/kursadbilgin/followupos/internal/repository"
)

// ResourceService is the uniform CRUD surface of a CRM entity.
type ResourceService[T any] interface {
	Name() string
	Create(ctx context.Context, entity *T) (*T, error)
	Get(ctx context.Context, id string) (*T, error)
	List(ctx context.Context, opts repository.ListOptions) ([]T, int64, error)
	Update(ctx context.Context, id string, entity *T) (*T, error)
	Delete(ctx context.Context, id string) error
}

// ResourceRoutes describes how an entity is exposed. Filters maps a query
// parameter to the column it narrows; every filter value must be a uuid.
type ResourceRoutes struct {
	Path    string
	Filters map[string]string
}

type ResourceHandler[T any] struct {
	service ResourceService[T]
	filters map[string]string
}

func NewResourceHandler[T any](service ResourceService[T], filters map[string]string) (*ResourceHandler[T], error) {
	if service == nil {
		return nil, fmt.Errorf("resource service is required")
	}
	return &ResourceHandler[T]{service: service, filters: filters}, nil
}

func RegisterResourceRoutes[T any](router fiber.Router, service ResourceService[T], routes ResourceRoutes) error {
	h, err := NewResourceHandler(service, routes.Filters)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(routes.Path, "/") {
		return fmt.Errorf("%s route path %q must start with /", service.Name(), routes.Path)
	}

	group := router.Group("/v1" + routes.Path)
	group.Post("/", h.Create)
	group.Get("/", h.List)
	group.Get("/:id", h.Get)
	group.Put("/:id", h.Update)
	group.Delete("/:id", h.Delete)

	return nil
}

func (h *ResourceHandler[T]) Create(c *fiber.Ctx) error {
	entity := new(T)
	if err := c.BodyParser(entity); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	created, err := h.service.Create(c.UserContext(), entity)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *ResourceHandler[T]) Get(c *fiber.Ctx) error {
	entity, err := h.service.Get(c.UserContext(), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(entity)
}

func (h *ResourceHandler[T]) List(c *fiber.Ctx) error {
	opts, err := parseListOptions(c, h.filters)
	if err != nil {
		return toHTTPError(err)
	}

	items, total, err := h.service.List(c.UserContext(), opts)
	if err != nil {
		return toHTTPError(err)
	}
	if items == nil {
		items = []T{}
	}

	return c.Status(fiber.StatusOK).JSON(listResponse[T]{
		Data: items,
		Meta: listMeta{Page: opts.Page, PageSize: opts.PageSize, Total: total},
	})
}

func (h *ResourceHandler[T]) Update(c *fiber.Ctx) error {
	entity := new(T)
	if err := c.BodyParser(entity); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	updated, err := h.service.Update(c.UserContext(), strings.TrimSpace(c.Params("id")), entity)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(updated)
}

func (h *ResourceHandler[T]) Delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), strings.TrimSpace(c.Params("id"))); err != nil {
		return toHTTPError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func parseListOptions(c *fiber.Ctx, filters map[string]string) (repository.ListOptions, error) {
	page, pageSize, err := parsePage(c)
	if err != nil {
		return repository.ListOptions{}, err
	}

	opts := repository.ListOptions{Page: page, PageSize: pageSize}
	for param, column := range filters {
		value, err := queryID(c, param)
		if err != nil {
			return repository.ListOptions{}, err
		}
		if value == "" {
			continue
		}
		if opts.Filters == nil {
			opts.Filters = map[string]string{}
		}
		opts.Filters[column] = value
	}
	return opts, nil
}

// DecisionLogService is the append-only surface of agent decision logs.
type DecisionLogService interface {
	Create(ctx context.Context, entity *domain.AgentDecisionLog) (*domain.AgentDecisionLog, error)
	List(ctx context.Context, opts repository.ListOptions) ([]domain.AgentDecisionLog, int64, error)
}

type DecisionLogHandler struct {
	service DecisionLogService
}

func RegisterDecisionLogRoutes(router fiber.Router, service DecisionLogService) error {
	if service == nil {
		return fmt.Errorf("decision log service is required")
	}
	h := &DecisionLogHandler{service: service}

	v1 := router.Group("/v1")
	v1.Post("/agent-decision-logs", h.Create)
	v1.Get("/agent-decision-logs", h.List)

	return nil
}

func (h *DecisionLogHandler) Create(c *fiber.Ctx) error {
	var entry domain.AgentDecisionLog
	if err := c.BodyParser(&entry); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	created, err := h.service.Create(c.UserContext(), &entry)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *DecisionLogHandler) List(c *fiber.Ctx) error {
	page, pageSize, err := parsePage(c)
	if err != nil {
		return toHTTPError(err)
	}

	filter := domain.DecisionLogFilter{
		AgencyID:   strings.TrimSpace(c.Query("agencyId")),
		AgentID:    strings.TrimSpace(c.Query("agentId")),
		LeadID:     strings.TrimSpace(c.Query("leadId")),
		CampaignID: strings.TrimSpace(c.Query("campaignId")),
	}
	if err := filter.Validate(); err != nil {
		return toHTTPError(err)
	}

	opts := repository.ListOptions{Page: page, PageSize: pageSize, Filters: decisionLogColumns(filter)}
	items, total, err := h.service.List(c.UserContext(), opts)
	if err != nil {
		return toHTTPError(err)
	}
	if items == nil {
		items = []domain.AgentDecisionLog{}
	}

	return c.Status(fiber.StatusOK).JSON(listResponse[domain.AgentDecisionLog]{
		Data: items,
		Meta: listMeta{Page: page, PageSize: pageSize, Total: total},
	})
}

func decisionLogColumns(f domain.DecisionLogFilter) map[string]string {
	columns := map[string]string{}
	for column, value := range map[string]string{
		"agency_id":   f.AgencyID,
		"agent_id":    f.AgentID,
		"lead_id":     f.LeadID,
		"campaign_id": f.CampaignID,
	} {
		if value != "" {
			columns[column] = value
		}
	}
	return columns
}
