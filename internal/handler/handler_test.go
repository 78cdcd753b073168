package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/followupos/internal/domain"
	"github.com/kursadbilgin/followupos/internal/observability"
	"github.com/kursadbilgin/followupos/internal/repository"
	"github.com/kursadbilgin/followupos/internal/transport"
	"go.uber.org/zap"
)

const (
	testAgencyID   = "11111111-1111-1111-1111-111111111111"
	testLeadID     = "44444444-4444-4444-4444-444444444444"
	testCampaignID = "55555555-5555-5555-5555-555555555555"
	testMessageID  = "77777777-7777-7777-7777-777777777777"
)

type stubMessageService struct {
	createFn       func(ctx context.Context, msg *domain.Message) (*domain.Message, error)
	getByIDFn      func(ctx context.Context, id string) (*domain.Message, error)
	listFn         func(ctx context.Context, params repository.ListParams) ([]domain.Message, int64, error)
	listAttemptsFn func(ctx context.Context, messageID string) ([]domain.MessageAttempt, error)
}

func (s *stubMessageService) Create(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	if s.createFn != nil {
		return s.createFn(ctx, msg)
	}
	return nil, errors.New("not implemented")
}

func (s *stubMessageService) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	if s.getByIDFn != nil {
		return s.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (s *stubMessageService) List(ctx context.Context, params repository.ListParams) ([]domain.Message, int64, error) {
	if s.listFn != nil {
		return s.listFn(ctx, params)
	}
	return nil, 0, nil
}

func (s *stubMessageService) ListAttempts(ctx context.Context, messageID string) ([]domain.MessageAttempt, error) {
	if s.listAttemptsFn != nil {
		return s.listAttemptsFn(ctx, messageID)
	}
	return nil, domain.ErrNotFound
}

type stubResourceService[T any] struct {
	createFn func(ctx context.Context, entity *T) (*T, error)
	getFn    func(ctx context.Context, id string) (*T, error)
	listFn   func(ctx context.Context, opts repository.ListOptions) ([]T, int64, error)
	updateFn func(ctx context.Context, id string, entity *T) (*T, error)
	deleteFn func(ctx context.Context, id string) error
}

func (s *stubResourceService[T]) Name() string { return "stub" }

func (s *stubResourceService[T]) Create(ctx context.Context, entity *T) (*T, error) {
	if s.createFn != nil {
		return s.createFn(ctx, entity)
	}
	return entity, nil
}

func (s *stubResourceService[T]) Get(ctx context.Context, id string) (*T, error) {
	if s.getFn != nil {
		return s.getFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (s *stubResourceService[T]) List(ctx context.Context, opts repository.ListOptions) ([]T, int64, error) {
	if s.listFn != nil {
		return s.listFn(ctx, opts)
	}
	return nil, 0, nil
}

func (s *stubResourceService[T]) Update(ctx context.Context, id string, entity *T) (*T, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, id, entity)
	}
	return entity, nil
}

func (s *stubResourceService[T]) Delete(ctx context.Context, id string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, id)
	}
	return nil
}

func newTestApp(t *testing.T, register func(app *fiber.App) error) *fiber.App {
	t.Helper()

	app := fiber.New(transport.FiberConfig("followupos-test", zap.NewNop()))
	app.Use(RequestContext())

	if err := register(app); err != nil {
		t.Fatalf("register routes error = %v", err)
	}
	return app
}

func performRequest(t *testing.T, app *fiber.App, method string, path string, body string) (*http.Response, []byte) {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	_ = resp.Body.Close()

	return resp, respBody
}

func decodeBody(t *testing.T, body []byte) map[string]any {
	t.Helper()

	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v, body=%s", err, body)
	}
	return parsed
}

func TestHealthRoutes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		redisErr error
		wantCode int
		wantDown string
	}{
		{name: "ready", wantCode: fiber.StatusOK},
		{name: "redis down", redisErr: errors.New("connection refused"), wantCode: fiber.StatusServiceUnavailable, wantDown: "redis"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app := newTestApp(t, func(app *fiber.App) error {
				RegisterHealthRoutes(app,
					ReadinessCheck{Name: "postgres", Check: func(context.Context) error { return nil }},
					ReadinessCheck{Name: "redis", Check: func(context.Context) error { return tt.redisErr }},
				)
				return nil
			})

			resp, _ := performRequest(t, app, http.MethodGet, "/livez", "")
			if resp.StatusCode != fiber.StatusOK {
				t.Fatalf("livez status = %d, want 200", resp.StatusCode)
			}

			resp, body := performRequest(t, app, http.MethodGet, "/readyz", "")
			if resp.StatusCode != tt.wantCode {
				t.Fatalf("readyz status = %d, want %d, body=%s", resp.StatusCode, tt.wantCode, body)
			}
			checks := decodeBody(t, body)["checks"].(map[string]any)
			if tt.wantDown != "" && checks[tt.wantDown] != "down" {
				t.Fatalf("checks = %v, want %s down", checks, tt.wantDown)
			}
			if checks["postgres"] != "ok" {
				t.Fatalf("checks = %v, want postgres ok", checks)
			}
		})
	}
}

func TestMessageRoutes_Create(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := &stubMessageService{
		createFn: func(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
			if err := msg.Validate(); err != nil {
				return nil, err
			}
			msg.ID = testMessageID
			msg.Status = domain.StatusPending
			msg.CreatedAt = now
			msg.UpdatedAt = now
			return msg, nil
		},
	}
	app := newTestApp(t, func(app *fiber.App) error { return RegisterMessageRoutes(app, svc) })

	body := `{"agencyId":"` + testAgencyID + `","leadId":"` + testLeadID + `","campaignId":"` + testCampaignID + `","channel":"email","subject":"Hello","body":"Hi Jordan"}`
	resp, respBody := performRequest(t, app, http.MethodPost, "/v1/messages", body)
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("status = %d, want 201, body=%s", resp.StatusCode, respBody)
	}

	parsed := decodeBody(t, respBody)
	if parsed["id"] != testMessageID || parsed["status"] != "PENDING" || parsed["channel"] != "EMAIL" {
		t.Fatalf("response = %v", parsed)
	}
	if parsed["attemptCount"] != float64(0) || parsed["sentAt"] != nil {
		t.Fatalf("response = %v, want zero attempts and null sentAt", parsed)
	}

	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"channel":`},
		{name: "unknown channel", body: `{"agencyId":"` + testAgencyID + `","channel":"fax","body":"x"}`},
		{name: "missing body", body: `{"agencyId":"` + testAgencyID + `","leadId":"` + testLeadID + `","campaignId":"` + testCampaignID + `","channel":"sms","body":""}`},
	}
	for _, tt := range tests {
		resp, respBody := performRequest(t, app, http.MethodPost, "/v1/messages", tt.body)
		if resp.StatusCode != fiber.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", tt.name, resp.StatusCode)
		}
		if _, ok := decodeBody(t, respBody)["error"]; !ok {
			t.Fatalf("%s: body %s has no error field", tt.name, respBody)
		}
	}
}

func TestMessageRoutes_GetAndAttempts(t *testing.T) {
	t.Parallel()

	svc := &stubMessageService{
		getByIDFn: func(ctx context.Context, id string) (*domain.Message, error) {
			if id == testMessageID {
				return &domain.Message{ID: id, Channel: domain.ChannelSMS, Status: domain.StatusSent, AttemptCount: 1}, nil
			}
			return nil, domain.ErrNotFound
		},
		listAttemptsFn: func(ctx context.Context, messageID string) ([]domain.MessageAttempt, error) {
			if messageID != testMessageID {
				return nil, domain.ErrNotFound
			}
			from := "+15551230000"
			return []domain.MessageAttempt{{
				ID:            "a1",
				MessageID:     messageID,
				AttemptNumber: 1,
				Status:        domain.AttemptStatusSuccess,
				Provider:      "sms-stub",
				FromAddress:   &from,
				RawResponse:   json.RawMessage(`{"accepted":true}`),
			}}, nil
		},
	}
	app := newTestApp(t, func(app *fiber.App) error { return RegisterMessageRoutes(app, svc) })

	resp, body := performRequest(t, app, http.MethodGet, "/v1/messages/"+testMessageID, "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if decodeBody(t, body)["status"] != "SENT" {
		t.Fatalf("body = %s", body)
	}

	resp, _ = performRequest(t, app, http.MethodGet, "/v1/messages/"+testLeadID, "")
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}

	resp, body = performRequest(t, app, http.MethodGet, "/v1/messages/"+testMessageID+"/attempts", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("attempts status = %d, want 200", resp.StatusCode)
	}
	var parsed struct {
		Data []struct {
			Provider    string         `json:"provider"`
			FromAddress string         `json:"fromAddress"`
			RawResponse map[string]any `json:"rawResponse"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if len(parsed.Data) != 1 || parsed.Data[0].FromAddress != "+15551230000" || parsed.Data[0].RawResponse["accepted"] != true {
		t.Fatalf("attempts = %+v", parsed.Data)
	}
}

func TestMessageRoutes_ListFilters(t *testing.T) {
	t.Parallel()

	svc := &stubMessageService{
		listFn: func(ctx context.Context, params repository.ListParams) ([]domain.Message, int64, error) {
			if params.Page != 2 || params.PageSize != 10 {
				t.Errorf("page = %d/%d, want 2/10", params.Page, params.PageSize)
			}
			if params.Status == nil || *params.Status != domain.StatusFailed {
				t.Errorf("status filter = %v, want FAILED", params.Status)
			}
			if params.Channel == nil || *params.Channel != domain.ChannelSMS {
				t.Errorf("channel filter = %v, want SMS", params.Channel)
			}
			if params.LeadID != testLeadID || params.AgencyID != "" {
				t.Errorf("params = %+v", params)
			}
			return []domain.Message{{ID: testMessageID, Channel: domain.ChannelSMS, Status: domain.StatusFailed}}, 11, nil
		},
	}
	app := newTestApp(t, func(app *fiber.App) error { return RegisterMessageRoutes(app, svc) })

	resp, body := performRequest(t, app, http.MethodGet, "/v1/messages?page=2&pageSize=10&status=failed&channel=sms&leadId="+testLeadID, "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, body)
	}
	meta := decodeBody(t, body)["meta"].(map[string]any)
	if meta["total"] != float64(11) || meta["page"] != float64(2) {
		t.Fatalf("meta = %v", meta)
	}

	for _, path := range []string{
		"/v1/messages?status=queued",
		"/v1/messages?pageSize=500",
		"/v1/messages?page=0",
		"/v1/messages?campaignId=abc",
	} {
		resp, _ := performRequest(t, app, http.MethodGet, path, "")
		if resp.StatusCode != fiber.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", path, resp.StatusCode)
		}
	}
}

func TestResourceRoutes(t *testing.T) {
	t.Parallel()

	svc := &stubResourceService[domain.Lead]{
		createFn: func(ctx context.Context, lead *domain.Lead) (*domain.Lead, error) {
			if err := lead.Validate(); err != nil {
				return nil, err
			}
			lead.ID = testLeadID
			return lead, nil
		},
		getFn: func(ctx context.Context, id string) (*domain.Lead, error) {
			if id == testLeadID {
				return &domain.Lead{ID: id, FullName: "Jordan Lee"}, nil
			}
			return nil, domain.ErrNotFound
		},
		listFn: func(ctx context.Context, opts repository.ListOptions) ([]domain.Lead, int64, error) {
			if opts.Filters["agency_id"] != testAgencyID || len(opts.Filters) != 1 {
				t.Errorf("filters = %v, want agency_id only", opts.Filters)
			}
			return []domain.Lead{{ID: testLeadID}}, 1, nil
		},
		updateFn: func(ctx context.Context, id string, lead *domain.Lead) (*domain.Lead, error) {
			lead.ID = id
			return lead, nil
		},
		deleteFn: func(ctx context.Context, id string) error {
			if id == testLeadID {
				return domain.ErrConflict
			}
			return nil
		},
	}
	app := newTestApp(t, func(app *fiber.App) error {
		return RegisterResourceRoutes[domain.Lead](app, svc, ResourceRoutes{
			Path:    "/leads",
			Filters: map[string]string{"agencyId": "agency_id", "clientId": "client_id"},
		})
	})

	leadBody := `{"agencyId":"` + testAgencyID + `","clientId":"` + testAgencyID + `","fullName":"Jordan Lee","email":"jordan.lee@example.com","status":"NEW"}`
	resp, body := performRequest(t, app, http.MethodPost, "/v1/leads", leadBody)
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("create status = %d, want 201, body=%s", resp.StatusCode, body)
	}
	if decodeBody(t, body)["id"] != testLeadID {
		t.Fatalf("create body = %s", body)
	}

	resp, _ = performRequest(t, app, http.MethodPost, "/v1/leads", `{"fullName":""}`)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("invalid create status = %d, want 400", resp.StatusCode)
	}

	resp, _ = performRequest(t, app, http.MethodGet, "/v1/leads/"+testLeadID, "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("get status = %d, want 200", resp.StatusCode)
	}
	resp, _ = performRequest(t, app, http.MethodGet, "/v1/leads/"+testAgencyID, "")
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("get missing status = %d, want 404", resp.StatusCode)
	}

	resp, body = performRequest(t, app, http.MethodGet, "/v1/leads?agencyId="+testAgencyID, "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("list status = %d, want 200, body=%s", resp.StatusCode, body)
	}
	resp, _ = performRequest(t, app, http.MethodGet, "/v1/leads?clientId=nope", "")
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("list bad filter status = %d, want 400", resp.StatusCode)
	}

	resp, body = performRequest(t, app, http.MethodPut, "/v1/leads/"+testCampaignID, leadBody)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("update status = %d, want 200", resp.StatusCode)
	}
	if decodeBody(t, body)["id"] != testCampaignID {
		t.Fatalf("update body = %s", body)
	}

	resp, _ = performRequest(t, app, http.MethodDelete, "/v1/leads/"+testLeadID, "")
	if resp.StatusCode != fiber.StatusConflict {
		t.Fatalf("delete referenced status = %d, want 409", resp.StatusCode)
	}
	resp, _ = performRequest(t, app, http.MethodDelete, "/v1/leads/"+testCampaignID, "")
	if resp.StatusCode != fiber.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", resp.StatusCode)
	}
}

func TestResourceRoutes_EmptyListIsArray(t *testing.T) {
	t.Parallel()

	svc := &stubResourceService[domain.Agency]{}
	app := newTestApp(t, func(app *fiber.App) error {
		return RegisterResourceRoutes[domain.Agency](app, svc, ResourceRoutes{Path: "/agencies"})
	})

	resp, body := performRequest(t, app, http.MethodGet, "/v1/agencies", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	data, ok := decodeBody(t, body)["data"].([]any)
	if !ok || len(data) != 0 {
		t.Fatalf("data = %s, want []", body)
	}

	if err := RegisterResourceRoutes[domain.Agency](fiber.New(), svc, ResourceRoutes{Path: "agencies"}); err == nil {
		t.Fatal("expected error for path without leading slash")
	}
}

func TestDecisionLogRoutes(t *testing.T) {
	t.Parallel()

	agentID := "88888888-8888-8888-8888-888888888888"
	svc := &stubResourceService[domain.AgentDecisionLog]{
		createFn: func(ctx context.Context, entry *domain.AgentDecisionLog) (*domain.AgentDecisionLog, error) {
			if err := entry.Validate(); err != nil {
				return nil, err
			}
			entry.ID = "99999999-9999-9999-9999-999999999999"
			return entry, nil
		},
		listFn: func(ctx context.Context, opts repository.ListOptions) ([]domain.AgentDecisionLog, int64, error) {
			want := map[string]string{"agent_id": agentID, "lead_id": testLeadID}
			if len(opts.Filters) != len(want) {
				t.Errorf("filters = %v, want %v", opts.Filters, want)
			}
			for k, v := range want {
				if opts.Filters[k] != v {
					t.Errorf("filters = %v, want %v", opts.Filters, want)
				}
			}
			return nil, 0, nil
		},
	}
	app := newTestApp(t, func(app *fiber.App) error { return RegisterDecisionLogRoutes(app, svc) })

	body := `{"agencyId":"` + testAgencyID + `","agentId":"` + agentID + `","leadId":"` + testLeadID + `","campaignId":"` + testCampaignID +
		`","decision":"PRIORITIZE","reasoning":"Opened the last two emails","confidence":0.82,"snapshot":{"opens":2}}`
	resp, respBody := performRequest(t, app, http.MethodPost, "/v1/agent-decision-logs", body)
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("create status = %d, want 201, body=%s", resp.StatusCode, respBody)
	}
	snapshot, ok := decodeBody(t, respBody)["snapshot"].(map[string]any)
	if !ok || snapshot["opens"] != float64(2) {
		t.Fatalf("snapshot = %s", respBody)
	}

	resp, _ = performRequest(t, app, http.MethodGet, "/v1/agent-decision-logs?agentId="+agentID+"&leadId="+testLeadID, "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("list status = %d, want 200", resp.StatusCode)
	}
	resp, _ = performRequest(t, app, http.MethodGet, "/v1/agent-decision-logs?campaignId=bad", "")
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("list bad filter status = %d, want 400", resp.StatusCode)
	}
	resp, _ = performRequest(t, app, http.MethodDelete, "/v1/agent-decision-logs/"+testAgencyID, "")
	if resp.StatusCode != fiber.StatusMethodNotAllowed && resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("delete status = %d, want 404 or 405", resp.StatusCode)
	}
}

func TestRequestContextPropagatesRequestID(t *testing.T) {
	t.Parallel()

	var seen string
	svc := &stubMessageService{
		getByIDFn: func(ctx context.Context, id string) (*domain.Message, error) {
			seen, _ = observability.RequestIDFromContext(ctx)
			return &domain.Message{ID: id}, nil
		},
	}
	app := newTestApp(t, func(app *fiber.App) error { return RegisterMessageRoutes(app, svc) })

	req := httptest.NewRequest(http.MethodGet, "/v1/messages/"+testMessageID, nil)
	req.Header.Set(fiber.HeaderXRequestID, "req-123")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	resp.Body.Close()

	if seen != "req-123" {
		t.Fatalf("request id in service context = %q, want req-123", seen)
	}
}
