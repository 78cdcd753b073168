package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	WebhookProvider       = "webhook"
	defaultWebhookTimeout = 10 * time.Second
)

type webhookRequest struct {
	ID      string  `json:"id"`
	Channel string  `json:"channel"`
	To      string  `json:"to"`
	Subject *string `json:"subject,omitempty"`
	Body    string  `json:"body"`
}

var _ Gateway = (*WebhookGateway)(nil)

// WebhookGateway relays messages as JSON POSTs to an HTTP endpoint.
type WebhookGateway struct {
	client   *resty.Client
	endpoint string
}

func NewWebhookGateway(endpoint string) (*WebhookGateway, error) {
	client := resty.New().
		SetTimeout(defaultWebhookTimeout).
		SetRetryCount(0)

	return NewWebhookGatewayWithClient(endpoint, client)
}

func NewWebhookGatewayWithClient(endpoint string, client *resty.Client) (*WebhookGateway, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, errors.New("webhook endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid webhook endpoint: %w", err)
	}
	if client == nil {
		return nil, errors.New("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultWebhookTimeout)
	}
	// Retries belong to the dispatch queue.
	client.SetRetryCount(0)

	return &WebhookGateway{
		client:   client,
		endpoint: trimmedEndpoint,
	}, nil
}

func (g *WebhookGateway) Send(ctx context.Context, msg Outbound) Result {
	recipient := msg.Recipient()
	if recipient == nil || strings.TrimSpace(*recipient) == "" {
		return Rejected(&Failure{
			Provider: WebhookProvider,
			Message:  fmt.Sprintf("no recipient for channel %s", msg.Channel),
		})
	}

	response, err := g.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(webhookRequest{
			ID:      msg.ID,
			Channel: strings.ToLower(msg.Channel.String()),
			To:      *recipient,
			Subject: msg.Subject,
			Body:    msg.Body,
		}).
		Post(g.endpoint)
	if err != nil {
		return Rejected(&Failure{
			Provider:  WebhookProvider,
			Message:   "provider request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		})
	}

	statusCode := response.StatusCode()
	body := strings.TrimSpace(response.String())

	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return Rejected(&Failure{
			Provider:   WebhookProvider,
			StatusCode: statusCode,
			Message:    failureMessage(statusCode, body),
			Transient:  isTransientHTTPStatus(statusCode),
		})
	}

	raw := map[string]any{
		"messageId":  msg.ID,
		"channel":    msg.Channel.String(),
		"to":         *recipient,
		"statusCode": statusCode,
	}
	decoded, err := decodeWebhookBody(response.Body())
	if err != nil {
		raw["body"] = body
		raw["bodyDecodeError"] = err.Error()
	} else if decoded != nil {
		raw["response"] = decoded
	}

	providerMsgID := stringField(decoded, "messageId")
	if providerMsgID == "" {
		providerMsgID = headerMessageID(response)
	}
	if providerMsgID == "" {
		providerMsgID = "prov_" + msg.ID
	}

	return Accepted(Receipt{
		Provider:      WebhookProvider,
		ProviderMsgID: providerMsgID,
		FromAddress:   stringField(decoded, "from"),
		RawResponse:   raw,
	})
}

// decodeWebhookBody parses a JSON object body. An empty body is not an error;
// the send already succeeded by status code.
func decodeWebhookBody(body []byte) (map[string]any, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, nil
	}

	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode provider response: %w", err)
	}
	return decoded, nil
}

func stringField(m map[string]any, key string) string {
	value, _ := m[key].(string)
	return strings.TrimSpace(value)
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= http.StatusInternalServerError
}

func failureMessage(statusCode int, body string) string {
	base := fmt.Sprintf("provider returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}

func headerMessageID(response *resty.Response) string {
	for _, key := range []string{"X-Message-ID", "X-Request-ID"} {
		if value := strings.TrimSpace(response.Header().Get(key)); value != "" {
			return value
		}
	}
	return ""
}
