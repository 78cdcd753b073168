package provider

import (
	"context"

	"github.com/kursadbilgin/followupos/internal/domain"
)

const (
	StubSMSProvider   = "sms-stub"
	StubEmailProvider = "email-stub"
	StubSMSFrom       = "+15551230000"
	StubEmailFrom     = "noreply@followupos.local"
)

var _ Gateway = StubGateway{}

// StubGateway accepts every message, so sends are deterministic.
type StubGateway struct{}

func NewStubGateway() StubGateway {
	return StubGateway{}
}

func (StubGateway) Send(_ context.Context, msg Outbound) Result {
	receipt := Receipt{
		Provider:      StubEmailProvider,
		ProviderMsgID: "prov_" + msg.ID,
		FromAddress:   StubEmailFrom,
	}
	if msg.Channel == domain.ChannelSMS {
		receipt.Provider = StubSMSProvider
		receipt.FromAddress = StubSMSFrom
	}

	var to any
	if recipient := msg.Recipient(); recipient != nil {
		to = *recipient
	}
	receipt.RawResponse = map[string]any{
		"messageId": msg.ID,
		"channel":   msg.Channel.String(),
		"to":        to,
		"accepted":  true,
	}

	return Accepted(receipt)
}
