package provider

import (
	"context"

	"github.com/kursadbilgin/followupos/internal/domain"
)

// Gateway is the outbound delivery port. Send never panics or returns a
// partial result: exactly one of Result.Receipt and Result.Failure is set.
type Gateway interface {
	Send(ctx context.Context, msg Outbound) Result
}

// Outbound is everything a provider needs to deliver one message.
type Outbound struct {
	ID      string
	Channel domain.Channel
	Subject *string
	Body    string
	ToEmail *string
	ToPhone *string
}

// Recipient returns the address used for the outbound channel, if any.
func (o Outbound) Recipient() *string {
	if o.Channel == domain.ChannelSMS {
		return o.ToPhone
	}
	return o.ToEmail
}

// Receipt describes an accepted send.
type Receipt struct {
	Provider      string
	ProviderMsgID string
	FromAddress   string
	RawResponse   map[string]any
}

type Result struct {
	Receipt *Receipt
	Failure *Failure
}

func (r Result) OK() bool {
	return r.Failure == nil && r.Receipt != nil
}

func Accepted(receipt Receipt) Result {
	return Result{Receipt: &receipt}
}

func Rejected(failure *Failure) Result {
	return Result{Failure: failure}
}
