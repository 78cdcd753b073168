package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Failure classifies a provider call failure as transient or permanent.
type Failure struct {
	Provider   string
	StatusCode int
	Message    string
	Transient  bool
	Cause      error
}

func (f *Failure) Error() string {
	if f == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 4)
	if f.Provider != "" {
		parts = append(parts, f.Provider)
	} else {
		parts = append(parts, "provider error")
	}
	if f.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", f.StatusCode))
	}
	if msg := strings.TrimSpace(f.Message); msg != "" {
		parts = append(parts, msg)
	}
	if f.Cause != nil {
		parts = append(parts, f.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (f *Failure) Unwrap() error {
	if f == nil {
		return nil
	}
	return f.Cause
}

// IsTransient reports whether an error is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var failure *Failure
	if errors.As(err, &failure) {
		return failure.Transient
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}
