package model

import (
	"context"
	"errors"
	"fmt"
)

type Kind string

const (
	KindNone        Kind = ""
	KindConfig      Kind = "config"
	KindNetwork     Kind = "network"
	KindHttpStatus  Kind = "http_status"
	KindParse       Kind = "parse"
	KindPersistence Kind = "persistence"
	KindTimeout     Kind = "timeout"
	KindCancelled   Kind = "cancelled"
	KindUnknown     Kind = "unknown"
)

// ConfigError is a missing or invalid mapping or credential. It is the only
// error allowed to abort the process before any job runs.
type ConfigError struct {
	Reason  string
	Subject string
	Err     error
}

func (e ConfigError) Error() string {
	msg := "config error: " + e.Reason
	if e.Subject != "" {
		msg += fmt.Sprintf(" (%s)", e.Subject)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e ConfigError) Unwrap() error { return e.Err }

// NetworkError is a transport level failure (connection reset, dial timeout,
// dns lookup). Retryable marks the subset that is worth trying again.
type NetworkError struct {
	URL       string
	Retryable bool
	Err       error
}

func (e NetworkError) Error() string {
	return fmt.Sprintf("network error: %s: %v", e.URL, e.Err)
}

func (e NetworkError) Unwrap() error { return e.Err }

// HttpStatusError is a response outside of the accepted 2xx-3xx window.
type HttpStatusError struct {
	URL        string
	StatusCode int
}

func (e HttpStatusError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.StatusCode, e.URL)
}

func (e HttpStatusError) Retryable() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// ParseError means the expected structure was not found on the page.
// Retrying does not help, the page itself has to change.
type ParseError struct {
	URL    string
	Reason string
}

func (e ParseError) Error() string {
	if e.URL == "" {
		return "parse error: " + e.Reason
	}
	return fmt.Sprintf("parse error: %s: %s", e.Reason, e.URL)
}

// PersistenceError is a failed sheet operation.
type PersistenceError struct {
	Op         string
	Range      string
	StatusCode int
	Message    string
	Err        error
}

func (e PersistenceError) Error() string {
	msg := fmt.Sprintf("sheets %s %s", e.Op, e.Range)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e PersistenceError) Unwrap() error { return e.Err }

func (e PersistenceError) Retryable() bool {
	return e.StatusCode == 429 || (e.StatusCode >= 500 && e.StatusCode < 600)
}

// TimeoutError is a job exceeding its wall-clock budget.
type TimeoutError struct {
	Job    string
	Budget string
}

func (e TimeoutError) Error() string {
	return fmt.Sprintf("job %s exceeded its %s budget", e.Job, e.Budget)
}

func (e TimeoutError) Unwrap() error { return context.DeadlineExceeded }

// KindOf classifies any error into the taxonomy.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var (
		configErr  ConfigError
		timeoutErr TimeoutError
		netErr     NetworkError
		statusErr  HttpStatusError
		parseErr   ParseError
		persistErr PersistenceError
	)
	switch {
	case errors.As(err, &configErr):
		return KindConfig
	case errors.As(err, &timeoutErr):
		return KindTimeout
	case errors.As(err, &netErr):
		return KindNetwork
	case errors.As(err, &statusErr):
		return KindHttpStatus
	case errors.As(err, &parseErr):
		return KindParse
	case errors.As(err, &persistErr):
		return KindPersistence
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCancelled
	}
	return KindUnknown
}
