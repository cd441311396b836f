package orchestrator

import (
	"errors"
	"strings"
	"time"

	"nrega-scraper/internal/model"
)

// failure text that marks a transient network condition
var networkSignatures = []string{
	"connection reset",
	"connection refused",
	"no such host",
	"i/o timeout",
	"timeout",
	"temporary failure in name resolution",
	"server misbehaving",
	"econnreset",
	"etimedout",
	"enotfound",
	"eai_again",
}

// Retryable decides whether a failed attempt is worth another try. Typed
// errors are trusted first, a network error the client gave up on and
// anything untyped fall back to its text.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var (
		netErr     model.NetworkError
		timeoutErr model.TimeoutError
	)
	switch {
	case errors.As(err, &timeoutErr):
		return true
	case errors.As(err, &netErr):
		if netErr.Retryable {
			return true
		}
		return hasNetworkSignature(err.Error())
	}
	switch model.KindOf(err) {
	case model.KindParse, model.KindConfig, model.KindHttpStatus, model.KindPersistence, model.KindCancelled:
		return false
	case model.KindTimeout:
		return true
	}
	return hasNetworkSignature(err.Error())
}

func hasNetworkSignature(text string) bool {
	text = strings.ToLower(text)
	for _, sig := range networkSignatures {
		if strings.Contains(text, sig) {
			return true
		}
	}
	return false
}

// Backoff is the wait before retry number attempt (1-based): base * attempt^2.
func Backoff(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(attempt*attempt)
}
