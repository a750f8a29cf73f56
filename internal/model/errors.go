package model

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Error taxonomy. Sources wrap these with SourceError; callers classify
// with CategoryOf.
var (
	ErrTransientNetwork = errors.New("transient network error")
	ErrServer           = errors.New("server error")
	ErrSourceRejected   = errors.New("request rejected by source")
	ErrAuthExpired      = errors.New("authentication expired")
	ErrForbidden        = errors.New("access forbidden")
	ErrNotFound         = errors.New("not found")
	ErrStorageQuota     = errors.New("storage quota exceeded")
	ErrMalformedState   = errors.New("malformed stored state")
)

// SourceError wraps a memo source failure with its operation and status.
type SourceError struct {
	Op     string
	Status int
	Err    error
}

func (e *SourceError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// IsRetryable reports whether err may succeed on a later attempt.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransientNetwork) || errors.Is(err, ErrServer)
}

// Category is the user-facing class of a surfaced error.
type Category string

const (
	CategoryNetwork    Category = "network"
	CategoryServer     Category = "server"
	CategoryPermission Category = "permission"
	CategoryNotFound   Category = "not-found"
	CategoryGeneric    Category = "generic"
)

// CategoryOf classifies err for message selection.
func CategoryOf(err error) Category {
	var netErr net.Error
	switch {
	case err == nil:
		return CategoryGeneric
	case errors.Is(err, ErrTransientNetwork),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr):
		return CategoryNetwork
	case errors.Is(err, ErrServer):
		return CategoryServer
	case errors.Is(err, ErrAuthExpired), errors.Is(err, ErrForbidden):
		return CategoryPermission
	case errors.Is(err, ErrNotFound):
		return CategoryNotFound
	default:
		return CategoryGeneric
	}
}

var userMessages = map[Category]string{
	CategoryNetwork:    "Could not reach the memo server. Check your connection and try again.",
	CategoryServer:     "The memo server had a problem. Try again later.",
	CategoryPermission: "The memo server refused access. Sign in again to continue.",
	CategoryNotFound:   "The requested memos could not be found.",
	CategoryGeneric:    "Something went wrong while building today's review.",
}

// UserMessage returns the message shown for a category.
func UserMessage(c Category) string {
	if msg, ok := userMessages[c]; ok {
		return msg
	}
	return userMessages[CategoryGeneric]
}
