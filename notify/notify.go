// Package notify translates pipeline errors into user-facing messages at
// operation boundaries. Errors are surfaced once and never rethrown past the
// boundary that reported them.
package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/nasif-muhamed/learnerd-authoring/client"
	"github.com/nasif-muhamed/learnerd-authoring/validators"
)

// Generic fallback when an error carries no structured message.
const genericMessage = "Something went wrong. Please try again."

// Notifier receives user-facing messages.
type Notifier interface {
	Notify(message string)
}

// Func adapts a plain function to Notifier.
type Func func(message string)

func (f Func) Notify(message string) { f(message) }

// LogNotifier writes notifications to the log; the default sink when no UI
// is attached.
type LogNotifier struct {
	Log *zap.Logger
}

func (n LogNotifier) Notify(message string) {
	n.Log.Info("notification", zap.String("message", message))
}

// Message resolves the first available structured message of err, falling
// back to a generic one.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var fieldErrs validators.FieldErrors
	if errors.As(err, &fieldErrs) {
		return fieldErrs.First()
	}

	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.FirstMessage()
	}

	if errors.Is(err, client.ErrLoggedOut) {
		return "Your session has ended. Please log in again."
	}
	if errors.Is(err, context.Canceled) {
		return "Operation cancelled."
	}
	return genericMessage
}
