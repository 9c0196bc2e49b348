package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nasif-muhamed/learnerd-authoring/client"
	"github.com/nasif-muhamed/learnerd-authoring/validators"
)

func TestMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "nil error",
			err:  nil,
			want: "",
		},
		{
			name: "field errors surface the first message",
			err:  validators.FieldErrors{"title": {"Title must be between 10 and 120 characters!"}},
			want: "Title must be between 10 and 120 characters!",
		},
		{
			name: "api error surfaces its detail",
			err:  &client.APIError{Status: http.StatusConflict, Detail: "Section was already deleted"},
			want: "Section was already deleted",
		},
		{
			name: "wrapped api error still found",
			err:  fmt.Errorf("delete section: %w", &client.APIError{Status: http.StatusConflict, Detail: "id mismatch"}),
			want: "id mismatch",
		},
		{
			name: "terminated session",
			err:  client.ErrLoggedOut,
			want: "Your session has ended. Please log in again.",
		},
		{
			name: "cancelled operation",
			err:  fmt.Errorf("upload: %w", context.Canceled),
			want: "Operation cancelled.",
		},
		{
			name: "anything else falls back to generic",
			err:  errors.New("dial tcp: connection refused"),
			want: "Something went wrong. Please try again.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Message(tt.err))
		})
	}
}

func TestFuncAdapter(t *testing.T) {
	var got string
	n := Func(func(message string) { got = message })
	n.Notify("saved")
	assert.Equal(t, "saved", got)
}
