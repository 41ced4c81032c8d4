package workflow

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/mbilous/printnet-system/internal/api"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "nil",
			err:  nil,
			want: "",
		},
		{
			name: "preflight insufficient funds",
			err:  ErrInsufficientFunds,
			want: msgInsufficientPreflight,
		},
		{
			name: "server insufficient funds is mapped, not passed through",
			err:  &api.Error{StatusCode: http.StatusBadRequest, Message: "Недостатньо коштів на балансі гаманця"},
			want: msgInsufficientServer,
		},
		{
			name: "wrapped server insufficient funds",
			err:  fmt.Errorf("create payment: %w", &api.Error{StatusCode: http.StatusBadRequest, Message: "Недостатньо коштів"}),
			want: msgInsufficientServer,
		},
		{
			name: "other 400 shows server message verbatim",
			err:  &api.Error{StatusCode: http.StatusBadRequest, Message: "vending machine is unavailable"},
			want: "vending machine is unavailable",
		},
		{
			name: "400 without message",
			err:  &api.Error{StatusCode: http.StatusBadRequest},
			want: msgGeneric,
		},
		{
			name: "404 machine not found",
			err:  &api.Error{StatusCode: http.StatusNotFound, Message: "order not found"},
			want: msgMachineNotFound,
		},
		{
			name: "401 authentication",
			err:  &api.Error{StatusCode: http.StatusUnauthorized},
			want: msgAuthFailed,
		},
		{
			name: "missing session",
			err:  ErrNotAuthenticated,
			want: msgAuthFailed,
		},
		{
			name: "transport failure",
			err:  errors.New("connection refused"),
			want: msgGeneric,
		},
		{
			name: "server error",
			err:  &api.Error{StatusCode: http.StatusInternalServerError, Message: "internal error"},
			want: msgGeneric,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.want {
				t.Fatalf("UserMessage = %q, want %q", got, tt.want)
			}
		})
	}
}
