package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error wins", New(ErrInternal, http.StatusTeapot, "x"), http.StatusTeapot},
		{"invalid helper", Invalid("limit must be positive"), http.StatusBadRequest},
		{"wrapped not found", fmt.Errorf("loading: %w", ErrDocumentNotFound), http.StatusNotFound},
		{"store down", fmt.Errorf("scan: %w", ErrStoreUnavailable), http.StatusServiceUnavailable},
		{"source down", ErrSourceUnavailable, http.StatusServiceUnavailable},
		{"timeout", ErrTimeout, http.StatusGatewayTimeout},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests},
		{"unknown", context.Canceled, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatusCode(tt.err); got != tt.want {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := fmt.Errorf("outer: %w", Newf(ErrInvalidInput, 400, "distance %d out of range", 9))
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatal("expected errors.Is to see the sentinel")
	}
	if got := Message(err, "fallback"); got != "distance 9 out of range" {
		t.Errorf("Message() = %q", got)
	}
	if got := Message(errors.New("plain"), "fallback"); got != "fallback" {
		t.Errorf("Message() on plain error = %q", got)
	}
}
