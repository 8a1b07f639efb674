package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gridfeed/gridfeed/internal/catalog"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unknown source", fmt.Errorf("%w %q", catalog.ErrUnknownSource, "x"), http.StatusNotFound},
		{"invalid request", fmt.Errorf("%w: slots", catalog.ErrInvalidRequest), http.StatusBadRequest},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"cancelled", context.Canceled, 499},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
