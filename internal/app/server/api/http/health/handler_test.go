package health

import (
	"context"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/assert"
	"golang.org/x/exp/slog"
)

func TestHandler_healthCheck(t *testing.T) {
	tests := []struct {
		name           string
		version        string
		expectedStatus string
	}{
		{
			name:           "health check returns OK",
			version:        "1.0.0",
			expectedStatus: "OK",
		},
		{
			name:           "empty version",
			expectedStatus: "OK",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHandler(slog.Default(), huma.Middlewares{}, tt.version)

			output, err := handler.healthCheck(context.Background(), &Input{})

			assert.NoError(t, err)
			assert.NotNil(t, output)
			assert.Equal(t, tt.expectedStatus, output.Body.Status)
			assert.Equal(t, tt.version, output.Body.Version)
			assert.False(t, output.Body.Time.IsZero())
		})
	}
}

func TestNewHandler(t *testing.T) {
	handler := NewHandler(slog.Default(), huma.Middlewares{}, "1.0.0")

	assert.NotNil(t, handler)
	assert.NotNil(t, handler.log)
	assert.NotNil(t, handler.middleware)
}
