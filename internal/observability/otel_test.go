package observability

import (
	"context"
	"testing"

	"adpilot/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpointHost(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "localhost:4317"},
		{"http://otel-collector:4317", "otel-collector:4317"},
		{"https://otel.example.com:443/v1", "otel.example.com:443"},
		{"collector:4317", "collector:4317"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EndpointHost(tt.in), tt.in)
	}
}

func TestSetupTracing_Disabled(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Monitoring.Tracing.Enabled = false

	shutdown, err := SetupTracing(context.Background(), cfg, "test")
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
	assert.NotNil(t, Tracer())
}
