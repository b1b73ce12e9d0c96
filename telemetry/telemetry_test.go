package telemetry

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestResolveEndpoint(t *testing.T) { //nolint:paralleltest
	tests := []struct {
		name           string
		kubernetesHost string
		configured     string
		want           string
	}{
		{name: "kubernetes detected", kubernetesHost: "10.0.0.1", want: kubernetesCollector},
		{name: "outside kubernetes", want: ""},
		{
			name:           "configured endpoint wins",
			kubernetesHost: "10.0.0.1",
			configured:     "http://custom-collector:4318",
			want:           "http://custom-collector:4318",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Setenv("KUBERNETES_SERVICE_HOST", test.kubernetesHost)

			assert.Equal(t, test.want, resolveEndpoint(test.configured))
		})
	}
}

func TestInitializeDisabled(t *testing.T) {
	t.Parallel()

	providers, err := Initialize(t.Context(), Config{Enabled: false, TracesEndpoint: "http://localhost:4318"})
	require.NoError(t, err)

	assert.False(t, providers.TracingEnabled())
	assert.Nil(t, providers.LogHandler())
	require.NoError(t, providers.Shutdown(t.Context()))
}

func TestNilProviders(t *testing.T) {
	t.Parallel()

	var providers *Providers

	assert.False(t, providers.TracingEnabled())
	assert.Nil(t, providers.LogHandler())
	require.NoError(t, providers.Shutdown(t.Context()))
}

func TestInitializeEnabled(t *testing.T) { //nolint:paralleltest
	t.Setenv("KUBERNETES_SERVICE_HOST", "")

	previous := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	providers, err := Initialize(t.Context(), Config{
		Enabled:        true,
		ServiceName:    "lifecycle-test",
		ServiceVersion: "test",
		Environment:    "test",
		TracesEndpoint: "http://127.0.0.1:4318",
		LogsEndpoint:   "http://127.0.0.1:4318",
	})
	require.NoError(t, err)

	assert.True(t, providers.TracingEnabled())
	assert.Same(t, providers.tracer, otel.GetTracerProvider())

	handler := providers.LogHandler()
	require.NotNil(t, handler)
	assert.True(t, handler.Enabled(t.Context(), slog.LevelInfo))

	require.NoError(t, providers.Shutdown(t.Context()))
}

func TestInitializeEnabledWithoutEndpoints(t *testing.T) { //nolint:paralleltest
	t.Setenv("KUBERNETES_SERVICE_HOST", "")

	providers, err := Initialize(t.Context(), Config{Enabled: true, ServiceName: "lifecycle-test"})
	require.NoError(t, err)

	assert.False(t, providers.TracingEnabled())
	assert.Nil(t, providers.LogHandler())
}
