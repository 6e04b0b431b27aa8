package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	provider, err := NewProvider("broker_test")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	}()

	assert.NotNil(t, provider.MeterProvider())
	assert.NotNil(t, provider.exporter)

	output := scrape(t, provider)
	assert.Contains(t, output, "go_goroutines", "runtime collector is registered")
}

func TestNewProvider_ServiceResource(t *testing.T) {
	provider, err := NewProvider("broker_test")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	}()

	bm, err := NewBusinessMetrics(provider.MeterProvider(), "broker_test")
	require.NoError(t, err)
	bm.RecordAccessDecision(context.Background(), "write", "allow")

	output := scrape(t, provider)
	assertMetricLine(t, output, "target_info", `service_name="`+ServiceName+`"`, "1")
}

func TestNewProvider_EmptyNamespace(t *testing.T) {
	provider, err := NewProvider("")
	require.NoError(t, err)
	assert.NotNil(t, provider.Handler())
}

func TestProvider_Shutdown(t *testing.T) {
	provider, err := NewProvider("broker_test")
	require.NoError(t, err)
	assert.NoError(t, provider.Shutdown(context.Background()))

	assert.NoError(t, (&Provider{}).Shutdown(context.Background()), "zero provider is a no-op")
}
