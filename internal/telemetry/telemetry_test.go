package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap/zaptest"
)

func restoreGlobalProvider(t *testing.T) {
	t.Helper()
	orig := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(orig) })
}

func TestSetupDisabled(t *testing.T) {
	restoreGlobalProvider(t)
	p, err := Setup(context.Background(), "", zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestSetupEnabled(t *testing.T) {
	restoreGlobalProvider(t)
	// The gRPC exporter connects lazily, so no collector is needed here.
	p, err := Setup(context.Background(), "localhost:4317", zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.True(t, p.Enabled())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = p.Shutdown(ctx)
}

func TestNilProviderShutdown(t *testing.T) {
	var p *Provider
	assert.False(t, p.Enabled())
	assert.NoError(t, p.Shutdown(context.Background()))
}
