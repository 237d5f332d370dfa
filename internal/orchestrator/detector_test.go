package orchestrator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/lineage/internal/gateway"
)

// probingGateway is a fakeGateway that also answers Ping.
type probingGateway struct {
	fakeGateway
	ping func(ctx context.Context) error
}

func (g *probingGateway) Ping(ctx context.Context) error { return g.ping(ctx) }

func TestDetector_NoGateway(t *testing.T) {
	level, err := NewGatewayDetector(nil, quietLogger()).Detect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CapOffline, level)
}

func TestDetector_GatewayWithoutProbe(t *testing.T) {
	level, err := NewGatewayDetector(&fakeGateway{}, quietLogger()).Detect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CapModel, level)
}

func TestDetector_Probe(t *testing.T) {
	tests := []struct {
		name string
		ping func(ctx context.Context) error
		want CapabilityLevel
	}{
		{"reachable", func(context.Context) error { return nil }, CapModel},
		{"refused", func(context.Context) error { return errors.New("connection refused") }, CapOffline},
		{"panics", func(context.Context) error { panic("boom") }, CapOffline},
		{"slow", func(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }, CapOffline},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewGatewayDetector(&probingGateway{ping: tt.ping}, quietLogger())
			d.probeTimeout = 50 * time.Millisecond

			level, err := d.Detect(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, level)
		})
	}
}

func TestDetector_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := NewGatewayDetector(&probingGateway{ping: func(ctx context.Context) error { return ctx.Err() }}, quietLogger())

	level, err := d.Detect(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, CapOffline, level)
}

func TestDetector_OllamaServer(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer ts.Close()

	gw := gateway.NewOllama(ts.URL, "gemma3:4b", gateway.DefaultOllamaOptions(), gateway.WithLogger(quietLogger()))
	level, err := NewGatewayDetector(gw, quietLogger()).Detect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CapModel, level)

	ts.Close()
	level, err = NewGatewayDetector(gw, quietLogger()).Detect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CapOffline, level)
}

func TestCapabilityLevel_String(t *testing.T) {
	assert.Equal(t, "offline", CapOffline.String())
	assert.Equal(t, "model", CapModel.String())
	assert.Equal(t, "unknown", CapabilityLevel(9).String())
}
