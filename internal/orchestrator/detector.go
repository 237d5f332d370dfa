package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dusk-indust/lineage/internal/gateway"
)

// Detector probes the environment to determine available capabilities.
type Detector interface {
	Detect(ctx context.Context) (CapabilityLevel, error)
}

// Compile-time check.
var _ Detector = (*GatewayDetector)(nil)

// GatewayDetector checks whether the model behind a gateway answers.
type GatewayDetector struct {
	gw           gateway.Gateway
	probeTimeout time.Duration
	logger       *slog.Logger
}

// NewGatewayDetector creates a GatewayDetector for gw, which may be nil.
func NewGatewayDetector(gw gateway.Gateway, logger *slog.Logger) *GatewayDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &GatewayDetector{
		gw:           gw,
		probeTimeout: 2 * time.Second,
		logger:       logger,
	}
}

// Detect returns CapModel when the gateway is configured and, if it can
// be probed, answers within the probe timeout. A failed probe is not an
// error; it selects CapOffline.
func (d *GatewayDetector) Detect(ctx context.Context) (CapabilityLevel, error) {
	if d.gw == nil {
		d.logger.Info("no model gateway configured, running offline")
		return CapOffline, nil
	}
	prober, ok := d.gw.(gateway.Prober)
	if !ok {
		return CapModel, nil
	}
	if err := d.probe(ctx, prober); err != nil {
		if ctx.Err() != nil {
			return CapOffline, ctx.Err()
		}
		d.logger.Warn("model gateway unreachable, running offline", "error", err)
		return CapOffline, nil
	}
	d.logger.Debug("model gateway reachable")
	return CapModel, nil
}

func (d *GatewayDetector) probe(ctx context.Context, p gateway.Prober) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("probe panicked: %v", r)
		}
	}()

	probeCtx, cancel := context.WithTimeout(ctx, d.probeTimeout)
	defer cancel()
	return p.Ping(probeCtx)
}
