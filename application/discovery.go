package application

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/felixgeelhaar/toolgate/domain/tool"
	"github.com/felixgeelhaar/toolgate/infrastructure/logging"
	"github.com/felixgeelhaar/toolgate/infrastructure/mcp"
	"github.com/felixgeelhaar/toolgate/infrastructure/security/audit"
	"github.com/felixgeelhaar/toolgate/infrastructure/telemetry"
)

// Discovery lists the tools of every remote source and feeds them to the
// registry. A source that fails is logged and skipped; the others still
// contribute.
type Discovery struct {
	registry        *Registry
	recorder        telemetry.Recorder
	audit           audit.Logger
	maxResponseSize int

	mu      sync.RWMutex
	sources []tool.RemoteSource

	group singleflight.Group
}

// DiscoveryOption configures a Discovery.
type DiscoveryOption func(*Discovery)

// WithDiscoveryRecorder sets the metrics recorder.
func WithDiscoveryRecorder(r telemetry.Recorder) DiscoveryOption {
	return func(d *Discovery) {
		d.recorder = r
	}
}

// WithDiscoveryAudit sets the audit logger.
func WithDiscoveryAudit(l audit.Logger) DiscoveryOption {
	return func(d *Discovery) {
		d.audit = l
	}
}

// WithRemoteMaxResponseSize sets the response ceiling of discovered tools.
func WithRemoteMaxResponseSize(n int) DiscoveryOption {
	return func(d *Discovery) {
		d.maxResponseSize = n
	}
}

// NewDiscovery creates a discovery service over sources.
func NewDiscovery(registry *Registry, sources []tool.RemoteSource, opts ...DiscoveryOption) *Discovery {
	d := &Discovery{
		registry:        registry,
		recorder:        telemetry.NoopRecorder{},
		maxResponseSize: tool.DefaultMaxResponseSize,
		sources:         sources,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SetSources replaces the sources used by the next Refresh.
func (d *Discovery) SetSources(sources []tool.RemoteSource) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sources = sources
}

// Refresh lists every source and applies the result to the registry.
// Concurrent calls share one pass.
func (d *Discovery) Refresh(ctx context.Context) RefreshResult {
	v, _, _ := d.group.Do("refresh", func() (any, error) {
		return d.refresh(ctx), nil
	})
	return v.(RefreshResult)
}

func (d *Discovery) refresh(ctx context.Context) RefreshResult {
	d.mu.RLock()
	sources := append([]tool.RemoteSource(nil), d.sources...)
	d.mu.RUnlock()

	start := time.Now()
	var discovered []*tool.Definition
	for _, source := range sources {
		defs, err := d.discover(ctx, source)
		if err != nil {
			d.fail(ctx, source.Name(), err)
			continue
		}
		discovered = append(discovered, defs...)
	}

	result := d.registry.Refresh(ctx, discovered)
	logging.Info().
		Add(logging.Component("discovery")).
		Add(logging.Count(len(discovered))).
		Add(logging.Duration(time.Since(start))).
		Msg("discovery finished")
	return result
}

// discover lists one source. A tool whose schema does not compile is
// dropped without failing the source.
func (d *Discovery) discover(ctx context.Context, source tool.RemoteSource) ([]*tool.Definition, error) {
	remote, err := source.ListTools(ctx)
	if err != nil {
		return nil, err
	}

	defs := make([]*tool.Definition, 0, len(remote))
	for _, rd := range remote {
		def, err := mcp.NewDefinition(source, rd, d.maxResponseSize)
		if err != nil {
			logging.Warn().
				Add(logging.Component("discovery")).
				Add(logging.Source(source.Name())).
				Add(logging.ToolName(rd.Name)).
				Add(logging.ErrorField(err)).
				Msg("rejecting discovered tool")
			continue
		}
		defs = append(defs, def)
	}

	logging.Debug().
		Add(logging.Component("discovery")).
		Add(logging.Source(source.Name())).
		Add(logging.Count(len(defs))).
		Msg("source listed")
	return defs, nil
}

func (d *Discovery) fail(ctx context.Context, source string, err error) {
	logging.Warn().
		Add(logging.Component("discovery")).
		Add(logging.Source(source)).
		Add(logging.ErrorField(err)).
		Msg("source discovery failed")
	d.recorder.RecordDiscoveryFailure(ctx, source)
	if d.audit != nil {
		_ = d.audit.Log(ctx, audit.Event{
			EventType: audit.EventDiscoveryFailure,
			ToolName:  source,
			Error:     err.Error(),
		})
	}
}
