package application

import (
	"github.com/felixgeelhaar/toolgate/domain/middleware"
	"github.com/felixgeelhaar/toolgate/domain/policy"
	"github.com/felixgeelhaar/toolgate/infrastructure/relay"
	"github.com/felixgeelhaar/toolgate/infrastructure/security/audit"
	"github.com/felixgeelhaar/toolgate/infrastructure/telemetry"
)

// Option configures the dispatcher.
type Option func(*DispatcherConfig)

// WithApprover sets the approval handler.
func WithApprover(a policy.Approver) Option {
	return func(c *DispatcherConfig) {
		c.Approver = a
	}
}

// WithPolicy sets the approval policy.
func WithPolicy(p policy.ApprovalPolicy) Option {
	return func(c *DispatcherConfig) {
		c.Policy = p
	}
}

// WithCancellations sets the cancellation table shared with callers.
func WithCancellations(cancels *relay.Cancellations) Option {
	return func(c *DispatcherConfig) {
		c.Cancellations = cancels
	}
}

// WithMiddleware sets the middleware registry.
func WithMiddleware(m *middleware.Registry) Option {
	return func(c *DispatcherConfig) {
		c.Middleware = m
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r telemetry.Recorder) Option {
	return func(c *DispatcherConfig) {
		c.Recorder = r
	}
}

// WithAudit sets the audit logger.
func WithAudit(l audit.Logger) Option {
	return func(c *DispatcherConfig) {
		c.Audit = l
	}
}
