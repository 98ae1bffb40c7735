// Package coordinator is the single writer of client-side risk state.
//
// All server responses funnel through it: each outbound request takes a
// monotonic sequence number, and a response is applied only if no newer
// response of the same kind has already landed. Later-issued always wins;
// a slow early reply can never clobber fresher state.
package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/zerotrust-labs/sentinel/internal/logging"
	"github.com/zerotrust-labs/sentinel/internal/metrics"
	"github.com/zerotrust-labs/sentinel/internal/reconciliation"
	"github.com/zerotrust-labs/sentinel/internal/risk"
	"github.com/zerotrust-labs/sentinel/internal/telemetry"
)

// Gateway is the slice of the API client the coordinator drives.
type Gateway interface {
	SubmitBehavior(ctx context.Context, sample telemetry.Sample) error
	SubmitForRiskCalculation(ctx context.Context, sample telemetry.Sample) (map[string]any, error)
	FetchCurrentRisk(ctx context.Context) (map[string]any, error)
	FetchRiskHistory(ctx context.Context, limit int) ([]map[string]any, error)
	FetchDashboard(ctx context.Context) (map[string]any, error)
	TriggerModelTraining(ctx context.Context) (map[string]any, error)
}

// Notifier receives state-change events for streaming to consumers.
// Event names: "risk_updated", "dashboard_updated".
type Notifier interface {
	Notify(event string, payload any)
}

// Coordinator owns the dashboard snapshot and the latest risk reading.
// Reads are served from memory; only server responses mutate state, and
// only in wholesale replacements.
type Coordinator struct {
	gateway Gateway
	sampler *telemetry.Sampler
	logger  *slog.Logger

	notifier Notifier // nil when no stream consumers exist

	seq atomic.Uint64 // issued per outbound stateful request

	mu          sync.RWMutex
	snapshot    *reconciliation.DashboardSnapshot
	latest      *risk.Assessment
	riskSeq     uint64 // seq of the applied latest-risk response
	snapshotSeq uint64 // seq of the applied snapshot response
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the coordinator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logging.Component(logger, "coordinator") }
}

// WithNotifier registers a stream sink for state-change events.
func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) { c.notifier = n }
}

// New creates a coordinator over the given gateway and sampler.
func New(gateway Gateway, sampler *telemetry.Sampler, opts ...Option) *Coordinator {
	c := &Coordinator{
		gateway: gateway,
		sampler: sampler,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns the current dashboard view, nil before the first
// successful refresh.
func (c *Coordinator) Snapshot() *reconciliation.DashboardSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// LatestRisk returns the most recent applied assessment, nil before the
// first scored response.
func (c *Coordinator) LatestRisk() *risk.Assessment {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest
}

// LogBehavior captures one sample and ships it to the behavior log.
// It does not change local risk state; scoring is a separate call.
func (c *Coordinator) LogBehavior(ctx context.Context, opts ...telemetry.SampleOption) error {
	sample := c.sampler.Sample(ctx, opts...)
	return c.gateway.SubmitBehavior(ctx, sample)
}

// CalculateRisk captures one sample, submits it for scoring, and applies
// the returned assessment unless a newer response already landed.
func (c *Coordinator) CalculateRisk(ctx context.Context, opts ...telemetry.SampleOption) (*risk.Assessment, error) {
	seq := c.seq.Add(1)
	sample := c.sampler.Sample(ctx, opts...)

	payload, err := c.gateway.SubmitForRiskCalculation(ctx, sample)
	if err != nil {
		return nil, err
	}
	assessment := reconciliation.Assessment(unwrap(payload, "risk"))
	c.applyRisk(seq, assessment)
	return assessment, nil
}

// RefreshRisk pulls the server's current assessment for this session.
func (c *Coordinator) RefreshRisk(ctx context.Context) (*risk.Assessment, error) {
	seq := c.seq.Add(1)
	payload, err := c.gateway.FetchCurrentRisk(ctx)
	if err != nil {
		return nil, err
	}
	assessment := reconciliation.Assessment(payload)
	c.applyRisk(seq, assessment)
	return assessment, nil
}

// RefreshDashboard pulls and applies a full dashboard snapshot. The
// snapshot's embedded assessment, when present, also becomes the latest
// risk reading under the same staleness rule.
func (c *Coordinator) RefreshDashboard(ctx context.Context) (*reconciliation.DashboardSnapshot, error) {
	seq := c.seq.Add(1)
	payload, err := c.gateway.FetchDashboard(ctx)
	if err != nil {
		return nil, err
	}
	snapshot, err := reconciliation.Dashboard(payload)
	if err != nil {
		return nil, err
	}
	c.applySnapshot(seq, snapshot)
	return snapshot, nil
}

// History fetches past assessments, newest first. Scoreless rows are
// dropped during reconciliation; local state is untouched.
func (c *Coordinator) History(ctx context.Context, limit int) ([]*risk.Assessment, error) {
	items, err := c.gateway.FetchRiskHistory(ctx, limit)
	if err != nil {
		return nil, err
	}
	return reconciliation.History(items), nil
}

// TrainModel asks the backend to retrain. The snapshot is not touched;
// callers refresh the dashboard to observe the new trained state.
func (c *Coordinator) TrainModel(ctx context.Context) error {
	_, err := c.gateway.TriggerModelTraining(ctx)
	return err
}

// Reset drops all local state, for logout. Sequence numbers keep
// climbing so any response still in flight is discarded on arrival.
func (c *Coordinator) Reset() {
	barrier := c.seq.Add(1)
	c.mu.Lock()
	c.snapshot = nil
	c.latest = nil
	c.riskSeq = barrier
	c.snapshotSeq = barrier
	c.mu.Unlock()
}

func (c *Coordinator) applyRisk(seq uint64, a *risk.Assessment) {
	if a == nil {
		return
	}
	c.mu.Lock()
	if seq <= c.riskSeq {
		c.mu.Unlock()
		metrics.StaleResponsesDroppedTotal.Inc()
		c.logger.Debug("stale risk response dropped", "seq", seq)
		return
	}
	c.riskSeq = seq
	c.latest = a
	c.mu.Unlock()

	metrics.RiskAssessmentsTotal.WithLabelValues(string(a.Level)).Inc()
	c.logger.Info("risk assessment applied",
		"score", a.Score, "level", a.Level, "action", a.Action)
	if c.notifier != nil {
		c.notifier.Notify("risk_updated", a)
	}
}

func (c *Coordinator) applySnapshot(seq uint64, s *reconciliation.DashboardSnapshot) {
	c.mu.Lock()
	if seq <= c.snapshotSeq {
		c.mu.Unlock()
		metrics.StaleResponsesDroppedTotal.Inc()
		c.logger.Debug("stale dashboard response dropped", "seq", seq)
		return
	}
	c.snapshotSeq = seq
	c.snapshot = s
	if s.LatestRisk != nil && seq > c.riskSeq {
		c.riskSeq = seq
		c.latest = s.LatestRisk
	}
	c.mu.Unlock()

	metrics.SnapshotUpdatesTotal.Inc()
	c.logger.Debug("dashboard snapshot applied",
		"baselineReady", s.BaselineReady, "modelTrained", s.ModelTrained)
	if c.notifier != nil {
		c.notifier.Notify("dashboard_updated", s)
	}
}

// unwrap returns the named sub-object when present, else the payload
// itself. Scoring responses nest the assessment under "risk"; older
// backends return it flat.
func unwrap(payload map[string]any, key string) map[string]any {
	if sub, ok := payload[key].(map[string]any); ok {
		return sub
	}
	return payload
}
