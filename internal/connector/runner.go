package connector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sentinel/discovery-engine/internal/core"
	"github.com/sentinel/discovery-engine/internal/engram"
	"github.com/sentinel/discovery-engine/internal/events"
	"github.com/sentinel/discovery-engine/internal/graph"
	"github.com/sentinel/discovery-engine/internal/secrets"
)

// HealthChecker is an optional interface a Connector implements to satisfy
// step 3 of the execution contract. A connector that does not implement it
// is assumed always healthy; its discovery call will surface any
// connectivity failure on its own.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// GraphApplier is the subset of *graph.Store the Runner needs to commit a
// discovery run. Declared narrowly here, rather than depending on the
// concrete *graph.Store type, so tests substitute an in-memory double.
type GraphApplier interface {
	ApplyBatch(ctx context.Context, tenant core.TenantID, nodes []core.Node, edges []*core.Edge, now time.Time) (*graph.BatchResult, error)
}

// RunSpec names the connector, its credential reference, and its resolved
// framework configuration for a single run.
type RunSpec struct {
	Connector     Connector
	CredentialRef string
	Config        Config
}

// RunResult is what the orchestrator (C7) records for one connector run.
type RunResult struct {
	ScanID       string
	Status       Status
	NodesFound   int
	NodesUpdated int
	NodesStale   int
	DeadEnds     []DeadEnd
	Err          error
}

// Runner drives any Connector through the seven-step execution contract of
// spec.md §4.4.
type Runner struct {
	Graph    GraphApplier
	Engrams  engram.Store
	Bus      events.Bus
	Secrets  secrets.Resolver
	Now      func() time.Time
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Run executes spec against tenant. It never returns an error for a
// connector-side failure — those are captured in RunResult.Status/Err so the
// orchestrator can record history and move on to the next connector,
// exactly as spec.md §4.4 "each connector is independent" requires. Run
// only returns an error for a framework-level problem (a nil Connector)
// that the caller cannot recover from by looking at RunResult; an engram
// store failure is reported as a SessionDropped event, not as an error.
func (r *Runner) Run(ctx context.Context, tenant core.TenantID, spec RunSpec) (*RunResult, error) {
	if spec.Connector == nil {
		return nil, errors.New("connector: RunSpec.Connector is nil")
	}

	sess := engram.Open(tenant, spec.Connector.Name(), "discover "+string(spec.Connector.ConnectorType()), nil, r.Engrams)
	scanID := sess.ID().String()
	startedAt := r.now()

	r.Bus.Publish(ctx, events.ScanStarted(tenant.String(), scanID, string(spec.Connector.ConnectorType()), spec.Connector.Name()))

	result := &RunResult{ScanID: scanID}

	// Step 2: resolve credentials.
	_, err := r.Secrets.Resolve(ctx, spec.CredentialRef)
	if err != nil {
		sess.RecordDeadEnd("credential resolution failed", err.Error())
		result.Status = StatusFailed
		result.Err = fmt.Errorf("%w: %s", core.ErrCredential, err)
		r.closeSession(ctx, sess, OutcomeFor(StatusFailed), result)
		return result, nil
	}

	// Step 3: health-check, if the connector supports it.
	if hc, ok := spec.Connector.(HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			sess.RecordDeadEnd("health check failed", err.Error())
			result.Status = StatusFailed
			result.Err = err
			r.closeSession(ctx, sess, OutcomeFor(StatusFailed), result)
			return result, nil
		}
	}
	sess.RecordAction("health_check", spec.Connector.Name(), "success", nil)

	// Steps 4-5: enumerate and normalize. The connector implementation owns
	// its own bounded parallelism (via RunBounded below) and dead-end
	// recording; Discover returns whatever it collected even on partial
	// failure.
	syncResult, discoverErr := spec.Connector.Discover(ctx, tenant, spec.Config)
	if discoverErr != nil {
		sess.RecordDeadEnd("discover failed", discoverErr.Error())
		result.Status = StatusFailed
		result.Err = discoverErr
		r.closeSession(ctx, sess, OutcomeFor(StatusFailed), result)
		return result, nil
	}

	for _, de := range syncResult.DeadEnds {
		sess.RecordDeadEnd(de.Description, de.Evidence)
	}
	result.DeadEnds = syncResult.DeadEnds

	// Every run hands the (external) policy subsystem a point-in-time
	// capture of what it just discovered, attached back to the resource
	// that produced it (spec.md §3).
	syncResult.DeriveConfigSnapshots(tenant, r.now())

	// Step 6: apply the batch.
	nodes := syncResult.Nodes()
	batch, applyErr := r.Graph.ApplyBatch(ctx, tenant, nodes, syncResult.Edges, r.now())
	if applyErr != nil && !errors.Is(applyErr, graph.ErrEmptyBatch) {
		sess.RecordDeadEnd("apply_batch failed", applyErr.Error())
		result.Status = StatusFailed
		result.Err = applyErr
		r.closeSession(ctx, sess, OutcomeFor(StatusFailed), result)
		return result, nil
	}
	if batch != nil {
		result.NodesFound = batch.NodesCreated
		result.NodesUpdated = batch.NodesUpdated
		for _, em := range batch.EndpointMissing {
			sess.RecordDeadEnd("edge endpoint missing", fmt.Sprintf("%s: %s -> %s", em.EdgeType, em.SourceID, em.TargetID))
		}
	}

	result.Status = syncResult.Status
	if result.Status == "" {
		if len(result.DeadEnds) > 0 {
			result.Status = StatusPartial
		} else {
			result.Status = StatusSuccess
		}
	}

	sess.RecordAction("apply_batch", spec.Connector.Name(), "success", map[string]int64{
		"nodes_found":   int64(result.NodesFound),
		"nodes_updated": int64(result.NodesUpdated),
	})

	r.closeSession(ctx, sess, OutcomeFor(result.Status), result)

	r.Bus.Publish(ctx, events.ScanCompleted(tenant.String(), scanID, result.NodesFound, result.NodesUpdated, result.NodesStale,
		r.now().Sub(startedAt).Milliseconds()))

	return result, nil
}

func (r *Runner) closeSession(ctx context.Context, sess *engram.Session, outcome engram.Outcome, result *RunResult) {
	summary := fmt.Sprintf("status=%s nodes_found=%d nodes_updated=%d dead_ends=%d",
		result.Status, result.NodesFound, result.NodesUpdated, len(result.DeadEnds))
	finalized, err := sess.Close(ctx, outcome, summary)
	if err != nil {
		r.Bus.Publish(ctx, events.SessionDropped(sessionTenant(sess).String(), sess.ID().String(), err.Error()))
		return
	}
	r.Bus.Publish(ctx, events.EngramRecorded(sessionTenant(sess).String(), finalized.ID.String(), finalized.AgentID, finalized.Intent, len(finalized.Actions)))
}

// OutcomeFor maps a connector Status onto an engram Outcome.
func OutcomeFor(s Status) engram.Outcome {
	switch s {
	case StatusSuccess:
		return engram.OutcomeSuccess
	case StatusPartial:
		return engram.OutcomePartial
	default:
		return engram.OutcomeFailed
	}
}

// NewRateLimiter builds the per-connector client-side limiter from its
// configured rate_limit (spec.md §4.4 "rate_limit: {rps, burst}").
func NewRateLimiter(cfg RateLimit) *rate.Limiter {
	if cfg.RPS <= 0 {
		cfg.RPS = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.RPS)
	}
	return rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst)
}

// Retry retries op under cfg's bounded exponential backoff, stopping early
// (without consuming another attempt) when isRetryable reports false for
// the error op returned. Matches spec.md §4.4 "only transient errors ...
// are retried; 4xx other than 429 are terminal."
func Retry(ctx context.Context, cfg RetryPolicy, isRetryable func(error) bool, op func() error) error {
	b := backoff.NewExponentialBackOff()
	if cfg.BaseDelay > 0 {
		b.InitialInterval = cfg.BaseDelay
	}
	if cfg.CapDelay > 0 {
		b.MaxInterval = cfg.CapDelay
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 5
	}
	bounded := backoff.WithMaxRetries(b, uint64(attempts-1))

	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	if err := backoff.Retry(wrapped, backoff.WithContext(bounded, ctx)); err != nil {
		if pe, ok := err.(*backoff.PermanentError); ok {
			return pe.Err
		}
		return err
	}
	return nil
}

// RunBounded fans fn out across items with at most parallelism concurrent
// in flight (grounded on the teacher's semaphore-channel-plus-errgroup
// pattern in internal/providers/aws/cost/default.go). Unlike the teacher's
// usage, a single item's failure never cancels the others — it is
// collected as a DeadEnd and enumeration continues, per spec.md §4.4 step 4.
func RunBounded[T any](ctx context.Context, parallelism int, items []T, fn func(ctx context.Context, item T) error) []DeadEnd {
	if parallelism <= 0 {
		parallelism = 4
	}
	sem := make(chan struct{}, parallelism)
	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	var deadEnds []DeadEnd

	for _, item := range items {
		item := item
		select {
		case sem <- struct{}{}:
		case <-gctx.Done():
		}
		g.Go(func() error {
			defer func() { <-sem }()
			if err := fn(gctx, item); err != nil {
				mu.Lock()
				deadEnds = append(deadEnds, DeadEnd{
					Description: fmt.Sprintf("%v", item),
					Evidence:    err.Error(),
				})
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return deadEnds
}

func sessionTenant(sess *engram.Session) core.TenantID {
	return sess.Tenant()
}
