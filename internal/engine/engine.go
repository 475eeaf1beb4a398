package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/slidesmith/slidesmith/internal/faults"
	"github.com/slidesmith/slidesmith/internal/jobs"
	"github.com/slidesmith/slidesmith/internal/notify"
	"github.com/slidesmith/slidesmith/internal/resilience"
	"github.com/slidesmith/slidesmith/internal/telemetry"
	"github.com/slidesmith/slidesmith/pkg/lifecycle"
	"github.com/slidesmith/slidesmith/pkg/pagination"
)

// Engine errors.
var (
	// ErrInFlight is returned when Run is called for a job that another
	// execution is already driving. A job's progression through its
	// graph is a sequential, non-reentrant unit of work.
	ErrInFlight = errors.New("job already running")
)

// Config assembles the engine's dependencies.
type Config struct {
	Graph      *Graph
	Store      jobs.System
	Dispatcher notify.Dispatcher
	Metrics    *telemetry.Metrics
	Breakers   *resilience.BreakerSet
	Logger     *slog.Logger

	// Workers is the fixed worker pool capacity. Submissions beyond
	// capacity queue rather than execute immediately; none are rejected
	// for load.
	Workers int

	// Invokers maps node names to the resilience wrapper applied around
	// their handler. Nodes without an entry are invoked directly (a
	// fallback chain handler carries its own wrapping internally).
	Invokers map[string]*resilience.Invoker
}

// Engine drives jobs through the workflow graph. It owns the worker pool,
// serializes per-job execution, persists every transition through the job
// store before emitting its notification, and applies the per-node
// resilience wrappers configured at construction time.
type Engine struct {
	graph      *Graph
	store      jobs.System
	dispatcher notify.Dispatcher
	metrics    *telemetry.Metrics
	breakers   *resilience.BreakerSet
	logger     *slog.Logger
	workers    int
	invokers   map[string]*resilience.Invoker

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []uuid.UUID
	inflight map[uuid.UUID]*execution
	stopped  bool
	wg       sync.WaitGroup
}

// execution tracks one in-flight job run so cancellation can interrupt it.
type execution struct {
	cancel context.CancelFunc

	mu        sync.Mutex
	cancelled bool
}

func (x *execution) markCancelled() {
	x.mu.Lock()
	x.cancelled = true
	x.mu.Unlock()
	x.cancel()
}

func (x *execution) isCancelled() bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.cancelled
}

// New creates an engine over the given graph and dependencies.
func New(cfg Config) (*Engine, error) {
	if cfg.Graph == nil {
		return nil, fmt.Errorf("graph required")
	}
	if err := cfg.Graph.Validate(); err != nil {
		return nil, fmt.Errorf("invalid graph: %w", err)
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("job store required")
	}
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}

	e := &Engine{
		graph:      cfg.Graph,
		store:      cfg.Store,
		dispatcher: cfg.Dispatcher,
		metrics:    cfg.Metrics,
		breakers:   cfg.Breakers,
		logger:     cfg.Logger.With("system", "engine"),
		workers:    cfg.Workers,
		invokers:   cfg.Invokers,
		inflight:   make(map[uuid.UUID]*execution),
	}
	e.cond = sync.NewCond(&e.mu)
	return e, nil
}

// Start launches the worker pool and registers shutdown coordination.
func (e *Engine) Start(lc *lifecycle.Coordinator) error {
	e.logger.Info("starting workflow engine", "workers", e.workers)

	for i := 0; i < e.workers; i++ {
		e.wg.Add(1)
		go e.worker(lc.Context())
	}

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		e.logger.Info("stopping workflow engine")

		e.mu.Lock()
		e.stopped = true
		e.cond.Broadcast()
		e.mu.Unlock()

		e.wg.Wait()
		e.logger.Info("workflow engine stopped")
	})

	return nil
}

// Submit creates a queued job for the given input data and schedules its
// execution on the worker pool.
func (e *Engine) Submit(ctx context.Context, data map[string]any) (uuid.UUID, error) {
	j := jobs.New(data)

	if err := e.store.Create(ctx, j); err != nil {
		return uuid.Nil, fmt.Errorf("create job: %w", err)
	}

	e.notify(ctx, notify.EventQueued, j)
	e.metrics.JobSubmitted()

	e.mu.Lock()
	e.queue = append(e.queue, j.ID)
	e.cond.Signal()
	e.mu.Unlock()

	e.logger.Info("job submitted", "id", j.ID)
	return j.ID, nil
}

// Get returns the stored state of a job.
func (e *Engine) Get(ctx context.Context, id uuid.UUID) (*jobs.Job, error) {
	return e.store.Find(ctx, id)
}

// List returns a page of jobs matching the filters.
func (e *Engine) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters jobs.Filters,
) (*pagination.PageResult[jobs.Job], error) {
	return e.store.List(ctx, page, filters)
}

// Cancel marks a job cancelled. A job already terminal is left untouched.
// An in-flight external call is not interrupted beyond context
// cancellation; the engine discards its result when it returns and commits
// no further state for the job.
func (e *Engine) Cancel(ctx context.Context, id uuid.UUID) error {
	e.mu.Lock()
	if x, running := e.inflight[id]; running {
		e.mu.Unlock()
		x.markCancelled()
		return nil
	}
	e.mu.Unlock()

	j, err := e.store.Find(ctx, id)
	if err != nil {
		return err
	}
	if j.IsTerminal() {
		return nil
	}

	j.Errors = append(j.Errors, faults.RecordOf(
		faults.New(faults.KindCancelled, "job cancelled"), j.CurrentNode,
	))
	j.MarkFailed()

	if err := e.store.Update(ctx, j); err != nil {
		return fmt.Errorf("persist cancellation: %w", err)
	}

	e.notify(ctx, notify.EventFailed, j)
	e.metrics.JobFinished(string(jobs.StatusFailed))
	return nil
}

// Run drives the job to a terminal state. It is idempotent for terminal
// jobs: the stored state is returned with no further node invocations.
// A second Run for a job already in progress is rejected with ErrInFlight.
func (e *Engine) Run(ctx context.Context, id uuid.UUID) (*jobs.Job, error) {
	runCtx, cancel := context.WithCancel(ctx)
	x := &execution{cancel: cancel}

	e.mu.Lock()
	if _, busy := e.inflight[id]; busy {
		e.mu.Unlock()
		cancel()
		return nil, ErrInFlight
	}
	e.inflight[id] = x
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.inflight, id)
		e.mu.Unlock()
		cancel()
	}()

	j, err := e.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	if j.IsTerminal() {
		return j, nil
	}

	if j.Status == jobs.StatusQueued {
		j.MarkProcessing()
		if j.CurrentNode == "" {
			j.CurrentNode = e.graph.Entry()
		}
		if err := e.persist(ctx, j); err != nil {
			return nil, err
		}
		e.notify(ctx, notify.EventProcessing, j)
	}

	return e.drive(ctx, runCtx, x, j)
}

// drive is the execution loop: invoke the current node through its
// resilience wrapper, merge the patch, evaluate routing, persist, repeat.
func (e *Engine) drive(
	ctx context.Context,
	runCtx context.Context,
	x *execution,
	j *jobs.Job,
) (*jobs.Job, error) {
	for {
		if x.isCancelled() {
			return e.failCancelled(ctx, j)
		}

		node, ok := e.graph.Node(j.CurrentNode)
		if !ok {
			err := faults.Newf(faults.KindUnknown, "node %s not in graph", j.CurrentNode)
			return e.fail(ctx, j, err)
		}

		start := time.Now()
		patch, absorbed, err := e.invoke(runCtx, node, j.Snapshot())
		e.metrics.ObserveNode(node.Name, time.Since(start))
		e.metrics.RetriesAbsorbed(node.Name, len(absorbed))
		e.metrics.PublishBreakerStates(e.breakers)

		// A cancelled job discards whatever the invocation produced.
		if x.isCancelled() {
			return e.failCancelled(ctx, j)
		}

		if err != nil {
			// Shutdown interruption leaves the job processing; a
			// later Run resumes from the persisted node.
			if errors.Is(err, context.Canceled) && runCtx.Err() != nil {
				return j, err
			}

			j.Errors = append(j.Errors, faults.RecordOf(err, node.Name))

			if recovery := e.graph.Recovery(); recovery != "" &&
				!j.RecoveryAttempted && j.CurrentNode != recovery {
				e.logger.Warn(
					"routing job to recovery node",
					"id", j.ID, "node", node.Name, "error", err,
				)
				j.RecoveryAttempted = true
				j.CurrentNode = recovery
				if perr := e.persist(ctx, j); perr != nil {
					return nil, perr
				}
				continue
			}

			return e.finalizeFailed(ctx, j)
		}

		e.mergeSuccess(j, node.Name, patch, absorbed)

		next := Complete
		if node.Route != nil {
			next = node.Route(j)
		}

		if next == Complete {
			j.MarkCompleted()
			if err := e.persist(ctx, j); err != nil {
				return nil, err
			}
			e.notify(ctx, notify.EventCompleted, j)
			e.metrics.JobFinished(string(jobs.StatusCompleted))
			e.logger.Info("job completed", "id", j.ID, "nodes", len(j.NodeHistory))
			return j, nil
		}

		j.CurrentNode = next
		if err := e.persist(ctx, j); err != nil {
			return nil, err
		}
	}
}

// invoke runs the node handler through its configured resilience wrapper.
// On eventual success, failures absorbed by retry attempts are returned so
// they can be recorded as superseded.
func (e *Engine) invoke(
	ctx context.Context,
	node *Node,
	snapshot *jobs.Job,
) (*jobs.Patch, []error, error) {
	invoker := e.invokers[node.Name]
	if invoker == nil {
		patch, err := node.Handler.Invoke(ctx, snapshot)
		return patch, nil, err
	}

	var patch *jobs.Patch
	absorbed, err := invoker.Do(ctx, func(ctx context.Context) error {
		p, invokeErr := node.Handler.Invoke(ctx, snapshot)
		if invokeErr != nil {
			return invokeErr
		}
		patch = p
		return nil
	})
	return patch, absorbed, err
}

// mergeSuccess commits a successful invocation: superseded attempt
// failures first, then the patch, then the node history entry.
func (e *Engine) mergeSuccess(j *jobs.Job, nodeName string, patch *jobs.Patch, absorbed []error) {
	for _, attemptErr := range absorbed {
		rec := faults.RecordOf(attemptErr, nodeName)
		if rec.Details == nil {
			rec.Details = make(map[string]any)
		}
		rec.Details["superseded"] = true
		j.Errors = append(j.Errors, rec)
	}

	if patch != nil {
		for i := range patch.Faults {
			if patch.Faults[i].Node == "" {
				patch.Faults[i].Node = nodeName
			}
		}
		patch.Apply(j)
	}

	j.NodeHistory = append(j.NodeHistory, nodeName)
}

func (e *Engine) fail(ctx context.Context, j *jobs.Job, err error) (*jobs.Job, error) {
	j.Errors = append(j.Errors, faults.RecordOf(err, j.CurrentNode))
	return e.finalizeFailed(ctx, j)
}

func (e *Engine) failCancelled(ctx context.Context, j *jobs.Job) (*jobs.Job, error) {
	j.Errors = append(j.Errors, faults.RecordOf(
		faults.New(faults.KindCancelled, "job cancelled"), j.CurrentNode,
	))
	return e.finalizeFailed(ctx, j)
}

func (e *Engine) finalizeFailed(ctx context.Context, j *jobs.Job) (*jobs.Job, error) {
	j.MarkFailed()
	if err := e.persist(ctx, j); err != nil {
		return nil, err
	}

	e.notify(ctx, notify.EventFailed, j)
	e.metrics.JobFinished(string(jobs.StatusFailed))

	kind := faults.KindUnknown
	if top := j.TopError(); top != nil {
		kind = top.Kind
	}
	e.logger.Warn("job failed", "id", j.ID, "node", j.CurrentNode, "kind", kind)
	return j, nil
}

func (e *Engine) persist(ctx context.Context, j *jobs.Job) error {
	if err := e.store.Update(ctx, j); err != nil {
		return fmt.Errorf("persist job %s: %w", j.ID, err)
	}
	return nil
}

// notify emits the lifecycle event for a transition that has already been
// persisted. Dispatch failures are logged, not propagated: the store write
// is the sole externally observable checkpoint.
func (e *Engine) notify(ctx context.Context, event notify.Event, j *jobs.Job) {
	payload := notify.Payload{
		JobID:     j.ID,
		Status:    string(j.Status),
		Timestamp: time.Now().UTC(),
		Progress:  j.Progress,
		Node:      j.CurrentNode,
	}

	if j.IsTerminal() && j.CompletedAt != nil {
		payload.Summary = map[string]any{
			"elapsed_ms":  j.CompletedAt.Sub(j.CreatedAt).Milliseconds(),
			"nodes":       len(j.NodeHistory),
			"error_count": len(j.Errors),
		}
		if j.Result != "" {
			payload.Summary["result"] = j.Result
		}
	}

	if err := e.dispatcher.Notify(ctx, event, payload); err != nil {
		e.logger.Warn("notification dispatch failed", "event", event, "id", j.ID, "error", err)
	}
}

func (e *Engine) worker(ctx context.Context) {
	defer e.wg.Done()

	for {
		id, ok := e.dequeue()
		if !ok {
			return
		}

		if _, err := e.Run(ctx, id); err != nil && !errors.Is(err, ErrInFlight) {
			e.logger.Error("job run failed", "id", id, "error", err)
		}
	}
}

func (e *Engine) dequeue() (uuid.UUID, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for len(e.queue) == 0 && !e.stopped {
		e.cond.Wait()
	}
	if e.stopped {
		return uuid.Nil, false
	}

	id := e.queue[0]
	e.queue = e.queue[1:]
	return id, true
}
