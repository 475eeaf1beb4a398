package pipeline

import (
	"fmt"
	"time"

	"github.com/slidesmith/slidesmith/internal/engine"
	"github.com/slidesmith/slidesmith/internal/faults"
	"github.com/slidesmith/slidesmith/internal/jobs"
	"github.com/slidesmith/slidesmith/internal/resilience"
)

// Breaker dependency keys. One breaker exists per external dependency,
// shared across every node and job that calls it.
const (
	DepPrimaryBackend   = "primary-backend"
	DepSecondaryBackend = "secondary-backend"
	DepBlobStorage      = "blob-storage"
)

// Options tunes the resilience wrapping applied to pipeline nodes.
type Options struct {
	Retry       resilience.RetryPolicy
	NodeTimeout time.Duration
	Breakers    *resilience.BreakerSet
}

// Build assembles the document-to-presentation workflow graph and the
// per-node resilience invokers the engine applies. Stages that call an
// external dependency get a breaker, retry policy, and per-attempt
// timeout; pure computation runs bare. The analysis stage is a fallback
// chain that degrades from the primary backend through the secondary to
// rule heuristics, each agent alternative carrying its own wrapping.
func Build(rt *Runtime, opts Options) (*engine.Graph, map[string]*resilience.Invoker, error) {
	if opts.Breakers == nil {
		opts.Breakers = resilience.NewBreakerSet(resilience.DefaultBreakerConfig())
	}

	g := engine.NewGraph()

	nodes := []struct {
		name    string
		handler engine.Handler
		route   engine.RouteFunc
	}{
		{NodePreprocess, engine.HandlerFunc(Preprocess(rt)), routeTo(NodeExtract)},
		{NodeExtract, engine.HandlerFunc(Extract(rt)), routeTo(NodeLayout)},
		{NodeLayout, engine.HandlerFunc(Layout(rt)), routeTo(NodeAnalyze)},
		{NodeAnalyze, analysisChain(rt, opts), routeTo(NodeStructure)},
		{NodeStructure, engine.HandlerFunc(Structure(rt)), routeTo(NodeCompose)},
		{NodeCompose, engine.HandlerFunc(Compose(rt)), routeTo(NodeRender)},
		{NodeRender, engine.HandlerFunc(Render(rt)), nil},
		{NodeRecover, engine.HandlerFunc(Recover(rt)), routeTo(NodeCompose)},
	}

	for _, n := range nodes {
		if err := g.AddNode(n.name, n.handler, n.route); err != nil {
			return nil, nil, fmt.Errorf("add node: %w", err)
		}
	}

	if err := g.SetEntryPoint(NodePreprocess); err != nil {
		return nil, nil, err
	}
	if err := g.SetRecoveryNode(NodeRecover); err != nil {
		return nil, nil, err
	}

	invokers := map[string]*resilience.Invoker{
		NodePreprocess: {
			Breaker:     opts.Breakers.Get(DepBlobStorage),
			Retry:       opts.Retry,
			Timeout:     opts.NodeTimeout,
			TimeoutKind: faults.KindExtraction,
		},
		NodeExtract: {
			Breaker:     opts.Breakers.Get(DepPrimaryBackend),
			Retry:       opts.Retry,
			Timeout:     opts.NodeTimeout,
			TimeoutKind: faults.KindExtraction,
		},
		NodeRender: {
			Breaker:     opts.Breakers.Get(DepBlobStorage),
			Retry:       opts.Retry,
			Timeout:     opts.NodeTimeout,
			TimeoutKind: faults.KindBackendConnection,
		},
	}

	return g, invokers, nil
}

// analysisChain builds the fallback chain for the analysis stage. The
// engine invokes the chain directly; resilience wrapping lives inside the
// chain so each backend keeps an independent breaker and retry budget.
func analysisChain(rt *Runtime, opts Options) engine.Handler {
	alternatives := []resilience.Alternative{{
		Name: AltPrimary,
		Invoker: &resilience.Invoker{
			Breaker:     opts.Breakers.Get(DepPrimaryBackend),
			Retry:       opts.Retry,
			Timeout:     opts.NodeTimeout,
			TimeoutKind: faults.KindBackendConnection,
		},
		Invoke: AnalyzeWith(rt, rt.Primary),
	}}

	if rt.HasSecondary {
		alternatives = append(alternatives, resilience.Alternative{
			Name: AltSecondary,
			Invoker: &resilience.Invoker{
				Breaker:     opts.Breakers.Get(DepSecondaryBackend),
				Retry:       opts.Retry,
				Timeout:     opts.NodeTimeout,
				TimeoutKind: faults.KindBackendConnection,
			},
			Invoke: AnalyzeWith(rt, rt.Secondary),
		})
	}

	alternatives = append(alternatives, resilience.Alternative{
		Name:   AltRules,
		Invoke: AnalyzeRules(rt),
	})

	return resilience.NewFallbackChain(alternatives...)
}

func routeTo(next string) engine.RouteFunc {
	return func(*jobs.Job) string {
		return next
	}
}
