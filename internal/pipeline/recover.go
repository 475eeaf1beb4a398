package pipeline

import (
	"context"

	"github.com/slidesmith/slidesmith/internal/faults"
	"github.com/slidesmith/slidesmith/internal/jobs"
)

// Recover is the error-handling node. When a stage fails past its own
// resilience budget, the engine routes the job here once. Recovery
// salvages whatever text made it through extraction, rebuilds the content
// structure with rule heuristics, and hands the job back to the composer.
// Jobs that failed before any text was extracted cannot be salvaged.
func Recover(rt *Runtime) func(ctx context.Context, snapshot *jobs.Job) (*jobs.Patch, error) {
	return func(ctx context.Context, snapshot *jobs.Job) (*jobs.Patch, error) {
		extracted, err := decode[[]ExtractedText](snapshot.Data, KeyExtractedText)
		if err != nil {
			return nil, faults.New(faults.KindUnknown, "nothing to recover: no extracted text")
		}

		text := combineExtractedText(extracted)
		if text == "" {
			return nil, faults.New(faults.KindUnknown, "nothing to recover: extracted text is empty")
		}

		rt.Logger.WarnContext(
			ctx, "recovering job with rule-based analysis",
			"job_id", snapshot.ID, "failed_node", snapshot.CurrentNode,
		)

		structure := refineHierarchy(analyzeWithRules(text))

		encoded, err := encode(structure)
		if err != nil {
			return nil, err
		}

		return &jobs.Patch{
			Data:             map[string]any{KeyStructure: encoded},
			RecoveryStrategy: AltRules,
		}, nil
	}
}
