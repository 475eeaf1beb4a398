package pipeline

import (
	"context"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"

	"github.com/slidesmith/slidesmith/internal/faults"
	"github.com/slidesmith/slidesmith/internal/jobs"
	"github.com/slidesmith/slidesmith/internal/resilience"
)

// Fallback alternative names, recorded as the job's recovery strategy when
// a non-primary alternative produces the stage result.
const (
	AltPrimary   = "primary-agent"
	AltSecondary = "secondary-agent"
	AltRules     = "rule-based"
)

// AnalyzeWith returns the analysis stage backed by the given agent. The
// fallback chain wraps one of these per configured backend, ahead of the
// rule-based alternative.
func AnalyzeWith(rt *Runtime, cfg gaconfig.AgentConfig) resilience.StageFunc {
	return func(ctx context.Context, snapshot *jobs.Job) (*jobs.Patch, error) {
		text, err := combinedText(snapshot)
		if err != nil {
			return nil, err
		}

		structure, err := analyzeWithAgent(ctx, cfg, text)
		if err != nil {
			return nil, err
		}

		return analysisPatch(structure)
	}
}

// AnalyzeRules is the terminal fallback alternative. It applies line
// heuristics to the combined text and cannot be degraded further.
func AnalyzeRules(rt *Runtime) resilience.StageFunc {
	return func(ctx context.Context, snapshot *jobs.Job) (*jobs.Patch, error) {
		text, err := combinedText(snapshot)
		if err != nil {
			return nil, err
		}

		rt.Logger.InfoContext(ctx, "analyzing content with rule heuristics", "job_id", snapshot.ID)
		return analysisPatch(analyzeWithRules(text))
	}
}

func combinedText(snapshot *jobs.Job) (string, error) {
	extracted, err := decode[[]ExtractedText](snapshot.Data, KeyExtractedText)
	if err != nil {
		return "", err
	}

	text := combineExtractedText(extracted)
	if text == "" {
		return "", faults.New(faults.KindStructureAnalysis, "extracted text is empty")
	}

	return text, nil
}

func analysisPatch(structure *ContentStructure) (*jobs.Patch, error) {
	encoded, err := encode(structure)
	if err != nil {
		return nil, err
	}

	return &jobs.Patch{
		Progress: 65,
		Data:     map[string]any{KeyStructure: encoded},
	}, nil
}
