package pipeline

import (
	"log/slog"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"

	"github.com/slidesmith/slidesmith/pkg/storage"
)

// Runtime bundles the dependencies that pipeline nodes require. It is
// constructed by higher-level composition code from infrastructure systems
// and the finalized agent configurations.
type Runtime struct {
	// Primary is the main vision/chat backend for extraction and
	// content analysis.
	Primary gaconfig.AgentConfig

	// Secondary is the alternate analysis backend the fallback chain
	// tries when the primary degrades. Left zero-valued, the chain runs
	// without it.
	Secondary gaconfig.AgentConfig

	// HasSecondary reports whether Secondary is configured.
	HasSecondary bool

	Storage storage.System
	Logger  *slog.Logger
}
