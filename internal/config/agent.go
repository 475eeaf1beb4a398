package config

import (
	"fmt"
	"os"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"
)

// AgentEnv maps agent config fields to environment variable names, so the
// primary and secondary backends override independently.
type AgentEnv struct {
	ProviderName string
	BaseURL      string
	Token        string
	Deployment   string
	APIVersion   string
	AuthType     string
	ModelName    string
}

var primaryAgentEnv = &AgentEnv{
	ProviderName: "SLIDESMITH_AGENT_PROVIDER_NAME",
	BaseURL:      "SLIDESMITH_AGENT_BASE_URL",
	Token:        "SLIDESMITH_AGENT_TOKEN",
	Deployment:   "SLIDESMITH_AGENT_DEPLOYMENT",
	APIVersion:   "SLIDESMITH_AGENT_API_VERSION",
	AuthType:     "SLIDESMITH_AGENT_AUTH_TYPE",
	ModelName:    "SLIDESMITH_AGENT_MODEL_NAME",
}

var secondaryAgentEnv = &AgentEnv{
	ProviderName: "SLIDESMITH_SECONDARY_AGENT_PROVIDER_NAME",
	BaseURL:      "SLIDESMITH_SECONDARY_AGENT_BASE_URL",
	Token:        "SLIDESMITH_SECONDARY_AGENT_TOKEN",
	Deployment:   "SLIDESMITH_SECONDARY_AGENT_DEPLOYMENT",
	APIVersion:   "SLIDESMITH_SECONDARY_AGENT_API_VERSION",
	AuthType:     "SLIDESMITH_SECONDARY_AGENT_AUTH_TYPE",
	ModelName:    "SLIDESMITH_SECONDARY_AGENT_MODEL_NAME",
}

// FinalizeAgent applies the three-phase finalize pattern to a go-agents
// AgentConfig: defaults from go-agents DefaultAgentConfig, environment
// variable overrides, and validation.
func FinalizeAgent(c *gaconfig.AgentConfig, env *AgentEnv) error {
	loadAgentDefaults(c)
	if env != nil {
		loadAgentEnv(c, env)
	}
	return validateAgent(c)
}

// AgentConfigured reports whether an agent section carries enough
// configuration to be usable, before finalization fills in defaults.
func AgentConfigured(c *gaconfig.AgentConfig) bool {
	return c.Provider != nil && c.Provider.BaseURL != ""
}

func loadAgentDefaults(c *gaconfig.AgentConfig) {
	defaults := gaconfig.DefaultAgentConfig()
	defaults.Merge(c)
	*c = defaults
}

func loadAgentEnv(c *gaconfig.AgentConfig, env *AgentEnv) {
	if c.Provider == nil {
		c.Provider = &gaconfig.ProviderConfig{}
	}
	if c.Provider.Options == nil {
		c.Provider.Options = make(map[string]any)
	}
	if c.Model == nil {
		c.Model = &gaconfig.ModelConfig{}
	}
	if v := os.Getenv(env.ProviderName); v != "" {
		c.Provider.Name = v
	}
	if v := os.Getenv(env.BaseURL); v != "" {
		c.Provider.BaseURL = v
	}
	if v := os.Getenv(env.ModelName); v != "" {
		c.Model.Name = v
	}

	setOption := func(envVar, key string) {
		if v := os.Getenv(envVar); v != "" {
			c.Provider.Options[key] = v
		}
	}

	setOption(env.Token, "token")
	setOption(env.Deployment, "deployment")
	setOption(env.APIVersion, "api_version")
	setOption(env.AuthType, "auth_type")
}

func validateAgent(c *gaconfig.AgentConfig) error {
	if c.Name == "" {
		return fmt.Errorf("name required")
	}
	if c.Provider == nil {
		return fmt.Errorf("provider required")
	}
	if c.Provider.Name == "" {
		return fmt.Errorf("provider name required")
	}
	if c.Model == nil {
		return fmt.Errorf("model required")
	}
	return nil
}
