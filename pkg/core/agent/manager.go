package agent

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"docsamajh/pkg/core/llm"
	"docsamajh/pkg/core/logging"
)

// Provider names accepted in config/models.yaml.
const (
	ProviderOpenAICompat = "openai_compat"
	ProviderGemini       = "gemini"
	ProviderGeminiLegacy = "gemini_legacy"
)

type Config struct {
	ActiveProvider string                 `yaml:"active_provider" json:"active_provider"`
	Agents         map[string]AgentConfig `yaml:"agents" json:"agents,omitempty"`
}

type AgentConfig struct {
	Provider    string `yaml:"provider" json:"provider,omitempty"` // Optional override
	Model       string `yaml:"model" json:"model,omitempty"`       // Optional override
	Description string `yaml:"description" json:"description,omitempty"`
}

// Settings carries the credentials shared by the built-in providers.
type Settings struct {
	APIKey  string
	BaseURL string
	Model   string
}

type Manager struct {
	mu        sync.RWMutex
	config    Config
	providers map[string]llm.Provider
}

func NewManager(config Config, s Settings) *Manager {
	return NewManagerWithProviders(config, map[string]llm.Provider{
		ProviderOpenAICompat: &llm.OpenAICompatProvider{APIKey: s.APIKey, BaseURL: s.BaseURL, Model: s.Model},
		ProviderGemini:       &llm.GeminiProvider{APIKey: s.APIKey, Model: s.Model},
		ProviderGeminiLegacy: &llm.LegacyGeminiProvider{APIKey: s.APIKey, Model: s.Model},
	})
}

// NewManagerWithProviders builds a manager over an explicit provider set.
func NewManagerWithProviders(config Config, providers map[string]llm.Provider) *Manager {
	if config.ActiveProvider == "" {
		config.ActiveProvider = ProviderOpenAICompat
	}
	return &Manager{config: config, providers: providers}
}

func (m *Manager) GetProvider(agentType string) llm.Provider {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// 1. Check for agent-specific override
	if agentConfig, ok := m.config.Agents[agentType]; ok && agentConfig.Provider != "" {
		if p, ok := m.providers[agentConfig.Provider]; ok {
			return p
		}
	}

	// 2. Use global active provider
	if p, ok := m.providers[m.config.ActiveProvider]; ok {
		return p
	}

	// 3. Fallback
	return m.providers[ProviderOpenAICompat]
}

// ExecutePrompt handles instruction adaptation before sending to the model
func (m *Manager) ExecutePrompt(ctx context.Context, agentType string, rawPrompt string, rawSystemPrompt string, options map[string]interface{}) (string, error) {
	provider := m.GetProvider(agentType)
	if provider == nil {
		return "", fmt.Errorf("no LLM provider configured for agent %s", agentType)
	}

	opts := make(map[string]interface{}, len(options)+1)
	for k, v := range options {
		opts[k] = v
	}
	m.mu.RLock()
	if ac, ok := m.config.Agents[agentType]; ok && ac.Model != "" {
		if _, set := opts[llm.OptModel]; !set {
			opts[llm.OptModel] = ac.Model
		}
	}
	m.mu.RUnlock()

	logging.WithComponent("agent").WithField("agent", agentType).
		WithField("provider", fmt.Sprintf("%T", provider)).Debug("execute prompt")

	adaptedSystemPrompt := provider.AdaptInstructions(rawSystemPrompt)
	return provider.GenerateResponse(ctx, rawPrompt, adaptedSystemPrompt, opts)
}

func (m *Manager) SetGlobalProvider(newProvider string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.providers[newProvider]; !ok {
		return fmt.Errorf("provider %s not found", newProvider)
	}
	m.config.ActiveProvider = newProvider
	logging.WithComponent("agent").Infof("global provider set to %s", newProvider)
	return nil
}

func (m *Manager) GetActiveProvider() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.ActiveProvider
}

// Snapshot returns a copy of the current configuration.
func (m *Manager) Snapshot() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := Config{ActiveProvider: m.config.ActiveProvider, Agents: make(map[string]AgentConfig, len(m.config.Agents))}
	for k, v := range m.config.Agents {
		out.Agents[k] = v
	}
	return out
}

// ProviderNames lists the registered provider names, sorted.
func (m *Manager) ProviderNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.providers))
	for n := range m.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
