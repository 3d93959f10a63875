package config

type AIConfig struct {
	OpenAIAPIKey string
	Model        string
	// PromptPath points at the system prompt file; empty uses the built-in prompt.
	PromptPath         string
	MaxAutoIterations  int
	MaxTotalIterations int
	ToolConcurrency    int
}

func loadAIConfig() AIConfig {
	return AIConfig{
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		Model:              getEnv("OPENAI_MODEL", "gpt-4o"),
		PromptPath:         getEnv("CHAT_PROMPT_PATH", ""),
		MaxAutoIterations:  getEnvInt("AGENT_MAX_AUTO_ITERATIONS", 3),
		MaxTotalIterations: getEnvInt("AGENT_MAX_TOTAL_ITERATIONS", 10),
		ToolConcurrency:    getEnvInt("AGENT_TOOL_CONCURRENCY", 4),
	}
}

func (a AIConfig) Enabled() bool {
	return a.OpenAIAPIKey != ""
}
