package config

// Operation names used for per-operation AI configuration
const (
	OperationExtract = "extract"
	OperationAnalyze = "analyze"
)

// applyOperationDefaults applies global defaults to operation-specific configuration
func (c *Config) applyOperationDefaults(opCfg *OperationAIConfig) {
	if opCfg.Provider == "" {
		opCfg.Provider = c.AI.Provider
	}
	if opCfg.Model == "" {
		opCfg.Model = c.AI.Model
	}
	if opCfg.Timeout == nil {
		opCfg.Timeout = &c.AI.Timeout
	}
	if opCfg.APIKey == "" {
		opCfg.APIKey = c.AI.APIKey
	}
	if opCfg.MaxRetries == nil {
		opCfg.MaxRetries = &c.AI.MaxRetries
	}
	if opCfg.Temperature == nil {
		opCfg.Temperature = &c.AI.Temperature
	}
	if opCfg.MaxTokens == nil {
		opCfg.MaxTokens = &c.AI.MaxTokens
	}
	// UseSystemPrompts: apply global default only if not explicitly set
	if opCfg.UseSystemPrompts == nil {
		opCfg.UseSystemPrompts = &c.AI.UseSystemPrompts
	}

	opCfg.CustomPrompts = mergePrompts(opCfg.CustomPrompts, c.AI.CustomPrompts)
}

// mergePrompts fills unset operation prompts from the global ones. The
// operation's own maps are never modified.
func mergePrompts(op, global PromptConfig) PromptConfig {
	merged := PromptConfig{
		System:     op.System,
		SystemFile: op.SystemFile,
		Templates:  make(map[string]string, len(global.Templates)+len(op.Templates)),
	}
	if merged.System == "" {
		merged.System = global.System
	}
	if merged.SystemFile == "" {
		merged.SystemFile = global.SystemFile
	}
	for name, tmpl := range global.Templates {
		merged.Templates[name] = tmpl
	}
	for name, tmpl := range op.Templates {
		if tmpl != "" {
			merged.Templates[name] = tmpl
		}
	}
	return merged
}

// GetExtractConfig returns the AI configuration for skill extraction with fallback to global config
func (c *Config) GetExtractConfig() OperationAIConfig {
	config := c.AI.Extract
	c.applyOperationDefaults(&config)
	return config
}

// GetAnalyzeConfig returns the AI configuration for the component analyzers with fallback to global config
func (c *Config) GetAnalyzeConfig() OperationAIConfig {
	config := c.AI.Analyze
	c.applyOperationDefaults(&config)
	return config
}

// GetOperationConfig returns the resolved configuration by operation name
func (c *Config) GetOperationConfig(operation string) (OperationAIConfig, bool) {
	switch operation {
	case OperationExtract:
		return c.GetExtractConfig(), true
	case OperationAnalyze:
		return c.GetAnalyzeConfig(), true
	default:
		return OperationAIConfig{}, false
	}
}
