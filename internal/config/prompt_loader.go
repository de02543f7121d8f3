package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// loadPromptsFromFiles reads every configured prompt file into the matching
// inline field. File paths are kept so the source stays visible.
func (c *Config) loadPromptsFromFiles() error {
	if err := c.validatePromptFiles(); err != nil {
		return err
	}

	sections := []struct {
		name    string
		prompts *PromptConfig
	}{
		{"global", &c.AI.CustomPrompts},
		{OperationExtract, &c.AI.Extract.CustomPrompts},
		{OperationAnalyze, &c.AI.Analyze.CustomPrompts},
	}

	loaded := 0
	for _, s := range sections {
		n, err := loadPromptSection(s.name, s.prompts)
		if err != nil {
			return fmt.Errorf("failed to load %s prompts: %w", s.name, err)
		}
		loaded += n
	}

	if loaded == 0 {
		log.Println("[CONFIG] No custom prompt files loaded - using built-in defaults")
	} else {
		log.Printf("[CONFIG] Total custom prompt files loaded: %d", loaded)
	}
	return nil
}

func loadPromptSection(section string, prompts *PromptConfig) (int, error) {
	loaded := 0
	if prompts.SystemFile != "" {
		content, err := loadPromptFromFile(prompts.SystemFile, section, "system")
		if err != nil {
			return loaded, err
		}
		prompts.System = content
		loaded++
	}

	if len(prompts.TemplateFiles) == 0 {
		return loaded, nil
	}
	if prompts.Templates == nil {
		prompts.Templates = make(map[string]string, len(prompts.TemplateFiles))
	}

	// sorted so errors and logs are deterministic
	names := make([]string, 0, len(prompts.TemplateFiles))
	for name := range prompts.TemplateFiles {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		content, err := loadPromptFromFile(prompts.TemplateFiles[name], section, name)
		if err != nil {
			return loaded, err
		}
		prompts.Templates[name] = content
		loaded++
	}
	return loaded, nil
}

// loadPromptFromFile loads a prompt from a file with proper error handling and logging
func loadPromptFromFile(filePath, section, name string) (string, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path for %s %s prompt file '%s': %w", section, name, filePath, err)
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return "", fmt.Errorf("failed to read %s %s prompt file '%s': %w", section, name, absPath, err)
	}

	trimmed := strings.TrimSpace(string(content))
	if trimmed == "" {
		return "", fmt.Errorf("%s %s prompt file '%s' is empty", section, name, absPath)
	}

	log.Printf("[CONFIG] Successfully loaded %s %s prompt from file: %s (%d characters)",
		section, name, absPath, len(trimmed))
	return trimmed, nil
}

// validatePromptFiles reports every missing prompt file at once
func (c *Config) validatePromptFiles() error {
	var problems []string

	check := func(section, name, filePath string) {
		if filePath == "" {
			return
		}
		absPath, err := filepath.Abs(filePath)
		if err != nil {
			problems = append(problems, fmt.Sprintf("invalid path for %s %s prompt: %s", section, name, filePath))
			return
		}
		if _, err := os.Stat(absPath); os.IsNotExist(err) {
			problems = append(problems, fmt.Sprintf("%s %s prompt file not found: %s", section, name, absPath))
		}
	}

	for section, prompts := range map[string]PromptConfig{
		"global":         c.AI.CustomPrompts,
		OperationExtract: c.AI.Extract.CustomPrompts,
		OperationAnalyze: c.AI.Analyze.CustomPrompts,
	} {
		check(section, "system", prompts.SystemFile)
		for name, path := range prompts.TemplateFiles {
			check(section, name, path)
		}
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("prompt file validation failed:\n%s", strings.Join(problems, "\n"))
	}
	return nil
}
