package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lkoehler/docintake-go/internal/staging"
)

// LoadRules returns the staging validation rules. With no rules file
// configured, the built-in defaults apply with the configured global size
// ceiling. A configured file must parse and validate or loading fails;
// silently falling back would mask a broken deployment.
func (c Config) LoadRules() (staging.Rules, error) {
	if c.RulesFile == "" {
		rules := staging.DefaultRules()
		if c.MaxFileMB > 0 {
			rules.MaxFileMB = c.MaxFileMB
		}
		return rules, nil
	}

	data, err := os.ReadFile(c.RulesFile)
	if err != nil {
		return staging.Rules{}, fmt.Errorf("read rules file: %w", err)
	}

	var rules staging.Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return staging.Rules{}, fmt.Errorf("parse rules file: %w", err)
	}
	if rules.MaxFileMB == 0 && c.MaxFileMB > 0 {
		rules.MaxFileMB = c.MaxFileMB
	}
	if err := rules.Validate(); err != nil {
		return staging.Rules{}, fmt.Errorf("invalid rules file %s: %w", c.RulesFile, err)
	}
	return rules, nil
}
