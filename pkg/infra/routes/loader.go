package routes

import (
	"os"
	"time"

	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

// fileRule mirrors one routes-file record. Enabled defaults to true and
// operator defaults to "equals" when omitted, matching what rule authors
// expect from a YAML file.
type fileRule struct {
	Pattern     string            `yaml:"pattern"`
	Description string            `yaml:"description"`
	Enabled     *bool             `yaml:"enabled"`
	Conditions  []model.Condition `yaml:"conditions"`
	Template    string            `yaml:"template"`
}

// Load reads and validates a routes file
func Load(path string) (*model.RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read routes file", goerr.V("path", path))
	}

	ruleSet, err := Parse(data)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load routes file", goerr.V("path", path))
	}
	return ruleSet, nil
}

// Parse decodes an ordered sequence of rule records. The whole document
// is rejected on the first invalid rule; a half-loaded rule set must
// never become active.
func Parse(data []byte) (*model.RuleSet, error) {
	var records []fileRule
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, goerr.Wrap(err, "invalid routes YAML", goerr.T(types.ErrTagBadRule))
	}

	rules := make([]model.Rule, 0, len(records))
	for _, record := range records {
		rule := model.Rule{
			Pattern:     record.Pattern,
			Description: record.Description,
			Enabled:     record.Enabled == nil || *record.Enabled,
			Conditions:  record.Conditions,
			Template:    record.Template,
		}
		for i := range rule.Conditions {
			if rule.Conditions[i].Operator == "" {
				rule.Conditions[i].Operator = model.OpEquals
			}
		}
		rules = append(rules, rule)
	}

	ruleSet := &model.RuleSet{
		Rules:    rules,
		LoadedAt: time.Now(),
	}
	if err := ruleSet.Validate(); err != nil {
		return nil, err
	}

	return ruleSet, nil
}
