package config

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"spread_expire/internal/domain/policy"
	"spread_expire/internal/domain/spread"
)

// PolicyFile is the on-disk shape of the escalation policy configuration.
//
//	spreads:
//	  AD_account:
//	    reset_template: ad_reset
//	    escalation:
//	      - {days: 30, template: ad_warn_30}
//	      - {days: 14, template: ad_warn_14}
type PolicyFile struct {
	Spreads map[string]PolicyEntry `yaml:"spreads"`
}

type PolicyEntry struct {
	ResetTemplate string      `yaml:"reset_template"`
	Escalation    []StepEntry `yaml:"escalation"`
}

type StepEntry struct {
	Days     int    `yaml:"days"`
	Template string `yaml:"template"`
}

// ReadPolicyFile parses the policy file at path.
func ReadPolicyFile(path string) (*PolicyFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return ParsePolicies(raw)
}

func ParsePolicies(raw []byte) (*PolicyFile, error) {
	pf := &PolicyFile{}
	if err := yaml.UnmarshalStrict(raw, pf); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}
	return pf, nil
}

// Resolve turns spread names into codes and validates the resulting set.
// A name the code repository does not know is a configuration error.
func (pf *PolicyFile) Resolve(ctx context.Context, codes spread.CodeRepository) (policy.Set, error) {
	set := make(policy.Set, len(pf.Spreads))
	for name, entry := range pf.Spreads {
		sc, err := codes.Lookup(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("policy for spread %q: %w", name, err)
		}
		p := policy.Policy{SpreadName: name, ResetTemplate: entry.ResetTemplate}
		for _, s := range entry.Escalation {
			p.Steps = append(p.Steps, policy.Step{DaysBefore: s.Days, Template: s.Template})
		}
		set[sc.Code] = p
	}
	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("invalid spread expire policy: %w", err)
	}
	return set, nil
}
