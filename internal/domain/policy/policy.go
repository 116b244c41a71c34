// Package policy holds the escalation policies configured per spread.
package policy

import (
	"fmt"
	"sort"

	"spread_expire/internal/domain/spread"
)

// Step sends Template once the expiry is at most DaysBefore days away.
type Step struct {
	DaysBefore int
	Template   string
}

// Policy is an escalation ladder ordered from most to least advance warning,
// plus the optional template sent when a pending escalation is reset.
type Policy struct {
	SpreadName    string
	Steps         []Step
	ResetTemplate string
}

// First returns the step with the most advance warning.
func (p Policy) First() Step {
	return p.Steps[0]
}

// IndexOf returns the position of template in the ladder, or -1.
func (p Policy) IndexOf(template string) int {
	for i, s := range p.Steps {
		if s.Template == template {
			return i
		}
	}
	return -1
}

// Templates lists the escalation templates in ladder order. The reset
// template is not included since it is never recorded as pending.
func (p Policy) Templates() []string {
	out := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.Template
	}
	return out
}

// Validate checks a single policy.
func (p Policy) Validate() error {
	if len(p.Steps) == 0 {
		return fmt.Errorf("policy for %q has no escalation steps", p.SpreadName)
	}
	seen := make(map[string]struct{}, len(p.Steps))
	for i, s := range p.Steps {
		if s.Template == "" {
			return fmt.Errorf("policy for %q: step %d has no template", p.SpreadName, i)
		}
		if s.DaysBefore < 0 {
			return fmt.Errorf("policy for %q: step %q has negative days (%d)", p.SpreadName, s.Template, s.DaysBefore)
		}
		if i > 0 && s.DaysBefore >= p.Steps[i-1].DaysBefore {
			return fmt.Errorf("policy for %q: steps must be ordered by strictly decreasing days, %q (%d) follows %q (%d)",
				p.SpreadName, s.Template, s.DaysBefore, p.Steps[i-1].Template, p.Steps[i-1].DaysBefore)
		}
		if _, dup := seen[s.Template]; dup {
			return fmt.Errorf("policy for %q: template %q used twice", p.SpreadName, s.Template)
		}
		seen[s.Template] = struct{}{}
	}
	if _, clash := seen[p.ResetTemplate]; clash {
		return fmt.Errorf("policy for %q: reset template %q is also an escalation template", p.SpreadName, p.ResetTemplate)
	}
	return nil
}

// Set maps spread codes to their policy. It is built once at start-up and
// never mutated afterwards.
type Set map[spread.Code]Policy

func (s Set) Lookup(code spread.Code) (Policy, bool) {
	p, ok := s[code]
	return p, ok
}

// Owner returns the spread whose escalation ladder contains template.
func (s Set) Owner(template string) (spread.Code, bool) {
	for code, p := range s {
		if p.IndexOf(template) >= 0 {
			return code, true
		}
	}
	return 0, false
}

// Spreads returns the configured spread codes in ascending order.
func (s Set) Spreads() []spread.Code {
	codes := make([]spread.Code, 0, len(s))
	for c := range s {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

// Validate checks every policy and that no template is shared between
// spreads. Revoking a spread deletes pending notifications by template, so a
// shared template would clear another spread's escalation state.
func (s Set) Validate() error {
	owner := make(map[string]spread.Code)
	for _, code := range s.Spreads() {
		p := s[code]
		if err := p.Validate(); err != nil {
			return err
		}
		templates := p.Templates()
		if p.ResetTemplate != "" {
			templates = append(templates, p.ResetTemplate)
		}
		for _, t := range templates {
			if other, taken := owner[t]; taken {
				return fmt.Errorf("template %q is used by both %q and %q", t, s[other].SpreadName, p.SpreadName)
			}
			owner[t] = code
		}
	}
	return nil
}
