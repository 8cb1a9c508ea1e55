package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// RuleSet is one immutable generation of routing rules. Order is the
// order supplied by the rule source; FirstMatch walks it front to back.
type RuleSet struct {
	Rules      []Rule
	Generation uint64
	LoadedAt   time.Time
}

// FirstMatch returns the earliest rule that fully matches the event, or
// nil. No match is a normal outcome, not an error.
func (s *RuleSet) FirstMatch(ev *Event, opts MatchOptions) *Rule {
	for i := range s.Rules {
		if s.Rules[i].Matches(ev, opts) {
			return &s.Rules[i]
		}
	}
	return nil
}

// Validate checks every rule, so a broken routes file is rejected as a
// whole at load time rather than surfacing per delivery.
func (s *RuleSet) Validate() error {
	for i := range s.Rules {
		if err := s.Rules[i].Validate(); err != nil {
			return goerr.Wrap(err, "rule set validation failed", goerr.V("rule_index", i))
		}
	}
	return nil
}
