package routes

import (
	"context"
	"sync/atomic"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/goerr/v2"
)

// Store holds the active rule-set as an atomically swapped immutable
// snapshot. Concurrent readers never block and never observe a partially
// updated set; a failed reload leaves the previous generation active.
type Store struct {
	path       string
	active     atomic.Pointer[model.RuleSet]
	generation atomic.Uint64
}

// NewStore loads the initial rule set from path. A broken file at
// startup is fatal; there is no previous generation to fall back to.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path}

	ruleSet, err := Load(path)
	if err != nil {
		return nil, err
	}
	s.swap(ruleSet)

	return s, nil
}

// NewStaticStore wraps a fixed rule set, mainly for tests and for
// callers that assemble rules programmatically.
func NewStaticStore(ruleSet *model.RuleSet) *Store {
	s := &Store{}
	s.swap(ruleSet)
	return s
}

// Active returns the current rule-set snapshot
func (s *Store) Active() *model.RuleSet {
	return s.active.Load()
}

// Reload re-reads the routes file and swaps the snapshot. On failure the
// previous rule set stays active and the error is returned; the failure
// is fatal only to this reload attempt.
func (s *Store) Reload(ctx context.Context) error {
	if s.path == "" {
		return goerr.New("rule store has no backing file")
	}

	ruleSet, err := Load(s.path)
	if err != nil {
		ctxlog.From(ctx).Error("rule reload failed, keeping previous rule set",
			"path", s.path,
			"active_generation", s.Active().Generation,
			"error", err,
		)
		return err
	}

	s.swap(ruleSet)
	ctxlog.From(ctx).Info("rule set reloaded",
		"path", s.path,
		"generation", ruleSet.Generation,
		"rules", len(ruleSet.Rules),
	)
	return nil
}

func (s *Store) swap(ruleSet *model.RuleSet) {
	ruleSet.Generation = s.generation.Add(1)
	s.active.Store(ruleSet)
}
