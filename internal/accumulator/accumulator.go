// Package accumulator maintains the inventory document persisted on the
// source side of relationships. Each relationship contributes a fragment on
// establish and withdraws it on unlink; the accumulator folds those
// contributions into one coherent document per instance.
package accumulator

import (
	"context"
	"fmt"

	"rigger/internal/source"
	"rigger/internal/topology"
	"rigger/internal/translator"
	"rigger/pkg/logging"
)

const subsystem = "Accumulator"

// Accumulator combines per-relationship inventory fragments into the
// owning instance's persisted state.
type Accumulator struct {
	translator *translator.Translator
}

// New creates an Accumulator over the given translator.
func New(t *translator.Translator) *Accumulator {
	return &Accumulator{translator: t}
}

// Add merges fragment into the source-side instance's persisted document
// and returns the merged result. The persisted value is re-read immediately
// before merging; the engine is not required to hand us exclusive access.
func (a *Accumulator) Add(rel *topology.RelationshipView, fragment source.Document) (source.Document, error) {
	instance := rel.Source().Instance()
	current, err := instance.Sources()
	if err != nil {
		return nil, fmt.Errorf("failed to read persisted sources for %q: %w", instance.ID, err)
	}
	current.Merge(fragment)
	instance.SetSources(current)
	logging.Debug(subsystem, "merged %d group(s) into sources of %q", len(fragment), instance.ID)
	return current, nil
}

// Remove subtracts fragment's host entries from the source-side instance's
// persisted document and returns the remainder. Hosts or groups that were
// never added are skipped.
func (a *Accumulator) Remove(rel *topology.RelationshipView, fragment source.Document) (source.Document, error) {
	instance := rel.Source().Instance()
	current, err := instance.Sources()
	if err != nil {
		return nil, fmt.Errorf("failed to read persisted sources for %q: %w", instance.ID, err)
	}
	current.Subtract(fragment)
	instance.SetSources(current)
	logging.Debug(subsystem, "removed %d group(s) from sources of %q", len(fragment), instance.ID)
	return current, nil
}

// Remerged returns the inventory document a playbook run should use right
// now. Relationship views re-translate the target and fold it into the
// persisted state, so a retry after a topology change sees current
// addresses; node views use the translation directly, with no
// multi-contributor state to reconcile.
func (a *Accumulator) Remerged(ctx context.Context, view topology.View, opts translator.Options) (source.Document, error) {
	rel, ok := view.(*topology.RelationshipView)
	if !ok {
		return a.translator.Build(ctx, view, opts)
	}
	fragment, err := a.translator.Build(ctx, rel, opts)
	if err != nil {
		return nil, err
	}
	return a.Add(rel, fragment)
}
