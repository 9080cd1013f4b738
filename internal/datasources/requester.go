package datasources

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/locusview/server/internal/fieldspec"
)

// Requester turns a set of field specs into resolved chain rows. Fields
// are grouped by namespace and each namespace's source is invoked in the
// collection's declaration order, threading the accumulating chain so a
// later source can join against an earlier one's rows.
//
// Declaration order is the contract: there is no dependency graph. A
// source needing another namespace's rows (LD needing the association
// best hit) fails if declared first.
type Requester struct {
	sources *DataSources
}

// NewRequester builds a requester over a source collection.
func NewRequester(sources *DataSources) *Requester {
	return &Requester{sources: sources}
}

// Resolve executes the pipeline for one state snapshot. Any source
// failure rejects the whole resolution; there is no partial-success
// merging across namespaces.
func (r *Requester) Resolve(ctx context.Context, qs QueryState, specs []fieldspec.FieldSpec) (*Chain, error) {
	grouped := make(map[string][]fieldspec.FieldSpec)
	for _, spec := range specs {
		grouped[spec.Namespace] = append(grouped[spec.Namespace], spec)
	}

	chain := NewChain()
	for _, ns := range r.sources.Namespaces() {
		fields, wanted := grouped[ns]
		if !wanted {
			continue
		}
		next, err := r.sources.Get(ns).GetData(ctx, qs, chain, fields)
		if err != nil {
			return nil, fmt.Errorf("resolve namespace %q: %w", ns, err)
		}
		chain = next
		delete(grouped, ns)
	}

	if len(grouped) > 0 {
		missing := make([]string, 0, len(grouped))
		for ns := range grouped {
			missing = append(missing, ns)
		}
		sort.Strings(missing)
		return nil, &ConfigurationError{
			Detail: fmt.Sprintf("no source registered for namespace(s): %s", strings.Join(missing, ", ")),
		}
	}
	return chain, nil
}
