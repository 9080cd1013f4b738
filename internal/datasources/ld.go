package datasources

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strings"
	"sync"

	"github.com/locusview/server/internal/fieldspec"
)

// LDSource queries pairwise linkage disequilibrium against a reference
// variant and annotates the chain's association rows with it. The
// reference variant is either pinned in state ("ldrefvar") or chosen as
// the best p-value row already present in the chain, so this source must
// be declared after the association source it joins against.
type LDSource struct {
	ns         string
	baseURL    string
	population string
	client     *httpClient

	// lastRefvar remembers the variant resolved during Fetch so Parse
	// annotates against the same one even when the chain shifted in
	// between. Guarded by mu: overlapping resolutions share this source.
	mu         sync.Mutex
	lastRefvar string
}

// NewLDSource builds an LD source. cfg.Params["population"] selects the
// reference panel population (default "ALL").
func NewLDSource(ns string, cfg SourceConfig) *LDSource {
	pop := cfg.Params["population"]
	if pop == "" {
		pop = "ALL"
	}
	return &LDSource{ns: ns, baseURL: cfg.URL, population: pop, client: newHTTPClient(0)}
}

func (s *LDSource) TypeName() string { return "LDLZ" }

// CacheKey covers region, population and the resolved reference variant:
// a new best-hit after a refetch correctly misses the old slot. Pure; the
// refvar a resolution actually annotates with is recorded by Fetch.
func (s *LDSource) CacheKey(qs QueryState, chain *Chain, fields []fieldspec.FieldSpec) (string, bool) {
	refvar, _, ok := s.refVariant(qs, chain)
	if !ok {
		return "", false
	}
	return regionKey(qs) + "_" + s.population + "_" + refvar, true
}

// refVariant resolves the reference variant: an explicit state param wins;
// otherwise scan the chain for the extreme p-value row. Returns ok=false
// when the chain carries no association rows to choose from.
func (s *LDSource) refVariant(qs QueryState, chain *Chain) (variant string, pos float64, ok bool) {
	variantKey := chain.FindField("variant")

	if pinned := qs.Param("ldrefvar"); pinned != "" {
		return pinned, 0, true
	}
	if chain == nil || len(chain.Body) == 0 || variantKey == "" {
		return "", 0, false
	}

	posKey := chain.FindField("position")

	// Prefer a -log10 transformed column (maximize); fall back to the raw
	// p-value (minimize).
	scoreKey := ""
	maximize := false
	for key := range chain.Body[0] {
		if strings.HasSuffix(key, "pvalue|neglog10") || strings.HasSuffix(key, "pvalue|neglog10_handle0") {
			scoreKey = key
			maximize = true
			break
		}
	}
	if scoreKey == "" {
		scoreKey = chain.FindField("pvalue")
	}
	if scoreKey == "" {
		return "", 0, false
	}

	best := math.Inf(1)
	if maximize {
		best = math.Inf(-1)
	}
	for _, rec := range chain.Body {
		v, numOK := Numeric(rec, scoreKey)
		if !numOK {
			continue
		}
		if (maximize && v > best) || (!maximize && v < best) {
			name, _ := rec[variantKey].(string)
			if name == "" {
				continue
			}
			best = v
			variant = name
			if posKey != "" {
				pos, _ = Numeric(rec, posKey)
			}
			ok = true
		}
	}
	return variant, pos, ok
}

func (s *LDSource) Fetch(ctx context.Context, qs QueryState, chain *Chain) ([]byte, error) {
	refvar, _, ok := s.refVariant(qs, chain)
	if !ok {
		return nil, fmt.Errorf("ld fetch for %q: no reference variant available; "+
			"declare the association namespace before %q", s.ns, s.ns)
	}
	s.mu.Lock()
	s.lastRefvar = refvar
	s.mu.Unlock()

	filter := fmt.Sprintf(
		"variant1 eq '%s' and chromosome2 eq '%s' and position2 ge %d and position2 le %d and population eq '%s'",
		refvar, qs.Chrom, qs.Start, qs.End, s.population,
	)
	return s.client.get(ctx, s.ns, s.baseURL+"?"+url.Values{"filter": {filter}}.Encode())
}

// Parse decodes the LD response and left-joins it onto the chain's
// association rows with a sorted merge on position. Both sides must
// already be ascending by position; unmatched rows on either side are
// skipped without error. The chosen reference variant is recorded in the
// chain header under "ldrefvar".
func (s *LDSource) Parse(raw []byte, chain *Chain, fields []fieldspec.FieldSpec) (*Chain, error) {
	var payload struct {
		Data struct {
			Position    []float64 `json:"position2"`
			Variant     []string  `json:"variant2"`
			Correlation []float64 `json:"correlation"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode %q response: %w", s.ns, err)
	}
	if len(payload.Data.Variant) != len(payload.Data.Position) ||
		len(payload.Data.Correlation) != len(payload.Data.Position) {
		return nil, fmt.Errorf("decode %q response: mismatched columns (position2 %d, variant2 %d, correlation %d)",
			s.ns, len(payload.Data.Position), len(payload.Data.Variant), len(payload.Data.Correlation))
	}

	var stateSpec, refvarSpec *fieldspec.FieldSpec
	for i := range fields {
		switch fields[i].Field {
		case "state":
			stateSpec = &fields[i]
		case "isrefvar":
			refvarSpec = &fields[i]
		default:
			return nil, &ParseError{Namespace: s.ns, Field: fields[i].Field, OutName: fields[i].OutputName()}
		}
	}

	out := chain.Clone()
	s.mu.Lock()
	refvar := s.lastRefvar
	s.mu.Unlock()
	if refvar == "" {
		refvar, _, _ = s.refVariant(QueryState{}, out)
	}
	out.Header["ldrefvar"] = refvar

	posKey := out.FindField("position")
	variantKey := out.FindField("variant")
	if posKey == "" {
		return out, nil
	}

	ld := payload.Data
	j := 0
	for i, rec := range out.Body {
		pos, ok := Numeric(rec, posKey)
		if !ok {
			continue
		}
		for j < len(ld.Position) && ld.Position[j] < pos {
			j++
		}

		merged := make(Record, len(rec)+2)
		for k, v := range rec {
			merged[k] = v
		}
		if stateSpec != nil {
			if j < len(ld.Position) && ld.Position[j] == pos {
				merged[stateSpec.OutputName()] = stateSpec.Apply(ld.Correlation[j])
			} else {
				merged[stateSpec.OutputName()] = nil
			}
		}
		if refvarSpec != nil {
			isRef := 0
			if variantKey != "" {
				if name, _ := rec[variantKey].(string); name != "" && name == refvar {
					isRef = 1
				}
			}
			merged[refvarSpec.OutputName()] = refvarSpec.Apply(isRef)
		}
		out.Body[i] = merged
	}
	return out, nil
}
