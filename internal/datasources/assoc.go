package datasources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/locusview/server/internal/fieldspec"
)

// AssociationSource queries a remote association-statistics API for one
// analysis over the current region. Responses are column-major JSON:
//
//	{"data": {"position": [...], "pvalue": [...], ...}}
type AssociationSource struct {
	ns       string
	baseURL  string
	analysis string
	client   *httpClient
}

// NewAssociationSource builds an association source for a namespace.
// cfg.Params["analysis"] selects the analysis id baked into every query.
func NewAssociationSource(ns string, cfg SourceConfig) *AssociationSource {
	return &AssociationSource{
		ns:       ns,
		baseURL:  cfg.URL,
		analysis: cfg.Params["analysis"],
		client:   newHTTPClient(0),
	}
}

func (s *AssociationSource) TypeName() string { return "AssociationLZ" }

// CacheKey is the region plus analysis: any pan or zoom that changes the
// region issues a new fetch and evicts the previous slot.
func (s *AssociationSource) CacheKey(qs QueryState, chain *Chain, fields []fieldspec.FieldSpec) (string, bool) {
	return regionKey(qs) + "_" + s.analysis, true
}

func (s *AssociationSource) buildURL(qs QueryState) string {
	analysis := s.analysis
	if a := qs.Param("analysis"); a != "" {
		analysis = a
	}
	filter := fmt.Sprintf(
		"analysis in %s and chromosome in '%s' and position ge %d and position le %d",
		analysis, qs.Chrom, qs.Start, qs.End,
	)
	return s.baseURL + "?" + url.Values{"filter": {filter}}.Encode()
}

func (s *AssociationSource) Fetch(ctx context.Context, qs QueryState, chain *Chain) ([]byte, error) {
	return s.client.get(ctx, s.ns, s.buildURL(qs))
}

// Parse extracts the requested columns into rows, applying each field's
// transform chain. Rows inherit the upstream response order; association
// APIs return position-ascending results, which the LD join relies on.
func (s *AssociationSource) Parse(raw []byte, chain *Chain, fields []fieldspec.FieldSpec) (*Chain, error) {
	var payload struct {
		Data map[string]json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode %q response: %w", s.ns, err)
	}
	return parseColumns(s.ns, payload.Data, chain, fields)
}

// parseColumns turns a column-major response into chain rows keyed by the
// requested output names, appending them to any rows earlier sources
// already produced. A requested column absent from the response is a
// ParseError.
func parseColumns(ns string, data map[string]json.RawMessage, chain *Chain, fields []fieldspec.FieldSpec) (*Chain, error) {
	out := chain.Clone()

	cols := make([][]interface{}, len(fields))
	n := -1
	for i, f := range fields {
		rawCol, ok := data[f.Field]
		if !ok {
			return nil, &ParseError{Namespace: ns, Field: f.Field, OutName: f.OutputName()}
		}
		var col []interface{}
		if err := json.Unmarshal(rawCol, &col); err != nil {
			return nil, fmt.Errorf("decode column %q of %q: %w", f.Field, ns, err)
		}
		cols[i] = col
		if n < 0 || len(col) < n {
			n = len(col)
		}
	}
	if n < 0 {
		n = 0
	}

	for row := 0; row < n; row++ {
		rec := make(Record, len(fields))
		for i, f := range fields {
			rec[f.OutputName()] = f.Apply(cols[i][row])
		}
		out.Body = append(out.Body, rec)
	}
	return out, nil
}
