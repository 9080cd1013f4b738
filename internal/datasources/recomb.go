package datasources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/locusview/server/internal/fieldspec"
)

// RecombSource queries recombination rates for the current region,
// typically rendered as a line layer on a panel's second y axis.
type RecombSource struct {
	ns      string
	baseURL string
	build   string
	client  *httpClient
}

// NewRecombSource builds a recombination rate source.
func NewRecombSource(ns string, cfg SourceConfig) *RecombSource {
	build := cfg.Params["build"]
	if build == "" {
		build = "GRCh37"
	}
	return &RecombSource{ns: ns, baseURL: cfg.URL, build: build, client: newHTTPClient(0)}
}

func (s *RecombSource) TypeName() string { return "RecombLZ" }

// CacheKey is purely the region.
func (s *RecombSource) CacheKey(qs QueryState, chain *Chain, fields []fieldspec.FieldSpec) (string, bool) {
	return regionKey(qs) + "_" + s.build, true
}

func (s *RecombSource) Fetch(ctx context.Context, qs QueryState, chain *Chain) ([]byte, error) {
	filter := fmt.Sprintf(
		"chromosome eq '%s' and position ge %d and position le %d and build eq '%s'",
		qs.Chrom, qs.Start, qs.End, s.build,
	)
	return s.client.get(ctx, s.ns, s.baseURL+"?"+url.Values{"filter": {filter}}.Encode())
}

func (s *RecombSource) Parse(raw []byte, chain *Chain, fields []fieldspec.FieldSpec) (*Chain, error) {
	var payload struct {
		Data map[string]json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode %q response: %w", s.ns, err)
	}
	return parseColumns(s.ns, payload.Data, chain, fields)
}
