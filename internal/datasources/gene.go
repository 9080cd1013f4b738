package datasources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/locusview/server/internal/fieldspec"
)

// GeneSource queries gene and exon annotations for the current region.
// Responses are row-major JSON:
//
//	{"data": [{"gene_name": ..., "start": ..., "end": ..., "strand": ...,
//	           "exons": [...]}, ...]}
type GeneSource struct {
	ns      string
	baseURL string
	build   string
	client  *httpClient
}

// NewGeneSource builds a gene annotation source.
// cfg.Params["build"] selects the genome build (default "GRCh37").
func NewGeneSource(ns string, cfg SourceConfig) *GeneSource {
	build := cfg.Params["build"]
	if build == "" {
		build = "GRCh37"
	}
	return &GeneSource{ns: ns, baseURL: cfg.URL, build: build, client: newHTTPClient(0)}
}

func (s *GeneSource) TypeName() string { return "GeneLZ" }

// CacheKey is purely the region: gene annotations do not depend on the
// chain or on which fields were requested.
func (s *GeneSource) CacheKey(qs QueryState, chain *Chain, fields []fieldspec.FieldSpec) (string, bool) {
	return regionKey(qs) + "_" + s.build, true
}

func (s *GeneSource) Fetch(ctx context.Context, qs QueryState, chain *Chain) ([]byte, error) {
	// Overlap query: a gene is in view when it starts before the region
	// ends and ends after the region starts.
	filter := fmt.Sprintf(
		"chrom eq '%s' and start le %d and end ge %d and source_build eq '%s'",
		qs.Chrom, qs.End, qs.Start, s.build,
	)
	return s.client.get(ctx, s.ns, s.baseURL+"?"+url.Values{"filter": {filter}}.Encode())
}

// Parse extracts the requested attributes from each gene record. Nested
// values (exon lists) pass through untouched.
func (s *GeneSource) Parse(raw []byte, chain *Chain, fields []fieldspec.FieldSpec) (*Chain, error) {
	var payload struct {
		Data []map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode %q response: %w", s.ns, err)
	}
	return parseRows(s.ns, payload.Data, chain, fields)
}

// parseRows turns a row-major response into chain rows keyed by the
// requested output names, appending them to any rows earlier sources
// already produced. A field absent from any row is a ParseError.
func parseRows(ns string, rows []map[string]interface{}, chain *Chain, fields []fieldspec.FieldSpec) (*Chain, error) {
	out := chain.Clone()
	for _, row := range rows {
		rec := make(Record, len(fields))
		for _, f := range fields {
			v, ok := row[f.Field]
			if !ok {
				return nil, &ParseError{Namespace: ns, Field: f.Field, OutName: f.OutputName()}
			}
			rec[f.OutputName()] = f.Apply(v)
		}
		out.Body = append(out.Body, rec)
	}
	return out, nil
}
