package datasources

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/locusview/server/internal/fieldspec"
)

// StaticSource serves rows from inline config data or a local JSON file
// (optionally zstd-compressed). Useful for embedding small annotation
// tracks and for tests.
type StaticSource struct {
	ns   string
	path string
	rows []map[string]interface{}
}

// NewStaticSource builds a static source from inline cfg.Data or
// cfg.Path. Files are read lazily on first fetch.
func NewStaticSource(ns string, cfg SourceConfig) (Provider, error) {
	if len(cfg.Data) == 0 && cfg.Path == "" {
		return nil, &ConfigurationError{Detail: fmt.Sprintf("static source %q needs inline data or a path", ns)}
	}
	return &StaticSource{ns: ns, path: cfg.Path, rows: cfg.Data}, nil
}

func (s *StaticSource) TypeName() string { return "StaticJSON" }

// CacheKey is constant: static content never changes, so after the first
// fetch every request hits the slot.
func (s *StaticSource) CacheKey(qs QueryState, chain *Chain, fields []fieldspec.FieldSpec) (string, bool) {
	return "static", true
}

func (s *StaticSource) Fetch(ctx context.Context, qs QueryState, chain *Chain) ([]byte, error) {
	if len(s.rows) > 0 {
		return json.Marshal(map[string]interface{}{"data": s.rows})
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("static source %q: %w", s.ns, err)
	}
	if strings.HasSuffix(s.path, ".zst") {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("static source %q: %w", s.ns, err)
		}
		defer dec.Close()
		raw, err = dec.DecodeAll(raw, nil)
		if err != nil {
			return nil, fmt.Errorf("static source %q: decompress: %w", s.ns, err)
		}
	}
	return raw, nil
}

func (s *StaticSource) Parse(raw []byte, chain *Chain, fields []fieldspec.FieldSpec) (*Chain, error) {
	var payload struct {
		Data []map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode %q data: %w", s.ns, err)
	}
	return parseRows(s.ns, payload.Data, chain, fields)
}
