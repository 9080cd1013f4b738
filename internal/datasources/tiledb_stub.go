//go:build !tiledb

package datasources

import (
	"context"
	"fmt"
	"os"

	"github.com/locusview/server/internal/fieldspec"
)

// TileDBSource is a stub when built without "-tags tiledb".
type TileDBSource struct {
	ns  string
	uri string
}

// NewTileDBSource creates a TileDB association source (stub). It still
// validates the array path so config issues are caught early, but fetches
// return ErrUnsupported.
func NewTileDBSource(ns string, cfg SourceConfig) (Provider, error) {
	if cfg.Path == "" {
		return nil, &ConfigurationError{Detail: fmt.Sprintf("tiledb source %q needs a path", ns)}
	}
	if _, err := os.Stat(cfg.Path); err != nil {
		return nil, fmt.Errorf("tiledb array not found at %s: %w", cfg.Path, err)
	}
	return &TileDBSource{ns: ns, uri: cfg.Path}, nil
}

func (s *TileDBSource) TypeName() string { return "TileDBAssoc" }

// Supported reports whether TileDB reads are compiled in.
func (s *TileDBSource) Supported() bool { return false }

func (s *TileDBSource) CacheKey(qs QueryState, chain *Chain, fields []fieldspec.FieldSpec) (string, bool) {
	return regionKey(qs), true
}

func (s *TileDBSource) Fetch(ctx context.Context, qs QueryState, chain *Chain) ([]byte, error) {
	return nil, ErrUnsupported
}

func (s *TileDBSource) Parse(raw []byte, chain *Chain, fields []fieldspec.FieldSpec) (*Chain, error) {
	return nil, ErrUnsupported
}
