package datasources

import (
	"context"
	"fmt"
	"sync"

	"github.com/locusview/server/internal/fieldspec"
)

// QueryState is the snapshot of plot state a source resolution sees: the
// genomic region plus free-form parameters (analysis id, LD population,
// pinned reference variant).
type QueryState struct {
	Chrom  string
	Start  int64
	End    int64
	Params map[string]string
}

// Param returns a state parameter or "" when unset.
func (q QueryState) Param(key string) string {
	if q.Params == nil {
		return ""
	}
	return q.Params[key]
}

// Provider is the capability set a concrete source implements. CacheKey
// returns ok=false to disable caching for that request; Fetch may suspend
// on network I/O; Parse turns a raw response into chain rows keyed by the
// requested output names with transforms applied.
type Provider interface {
	TypeName() string
	CacheKey(qs QueryState, chain *Chain, fields []fieldspec.FieldSpec) (string, bool)
	Fetch(ctx context.Context, qs QueryState, chain *Chain) ([]byte, error)
	Parse(raw []byte, chain *Chain, fields []fieldspec.FieldSpec) (*Chain, error)
}

// Source wraps a Provider behind a strictly single-slot cache: at most one
// (key, chain) pair is retained, and any distinct new key evicts it. This
// is deliberately most-recent-request-only caching, not an LRU.
type Source struct {
	provider Provider

	// mu guards the slot and counters; Fetch and Parse run outside it so
	// overlapping resolutions do not serialize on network I/O.
	mu          sync.Mutex
	enableCache bool

	key    string
	cached *Chain
	valid  bool

	fetches int
}

// NewSource wraps provider with caching enabled.
func NewSource(provider Provider) *Source {
	return &Source{provider: provider, enableCache: true}
}

// SetEnableCache toggles the single-slot cache. Disabling clears it.
func (s *Source) SetEnableCache(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enableCache = on
	if !on {
		s.valid = false
		s.cached = nil
	}
}

// Provider returns the wrapped provider.
func (s *Source) Provider() Provider { return s.provider }

// FetchCount reports how many upstream fetches this source has issued.
func (s *Source) FetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

// InvalidateCache drops the cached slot, forcing the next GetData to fetch.
func (s *Source) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.valid = false
	s.cached = nil
}

// GetData resolves one namespace: cache hit short-circuits I/O entirely;
// otherwise fetch, parse, and store (key, chain) as the new cache slot.
// The returned chain is always a private copy safe for later sources to
// extend.
func (s *Source) GetData(ctx context.Context, qs QueryState, chain *Chain, fields []fieldspec.FieldSpec) (*Chain, error) {
	key, cacheable := s.provider.CacheKey(qs, chain, fields)

	s.mu.Lock()
	if s.enableCache && cacheable && s.valid && key == s.key {
		hit := s.cached.Clone()
		s.mu.Unlock()
		return hit, nil
	}
	s.mu.Unlock()

	raw, err := s.provider.Fetch(ctx, qs, chain)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.fetches++
	s.mu.Unlock()

	parsed, err := s.provider.Parse(raw, chain, fields)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.enableCache && cacheable {
		s.key = key
		s.cached = parsed.Clone()
		s.valid = true
	}
	s.mu.Unlock()
	return parsed, nil
}

// regionKey is the cache signature shared by purely region-scoped sources.
func regionKey(qs QueryState) string {
	return fmt.Sprintf("%s_%d_%d", qs.Chrom, qs.Start, qs.End)
}
