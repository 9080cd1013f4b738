package datasources

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"

	"github.com/locusview/server/internal/fieldspec"
)

// countingProvider wraps a StaticSource and counts upstream fetches.
type countingProvider struct {
	Provider
	fetched int
}

func (c *countingProvider) Fetch(ctx context.Context, qs QueryState, chain *Chain) ([]byte, error) {
	c.fetched++
	return c.Provider.Fetch(ctx, qs, chain)
}

func (c *countingProvider) CacheKey(qs QueryState, chain *Chain, fields []fieldspec.FieldSpec) (string, bool) {
	return regionKey(qs), true
}

func newCountingSource(t *testing.T) (*Source, *countingProvider) {
	t.Helper()
	inner, err := NewStaticSource("assoc", assocConfig())
	if err != nil {
		t.Fatalf("failed to build static source: %v", err)
	}
	p := &countingProvider{Provider: inner}
	return NewSource(p), p
}

func TestSource_SingleSlotCache(t *testing.T) {
	src, p := newCountingSource(t)
	fields := parseFields(t, "assoc:position", "assoc:pvalue")
	ctx := context.Background()

	regionA := QueryState{Chrom: "10", Start: 100, End: 200}
	regionB := QueryState{Chrom: "10", Start: 300, End: 400}

	t.Run("unchangedKeyFetchesOnce", func(t *testing.T) {
		if _, err := src.GetData(ctx, regionA, NewChain(), fields); err != nil {
			t.Fatalf("first GetData failed: %v", err)
		}
		if _, err := src.GetData(ctx, regionA, NewChain(), fields); err != nil {
			t.Fatalf("second GetData failed: %v", err)
		}
		if p.fetched != 1 {
			t.Fatalf("expected exactly 1 fetch, got %d", p.fetched)
		}
	})

	t.Run("newKeyEvictsOldSlot", func(t *testing.T) {
		if _, err := src.GetData(ctx, regionB, NewChain(), fields); err != nil {
			t.Fatalf("GetData failed: %v", err)
		}
		if p.fetched != 2 {
			t.Fatalf("expected 2 fetches after region change, got %d", p.fetched)
		}
		// The old key is gone: returning to regionA fetches again.
		if _, err := src.GetData(ctx, regionA, NewChain(), fields); err != nil {
			t.Fatalf("GetData failed: %v", err)
		}
		if p.fetched != 3 {
			t.Fatalf("expected 3 fetches, single-slot cache kept more than one entry")
		}
	})

	t.Run("cacheDisabled", func(t *testing.T) {
		src.SetEnableCache(false)
		src.GetData(ctx, regionA, NewChain(), fields)
		src.GetData(ctx, regionA, NewChain(), fields)
		if p.fetched != 5 {
			t.Fatalf("expected every call to fetch with cache off, got %d", p.fetched)
		}
	})
}

// regionKeyedProvider gives a StaticSource a region-scoped cache key so
// overlapping resolutions for different regions contend on the slot.
type regionKeyedProvider struct {
	Provider
}

func (r regionKeyedProvider) CacheKey(qs QueryState, chain *Chain, fields []fieldspec.FieldSpec) (string, bool) {
	return regionKey(qs), true
}

func TestSource_ConcurrentResolutions(t *testing.T) {
	inner, err := NewStaticSource("assoc", assocConfig())
	if err != nil {
		t.Fatalf("failed to build static source: %v", err)
	}
	src := NewSource(regionKeyedProvider{inner})
	fields := parseFields(t, "assoc:position", "assoc:pvalue")

	regions := []QueryState{
		{Chrom: "10", Start: 100, End: 200},
		{Chrom: "10", Start: 300, End: 400},
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				qs := regions[(i+j)%len(regions)]
				chain, err := src.GetData(context.Background(), qs, NewChain(), fields)
				if err != nil {
					t.Errorf("GetData failed: %v", err)
					return
				}
				if len(chain.Body) != 3 {
					t.Errorf("expected 3 rows, got %d", len(chain.Body))
					return
				}
			}
		}(i)
	}
	wg.Wait()

	if src.FetchCount() == 0 {
		t.Fatal("expected at least one upstream fetch")
	}
}

func TestSource_CachedChainIsIsolated(t *testing.T) {
	src, _ := newCountingSource(t)
	fields := parseFields(t, "assoc:position")
	ctx := context.Background()
	qs := QueryState{Chrom: "10", Start: 100, End: 200}

	first, err := src.GetData(ctx, qs, NewChain(), fields)
	if err != nil {
		t.Fatalf("GetData failed: %v", err)
	}
	first.Header["scratch"] = true

	second, err := src.GetData(ctx, qs, NewChain(), fields)
	if err != nil {
		t.Fatalf("GetData failed: %v", err)
	}
	if _, ok := second.Header["scratch"]; ok {
		t.Error("header mutation leaked into the cache slot")
	}
}

func TestDataSources_ConfigRoundTrip(t *testing.T) {
	srv := ldServer(t)
	original := buildSources(t, []string{"assoc", "ld"}, srv.URL)

	raw, err := json.Marshal(original.ToConfig())
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var cfgs []NamespaceConfig
	if err := json.Unmarshal(raw, &cfgs); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	rebuilt, err := FromConfig(NewTypeRegistry(), cfgs)
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}

	if !reflect.DeepEqual(original.Namespaces(), rebuilt.Namespaces()) {
		t.Fatalf("namespace order not preserved: %v vs %v",
			original.Namespaces(), rebuilt.Namespaces())
	}

	// Observably identical: same fields against the same state resolve to
	// the same rows, and the rebuilt sources cache the same way.
	fields := parseFields(t, "assoc:position", "assoc:variant", "assoc:pvalue", "ld:state")
	ctx := context.Background()

	a, err := NewRequester(original).Resolve(ctx, testRegion(), fields)
	if err != nil {
		t.Fatalf("original resolve failed: %v", err)
	}
	b, err := NewRequester(rebuilt).Resolve(ctx, testRegion(), fields)
	if err != nil {
		t.Fatalf("rebuilt resolve failed: %v", err)
	}
	if !reflect.DeepEqual(a.Body, b.Body) {
		t.Fatal("rebuilt sources produced different rows")
	}

	if _, err := NewRequester(rebuilt).Resolve(ctx, testRegion(), fields); err != nil {
		t.Fatalf("cached resolve failed: %v", err)
	}
	if got := rebuilt.Get("assoc").FetchCount(); got != 1 {
		t.Fatalf("expected cached second resolve, got %d fetches", got)
	}
}

func TestHTTPClient_NonSuccessIsRequestError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	src := NewAssociationSource("assoc", SourceConfig{URL: srv.URL})
	_, err := src.Fetch(context.Background(), testRegion(), NewChain())
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequestError, got %v", err)
	}
	if reqErr.Status != http.StatusBadGateway {
		t.Errorf("expected status 502, got %d", reqErr.Status)
	}
	if reqErr.Namespace != "assoc" {
		t.Errorf("expected namespace in error, got %q", reqErr.Namespace)
	}
}

func TestSources_EncodeFilterQueries(t *testing.T) {
	// The stdlib server rejects request lines with raw spaces outright, so
	// reaching the handler at all requires an encoded query; the decoded
	// filter must still read as the upstream API's filter grammar.
	filters := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		filters <- r.URL.Query().Get("filter")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {}}`))
	}))
	defer srv.Close()
	ctx := context.Background()

	t.Run("association", func(t *testing.T) {
		src := NewAssociationSource("assoc", SourceConfig{
			URL:    srv.URL,
			Params: map[string]string{"analysis": "45"},
		})
		if _, err := src.Fetch(ctx, testRegion(), NewChain()); err != nil {
			t.Fatalf("fetch failed: %v", err)
		}
		want := "analysis in 45 and chromosome in '10' and position ge 114550452 and position le 115067678"
		if got := <-filters; got != want {
			t.Errorf("server saw filter %q, want %q", got, want)
		}
	})

	t.Run("ld", func(t *testing.T) {
		src := NewLDSource("ld", SourceConfig{URL: srv.URL})
		qs := testRegion()
		qs.Params = map[string]string{"ldrefvar": "10:114758349_T/C"}
		if _, err := src.Fetch(ctx, qs, NewChain()); err != nil {
			t.Fatalf("fetch failed: %v", err)
		}
		want := "variant1 eq '10:114758349_T/C' and chromosome2 eq '10' and position2 ge 114550452 and position2 le 115067678 and population eq 'ALL'"
		if got := <-filters; got != want {
			t.Errorf("server saw filter %q, want %q", got, want)
		}
	})

	t.Run("genes", func(t *testing.T) {
		src := NewGeneSource("genes", SourceConfig{URL: srv.URL})
		if _, err := src.Fetch(ctx, testRegion(), NewChain()); err != nil {
			t.Fatalf("fetch failed: %v", err)
		}
		want := "chrom eq '10' and start le 115067678 and end ge 114550452 and source_build eq 'GRCh37'"
		if got := <-filters; got != want {
			t.Errorf("server saw filter %q, want %q", got, want)
		}
	})

	t.Run("recomb", func(t *testing.T) {
		src := NewRecombSource("recomb", SourceConfig{URL: srv.URL})
		if _, err := src.Fetch(ctx, testRegion(), NewChain()); err != nil {
			t.Fatalf("fetch failed: %v", err)
		}
		want := "chromosome eq '10' and position ge 114550452 and position le 115067678 and build eq 'GRCh37'"
		if got := <-filters; got != want {
			t.Errorf("server saw filter %q, want %q", got, want)
		}
	})
}

func ldTestChain() *Chain {
	chain := NewChain()
	chain.Body = []Record{
		{"assoc:variant": "10:114550452_A/G", "assoc:position": 114550452.0, "assoc:pvalue": 0.02},
		{"assoc:variant": "10:114758349_T/C", "assoc:position": 114758349.0, "assoc:pvalue": 3.7e-12},
	}
	return chain
}

func TestLDSource_MismatchedColumnsIsError(t *testing.T) {
	src := NewLDSource("ld", SourceConfig{})
	raw := []byte(`{"data":{"position2":[114550452,115067678],"variant2":["10:114550452_A/G"],"correlation":[0.3]}}`)
	if _, err := src.Parse(raw, ldTestChain(), parseFields(t, "ld:state")); err == nil {
		t.Fatal("expected an error for mismatched response columns")
	}
}

func TestLDSource_CacheKeyIsPure(t *testing.T) {
	src := NewLDSource("ld", SourceConfig{})
	chain := ldTestChain()

	key1, ok := src.CacheKey(testRegion(), chain, nil)
	if !ok {
		t.Fatal("expected a cacheable key")
	}
	if src.lastRefvar != "" {
		t.Error("computing a cache key must not retain resolution state")
	}
	key2, _ := src.CacheKey(testRegion(), chain, nil)
	if key1 != key2 {
		t.Errorf("cache key not stable: %q vs %q", key1, key2)
	}
}

func TestAssociationSource_ParsesColumns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"position": []int64{114550452, 114758349},
				"pvalue":   []float64{0.02, 1e-8},
			},
		})
	}))
	defer srv.Close()

	src := NewSource(NewAssociationSource("assoc", SourceConfig{URL: srv.URL}))
	fields := parseFields(t, "assoc:position", "assoc:pvalue|neglog10")

	chain, err := src.GetData(context.Background(), testRegion(), NewChain(), fields)
	if err != nil {
		t.Fatalf("GetData failed: %v", err)
	}
	if len(chain.Body) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(chain.Body))
	}
	got, ok := chain.Body[1]["assoc:pvalue|neglog10"].(float64)
	if !ok || math.Abs(got-8) > 1e-9 {
		t.Errorf("expected transformed value 8, got %v", chain.Body[1]["assoc:pvalue|neglog10"])
	}
	if _, ok := chain.Body[0]["assoc:position"]; !ok {
		t.Error("expected position in record")
	}
}
