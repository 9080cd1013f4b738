//go:build tiledb

package datasources

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	tiledb "github.com/TileDB-Inc/TileDB-Go"

	"github.com/locusview/server/internal/fieldspec"
)

// TileDBSource reads association statistics from a local TileDB sparse
// array instead of a remote API. The array is expected to have an int64
// "position" dimension and "pvalue" (float64) plus var-length "variant"
// (string) attributes. Built only with "-tags tiledb".
type TileDBSource struct {
	ns  string
	uri string
	ctx *tiledb.Context
}

// NewTileDBSource opens a TileDB-backed association source at cfg.Path.
func NewTileDBSource(ns string, cfg SourceConfig) (Provider, error) {
	if cfg.Path == "" {
		return nil, &ConfigurationError{Detail: fmt.Sprintf("tiledb source %q needs a path", ns)}
	}
	if _, err := os.Stat(cfg.Path); err != nil {
		return nil, fmt.Errorf("tiledb array not found at %s: %w", cfg.Path, err)
	}
	tctx, err := tiledb.NewContext(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create TileDB context: %w", err)
	}
	return &TileDBSource{ns: ns, uri: cfg.Path, ctx: tctx}, nil
}

func (s *TileDBSource) TypeName() string { return "TileDBAssoc" }

// Supported reports whether TileDB reads are compiled in.
func (s *TileDBSource) Supported() bool { return true }

// CacheKey is the region: local reads are cheap but the single-slot cache
// still avoids re-slicing on unchanged state.
func (s *TileDBSource) CacheKey(qs QueryState, chain *Chain, fields []fieldspec.FieldSpec) (string, bool) {
	return regionKey(qs), true
}

// Fetch slices the array over [start,end] on the position dimension and
// encodes the result as the same column-major JSON a remote association
// API returns, so Parse is shared.
func (s *TileDBSource) Fetch(ctx context.Context, qs QueryState, chain *Chain) ([]byte, error) {
	arr, err := tiledb.NewArray(s.ctx, s.uri)
	if err != nil {
		return nil, fmt.Errorf("failed to open array (%s): %w", s.uri, err)
	}
	defer arr.Free()
	if err := arr.Open(tiledb.TILEDB_READ); err != nil {
		return nil, fmt.Errorf("failed to open array for read: %w", err)
	}
	defer arr.Close()

	sub, err := arr.NewSubarray()
	if err != nil {
		return nil, fmt.Errorf("failed to create subarray: %w", err)
	}
	defer sub.Free()
	if err := sub.AddRangeByName("position", tiledb.MakeRange[int64](qs.Start, qs.End)); err != nil {
		return nil, fmt.Errorf("failed to add position range: %w", err)
	}

	q, err := tiledb.NewQuery(s.ctx, arr)
	if err != nil {
		return nil, fmt.Errorf("failed to create query: %w", err)
	}
	defer q.Free()
	if err := q.SetSubarray(sub); err != nil {
		return nil, fmt.Errorf("failed to set subarray: %w", err)
	}
	if err := q.SetLayout(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return nil, fmt.Errorf("failed to set query layout: %w", err)
	}

	const chunkRows = 8192
	positions := make([]int64, chunkRows)
	pvalues := make([]float64, chunkRows)
	offsets := make([]uint64, chunkRows)
	variantBytes := make([]byte, 1024*1024)

	var outPos []int64
	var outPval []float64
	var outVar []string

	for {
		// Buffer sizes are in/out params; reset before every submit.
		if _, err := q.SetDataBuffer("position", positions); err != nil {
			return nil, fmt.Errorf("failed to set buffer position: %w", err)
		}
		if _, err := q.SetDataBuffer("pvalue", pvalues); err != nil {
			return nil, fmt.Errorf("failed to set buffer pvalue: %w", err)
		}
		if _, err := q.SetOffsetsBuffer("variant", offsets); err != nil {
			return nil, fmt.Errorf("failed to set offsets buffer variant: %w", err)
		}
		if _, err := q.SetDataBuffer("variant", variantBytes); err != nil {
			return nil, fmt.Errorf("failed to set data buffer variant: %w", err)
		}

		if err := q.Submit(); err != nil {
			return nil, fmt.Errorf("query submit failed: %w", err)
		}
		status, err := q.Status()
		if err != nil {
			return nil, fmt.Errorf("query status failed: %w", err)
		}

		elems, err := q.ResultBufferElements()
		if err != nil {
			return nil, fmt.Errorf("ResultBufferElements failed: %w", err)
		}
		got := int(elems["position"][1])
		usedOffsets := int(elems["variant"][0])
		usedBytes := int(elems["variant"][1])
		if usedOffsets > got {
			usedOffsets = got
		}

		for i := 0; i < got; i++ {
			outPos = append(outPos, positions[i])
			outPval = append(outPval, pvalues[i])

			start := int(offsets[i])
			end := usedBytes
			if i+1 < usedOffsets {
				end = int(offsets[i+1])
			}
			if start > end || end > len(variantBytes) {
				return nil, fmt.Errorf("variant offsets out of range at row %d", i)
			}
			outVar = append(outVar, string(variantBytes[start:end]))
		}

		if status != tiledb.TILEDB_INCOMPLETE {
			break
		}
		if got == 0 && usedBytes == 0 {
			return nil, fmt.Errorf("query incomplete with empty buffers; variant bytes buffer too small")
		}
	}

	return json.Marshal(map[string]interface{}{
		"data": map[string]interface{}{
			"position": outPos,
			"pvalue":   outPval,
			"variant":  outVar,
		},
	})
}

func (s *TileDBSource) Parse(raw []byte, chain *Chain, fields []fieldspec.FieldSpec) (*Chain, error) {
	var payload struct {
		Data map[string]json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode %q data: %w", s.ns, err)
	}
	return parseColumns(s.ns, payload.Data, chain, fields)
}
