package fieldspec

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
)

// Transform is a named pure single-argument function applied to a field
// value after parsing. Chained transforms compose left to right.
type Transform struct {
	Name string
	Fn   func(interface{}) interface{}
}

// Registry holds the known transforms for one plot. It is passed explicitly
// to Plot construction rather than living in package state.
type Registry struct {
	transforms map[string]Transform
}

// NewRegistry returns a registry pre-populated with the standard transforms.
func NewRegistry() *Registry {
	r := &Registry{transforms: make(map[string]Transform)}
	r.Register("neglog10", negLog10)
	r.Register("neglog10_handle0", negLog10Handle0)
	r.Register("log10", log10)
	r.Register("scinotation", sciNotation)
	r.Register("urlencode", urlEncode)
	r.Register("percent", percent)
	return r
}

// Register adds or replaces a named transform.
func (r *Registry) Register(name string, fn func(interface{}) interface{}) {
	r.transforms[name] = Transform{Name: name, Fn: fn}
}

// Get resolves a transform by name. An unknown name is a configuration
// error; callers are expected to fail fast on it.
func (r *Registry) Get(name string) (Transform, error) {
	t, ok := r.transforms[name]
	if !ok {
		return Transform{}, fmt.Errorf("unknown transform %q", name)
	}
	return t, nil
}

func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func negLog10(v interface{}) interface{} {
	f, ok := toFloat(v)
	if !ok || f <= 0 {
		return nil
	}
	return -math.Log10(f)
}

// negLog10Handle0 maps p-values of exactly zero (underflow in upstream
// results) to the largest representable -log10 rather than dropping them.
func negLog10Handle0(v interface{}) interface{} {
	f, ok := toFloat(v)
	if !ok {
		return nil
	}
	if f == 0 {
		return math.MaxFloat64
	}
	if f < 0 {
		return nil
	}
	return -math.Log10(f)
}

func log10(v interface{}) interface{} {
	f, ok := toFloat(v)
	if !ok || f <= 0 {
		return nil
	}
	return math.Log10(f)
}

func sciNotation(v interface{}) interface{} {
	f, ok := toFloat(v)
	if !ok {
		return nil
	}
	if f == 0 {
		return "0"
	}
	exp := math.Floor(math.Log10(math.Abs(f)))
	if exp >= -2 && exp <= 2 {
		return strconv.FormatFloat(f, 'f', 2, 64)
	}
	mantissa := f / math.Pow(10, exp)
	return fmt.Sprintf("%.2f × 10^%d", mantissa, int(exp))
}

func urlEncode(v interface{}) interface{} {
	if s, ok := v.(string); ok {
		return url.QueryEscape(s)
	}
	return v
}

func percent(v interface{}) interface{} {
	f, ok := toFloat(v)
	if !ok {
		return nil
	}
	return strconv.FormatFloat(f*100, 'f', 1, 64) + "%"
}
