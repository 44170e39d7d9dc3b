package pricing

import (
	"encoding/json"
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

// ErrQuoteUnavailable means a quote response carried no extractable output
// amount in any recognized or scannable form.
var ErrQuoteUnavailable = errors.New("quote response has no extractable output amount")

// outAmountPaths are the known field locations for the quoted output amount,
// in priority order. The quote API has renamed these across versions.
var outAmountPaths = [][]string{
	{"data", "outAmount"},
	{"outAmount"},
	{"otherAmountThreshold"},
	{"data", "amountOut"},
}

// ExtractOutAmount pulls the output amount (base units) from a quote
// response. Known field paths are tried first; if none match, the whole
// structure is scanned for the largest integer-looking value. The scan is a
// best-effort heuristic for schema drift, not a correctness guarantee.
func ExtractOutAmount(raw json.RawMessage) (decimal.Decimal, error) {
	var root any
	if err := json.Unmarshal(raw, &root); err != nil {
		return decimal.Zero, ErrQuoteUnavailable
	}

	for _, path := range outAmountPaths {
		if v, ok := lookupPath(root, path); ok {
			if n, ok := asInteger(v); ok {
				return decimal.NewFromBigInt(n, 0), nil
			}
		}
	}

	// Last resort: largest plausible integer anywhere in the response.
	if n := largestInteger(root); n != nil {
		return decimal.NewFromBigInt(n, 0), nil
	}
	return decimal.Zero, ErrQuoteUnavailable
}

func lookupPath(root any, path []string) (any, bool) {
	cur := root
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// asInteger accepts the shapes the API has used for amounts: a digit string,
// or a JSON number with no fractional part.
func asInteger(v any) (*big.Int, bool) {
	switch t := v.(type) {
	case string:
		n, ok := new(big.Int).SetString(t, 10)
		if !ok || n.Sign() < 0 {
			return nil, false
		}
		return n, true
	case float64:
		if t < 0 || t != float64(int64(t)) {
			return nil, false
		}
		return big.NewInt(int64(t)), true
	default:
		return nil, false
	}
}

func largestInteger(v any) *big.Int {
	var max *big.Int
	var walk func(any)
	walk = func(node any) {
		switch t := node.(type) {
		case map[string]any:
			for _, child := range t {
				walk(child)
			}
		case []any:
			for _, child := range t {
				walk(child)
			}
		default:
			if n, ok := asInteger(node); ok {
				if max == nil || n.Cmp(max) > 0 {
					max = n
				}
			}
		}
	}
	walk(v)
	return max
}
