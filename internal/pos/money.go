package pos

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned when a value cannot be read as a price.
var ErrInvalidAmount = errors.New("invalid amount")

// TruncatePrice converts a price to whole currency units the way historical
// sale records were written: the value goes through a float and the fraction
// is dropped, never rounded. Accepted inputs are integers, floats, numeric
// strings, json.Number and decimal values.
func TruncatePrice(v any) (int64, error) {
	var f float64
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint:
		f = float64(x)
	case uint32:
		return int64(x), nil
	case uint64:
		f = float64(x)
	case float32:
		f = float64(x)
	case float64:
		f = x
	case decimal.Decimal:
		f = x.InexactFloat64()
	case *decimal.Decimal:
		if x == nil {
			return 0, ErrInvalidAmount
		}
		f = x.InexactFloat64()
	case json.Number:
		return TruncatePrice(string(x))
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, x)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrInvalidAmount, v)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, f)
	}
	t := math.Trunc(f)
	if t >= math.MaxInt64 || t < math.MinInt64 {
		return 0, fmt.Errorf("%w: %v out of range", ErrInvalidAmount, f)
	}
	return int64(t), nil
}

// FormatCurrency renders v as "$ 1.234.567". Values that are not numbers are
// shown verbatim after the currency sign.
func FormatCurrency(v any) string {
	n, err := TruncatePrice(v)
	if err != nil {
		return fmt.Sprintf("$ %v", v)
	}
	return "$ " + strings.ReplaceAll(humanize.Comma(n), ",", ".")
}
