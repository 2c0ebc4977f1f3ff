package analysis

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Result is the validated outcome of one audit. Values are never mutated
// after validation; a newer analysis supersedes the previous Result.
type Result struct {
	ScoreOriginal    int    `json:"score_original"`
	ScoreOptimized   int    `json:"score_optimized"`
	ComplexityBefore string `json:"complexity_before"`
	ComplexityAfter  string `json:"complexity_after"`
	Summary          string `json:"analysis_summary"`
	Explanation      string `json:"explanation"`
	EstimatedGain    string `json:"estimated_gain"`
	OptimizedCode    string `json:"optimized_code"`
}

// Improved reports whether the optimized score beats the original.
func (r *Result) Improved() bool {
	return r.ScoreOptimized > r.ScoreOriginal
}

// PointsGained returns the score delta for improving results, 0 otherwise.
func (r *Result) PointsGained() int {
	if !r.Improved() {
		return 0
	}
	return r.ScoreOptimized - r.ScoreOriginal
}

// RequiredKeys lists the response keys in schema order.
var RequiredKeys = []string{
	"score_original",
	"score_optimized",
	"complexity_before",
	"complexity_after",
	"analysis_summary",
	"explanation",
	"estimated_gain",
	"optimized_code",
}

// ParseResult parses sanitized response text and validates it. Invalid JSON
// and non-object values yield a *MalformedResponseError; missing keys yield a
// *ValidationError.
func ParseResult(sanitized string) (*Result, error) {
	var v any
	if err := json.Unmarshal([]byte(sanitized), &v); err != nil {
		return nil, &MalformedResponseError{Sanitized: sanitized, Err: err}
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &MalformedResponseError{
			Sanitized: sanitized,
			Err:       fmt.Errorf("expected a JSON object, got %s", jsonKind(v)),
		}
	}

	return ValidateResult(obj)
}

// ValidateResult checks that every required key is present and coerces the
// values. A key holding null, 0, "" or false counts as present.
func ValidateResult(obj map[string]any) (*Result, error) {
	var missing []string
	for _, key := range RequiredKeys {
		if _, ok := obj[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Missing: missing}
	}

	return &Result{
		ScoreOriginal:    toScore(obj["score_original"]),
		ScoreOptimized:   toScore(obj["score_optimized"]),
		ComplexityBefore: toText(obj["complexity_before"]),
		ComplexityAfter:  toText(obj["complexity_after"]),
		Summary:          toText(obj["analysis_summary"]),
		Explanation:      toText(obj["explanation"]),
		EstimatedGain:    toText(obj["estimated_gain"]),
		OptimizedCode:    toText(obj["optimized_code"]),
	}, nil
}

// toScore converts a decoded JSON value to an integer score the way a
// lenient numeric conversion would, falling back to 0. Finite values beyond
// the int32 range saturate at its bounds.
func toScore(v any) int {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case string:
		f = parseNumeric(x)
	case bool:
		if x {
			f = 1
		}
	default:
		return 0
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(math.Max(math.MinInt32, math.Min(math.MaxInt32, math.Trunc(f))))
}

func parseNumeric(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			n, err := strconv.ParseUint(s[2:], base, 64)
			if err != nil {
				return math.NaN()
			}
			return float64(n)
		}
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// toText stringifies a decoded JSON value.
func toText(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	default:
		return "object"
	}
}
