package services

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// numberRegexp matches the first numeric value, allowing thousands
	// separators and an exponent.
	numberRegexp = regexp.MustCompile(`[-+]?(?:\d[\d,]*(?:\.\d+)?|\.\d+)(?:[eE][-+]?\d+)?`)
	// acreUnitRegexp matches an acre unit directly after a number.
	acreUnitRegexp = regexp.MustCompile(`^[\s-]*(?i:acres?|ac)(?:[^\p{L}]|$)`)
)

const sqftPerAcre = 43560

// parseNumber converts a loosely typed source value to a float. Strings may
// carry currency symbols, thousands separators, units and a k/M suffix
// ("$1.2M", "1,850 sq ft"). Objects of the form {"value": x} are unwrapped.
func parseNumber(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int32:
		f = float64(t)
	case int64:
		f = float64(t)
	case uint:
		f = float64(t)
	case uint32:
		f = float64(t)
	case uint64:
		f = float64(t)
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		return parseNumberString(t)
	case map[string]any:
		inner, ok := t["value"]
		if !ok {
			return 0, false
		}
		return parseNumber(inner)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseNumberString(raw string) (float64, bool) {
	f, _, ok := scanNumber(raw)
	return f, ok
}

// scanNumber parses the first number in raw, applies a k/M suffix that
// directly follows it and returns the text after the number and suffix.
func scanNumber(raw string) (float64, string, bool) {
	s := strings.TrimSpace(raw)
	loc := numberRegexp.FindStringIndex(s)
	if loc == nil {
		return 0, "", false
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s[loc[0]:loc[1]], ",", ""), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, "", false
	}
	rest := s[loc[1]:]
	if mult, n := magnitudeSuffix(rest); n > 0 {
		f *= mult
		rest = rest[n:]
	}
	return f, rest, true
}

// magnitudeSuffix reports the multiplier of a k or M suffix at the start of
// rest and how many bytes it spans. A unit such as "m²", "m2" or "mi" is
// not a suffix.
func magnitudeSuffix(rest string) (float64, int) {
	trimmed := strings.TrimLeft(rest, " \t")
	r, size := utf8.DecodeRuneInString(trimmed)
	var mult float64
	switch r {
	case 'k', 'K':
		mult = 1e3
	case 'm', 'M':
		mult = 1e6
	default:
		return 1, 0
	}
	if next, _ := utf8.DecodeRuneInString(trimmed[size:]); next != utf8.RuneError {
		if unicode.IsLetter(next) || next == '²' || next == '2' {
			return 1, 0
		}
	}
	return mult, len(rest) - len(trimmed) + size
}

// parseLotArea is parseNumber that also converts acre figures to square
// feet when the acre unit follows the number.
func parseLotArea(v any) (float64, bool) {
	switch t := v.(type) {
	case string:
		f, rest, ok := scanNumber(t)
		if !ok {
			return 0, false
		}
		if acreUnitRegexp.MatchString(rest) {
			f *= sqftPerAcre
		}
		return f, true
	case map[string]any:
		inner, ok := t["value"]
		if !ok {
			return 0, false
		}
		return parseLotArea(inner)
	default:
		return parseNumber(v)
	}
}

// toText renders a source value as a string field.
func toText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case map[string]any:
		if inner, ok := t["value"]; ok {
			return toText(inner)
		}
		return fmt.Sprint(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// roundTo rounds half away from zero to the given number of decimals.
func roundTo(f float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(f*p) / p
}
