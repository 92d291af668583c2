package sandbox

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/traefik/yaegi/interp"
)

// This file implements the fixed set of data-manipulation primitives bound
// into the sandbox under the "frame" package name. All of them are pure:
// they touch nothing but their arguments and allocate fresh results.

// frameText renders any cell value as a trimmed string.
func frameText(v any) string {
	if v == nil {
		return ""
	}
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", x))
	}
}

// frameNumber coerces a cell value to a float64, tolerating currency symbols
// and thousands separators. The second return reports whether coercion
// succeeded.
func frameNumber(v any) (float64, bool) {
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
		s := strings.TrimSpace(x)
		s = strings.Trim(s, "$€£¥")
		s = strings.ReplaceAll(s, ",", "")
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// frameNormalize lowercases, trims, and collapses internal whitespace,
// preparing strings for tolerant comparison.
func frameNormalize(s string) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), " ")
}

// frameExtract returns the first match of pattern in s, or "" when the
// pattern is invalid or matches nothing.
func frameExtract(pattern, s string) string {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return ""
	}
	return re.FindString(s)
}

// frameMerge combines two rows, prefixing b's colliding columns with "b_".
func frameMerge(a, b map[string]any) map[string]any {
	out := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		if _, clash := out[k]; clash {
			out["b_"+k] = v
			continue
		}
		out[k] = v
	}
	return out
}

// frameJoinOn inner-joins two tables on string equality of the named key
// columns. Each right-hand row pairs with at most one left-hand row. Returns
// the merged matches plus each side's unmatched remainder.
func frameJoinOn(a, b []map[string]any, keyA, keyB string) (matched, restA, restB []map[string]any) {
	matched = []map[string]any{}
	restA = []map[string]any{}
	restB = []map[string]any{}

	used := make([]bool, len(b))
	index := make(map[string][]int, len(b))
	for i, row := range b {
		k := frameText(row[keyB])
		index[k] = append(index[k], i)
	}

	for _, row := range a {
		k := frameText(row[keyA])
		found := -1
		for _, i := range index[k] {
			if !used[i] {
				found = i
				break
			}
		}
		if found < 0 || k == "" {
			restA = append(restA, row)
			continue
		}
		used[found] = true
		matched = append(matched, frameMerge(row, b[found]))
	}
	for i, row := range b {
		if !used[i] {
			restB = append(restB, row)
		}
	}
	return matched, restA, restB
}

// frameExports builds the symbol table for the "frame" package.
func frameExports() interp.Exports {
	return interp.Exports{
		"frame/frame": {
			"Text":      reflect.ValueOf(frameText),
			"Number":    reflect.ValueOf(frameNumber),
			"Normalize": reflect.ValueOf(frameNormalize),
			"Extract":   reflect.ValueOf(frameExtract),
			"Merge":     reflect.ValueOf(frameMerge),
			"JoinOn":    reflect.ValueOf(frameJoinOn),
		},
	}
}
