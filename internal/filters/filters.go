// Package filters compiles leaderboard filter definitions into SQL
// predicates over the accounts table. The key set is closed; unknown
// keys and unknown time_of_day labels compile to nothing, so a stored
// definition never fails to compile.
package filters

import (
	"sort"
	"strconv"
	"strings"
)

// Filter keys accepted by Compile.
const (
	KeyGeography = "geography"
	KeySex       = "sex"
	KeyAgeGroup  = "age_group"
	KeyTimeOfDay = "time_of_day"
)

// Predicate is one compiled WHERE fragment. SQL holds a ? for each bind
// argument; Where numbers them into $n placeholders.
type Predicate struct {
	SQL  string
	Args []any
}

type compilerFunc func(value string) (Predicate, bool)

var compilers = map[string]compilerFunc{
	KeyGeography: equality("geography"),
	KeySex:       equality("sex"),
	KeyAgeGroup:  equality("age_group"),
	KeyTimeOfDay: timeOfDay,
}

func equality(column string) compilerFunc {
	return func(value string) (Predicate, bool) {
		return Predicate{SQL: column + " = ?", Args: []any{value}}, true
	}
}

// timeOfDay buckets accounts on the hour of their last_active timestamp.
// The bounds are fixed, so they are emitted as literals rather than bind
// arguments. The night bucket wraps midnight.
func timeOfDay(value string) (Predicate, bool) {
	const hour = "EXTRACT(HOUR FROM last_active)"
	switch value {
	case "morning":
		return Predicate{SQL: hour + " BETWEEN 6 AND 11"}, true
	case "afternoon":
		return Predicate{SQL: hour + " BETWEEN 12 AND 17"}, true
	case "evening":
		return Predicate{SQL: hour + " BETWEEN 18 AND 21"}, true
	case "night":
		return Predicate{SQL: "(" + hour + " >= 22 OR " + hour + " <= 5)"}, true
	default:
		return Predicate{}, false
	}
}

// Compile maps one filter key/value pair to a predicate. The second
// return is false when the pair contributes no constraint.
func Compile(key, value string) (Predicate, bool) {
	c, ok := compilers[key]
	if !ok {
		return Predicate{}, false
	}
	return c(value)
}

// CompileAll compiles a filter map in sorted key order so a given
// definition always produces the same SQL.
func CompileAll(fs map[string]string) []Predicate {
	keys := make([]string, 0, len(fs))
	for k := range fs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	preds := make([]Predicate, 0, len(keys))
	for _, k := range keys {
		if p, ok := Compile(k, fs[k]); ok {
			preds = append(preds, p)
		}
	}
	return preds
}

// Where joins predicates with AND and numbers their ? placeholders
// starting at $argOffset. It returns the clause without the WHERE
// keyword and the flattened bind arguments; an empty predicate slice
// yields an empty clause.
func Where(preds []Predicate, argOffset int) (string, []any) {
	if len(preds) == 0 {
		return "", nil
	}

	var sb strings.Builder
	var args []any
	n := argOffset
	for i, p := range preds {
		if i > 0 {
			sb.WriteString(" AND ")
		}
		sql := p.SQL
		for _, a := range p.Args {
			sql = strings.Replace(sql, "?", "$"+strconv.Itoa(n), 1)
			args = append(args, a)
			n++
		}
		sb.WriteString(sql)
	}
	return sb.String(), args
}
