package expr

import (
	"strconv"
	"strings"
	"time"
)

// propertyFunc transforms a Value given its parsed arguments, one entry
// per name in the §6 property-function list. Functions the grammar
// names but that only make sense on a stateful multi-value stack
// (push/pop/shift/peek/foreach) are accepted by the parser but act as
// identity: no value stack is kept, here or in any caller.
type propertyFunc func(v Value, args []string) Value

var propertyFuncs = map[string]propertyFunc{
	"tostring": func(v Value, _ []string) Value { return strValue(v.asString()) },
	"toint": func(v Value, _ []string) Value {
		f, ok := v.asFloat()
		if !ok {
			return nullValue()
		}
		return numValue(float64(int64(f)))
	},
	"tofloat": func(v Value, _ []string) Value {
		f, ok := v.asFloat()
		if !ok {
			return nullValue()
		}
		return numValue(f)
	},
	"tobool": func(v Value, _ []string) Value {
		s := strings.ToLower(strings.TrimSpace(v.asString()))
		return boolValue(s != "" && s != "0" && s != "false")
	},
	"todate": func(v Value, _ []string) Value { return toTime(v, "2006-01-02") },
	"totime": func(v Value, _ []string) Value { return toTime(v, time.RFC3339) },
	"trim":   func(v Value, _ []string) Value { return strValue(strings.TrimSpace(v.asString())) },
	"upper":  func(v Value, _ []string) Value { return strValue(strings.ToUpper(v.asString())) },
	"lower":  func(v Value, _ []string) Value { return strValue(strings.ToLower(v.asString())) },
	"title":  func(v Value, _ []string) Value { return strValue(strings.Title(v.asString())) }, //nolint:staticcheck // matches the reference's simple word-capitalization, not full Unicode title-casing
	"mid": func(v Value, args []string) Value {
		s := v.asString()
		start, length := midArgs(args, len(s))
		if start >= len(s) {
			return strValue("")
		}
		end := start + length
		if end > len(s) {
			end = len(s)
		}
		return strValue(s[start:end])
	},
	"pad": func(v Value, args []string) Value {
		s := v.asString()
		width := 0
		if len(args) > 0 {
			width, _ = strconv.Atoi(args[0])
		}
		for len(s) < width {
			s = "0" + s
		}
		return strValue(s)
	},
	"split": func(v Value, args []string) Value {
		sep := ","
		if len(args) > 0 {
			sep = args[0]
		}
		return strValue(strings.Join(strings.Split(v.asString(), sep), "\x1f"))
	},
	"join": func(v Value, args []string) Value {
		sep := ","
		if len(args) > 0 {
			sep = args[0]
		}
		return strValue(strings.ReplaceAll(v.asString(), "\x1f", sep))
	},
	"camelsplit": func(v Value, _ []string) Value { return strValue(camelSplit(v.asString())) },
	"add": func(v Value, args []string) Value {
		f, ok := v.asFloat()
		if !ok || len(args) == 0 {
			return v
		}
		delta, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return v
		}
		return numValue(f + delta)
	},
	"date":  func(v Value, _ []string) Value { return dateField(v, "2006-01-02") },
	"year":  func(v Value, _ []string) Value { return dateField(v, "2006") },
	"month": func(v Value, _ []string) Value { return dateField(v, "01") },
	"day":   func(v Value, _ []string) Value { return dateField(v, "02") },

	// stack-oriented operators: identity passthrough, see doc comment.
	"push": identityFunc, "pop": identityFunc, "shift": identityFunc,
	"peek": identityFunc, "foreach": identityFunc,
}

func identityFunc(v Value, _ []string) Value { return v }

func midArgs(args []string, strLen int) (start, length int) {
	length = strLen
	if len(args) > 0 {
		start, _ = strconv.Atoi(args[0])
	}
	if len(args) > 1 {
		length, _ = strconv.Atoi(args[1])
	}
	return
}

func toTime(v Value, layout string) Value {
	if v.IsT {
		return v
	}
	t, err := time.Parse(layout, v.asString())
	if err != nil {
		t, err = time.Parse(time.RFC3339, v.asString())
		if err != nil {
			return nullValue()
		}
	}
	return timeValue(t)
}

func dateField(v Value, layout string) Value {
	t := v.Time
	if !v.IsT {
		parsed := toTime(v, "2006-01-02")
		if parsed.Null {
			return nullValue()
		}
		t = parsed.Time
	}
	return strValue(t.Format(layout))
}

func camelSplit(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && r >= 'A' && r <= 'Z' {
			prev := runes[i-1]
			if prev >= 'a' && prev <= 'z' {
				b.WriteByte(' ')
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}
