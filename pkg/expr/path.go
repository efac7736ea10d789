// Package expr implements the property-path / boolean-expression
// sublanguage behind `-with`/`-without`/`-group-by` (§6/§9). Parsing
// happens once per filter; the result is a closure tree whose leaves
// read a property off a media.Media and whose internal nodes combine
// boolean results, per the design note's "parse once into a closure
// tree" decision (spec §9).
package expr

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"cbird/pkg/media"
)

// Value is the dynamically-typed result of evaluating a property path.
// Exactly one of the fields is meaningful; Null marks "property absent".
type Value struct {
	Str   string
	Num   float64
	Time  time.Time
	Bool  bool
	Null  bool
	IsNum bool
	IsT   bool
	IsB   bool
}

func strValue(s string) Value  { return Value{Str: s} }
func numValue(n float64) Value { return Value{Num: n, IsNum: true} }
func boolValue(b bool) Value   { return Value{Bool: b, IsB: true} }
func timeValue(t time.Time) Value { return Value{Time: t, IsT: true} }
func nullValue() Value         { return Value{Null: true} }

// asString renders any Value as text for string-typed comparisons.
func (v Value) asString() string {
	switch {
	case v.Null:
		return ""
	case v.IsNum:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case v.IsB:
		return strconv.FormatBool(v.Bool)
	case v.IsT:
		return v.Time.Format(time.RFC3339)
	default:
		return v.Str
	}
}

// asFloat coerces a Value to float64 for numeric comparisons, parsing
// strings where possible.
func (v Value) asFloat() (float64, bool) {
	switch {
	case v.IsNum:
		return v.Num, true
	case v.Null:
		return 0, false
	default:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.asString()), 64)
		return f, err == nil
	}
}

// Path is a parsed property path: a base property name, optionally an
// `exif#`/`iptc#`/`xmp#`/`ffmeta#` external-metadata namespace, followed
// by zero or more `#func` pipeline stages (§6).
type Path struct {
	Namespace string // "", "exif", "iptc", "xmp", "ffmeta"
	Name      string
	Funcs     []funcCall
}

type funcCall struct {
	name string
	args []string
}

var namespaces = map[string]bool{"exif": true, "iptc": true, "xmp": true, "ffmeta": true}

// ParsePath parses a property path of the form `name[#func(args)]*`,
// optionally namespaced as `namespace#name` for external metadata (§6).
func ParsePath(s string) (Path, error) {
	parts := strings.Split(s, "#")
	if len(parts) == 0 || parts[0] == "" {
		return Path{}, fmt.Errorf("expr: empty property path")
	}

	var p Path
	i := 0
	if namespaces[parts[0]] && len(parts) > 1 {
		p.Namespace = parts[0]
		p.Name = parts[1]
		i = 2
	} else {
		p.Name = parts[0]
		i = 1
	}

	for ; i < len(parts); i++ {
		fc, err := parseFuncCall(parts[i])
		if err != nil {
			return Path{}, err
		}
		p.Funcs = append(p.Funcs, fc)
	}
	return p, nil
}

func parseFuncCall(s string) (funcCall, error) {
	name := s
	var args []string
	if idx := strings.IndexByte(s, '('); idx >= 0 {
		if !strings.HasSuffix(s, ")") {
			return funcCall{}, fmt.Errorf("expr: unterminated function args in %q", s)
		}
		name = s[:idx]
		argStr := s[idx+1 : len(s)-1]
		if argStr != "" {
			args = strings.Split(argStr, ",")
		}
	}
	if _, ok := propertyFuncs[name]; !ok {
		return funcCall{}, fmt.Errorf("expr: unknown property function %q", name)
	}
	return funcCall{name: name, args: args}, nil
}

// Eval resolves the path against m: the base property lookup, then each
// #func stage in order.
func (p Path) Eval(m media.Media) Value {
	v := p.base(m)
	for _, fc := range p.Funcs {
		v = propertyFuncs[fc.name](v, fc.args)
	}
	return v
}

func (p Path) base(m media.Media) Value {
	if p.Namespace != "" {
		key := p.Namespace + "#" + p.Name
		if m.Attributes != nil {
			if s, ok := m.Attributes[key]; ok {
				return strValue(s)
			}
		}
		return nullValue()
	}

	switch p.Name {
	case "path":
		return strValue(m.Path)
	case "width":
		return numValue(float64(m.Width))
	case "height":
		return numValue(float64(m.Height))
	case "type":
		return strValue(m.Type.String())
	case "score":
		return numValue(float64(m.Score))
	case "isWeed":
		return boolValue(m.IsWeed)
	case "digest":
		return strValue(m.Digest.String())
	default:
		if m.Attributes != nil {
			if s, ok := m.Attributes[p.Name]; ok {
				return strValue(s)
			}
		}
		return nullValue()
	}
}
