package command

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// switchMarker prefixes a named argument in a token list.
const switchMarker = "-"

// EndOfSwitches ends switch parsing in a token list.
const EndOfSwitches = "--"

// Parse turns a command line ("name arg1 arg2 -switch value") into a
// descriptor. The name is NFC-normalized; arguments are kept byte for byte.
func Parse(line string) (Descriptor, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Descriptor{}, NewMalformedError("", "empty command line")
	}
	d := New(norm.NFC.String(fields[0]), fields[1:]...)
	if err := d.Validate(); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

// MustParse is Parse for literals in tests and registrations. It panics on error.
func MustParse(line string) Descriptor {
	d, err := Parse(line)
	if err != nil {
		panic(err)
	}
	return d
}

// FromRecord builds a descriptor from a structured record {name, args, priority}.
//
// args may be a list of scalars or a single space-delimited string, which is
// promoted to a list. priority may be any integral number.
func FromRecord(rec map[string]any) (Descriptor, error) {
	name, _ := rec["name"].(string)
	name = norm.NFC.String(strings.TrimSpace(name))
	if name == "" {
		return Descriptor{}, NewMalformedError("", "record has no name")
	}

	args, err := recordArgs(rec["args"])
	if err != nil {
		return Descriptor{}, NewMalformedError(name, err.Error())
	}
	d := New(name, args...)

	if raw, ok := rec["priority"]; ok && raw != nil {
		p, err := recordInt(raw)
		if err != nil {
			return Descriptor{}, NewMalformedError(name, fmt.Sprintf("priority: %v", err))
		}
		d = d.WithPriority(p)
	}

	if err := d.Validate(); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

func recordArgs(raw any) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return strings.Fields(v), nil
	case []string:
		return slices.Clone(v), nil
	case []any:
		out := make([]string, 0, len(v))
		for i, item := range v {
			s, err := scalarString(item)
			if err != nil {
				return nil, fmt.Errorf("args[%d]: %w", i, err)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("args: unsupported type %T", raw)
	}
}

func scalarString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case bool:
		return fmt.Sprint(x), nil
	case int, int64, json.Number:
		return fmt.Sprint(x), nil
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) {
			return fmt.Sprintf("%.0f", x), nil
		}
		return fmt.Sprint(x), nil
	default:
		return "", fmt.Errorf("unsupported type %T", v)
	}
}

func recordInt(v any) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) || math.IsNaN(x) {
			return 0, fmt.Errorf("not an integer: %v", x)
		}
		return int(x), nil
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return 0, err
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

// Args is the result of ParseArgs: argument name to value.
type Args map[string]string

// Get returns the value for name, or "" if absent.
func (a Args) Get(name string) string {
	return a[name]
}

// Has reports whether name was set, by default or by the token list.
func (a Args) Has(name string) bool {
	_, ok := a[name]
	return ok
}

// Flag reports whether name is a boolean flag that was set.
func (a Args) Flag(name string) bool {
	return a[name] == "true"
}

// ParseArgs maps a flat token list to named arguments.
//
// A token starting with "-" names a switch; the next non-switch token is its
// value. A switch followed by another switch, or by nothing, is a boolean flag
// set to "true". Tokens not claimed by a switch are assigned to the names in
// order, left to right; extras beyond order are dropped. Every token after a
// bare "--" is positional, so paths starting with "-" can be passed. defaults
// seed the result before parsing.
func ParseArgs(args []string, order []string, defaults map[string]string) Args {
	result := make(Args, len(defaults)+len(args))
	for k, v := range defaults {
		result[k] = v
	}

	position := 0
	pending := ""
	positionalOnly := false
	for _, tok := range args {
		if !positionalOnly && tok == EndOfSwitches {
			positionalOnly = true
			if pending != "" {
				result[pending] = "true"
				pending = ""
			}
			continue
		}
		if !positionalOnly && isSwitch(tok) {
			if pending != "" {
				result[pending] = "true"
			}
			pending = strings.TrimPrefix(tok, switchMarker)
			continue
		}
		if pending != "" {
			result[pending] = tok
			pending = ""
			continue
		}
		if position < len(order) {
			result[order[position]] = tok
			position++
		}
	}
	if pending != "" {
		result[pending] = "true"
	}
	return result
}

func isSwitch(tok string) bool {
	return len(tok) > len(switchMarker) && strings.HasPrefix(tok, switchMarker)
}
