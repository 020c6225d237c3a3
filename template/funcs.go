package template

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Builtins returns the default function table available to every mapping.
// Hosts extend it via Options.Funcs or Evaluator.RegisterFunc.
func Builtins() FuncMap {
	return FuncMap{
		"timestamp_utc": timestampUTC,
		"uuid":          newUUID,
		"merge":         mergeMaps,
		"len":           lengthOf,
		"upper":         upperFn,
		"lower":         lowerFn,
		"title":         titleFn,
		"join":          joinFn,
	}
}

func timestampUTC(args ...any) (any, error) {
	if len(args) != 0 {
		return nil, fmt.Errorf("expects no arguments")
	}
	return time.Now().UTC().Format(time.RFC3339Nano), nil
}

func newUUID(args ...any) (any, error) {
	if len(args) != 0 {
		return nil, fmt.Errorf("expects no arguments")
	}
	return uuid.NewString(), nil
}

// mergeMaps combines two or more mappings left to right; later entries
// replace earlier ones. Nil arguments are skipped so optional maps merge
// cleanly.
func mergeMaps(args ...any) (any, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("expects at least two arguments")
	}
	out := map[string]any{}
	for i, a := range args {
		if a == nil {
			continue
		}
		m, ok := a.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("argument %d is %T, not a mapping", i+1, a)
		}
		for k, v := range m {
			out[k] = v
		}
	}
	return out, nil
}

func lengthOf(args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("expects one argument")
	}
	switch t := args[0].(type) {
	case nil:
		return 0, nil
	case string:
		return len(t), nil
	case []any:
		return len(t), nil
	case map[string]any:
		return len(t), nil
	default:
		return nil, fmt.Errorf("cannot take length of %T", args[0])
	}
}

func upperFn(args ...any) (any, error) {
	s, err := oneString(args)
	if err != nil {
		return nil, err
	}
	return strings.ToUpper(s), nil
}

func lowerFn(args ...any) (any, error) {
	s, err := oneString(args)
	if err != nil {
		return nil, err
	}
	return strings.ToLower(s), nil
}

func titleFn(args ...any) (any, error) {
	s, err := oneString(args)
	if err != nil {
		return nil, err
	}
	if len(s) == 0 {
		return s, nil
	}
	return strings.ToUpper(string(s[0])) + strings.ToLower(s[1:]), nil
}

func joinFn(args ...any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("expects separator and sequence")
	}
	sep, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("separator is %T, not a string", args[0])
	}
	items, ok := args[1].([]any)
	if !ok {
		return nil, fmt.Errorf("second argument is %T, not a sequence", args[1])
	}
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = stringify(item)
	}
	return strings.Join(parts, sep), nil
}

func oneString(args []any) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("expects one argument")
	}
	s, ok := args[0].(string)
	if !ok {
		return "", fmt.Errorf("argument is %T, not a string", args[0])
	}
	return s, nil
}
