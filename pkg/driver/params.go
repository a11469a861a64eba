package driver

import "github.com/umputun/litedrv/pkg/engine"

// marshalParams converts an ordered list of caller parameters to positional
// engine values, preserving order and length exactly. A nil input is the
// explicit "no parameters" marker and stays nil.
func marshalParams(args []any) []engine.Value {
	if args == nil {
		return nil
	}
	out := make([]engine.Value, len(args))
	for i, a := range args {
		out[i] = encodeValue(a)
	}
	return out
}
