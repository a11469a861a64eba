package driver

import (
	"log"

	"github.com/umputun/litedrv/pkg/engine"
)

// decodeValue converts an engine-native value to its host representation:
// null to nil, integer to int64, real to float64, text to string, blob to
// []byte.
func decodeValue(v engine.Value) any {
	switch v.Type {
	case engine.TypeInteger:
		return v.Int
	case engine.TypeReal:
		return v.Real
	case engine.TypeText:
		return v.Text
	case engine.TypeBlob:
		return v.Blob
	default:
		return nil
	}
}

// encodeValue converts a host parameter to an engine value, trying in order:
// nil, integer, string, float, blob. A value matching none of these is bound
// as null; that permissive fallback is legacy-compatible behavior, logged so
// caller bugs stay observable.
func encodeValue(v any) engine.Value {
	switch t := v.(type) {
	case nil:
		return engine.Null()
	case int64:
		return engine.Int(t)
	case int:
		return engine.Int(int64(t))
	case int32:
		return engine.Int(int64(t))
	case int16:
		return engine.Int(int64(t))
	case int8:
		return engine.Int(int64(t))
	case uint:
		return engine.Int(int64(t))
	case uint32:
		return engine.Int(int64(t))
	case uint16:
		return engine.Int(int64(t))
	case uint8:
		return engine.Int(int64(t))
	case uint64:
		return engine.Int(int64(t))
	case bool:
		if t {
			return engine.Int(1)
		}
		return engine.Int(0)
	case string:
		return engine.Text(t)
	case float64:
		return engine.Real(t)
	case float32:
		return engine.Real(float64(t))
	case []byte:
		return engine.Blob(t)
	case engine.Value:
		return t
	default:
		log.Printf("[DEBUG] parameter of type %T has no engine representation, bound as NULL", v)
		return engine.Null()
	}
}

func decodeRow(row []engine.Value) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = decodeValue(v)
	}
	return out
}
