package engine

import "fmt"

// ValueType enumerates the engine-native value kinds.
type ValueType int

// engine-native value kinds, matching the storage classes of the sqlite family
const (
	TypeNull ValueType = iota
	TypeInteger
	TypeReal
	TypeText
	TypeBlob
)

// Value is the engine-native representation of a single cell or bound
// parameter. Exactly one of the payload fields is meaningful, selected by Type.
type Value struct {
	Type ValueType
	Int  int64
	Real float64
	Text string
	Blob []byte
}

// Null makes a null value.
func Null() Value { return Value{Type: TypeNull} }

// Int makes an integer value.
func Int(v int64) Value { return Value{Type: TypeInteger, Int: v} }

// Real makes a floating point value.
func Real(v float64) Value { return Value{Type: TypeReal, Real: v} }

// Text makes a text value.
func Text(s string) Value { return Value{Type: TypeText, Text: s} }

// Blob makes a blob value.
func Blob(b []byte) Value { return Value{Type: TypeBlob, Blob: b} }

func (v Value) String() string {
	switch v.Type {
	case TypeNull:
		return "NULL"
	case TypeInteger:
		return fmt.Sprintf("%d", v.Int)
	case TypeReal:
		return fmt.Sprintf("%g", v.Real)
	case TypeText:
		return v.Text
	case TypeBlob:
		return fmt.Sprintf("x'%x'", v.Blob)
	default:
		return fmt.Sprintf("unknown(%d)", int(v.Type))
	}
}
