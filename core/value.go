package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type ValueKind int

const (
	NullValue ValueKind = iota
	TextValue
	NumberValue
	BoolValue
)

func (kind ValueKind) String() string {
	switch kind {
	case NullValue:
		return "null"
	case TextValue:
		return "text"
	case NumberValue:
		return "number"
	case BoolValue:
		return "boolean"
	default:
		return "unknown"
	}
}

// Value is a scalar cell value: text, number, boolean or null.
type Value struct {
	Kind   ValueKind
	Text   string
	Number float64
	Bool   bool
}

func Null() Value {
	return Value{Kind: NullValue}
}

func Text(s string) Value {
	return Value{Kind: TextValue, Text: s}
}

func Number(f float64) Value {
	return Value{Kind: NumberValue, Number: f}
}

func Int(i int64) Value {
	return Value{Kind: NumberValue, Number: float64(i)}
}

func Bool(b bool) Value {
	return Value{Kind: BoolValue, Bool: b}
}

func (v Value) IsNull() bool {
	return v.Kind == NullValue
}

// String renders the value the way it is displayed in result tables.
func (v Value) String() string {
	switch v.Kind {
	case TextValue:
		return v.Text
	case NumberValue:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case BoolValue:
		if v.Bool {
			return "true"
		}
		return "false"
	default:
		return "NULL"
	}
}

// SQL renders the value as a SQL literal.
func (v Value) SQL() string {
	switch v.Kind {
	case TextValue:
		return "'" + strings.ReplaceAll(v.Text, "'", "''") + "'"
	case NumberValue, BoolValue:
		return strings.ToUpper(v.String())
	default:
		return "NULL"
	}
}

func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case TextValue:
		return v.Text == other.Text
	case NumberValue:
		return v.Number == other.Number
	case BoolValue:
		return v.Bool == other.Bool
	default:
		return true
	}
}

// Compare orders two non-null values. Numbers compare numerically, booleans
// false < true, everything else by text. Mixed number/text pairs fall back to
// numeric comparison when the text parses as a number.
func Compare(a, b Value) int {
	if a.Kind == NumberValue || b.Kind == NumberValue {
		aNum, aOk := a.AsNumber()
		bNum, bOk := b.AsNumber()
		if aOk && bOk {
			switch {
			case aNum < bNum:
				return -1
			case aNum > bNum:
				return 1
			default:
				return 0
			}
		}
	}
	if a.Kind == BoolValue && b.Kind == BoolValue {
		switch {
		case a.Bool == b.Bool:
			return 0
		case !a.Bool:
			return -1
		default:
			return 1
		}
	}
	return strings.Compare(a.String(), b.String())
}

func (v Value) AsNumber() (float64, bool) {
	switch v.Kind {
	case NumberValue:
		return v.Number, true
	case TextValue:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Text), 64)
		return f, err == nil
	case BoolValue:
		if v.Bool {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case TextValue:
		return json.Marshal(v.Text)
	case NumberValue:
		return json.Marshal(v.Number)
	case BoolValue:
		return json.Marshal(v.Bool)
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case nil:
		*v = Null()
	case string:
		*v = Text(t)
	case float64:
		*v = Number(t)
	case bool:
		*v = Bool(t)
	default:
		return fmt.Errorf("unsupported cell value %s", string(data))
	}
	return nil
}

// Row maps column names to values. Column order is owned by the table.
type Row map[string]Value

func (row Row) Clone() Row {
	clone := make(Row, len(row))
	for k, v := range row {
		clone[k] = v
	}
	return clone
}

// Get returns the value of column, or NULL when the row has no such cell.
func (row Row) Get(column string) Value {
	if v, ok := row[column]; ok {
		return v
	}
	return Null()
}
