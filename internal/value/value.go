// Package value holds the loose scalar checks shared by the field mapper and
// the SOQL builder. Store values arrive as strings, numbers or booleans and
// are judged the way the WooCommerce side stores them.
package value

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// IsNumeric accepts Go numbers and strings holding a decimal number,
// optionally with an exponent and leading whitespace.
func IsNumeric(v interface{}) bool {
	switch t := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	case decimal.Decimal:
		return true
	case string:
		s := strings.TrimLeft(t, " \t\n\r\v\f")
		if s == "" || strings.ContainsAny(s, "_xXbBoO") {
			return false
		}
		_, err := decimal.NewFromString(s)
		return err == nil
	default:
		return false
	}
}

// IsEmpty mirrors the store's notion of an unset value: nil, "", "0",
// false and numeric zero.
func IsEmpty(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == "" || t == "0"
	case bool:
		return !t
	case int:
		return t == 0
	case int64:
		return t == 0
	case float64:
		return t == 0
	case decimal.Decimal:
		return t.IsZero()
	default:
		return false
	}
}

// IsBoolean reports Go booleans and the literal strings "true" and "false".
func IsBoolean(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return true
	case string:
		return t == "true" || t == "false"
	default:
		return false
	}
}

// String formats v for concatenation and query building.
func String(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "1"
		}
		return ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case decimal.Decimal:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
