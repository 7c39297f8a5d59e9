package value

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestIsNumeric(t *testing.T) {
	tests := []struct {
		in   interface{}
		want bool
	}{
		{12, true},
		{12.5, true},
		{"12", true},
		{"-12.50", true},
		{" 1e3", true},
		{decimal.NewFromInt(3), true},
		{"0x1A", false},
		{"12abc", false},
		{"", false},
		{true, false},
		{nil, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsNumeric(tt.in), "IsNumeric(%#v)", tt.in)
	}
}

func TestIsEmpty(t *testing.T) {
	for _, v := range []interface{}{nil, "", "0", false, 0, int64(0), 0.0} {
		assert.True(t, IsEmpty(v), "IsEmpty(%#v)", v)
	}
	for _, v := range []interface{}{"a", "0.0", true, 1, " "} {
		assert.False(t, IsEmpty(v), "IsEmpty(%#v)", v)
	}
}

func TestString(t *testing.T) {
	assert.Equal(t, "1", String(true))
	assert.Equal(t, "", String(false))
	assert.Equal(t, "19.99", String(19.99))
	assert.Equal(t, "7", String(7))
	assert.Equal(t, "x", String("x"))
}
