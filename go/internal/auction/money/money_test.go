package money

import (
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

func TestHasValidScale(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"100", true},
		{"100.5", true},
		{"100.50", true},
		{"100.500", true},
		{"100.505", false},
		{"0.001", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			check.Equal(t, tt.want, HasValidScale(decimal.RequireFromString(tt.in)))
		})
	}
}

func TestParse(t *testing.T) {
	d, err := Parse(" 120.50 ")
	assert.NoError(t, err)
	check.True(t, d.Equal(decimal.RequireFromString("120.5")))
	check.Equal(t, "120.50", Format(d))

	_, err = Parse("")
	check.Error(t, err)

	_, err = Parse("12,50")
	check.Error(t, err)
}
