package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAmountInWords(t *testing.T) {
	cases := []struct {
		amount float64
		want   string
	}{
		{150.50, "CIENTO CINCUENTA 50/100 BOLIVIANOS"},
		{100, "CIEN 00/100 BOLIVIANOS"},
		{0, "CERO 00/100 BOLIVIANOS"},
		{1, "UNO 00/100 BOLIVIANOS"},
		{21.05, "VEINTIUNO 05/100 BOLIVIANOS"},
		{1000, "MIL 00/100 BOLIVIANOS"},
		{1250.99, "MIL DOSCIENTOS CINCUENTA 99/100 BOLIVIANOS"},
		{21000, "VEINTIÚN MIL 00/100 BOLIVIANOS"},
		{31500, "TREINTA Y UN MIL QUINIENTOS 00/100 BOLIVIANOS"},
		{1000000, "UN MILLÓN 00/100 BOLIVIANOS"},
		{2500000, "DOS MILLONES QUINIENTOS MIL 00/100 BOLIVIANOS"},
		{0.1, "CERO 10/100 BOLIVIANOS"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, AmountInWords(tc.amount), "amount %.2f", tc.amount)
	}
}

func TestIntegerInWords(t *testing.T) {
	assert.Equal(t, "setecientos setenta y siete", IntegerInWords(777))
	assert.Equal(t, "dieciséis", IntegerInWords(16))
	assert.Equal(t, "ciento uno", IntegerInWords(101))
	assert.Equal(t, "veintiún millones", IntegerInWords(21_000_000))
}
