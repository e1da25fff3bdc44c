package export

import (
	"fmt"
	"math"
	"strings"
)

var (
	unitWords = []string{"", "uno", "dos", "tres", "cuatro", "cinco", "seis", "siete", "ocho", "nueve",
		"diez", "once", "doce", "trece", "catorce", "quince", "dieciséis", "diecisiete", "dieciocho", "diecinueve",
		"veinte", "veintiuno", "veintidós", "veintitrés", "veinticuatro", "veinticinco", "veintiséis", "veintisiete", "veintiocho", "veintinueve"}
	tensWords     = []string{"", "", "", "treinta", "cuarenta", "cincuenta", "sesenta", "setenta", "ochenta", "noventa"}
	hundredsWords = []string{"", "ciento", "doscientos", "trescientos", "cuatrocientos", "quinientos", "seiscientos", "setecientos", "ochocientos", "novecientos"}
)

// AmountInWords renders a currency amount the way Bolivian receipts print it,
// e.g. 150.50 -> "CIENTO CINCUENTA 50/100 BOLIVIANOS".
func AmountInWords(amount float64) string {
	if amount < 0 {
		amount = -amount
	}
	cents := int64(math.Round(amount * 100))
	integer := cents / 100
	fraction := cents % 100

	words := IntegerInWords(integer)
	return strings.ToUpper(fmt.Sprintf("%s %02d/100 bolivianos", words, fraction))
}

// IntegerInWords spells a non-negative integer below one trillion in Spanish.
func IntegerInWords(n int64) string {
	if n == 0 {
		return "cero"
	}
	if n < 0 {
		return "menos " + IntegerInWords(-n)
	}

	var parts []string
	millions := n / 1_000_000
	rest := n % 1_000_000

	switch {
	case millions == 1:
		parts = append(parts, "un millón")
	case millions > 1:
		parts = append(parts, thousands(millions, true)+" millones")
	}
	if rest > 0 {
		parts = append(parts, thousands(rest, false))
	}
	return strings.Join(parts, " ")
}

// thousands spells 1..999999.
func thousands(n int64, beforeNoun bool) string {
	high := n / 1000
	low := n % 1000

	var parts []string
	switch {
	case high == 1:
		parts = append(parts, "mil")
	case high > 1:
		parts = append(parts, below1000(high, true)+" mil")
	}
	if low > 0 {
		parts = append(parts, below1000(low, beforeNoun))
	}
	return strings.Join(parts, " ")
}

// below1000 spells 1..999. Before a noun "uno" shortens to "un" and
// "veintiuno" to "veintiún".
func below1000(n int64, beforeNoun bool) string {
	if n == 100 {
		return "cien"
	}

	var parts []string
	if h := n / 100; h > 0 {
		parts = append(parts, hundredsWords[h])
	}

	r := n % 100
	switch {
	case r == 0:
	case r < 30:
		w := unitWords[r]
		if beforeNoun {
			switch r {
			case 1:
				w = "un"
			case 21:
				w = "veintiún"
			}
		}
		parts = append(parts, w)
	default:
		w := tensWords[r/10]
		if u := r % 10; u > 0 {
			unit := unitWords[u]
			if beforeNoun && u == 1 {
				unit = "un"
			}
			w += " y " + unit
		}
		parts = append(parts, w)
	}
	return strings.Join(parts, " ")
}
