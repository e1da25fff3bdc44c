package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripDiacritics(t *testing.T) {
	assert.Equal(t, "Pena Nuflo Jose", StripDiacritics("Peña Ñuflo José"))
	assert.Equal(t, "Muller", StripDiacritics("Müller"))
}

func TestUsernameBase(t *testing.T) {
	cases := map[[2]string]string{
		{"José Luis", "Peña"}:     "josepena",
		{"María", "Ñuflo Rojas"}:  "marianuflo",
		{" Ana ", "D'Angelo"}:     "anadangelo",
		{"", ""}:                  "usuario",
		{"123", "456"}:            "usuario",
		{"Zoë", "O'Brien-Quispe"}: "zoeobrienquispe",
	}
	for in, want := range cases {
		assert.Equal(t, want, UsernameBase(in[0], in[1]), "%v", in)
	}
}

func TestRandomPassword(t *testing.T) {
	p, err := RandomPassword(4)
	require.NoError(t, err)
	assert.Len(t, p, 8)

	q, err := RandomPassword(12)
	require.NoError(t, err)
	assert.Len(t, q, 12)
	assert.NotEqual(t, p, q)
}

func TestFullName(t *testing.T) {
	assert.Equal(t, "Ana Quispe Mamani", FullName("Ana", " Quispe ", "", "Mamani"))
}
