package vessel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"B/M Tio Gracy", "tio gracy"},
		{"b/m tio gracy", "tio gracy"},
		{"BM Tio Gracy", "tio gracy"},
		{"B M  Tio   Gracy", "tio gracy"},
		{"b / m Tio Gracy", "tio gracy"},
		{"Barco Tio Gracy", "tio gracy"},
		{"  Tio Gracy  ", "tio gracy"},
		{"São João", "sao joao"},
		{"Comandante Sales", "comandante sales"},
		{"Bmw Express", "bmw express"},
		{"Barcoleta", "barcoleta"},
		{"", ""},
		{"B/M", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestSame(t *testing.T) {
	assert.True(t, Same("B/M Tio Gracy", "tio gracy"))
	assert.True(t, Same("BARCO SÃO JOÃO", "b/m sao joao"))
	assert.False(t, Same("B/M Tio Gracy", "Comandante Sales"))
	assert.False(t, Same("", ""))
	assert.False(t, Same("B/M", "Barco"))
}

func TestFold(t *testing.T) {
	assert.Equal(t, "maues - parintins", Fold("  Maués  -  Parintins "))
	assert.Equal(t, "acai", Fold("AÇAÍ"))
}

func TestExtract(t *testing.T) {
	got := Extract("B/M Tio Gracy", []string{"tio gracy", "Comandante Sales"}, "Barco Comandante Sales; Estrela do Mar,\n  ")
	assert.Equal(t, []string{"B/M Tio Gracy", "Comandante Sales", "Estrela do Mar"}, got)

	assert.Empty(t, Extract("", nil, ""))
}
