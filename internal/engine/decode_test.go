package engine

import (
	"math"
	"testing"
)

func TestDecodeCell(t *testing.T) {
	tests := []struct {
		name         string
		cell         string
		invalidValue string
		decimalSep   byte
		want         float64
		wantNaN      bool
	}{
		{name: "plain integer", cell: "5", decimalSep: '.', want: 5},
		{name: "plain float", cell: "1.25", decimalSep: '.', want: 1.25},
		{name: "scientific notation", cell: "2e9", decimalSep: '.', want: 2e9},
		{name: "negative", cell: "-3.5", decimalSep: '.', want: -3.5},
		{name: "surrounding whitespace", cell: "  7.5 ", decimalSep: '.', want: 7.5},
		{name: "empty cell", cell: "", decimalSep: '.', wantNaN: true},
		{name: "garbage", cell: "abc", decimalSep: '.', wantNaN: true},
		{name: "quoted numeric is garbage", cell: `"5"`, decimalSep: '.', wantNaN: true},
		{name: "decimal comma", cell: "3,14", decimalSep: ',', want: 3.14},
		{name: "dot rejected under decimal comma", cell: "3.14", decimalSep: ',', wantNaN: true},
		{name: "double comma is garbage", cell: "1,2,3", decimalSep: ',', wantNaN: true},
		{
			name: "invalid token beats numeric parse", cell: "-99", invalidValue: "-99",
			decimalSep: '.', wantNaN: true,
		},
		{
			name: "invalid token comparison is exact", cell: "-99.0", invalidValue: "-99",
			decimalSep: '.', want: -99,
		},
		{
			name: "textual invalid token", cell: "n/a", invalidValue: "n/a",
			decimalSep: '.', wantNaN: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeCell(tt.cell, tt.invalidValue, tt.decimalSep)
			if tt.wantNaN {
				if !math.IsNaN(got) {
					t.Errorf("got %v, want NaN", got)
				}
				return
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
