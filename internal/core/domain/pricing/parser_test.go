package pricing

import (
	"errors"
	"testing"
)

func TestParsePriceFormats(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want float64
	}{
		{"dollar", "$99.99", 99.99},
		{"euro decimal comma", "€89,99", 89.99},
		{"us thousands", "1,234.56", 1234.56},
		{"european thousands", "1.234,56", 1234.56},
		{"us thousands no decimals", "$1,234", 1234},
		{"suffix currency", "99.99 USD", 99.99},
		{"european millions", "1.234.567,89 €", 1234567.89},
		{"us millions", "1,234,567.89", 1234567.89},
		{"comma one digit is thousands", "12,5", 125},
		{"comma three digits is thousands", "12,500", 12500},
		{"small decimal comma", "0,99", 0.99},
		{"spaces and symbol", " 1 299,00 ₽ ", 1299},
		{"plain integer", "42", 42},
		{"zero", "0.00", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParsePrice(tt.in)
			if !ok {
				t.Fatalf("ParsePrice(%q) failed", tt.in)
			}
			if got != tt.want {
				t.Fatalf("ParsePrice(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParsePriceSeparatorConventionsAgree(t *testing.T) {
	pairs := [][2]string{
		{"1,234.56", "1.234,56"},
		{"$12,345.00", "12.345,00 €"},
		{"9.99", "9,99"},
	}
	for _, p := range pairs {
		us, ok1 := ParsePrice(p[0])
		eu, ok2 := ParsePrice(p[1])
		if !ok1 || !ok2 {
			t.Fatalf("parse failed for %v", p)
		}
		if us != eu {
			t.Fatalf("%q = %v but %q = %v", p[0], us, p[1], eu)
		}
	}
}

func TestParsePriceAbsent(t *testing.T) {
	for _, in := range []string{"", "   ", "N/A", "Out of stock", ".", ",", "1.2.3"} {
		got, ok := ParsePrice(in)
		if ok {
			t.Fatalf("ParsePrice(%q) = %v, expected absent", in, got)
		}
		if got != 0 {
			t.Fatalf("absent price must be zero value, got %v", got)
		}
	}
}

func TestParseReturnsTypedError(t *testing.T) {
	_, err := Parse("abc")
	if !errors.Is(err, ErrUnparsable) {
		t.Fatalf("expected ErrUnparsable, got %v", err)
	}
}
