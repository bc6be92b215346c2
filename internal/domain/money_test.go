package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestNormalizeDual(t *testing.T) {
	t.Parallel()

	rate := decimal.NewFromInt(90000)

	t.Run("derives lbp from usd", func(t *testing.T) {
		usd, lbp, derived := NormalizeDual(decimal.NewFromInt(20), decimal.Zero, rate)
		if !usd.Equal(decimal.RequireFromString("20")) {
			t.Fatalf("usd = %s", usd)
		}
		if !lbp.Equal(decimal.NewFromInt(1800000)) {
			t.Fatalf("lbp = %s, want 1800000", lbp)
		}
		if derived != DerivedLBP {
			t.Fatalf("derived = %q, want lbp", derived)
		}
	})

	t.Run("derives usd from lbp", func(t *testing.T) {
		usd, lbp, derived := NormalizeDual(decimal.Zero, decimal.NewFromInt(1800000), rate)
		if !usd.Equal(decimal.NewFromInt(20)) {
			t.Fatalf("usd = %s, want 20", usd)
		}
		if !lbp.Equal(decimal.NewFromInt(1800000)) {
			t.Fatalf("lbp = %s", lbp)
		}
		if derived != DerivedUSD {
			t.Fatalf("derived = %q, want usd", derived)
		}
	})

	t.Run("both sides present are only quantized", func(t *testing.T) {
		usd, lbp, derived := NormalizeDual(
			decimal.RequireFromString("10.123456"),
			decimal.RequireFromString("911111.119"),
			rate,
		)
		if !usd.Equal(decimal.RequireFromString("10.1235")) {
			t.Fatalf("usd = %s, want 10.1235", usd)
		}
		if !lbp.Equal(decimal.RequireFromString("911111.12")) {
			t.Fatalf("lbp = %s, want 911111.12", lbp)
		}
		if derived != DerivedNone {
			t.Fatalf("derived = %q, want none", derived)
		}
	})

	t.Run("zero rate leaves both sides as sent", func(t *testing.T) {
		usd, lbp, derived := NormalizeDual(decimal.NewFromInt(5), decimal.Zero, decimal.Zero)
		if !usd.Equal(decimal.NewFromInt(5)) || !lbp.IsZero() {
			t.Fatalf("usd=%s lbp=%s", usd, lbp)
		}
		if derived != DerivedNone {
			t.Fatalf("derived = %q, want none", derived)
		}
	})
}

func TestQuantizeHalfUp(t *testing.T) {
	t.Parallel()

	if got := QuantizeUSD(decimal.RequireFromString("1.00005")); !got.Equal(decimal.RequireFromString("1.0001")) {
		t.Fatalf("QuantizeUSD = %s, want 1.0001", got)
	}
	if got := QuantizeLBP(decimal.RequireFromString("1000.005")); !got.Equal(decimal.RequireFromString("1000.01")) {
		t.Fatalf("QuantizeLBP = %s, want 1000.01", got)
	}
}

func TestWithinRoundingTolerance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		usd  string
		lbp  string
		want bool
	}{
		{"exact zero", "0", "0", true},
		{"at usd limit", "0.05", "0", true},
		{"at lbp limit", "0", "5000", true},
		{"negative within", "-0.03", "-4000", true},
		{"usd over limit", "0.051", "0", false},
		{"lbp over limit", "0", "5000.01", false},
		{"one side over", "0.01", "9000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WithinRoundingTolerance(
				decimal.RequireFromString(tt.usd),
				decimal.RequireFromString(tt.lbp),
			)
			if got != tt.want {
				t.Fatalf("WithinRoundingTolerance(%s, %s) = %v, want %v", tt.usd, tt.lbp, got, tt.want)
			}
		})
	}
}
