package notify

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/rewired-gh/rugoracle/internal/models"
)

func testSignal() models.Signal {
	return models.Signal{
		Record: models.TokenRecord{
			Name:      "LegitToken",
			Liquidity: 25000,
			Audit:     models.AuditPositive,
		},
		Assessment: models.Assessment{Token: "LegitToken", AgeHours: 72.004, Score: 0},
	}
}

func TestFormatLiquidity(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{25000, "25000"},
		{15000.5, "15000.5"},
		{0, "0"},
		{1234.125, "1234.125"},
		{math.Inf(1), "+Inf"},
		{math.NaN(), "NaN"},
	}
	for _, tt := range tests {
		if got := FormatLiquidity(tt.in); got != tt.want {
			t.Errorf("FormatLiquidity(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatText(t *testing.T) {
	msg := FormatText(testSignal())
	for _, want := range []string{
		"Approved Trading Signal",
		"Token: LegitToken",
		"Liquidity: $25000",
		"Age: 72.00 hours",
		"Audit: positive",
		"Signal approved with low risk",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestFormatText_MissingFields(t *testing.T) {
	msg := FormatText(models.Signal{})
	if !strings.Contains(msg, "Token: N/A") || !strings.Contains(msg, "Audit: N/A") {
		t.Errorf("expected N/A placeholders:\n%s", msg)
	}
	if !strings.Contains(msg, "Age: 0.00 hours") {
		t.Errorf("unknown age should render as 0.00:\n%s", msg)
	}
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	if err := NewConsole(&buf).Notify(context.Background(), testSignal()); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if !strings.Contains(buf.String(), "Token: LegitToken") {
		t.Errorf("console output = %q", buf.String())
	}
}

type failingSink struct{ err error }

func (f failingSink) Notify(context.Context, models.Signal) error { return f.err }

func TestMulti(t *testing.T) {
	var buf bytes.Buffer
	boom := errors.New("boom")
	m := Multi{failingSink{err: boom}, NewConsole(&buf)}

	err := m.Notify(context.Background(), testSignal())
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if buf.Len() == 0 {
		t.Error("later sinks must still receive the signal")
	}

	if err := (Multi{NewConsole(&buf)}).Notify(context.Background(), testSignal()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
