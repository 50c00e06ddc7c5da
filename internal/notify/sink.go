// Package notify delivers approved token signals to notification channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rewired-gh/rugoracle/internal/models"
)

// Sink delivers one approved signal. Delivery is fire-and-forget: callers log
// a returned error and move on.
type Sink interface {
	Notify(ctx context.Context, sig models.Signal) error
}

// FormatLiquidity renders a USD amount the way the signal API reports it,
// without trailing zeros ("25000", "15000.5"). Non-finite values are printed
// as-is since decimal cannot represent them.
func FormatLiquidity(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return decimal.NewFromFloat(v).String()
}

// FormatAge renders an age in hours with two decimals.
func FormatAge(hours float64) string {
	return fmt.Sprintf("%.2f", hours)
}

// AuditLabel returns the audit status, or N/A when none was reported.
func AuditLabel(s models.AuditStatus) string {
	if s == "" {
		return "N/A"
	}
	return string(s)
}

// TokenLabel returns the token name, or N/A when none was reported.
func TokenLabel(name string) string {
	if name == "" {
		return "N/A"
	}
	return name
}

// FormatText renders a signal as plain text.
func FormatText(sig models.Signal) string {
	var b strings.Builder
	b.WriteString("📈 Approved Trading Signal 📉\n\n")
	fmt.Fprintf(&b, "Token: %s\n", TokenLabel(sig.Record.Name))
	fmt.Fprintf(&b, "Liquidity: $%s\n", FormatLiquidity(sig.Record.Liquidity))
	fmt.Fprintf(&b, "Age: %s hours\n", FormatAge(sig.Assessment.AgeHours))
	fmt.Fprintf(&b, "Audit: %s\n", AuditLabel(sig.Record.Audit))
	fmt.Fprintf(&b, "Risk score: %d\n", sig.Assessment.Score)
	b.WriteString("Signal approved with low risk\n")
	return b.String()
}

// Console writes signals to a writer, stdout by default.
type Console struct {
	w io.Writer
}

func NewConsole(w io.Writer) *Console {
	if w == nil {
		w = os.Stdout
	}
	return &Console{w: w}
}

func (c *Console) Notify(_ context.Context, sig models.Signal) error {
	_, err := fmt.Fprintf(c.w, "Sending signal:\n%s\n", FormatText(sig))
	return err
}

// Multi fans a signal out to every sink and joins their errors.
type Multi []Sink

func (m Multi) Notify(ctx context.Context, sig models.Signal) error {
	var errs []error
	for _, s := range m {
		if err := s.Notify(ctx, sig); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
