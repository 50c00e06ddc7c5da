// Package scorer computes the additive rug-pull risk score of a token record.
package scorer

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rewired-gh/rugoracle/internal/logger"
	"github.com/rewired-gh/rugoracle/internal/models"
)

// Penalty points per factor.
const (
	PenaltyNoCreationTime = 5
	PenaltyYoung          = 5
	PenaltyRecent         = 3
	PenaltyLowLiquidity   = 5
	PenaltyThinLiquidity  = 2
	PenaltyHighConc       = 5
	PenaltyMediumConc     = 3
	PenaltySuspiciousName = 3
	PenaltyAudit          = 5
	PenaltyOnChainAlert   = 5
	PenaltyPerCommunity   = 2
)

// Config holds the heuristic thresholds. A scorer copies it on construction,
// so later changes by the caller have no effect.
type Config struct {
	LiquidityThreshold  float64
	MinTokenAge         time.Duration
	SuspiciousKeywords  []string
	HighConcentration   float64
	MediumConcentration float64
	ApprovalThreshold   int
}

// DefaultConfig returns the stock heuristic thresholds.
func DefaultConfig() Config {
	return Config{
		LiquidityThreshold:  10000,
		MinTokenAge:         24 * time.Hour,
		SuspiciousKeywords:  []string{"scam", "fake", "new", "pump"},
		HighConcentration:   0.30,
		MediumConcentration: 0.15,
		ApprovalThreshold:   10,
	}
}

// Scorer assigns risk scores to token records. It is safe for concurrent use.
type Scorer struct {
	config   Config
	keywords []string
	now      func() time.Time
}

// New creates a scorer from a copy of config.
func New(config Config) *Scorer {
	keywords := make([]string, 0, len(config.SuspiciousKeywords))
	for _, k := range config.SuspiciousKeywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			keywords = append(keywords, k)
		}
	}
	config.SuspiciousKeywords = append([]string(nil), keywords...)
	return &Scorer{
		config:   config,
		keywords: keywords,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock returns a copy of the scorer that reads the current time from now.
func (s *Scorer) WithClock(now func() time.Time) *Scorer {
	c := *s
	c.now = now
	return &c
}

// Config returns a copy of the scorer's configuration.
func (s *Scorer) Config() Config {
	c := s.config
	c.SuspiciousKeywords = append([]string(nil), s.config.SuspiciousKeywords...)
	return c
}

// Score returns the risk score of rec. It never fails.
func (s *Scorer) Score(rec models.TokenRecord) int {
	a := s.Assess(rec)
	return a.Score
}

// Assess scores rec and records each contributing factor. Approved is set
// against the configured approval threshold.
func (s *Scorer) Assess(rec models.TokenRecord) models.Assessment {
	a := models.Assessment{Token: rec.Name}
	add := func(f models.Factor, points int, reason string) {
		if points == 0 {
			return
		}
		a.Penalties = append(a.Penalties, models.Penalty{Factor: f, Points: points, Reason: reason})
		a.Score += points
	}

	a.AgeHours, a.AgeStatus = AgeHours(rec.CreationTime, s.now())
	minHours := s.config.MinTokenAge.Hours()
	switch {
	case a.AgeStatus == models.AgeMissing:
		add(models.FactorAge, PenaltyNoCreationTime, "no creation time")
	case a.AgeHours < minHours:
		add(models.FactorAge, PenaltyYoung, fmt.Sprintf("age %.2fh below %.0fh", a.AgeHours, minHours))
	case a.AgeHours < 2*minHours:
		add(models.FactorAge, PenaltyRecent, fmt.Sprintf("age %.2fh below %.0fh", a.AgeHours, 2*minHours))
	}

	liquidity := rec.Liquidity
	if math.IsNaN(liquidity) || math.IsInf(liquidity, 0) {
		liquidity = 0
	}
	switch {
	case liquidity < s.config.LiquidityThreshold:
		add(models.FactorLiquidity, PenaltyLowLiquidity, fmt.Sprintf("liquidity below $%.0f", s.config.LiquidityThreshold))
	case liquidity < 2*s.config.LiquidityThreshold:
		add(models.FactorLiquidity, PenaltyThinLiquidity, fmt.Sprintf("liquidity below $%.0f", 2*s.config.LiquidityThreshold))
	}

	if len(rec.Distribution) > 0 {
		top := rec.MaxConcentration()
		switch {
		case top > s.config.HighConcentration:
			add(models.FactorConcentration, PenaltyHighConc, fmt.Sprintf("top wallet holds %.0f%%", top*100))
		case top > s.config.MediumConcentration:
			add(models.FactorConcentration, PenaltyMediumConc, fmt.Sprintf("top wallet holds %.0f%%", top*100))
		}
	}

	if kw, ok := s.suspiciousKeyword(rec.Name); ok {
		add(models.FactorNaming, PenaltySuspiciousName, fmt.Sprintf("name contains %q", kw))
	}

	if rec.Audit == models.AuditNegative || rec.Audit == models.AuditNone {
		add(models.FactorAudit, PenaltyAudit, "audit "+string(rec.Audit))
	}

	if rec.OnChainAlerts {
		add(models.FactorOnChain, PenaltyOnChainAlert, "on-chain alert raised")
	}

	community := rec.Community
	if community < models.CommunityGood {
		community = models.CommunityGood
	}
	add(models.FactorCommunity, community*PenaltyPerCommunity, fmt.Sprintf("community rating %d", community))

	a.Approved = Approved(a.Score, s.config.ApprovalThreshold)
	return a
}

func (s *Scorer) suspiciousKeyword(name string) (string, bool) {
	lower := strings.ToLower(name)
	for _, kw := range s.keywords {
		if strings.Contains(lower, kw) {
			return kw, true
		}
	}
	return "", false
}

// Approved reports whether score passes the approval threshold.
func Approved(score, threshold int) bool {
	return score <= threshold
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseCreationTime parses an ISO-8601 timestamp. Values without an offset
// are taken as UTC.
func ParseCreationTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", value)
}

// AgeHours returns the age of a token in fractional hours at now.
// An unparsable timestamp yields age 0 with AgeUnparsable so it scores like a
// brand-new token while remaining distinguishable.
func AgeHours(creation string, now time.Time) (float64, models.AgeStatus) {
	if strings.TrimSpace(creation) == "" {
		return 0, models.AgeMissing
	}
	created, err := ParseCreationTime(creation)
	if err != nil {
		logger.Warn("Failed to compute token age: %v", err)
		return 0, models.AgeUnparsable
	}
	return now.Sub(created).Hours(), models.AgeKnown
}
