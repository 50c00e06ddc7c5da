// Package models defines the core domain entities: token records, risk
// assessments, candles and the rows persisted for each run.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// AuditStatus is the outcome of a third-party contract audit.
type AuditStatus string

const (
	AuditPositive AuditStatus = "positive"
	AuditNegative AuditStatus = "negative"
	AuditNone     AuditStatus = "none"
)

// Known reports whether s is one of the recognised audit outcomes.
func (s AuditStatus) Known() bool {
	switch s {
	case AuditPositive, AuditNegative, AuditNone:
		return true
	}
	return false
}

const (
	CommunityGood     = 0
	CommunityMediocre = 1
	CommunityBad      = 2
)

// TokenRecord is one token as reported by the signal API.
// It has no identity beyond Name and lives for a single evaluation pass.
type TokenRecord struct {
	Name          string      `json:"token_name"`
	Liquidity     float64     `json:"liquidity"`
	CreationTime  string      `json:"creation_time,omitempty"`
	Distribution  []float64   `json:"distribution"`
	Audit         AuditStatus `json:"audit"`
	OnChainAlerts bool        `json:"on_chain_alerts"`
	Community     int         `json:"community"`
}

// UnmarshalJSON decodes a record permissively: every field that is absent or
// of the wrong JSON type falls back to its default instead of failing the
// whole payload.
func (r *TokenRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("token record must be a JSON object: %w", err)
	}

	*r = TokenRecord{Audit: AuditNone}

	if v, ok := raw["token_name"]; ok {
		r.Name = decodeString(v)
	}
	if v, ok := raw["liquidity"]; ok {
		r.Liquidity = decodeNumber(v)
	}
	if v, ok := raw["creation_time"]; ok {
		r.CreationTime = decodeString(v)
	}
	if v, ok := raw["distribution"]; ok {
		r.Distribution = decodeNumbers(v)
	}
	if v, ok := raw["audit"]; ok {
		// Present but null or non-string is kept as an unrecognised status.
		r.Audit = AuditStatus(decodeString(v))
	}
	if v, ok := raw["on_chain_alerts"]; ok {
		var b bool
		if json.Unmarshal(v, &b) == nil {
			r.OnChainAlerts = b
		}
	}
	if v, ok := raw["community"]; ok {
		r.Community = int(decodeNumber(v))
	}
	return nil
}

// MaxConcentration returns the largest top-wallet share, or 0 for an empty distribution.
func (r *TokenRecord) MaxConcentration() float64 {
	var m float64
	for i, v := range r.Distribution {
		if i == 0 || v > m {
			m = v
		}
	}
	return m
}

// Validate checks record field constraints. Violations are reported to the
// caller for logging; scoring still accepts the record.
func (r *TokenRecord) Validate() error {
	if r.Name == "" {
		return errors.New("token name must not be empty")
	}
	if math.IsNaN(r.Liquidity) || math.IsInf(r.Liquidity, 0) {
		return errors.New("liquidity must be a finite number")
	}
	if r.Liquidity < 0 {
		return errors.New("liquidity must not be negative")
	}
	for _, v := range r.Distribution {
		if v < 0 || v > 1 {
			return fmt.Errorf("distribution entry %v must be between 0.0 and 1.0", v)
		}
	}
	if !r.Audit.Known() {
		return fmt.Errorf("unknown audit status %q", r.Audit)
	}
	if r.Community < CommunityGood || r.Community > CommunityBad {
		return errors.New("community score must be 0, 1 or 2")
	}
	return nil
}

func decodeString(v json.RawMessage) string {
	var s string
	if json.Unmarshal(v, &s) == nil {
		return s
	}
	return ""
}

// decodeNumber accepts JSON numbers and numeric strings. Non-finite values
// such as "NaN" or "Infinity" decode to 0.
func decodeNumber(v json.RawMessage) float64 {
	var f float64
	if json.Unmarshal(v, &f) == nil {
		return f
	}
	var s string
	if json.Unmarshal(v, &s) == nil {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err == nil && !math.IsNaN(parsed) && !math.IsInf(parsed, 0) {
			return parsed
		}
	}
	return 0
}

func decodeNumbers(v json.RawMessage) []float64 {
	var items []json.RawMessage
	if json.Unmarshal(v, &items) != nil {
		return nil
	}
	out := make([]float64, 0, len(items))
	for _, item := range items {
		if string(item) == "null" {
			continue
		}
		var f float64
		if json.Unmarshal(item, &f) == nil {
			out = append(out, f)
		}
	}
	return out
}
