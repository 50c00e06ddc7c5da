package models

import "time"

// AgeStatus tells how a token's age was derived.
type AgeStatus string

const (
	AgeKnown      AgeStatus = "known"
	AgeMissing    AgeStatus = "missing"
	AgeUnparsable AgeStatus = "unparsable"
)

// Factor names one independent risk check.
type Factor string

const (
	FactorAge           Factor = "age"
	FactorLiquidity     Factor = "liquidity"
	FactorConcentration Factor = "concentration"
	FactorNaming        Factor = "naming"
	FactorAudit         Factor = "audit"
	FactorOnChain       Factor = "on_chain"
	FactorCommunity     Factor = "community"
)

// Penalty is a single non-zero contribution to a risk score.
type Penalty struct {
	Factor Factor
	Points int
	Reason string
}

// Assessment is the scored view of one TokenRecord.
type Assessment struct {
	Token     string
	Score     int
	AgeHours  float64
	AgeStatus AgeStatus
	Penalties []Penalty
	Approved  bool
}

// Points returns the total contributed by factor f.
func (a *Assessment) Points(f Factor) int {
	var n int
	for _, p := range a.Penalties {
		if p.Factor == f {
			n += p.Points
		}
	}
	return n
}

// Signal is an approved token handed to a notification sink.
type Signal struct {
	Record     TokenRecord
	Assessment Assessment
}

// Evaluation is the persisted outcome of scoring one record in a filter run.
type Evaluation struct {
	ID          string
	RunID       string
	Token       string
	Score       int
	Approved    bool
	Notified    bool
	AgeStatus   AgeStatus
	Fallback    bool
	EvaluatedAt time.Time
}
