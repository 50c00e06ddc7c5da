package source

import (
	"time"

	"github.com/rewired-gh/rugoracle/internal/models"
)

const creationLayout = "2006-01-02T15:04:05.999999"

// SampleRecords returns the built-in demo data: one low-, one medium- and one
// high-risk token, aged relative to now.
func SampleRecords(now time.Time) []models.TokenRecord {
	ago := func(h int) string {
		return now.UTC().Add(-time.Duration(h) * time.Hour).Format(creationLayout)
	}
	return []models.TokenRecord{
		{
			Name:          "LegitToken",
			Liquidity:     25000,
			CreationTime:  ago(72),
			Distribution:  []float64{0.05, 0.10, 0.12},
			Audit:         models.AuditPositive,
			OnChainAlerts: false,
			Community:     models.CommunityGood,
		},
		{
			Name:          "MediocreToken",
			Liquidity:     15000,
			CreationTime:  ago(30),
			Distribution:  []float64{0.16, 0.10},
			Audit:         models.AuditNegative,
			OnChainAlerts: false,
			Community:     models.CommunityMediocre,
		},
		{
			Name:          "NewScamToken",
			Liquidity:     5000,
			CreationTime:  ago(1),
			Distribution:  []float64{0.40, 0.20},
			Audit:         models.AuditNone,
			OnChainAlerts: true,
			Community:     models.CommunityBad,
		},
	}
}
