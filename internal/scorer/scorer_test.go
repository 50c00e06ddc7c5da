package scorer

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/rewired-gh/rugoracle/internal/models"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestScorer() *Scorer {
	return New(DefaultConfig()).WithClock(func() time.Time { return fixedNow })
}

func hoursAgo(h float64) string {
	return fixedNow.Add(-time.Duration(h * float64(time.Hour))).Format("2006-01-02T15:04:05.999999")
}

func TestScore_BestCase(t *testing.T) {
	s := newTestScorer()
	rec := models.TokenRecord{
		Name:         "SolidToken",
		Liquidity:    20000,
		CreationTime: hoursAgo(48),
		Distribution: []float64{0.15, 0.10},
		Audit:        models.AuditPositive,
	}
	if got := s.Score(rec); got != 0 {
		a := s.Assess(rec)
		t.Errorf("Score = %d, want 0 (penalties: %+v)", got, a.Penalties)
	}
}

func TestScore_WorstCase(t *testing.T) {
	s := newTestScorer()
	rec := models.TokenRecord{
		Name:          "PumpIt",
		Liquidity:     9999,
		Distribution:  []float64{0.31},
		Audit:         models.AuditNone,
		OnChainAlerts: true,
		Community:     2,
	}
	if got := s.Score(rec); got != 32 {
		t.Errorf("Score = %d, want 5+5+5+3+5+5+4 = 32", got)
	}

	a := s.Assess(rec)
	want := map[models.Factor]int{
		models.FactorAge:           5,
		models.FactorLiquidity:     5,
		models.FactorConcentration: 5,
		models.FactorNaming:        3,
		models.FactorAudit:         5,
		models.FactorOnChain:       5,
		models.FactorCommunity:     4,
	}
	for f, pts := range want {
		if got := a.Points(f); got != pts {
			t.Errorf("%s points = %d, want %d", f, got, pts)
		}
	}
	if a.AgeStatus != models.AgeMissing {
		t.Errorf("AgeStatus = %s, want missing", a.AgeStatus)
	}
	if a.Approved {
		t.Error("worst case must not be approved")
	}
}

func TestScore_Factors(t *testing.T) {
	base := models.TokenRecord{
		Name:         "Plain",
		Liquidity:    50000,
		CreationTime: hoursAgo(100),
		Audit:        models.AuditPositive,
	}

	tests := []struct {
		name   string
		mutate func(r *models.TokenRecord)
		want   int
	}{
		{"baseline", func(r *models.TokenRecord) {}, 0},
		{"age under 24h", func(r *models.TokenRecord) { r.CreationTime = hoursAgo(23.9) }, 5},
		{"age exactly 24h", func(r *models.TokenRecord) { r.CreationTime = hoursAgo(24) }, 3},
		{"age 47h", func(r *models.TokenRecord) { r.CreationTime = hoursAgo(47) }, 3},
		{"future creation", func(r *models.TokenRecord) { r.CreationTime = hoursAgo(-5) }, 5},
		{"unparsable creation", func(r *models.TokenRecord) { r.CreationTime = "yesterday" }, 5},
		{"liquidity 9999", func(r *models.TokenRecord) { r.Liquidity = 9999 }, 5},
		{"liquidity 10000", func(r *models.TokenRecord) { r.Liquidity = 10000 }, 2},
		{"liquidity 19999", func(r *models.TokenRecord) { r.Liquidity = 19999 }, 2},
		{"negative liquidity", func(r *models.TokenRecord) { r.Liquidity = -1 }, 5},
		{"concentration 0.30", func(r *models.TokenRecord) { r.Distribution = []float64{0.30} }, 3},
		{"concentration 0.16", func(r *models.TokenRecord) { r.Distribution = []float64{0.01, 0.16} }, 3},
		{"concentration 0.15", func(r *models.TokenRecord) { r.Distribution = []float64{0.15} }, 0},
		{"concentration 0.31", func(r *models.TokenRecord) { r.Distribution = []float64{0.31, 0.01} }, 5},
		{"empty distribution", func(r *models.TokenRecord) { r.Distribution = []float64{} }, 0},
		{"keyword case-insensitive", func(r *models.TokenRecord) { r.Name = "FAKEcoin" }, 3},
		{"keyword substring", func(r *models.TokenRecord) { r.Name = "Renewal" }, 3},
		{"multiple keywords count once", func(r *models.TokenRecord) { r.Name = "new scam pump" }, 3},
		{"audit negative", func(r *models.TokenRecord) { r.Audit = models.AuditNegative }, 5},
		{"audit none", func(r *models.TokenRecord) { r.Audit = models.AuditNone }, 5},
		{"unknown audit", func(r *models.TokenRecord) { r.Audit = "pending" }, 0},
		{"on-chain alert", func(r *models.TokenRecord) { r.OnChainAlerts = true }, 5},
		{"community mediocre", func(r *models.TokenRecord) { r.Community = 1 }, 2},
		{"community negative clamps", func(r *models.TokenRecord) { r.Community = -4 }, 0},
		{"community above range is not capped", func(r *models.TokenRecord) { r.Community = 7 }, 14},
		{"NaN liquidity scores as zero", func(r *models.TokenRecord) { r.Liquidity = math.NaN() }, 5},
		{"infinite liquidity scores as zero", func(r *models.TokenRecord) { r.Liquidity = math.Inf(1) }, 5},
	}

	s := newTestScorer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := base
			tt.mutate(&rec)
			if got := s.Score(rec); got != tt.want {
				t.Errorf("Score = %d, want %d (penalties: %+v)", got, tt.want, s.Assess(rec).Penalties)
			}
		})
	}
}

func TestScore_SampleRecords(t *testing.T) {
	s := newTestScorer()
	tests := []struct {
		rec  models.TokenRecord
		want int
	}{
		{models.TokenRecord{Name: "LegitToken", Liquidity: 25000, CreationTime: hoursAgo(72), Distribution: []float64{0.05, 0.10, 0.12}, Audit: models.AuditPositive}, 0},
		{models.TokenRecord{Name: "MediocreToken", Liquidity: 15000, CreationTime: hoursAgo(30), Distribution: []float64{0.16, 0.10}, Audit: models.AuditNegative, Community: 1}, 15},
		{models.TokenRecord{Name: "NewScamToken", Liquidity: 5000, CreationTime: hoursAgo(1), Distribution: []float64{0.40, 0.20}, Audit: models.AuditNone, OnChainAlerts: true, Community: 2}, 32},
	}
	for _, tt := range tests {
		if got := s.Score(tt.rec); got != tt.want {
			t.Errorf("%s: Score = %d, want %d", tt.rec.Name, got, tt.want)
		}
	}
}

func TestScore_NonFiniteLiquidityString(t *testing.T) {
	s := newTestScorer()
	for _, v := range []string{`"NaN"`, `"Infinity"`} {
		var rec models.TokenRecord
		payload := `{"token_name":"Moon","liquidity":` + v + `,"creation_time":"2024-05-01T00:00:00","audit":"positive"}`
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			t.Fatal(err)
		}
		a := s.Assess(rec)
		if got := a.Points(models.FactorLiquidity); got != 5 {
			t.Errorf("liquidity %s: liquidity penalty = %d, want 5", v, got)
		}
	}
}

func TestScore_KeyOrderIndependent(t *testing.T) {
	a := `{"token_name":"MediocreToken","liquidity":15000,"creation_time":"2024-05-31T06:00:00","distribution":[0.16,0.10],"audit":"negative","on_chain_alerts":false,"community":1}`
	b := `{"community":1,"on_chain_alerts":false,"audit":"negative","distribution":[0.16,0.10],"creation_time":"2024-05-31T06:00:00","liquidity":15000,"token_name":"MediocreToken"}`

	var ra, rb models.TokenRecord
	if err := json.Unmarshal([]byte(a), &ra); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(b), &rb); err != nil {
		t.Fatal(err)
	}

	s := newTestScorer()
	if s.Score(ra) != s.Score(rb) {
		t.Errorf("key order changed score: %d vs %d", s.Score(ra), s.Score(rb))
	}
}

func TestScore_DeterministicAndNonNegative(t *testing.T) {
	s := newTestScorer()
	records := []models.TokenRecord{
		{},
		{Name: "x", Liquidity: 1e9, Community: -100},
		{Name: "scam", Distribution: []float64{-1, 2}},
	}
	for _, rec := range records {
		first := s.Score(rec)
		if first < 0 {
			t.Errorf("Score(%+v) = %d, want >= 0", rec, first)
		}
		for i := 0; i < 3; i++ {
			if got := s.Score(rec); got != first {
				t.Errorf("Score not deterministic: %d then %d", first, got)
			}
		}
	}
}

func TestAssess_UnparsableAgeIsFlagged(t *testing.T) {
	s := newTestScorer()
	a := s.Assess(models.TokenRecord{Name: "X", CreationTime: "not-a-date"})
	if a.AgeStatus != models.AgeUnparsable {
		t.Errorf("AgeStatus = %s, want unparsable", a.AgeStatus)
	}
	if a.AgeHours != 0 {
		t.Errorf("AgeHours = %v, want 0", a.AgeHours)
	}
	if a.Points(models.FactorAge) != PenaltyYoung {
		t.Errorf("unparsable age should score as brand new, got %d", a.Points(models.FactorAge))
	}
}

func TestAssess_ApprovalThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ApprovalThreshold = 5
	s := New(cfg).WithClock(func() time.Time { return fixedNow })

	rec := models.TokenRecord{Name: "Plain", Liquidity: 50000, CreationTime: hoursAgo(100), Audit: models.AuditNone}
	a := s.Assess(rec)
	if a.Score != 5 || !a.Approved {
		t.Errorf("score %d approved=%v, want 5 approved", a.Score, a.Approved)
	}
	rec.Community = 1
	if a := s.Assess(rec); a.Approved {
		t.Errorf("score %d should exceed threshold 5", a.Score)
	}
}

func TestNew_CopiesConfig(t *testing.T) {
	cfg := DefaultConfig()
	s := newTestScorerFrom(cfg)
	cfg.SuspiciousKeywords[0] = "zzz"

	if s.Score(models.TokenRecord{Name: "scamcoin", Liquidity: 50000, CreationTime: hoursAgo(100), Audit: models.AuditPositive}) != PenaltySuspiciousName {
		t.Error("mutating the caller's config must not affect the scorer")
	}
	if s.Config().SuspiciousKeywords[0] != "scam" {
		t.Errorf("Config() = %v", s.Config().SuspiciousKeywords)
	}
}

func newTestScorerFrom(cfg Config) *Scorer {
	return New(cfg).WithClock(func() time.Time { return fixedNow })
}

func TestAgeHours(t *testing.T) {
	tests := []struct {
		name       string
		in         string
		wantHours  float64
		wantStatus models.AgeStatus
	}{
		{"missing", "", 0, models.AgeMissing},
		{"naive iso", "2024-06-01T10:00:00", 2, models.AgeKnown},
		{"naive with micros", "2024-06-01T11:30:00.000000", 0.5, models.AgeKnown},
		{"space separator", "2024-06-01 09:00:00", 3, models.AgeKnown},
		{"utc z", "2024-06-01T06:00:00Z", 6, models.AgeKnown},
		{"offset", "2024-06-01T08:00:00+02:00", 6, models.AgeKnown},
		{"date only", "2024-05-31", 36, models.AgeKnown},
		{"garbage", "soon", 0, models.AgeUnparsable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, status := AgeHours(tt.in, fixedNow)
			if status != tt.wantStatus {
				t.Errorf("status = %s, want %s", status, tt.wantStatus)
			}
			if h != tt.wantHours {
				t.Errorf("hours = %v, want %v", h, tt.wantHours)
			}
		})
	}
}
