// Package filter runs the anti-rug-pull signal filter: fetch token records,
// score each one and notify the approved ones.
package filter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rewired-gh/rugoracle/internal/logger"
	"github.com/rewired-gh/rugoracle/internal/models"
	"github.com/rewired-gh/rugoracle/internal/notify"
	"github.com/rewired-gh/rugoracle/internal/scorer"
	"github.com/rewired-gh/rugoracle/internal/source"
)

// Source yields the token records to evaluate.
type Source interface {
	Fetch(ctx context.Context, endpoint string) source.FetchResult
}

// Recorder persists evaluations. It may be nil.
type Recorder interface {
	AddEvaluation(e *models.Evaluation) error
}

// Summary describes one filter run.
type Summary struct {
	RunID          string
	Fetched        int
	Approved       int
	Discarded      int
	NotifyFailures int
	Fallback       bool
	FetchErr       error
	Assessments    []models.Assessment
}

// Pipeline wires a record source, a scorer, a notification sink and an
// optional recorder into one filter pass.
type Pipeline struct {
	source   Source
	scorer   *scorer.Scorer
	sink     notify.Sink
	recorder Recorder
}

// New creates a pipeline. recorder may be nil.
func New(src Source, sc *scorer.Scorer, sink notify.Sink, recorder Recorder) *Pipeline {
	return &Pipeline{
		source:   src,
		scorer:   sc,
		sink:     sink,
		recorder: recorder,
	}
}

// Run fetches records from endpoint and notifies every record scoring at or
// below threshold. It only returns an error when ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context, endpoint string, threshold int) (Summary, error) {
	start := time.Now()
	sum := Summary{RunID: uuid.New().String()}

	res := p.source.Fetch(ctx, endpoint)
	sum.Fallback = res.Fallback
	sum.FetchErr = res.Err
	sum.Fetched = len(res.Records)

	if len(res.Records) == 0 {
		logger.Info("No token data received")
		return sum, nil
	}
	logger.Info("Evaluating %d tokens (threshold: %d, fallback: %v)", len(res.Records), threshold, res.Fallback)

	for _, rec := range res.Records {
		if err := ctx.Err(); err != nil {
			return sum, fmt.Errorf("filter run interrupted: %w", err)
		}

		a := p.scorer.Assess(rec)
		a.Approved = scorer.Approved(a.Score, threshold)
		sum.Assessments = append(sum.Assessments, a)
		logger.Info("Evaluation of %s: risk score = %d", notify.TokenLabel(rec.Name), a.Score)
		for _, pen := range a.Penalties {
			logger.Debug("  %s +%d (%s)", pen.Factor, pen.Points, pen.Reason)
		}

		notified := false
		if a.Approved {
			sum.Approved++
			if err := p.sink.Notify(ctx, models.Signal{Record: rec, Assessment: a}); err != nil {
				sum.NotifyFailures++
				logger.Error("Failed to send signal for %s: %v", notify.TokenLabel(rec.Name), err)
			} else {
				notified = true
			}
		} else {
			sum.Discarded++
			logger.Info("Token %s DISCARDED (risk: %d)", notify.TokenLabel(rec.Name), a.Score)
		}

		p.record(&models.Evaluation{
			RunID:       sum.RunID,
			Token:       rec.Name,
			Score:       a.Score,
			Approved:    a.Approved,
			Notified:    notified,
			AgeStatus:   a.AgeStatus,
			Fallback:    res.Fallback,
			EvaluatedAt: time.Now(),
		})
	}

	logger.Info("Filter run %s completed in %v: %d approved, %d discarded",
		sum.RunID, time.Since(start), sum.Approved, sum.Discarded)
	return sum, nil
}

func (p *Pipeline) record(e *models.Evaluation) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.AddEvaluation(e); err != nil {
		logger.Warn("Failed to record evaluation of %s: %v", e.Token, err)
	}
}
