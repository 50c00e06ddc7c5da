package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/rewired-gh/rugoracle/internal/models"
	"github.com/rewired-gh/rugoracle/internal/storage"
)

type statusStore interface {
	LatestRunSummary() (*storage.RunSummary, error)
	LatestTrainingRun() (*models.TrainingRun, error)
}

// statusText answers the /status bot command.
func statusText(store statusStore) string {
	var b strings.Builder

	sum, err := store.LatestRunSummary()
	switch {
	case err != nil:
		fmt.Fprintf(&b, "Failed to read last filter run: %v\n", err)
	case sum == nil:
		b.WriteString("No filter run recorded yet\n")
	default:
		data := "live"
		if sum.Fallback {
			data = "sample"
		}
		fmt.Fprintf(&b, "Last filter run %s (%s data)\n", sum.StartedAt.UTC().Format(time.RFC3339), data)
		fmt.Fprintf(&b, "Evaluated: %d, approved: %d, notified: %d\n", sum.Evaluated, sum.Approved, sum.Notified)
	}

	run, err := store.LatestTrainingRun()
	switch {
	case err != nil:
		fmt.Fprintf(&b, "Failed to read last training run: %v", err)
	case run == nil:
		b.WriteString("No model trained yet")
	default:
		fmt.Fprintf(&b, "Last model %s %s trained %s: accuracy %.2f%%, return %.2f%%",
			run.Symbol, run.Interval, run.CreatedAt.UTC().Format(time.RFC3339),
			run.Accuracy*100, run.TotalReturn*100)
	}
	return b.String()
}
