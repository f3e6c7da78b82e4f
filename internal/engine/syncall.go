package engine

import (
	"context"
	"time"
)

// SyncOutcome pairs one repository with the result of its sync attempt, for
// batch reporting.
//
// Fields:
//   - RepositoryID: Handle ID of the synced repository
//   - RepositoryName: Display name for log and summary lines
//   - Result: State and message the sync produced
//   - Err: Taxonomy error when the sync failed, nil otherwise
//   - Duration: Wall time the attempt took
type SyncOutcome struct {
	RepositoryID   string
	RepositoryName string
	Result         SyncResult
	Err            error
	Duration       time.Duration
}

// Message returns a display line for the outcome.
func (o SyncOutcome) Message() string {
	if o.Result.Message != "" {
		return o.Result.Message
	}
	if o.Err != nil {
		return ErrorMessage(o.Err)
	}
	return o.Result.State.String()
}

// SyncAll syncs every repository in order, continuing past failures so one
// bad repository cannot stall the rest. The returned slice has one outcome
// per input repository, in input order. Callers decide which repositories
// belong in a background batch; SyncAll does not filter.
func (e *Engine) SyncAll(ctx context.Context, repos []Repository, trigger SyncTrigger) []SyncOutcome {
	if len(repos) == 0 {
		e.logger.Debug("No repositories to sync")
		return nil
	}

	e.logger.Info("Starting batch sync", "count", len(repos), "trigger", trigger.String())
	outcomes := make([]SyncOutcome, 0, len(repos))
	var succeeded, failed, skipped int

	for _, repo := range repos {
		start := time.Now()
		result, err := e.Sync(ctx, repo, trigger)
		outcome := SyncOutcome{
			RepositoryID:   repo.ID,
			RepositoryName: repo.Name,
			Result:         result,
			Err:            err,
			Duration:       time.Since(start),
		}
		outcomes = append(outcomes, outcome)

		switch {
		case err != nil:
			failed++
			e.logger.Warn("Repository sync failed",
				"name", repo.Name, "state", result.State.String(), "error", err)
		case result.State == StateNetworkDeferred:
			skipped++
			e.logger.Debug("Repository sync skipped", "name", repo.Name)
		case result.State == StateSuccess:
			succeeded++
			e.logger.Debug("Repository sync succeeded",
				"name", repo.Name, "message", result.Message, "duration", outcome.Duration)
		default:
			failed++
			e.logger.Warn("Repository sync did not complete",
				"name", repo.Name, "state", result.State.String(), "message", result.Message)
		}
	}

	e.logger.Info("Batch sync finished",
		"total", len(repos), "succeeded", succeeded, "failed", failed, "skipped", skipped)
	return outcomes
}
