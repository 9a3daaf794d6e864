package jobs

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/detection-selector/internal/modules/selection"
)

// RetrainJob periodically rebuilds the selection service from the stored
// metadata and trains it with default options, so predictions track newly
// labeled series without manual intervention.
type RetrainJob struct {
	manager *selection.Manager
	runs    *selection.RunsRepository
	log     zerolog.Logger
}

// NewRetrainJob creates a new retrain job
func NewRetrainJob(manager *selection.Manager, runs *selection.RunsRepository, log zerolog.Logger) *RetrainJob {
	return &RetrainJob{
		manager: manager,
		runs:    runs,
		log:     log.With().Str("job", "selection_retrain").Logger(),
	}
}

// Name returns the job name
func (j *RetrainJob) Name() string {
	return "selection_retrain"
}

// Run reloads metadata, retrains and persists the run
func (j *RetrainJob) Run() error {
	svc, err := j.manager.Reload()
	if err != nil {
		j.log.Warn().Err(err).Msg("Skipping retrain, metadata not usable")
		return fmt.Errorf("failed to reload metadata: %w", err)
	}

	opts := selection.DefaultTrainOptions()
	metrics, err := svc.Train(opts)
	if err != nil {
		j.log.Error().Err(err).Msg("Retraining failed")
		return fmt.Errorf("retraining failed: %w", err)
	}

	if j.runs != nil {
		records, err := svc.Records()
		if err != nil {
			j.log.Error().Err(err).Msg("Failed to snapshot training records")
			records = nil
		}
		if _, err := j.runs.Create(opts, metrics, records); err != nil {
			j.log.Error().Err(err).Msg("Failed to persist training run")
		}
	}

	j.log.Info().
		Float64("clf_accuracy", metrics.ClfAccuracy).
		Msg("Retraining completed")

	return nil
}
