package selection

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/detection-selector/internal/domain"
	"github.com/aristath/detection-selector/internal/metadata"
)

// Handler handles model-selection HTTP requests
type Handler struct {
	manager *Manager
	runs    *RunsRepository
	log     zerolog.Logger
}

// NewHandler creates a new selection handler
func NewHandler(manager *Manager, runs *RunsRepository, log zerolog.Logger) *Handler {
	return &Handler{
		manager: manager,
		runs:    runs,
		log:     log.With().Str("handler", "selection").Logger(),
	}
}

// RegisterRoutes mounts the module's routes on the given router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/train", h.HandleTrain)
	r.Get("/metrics", h.HandleMetrics)
	r.Post("/predict", h.HandlePredict)
	r.Get("/fit-results", h.HandleFitResults)
	r.Post("/pred-by-feature", h.HandlePredByFeature)
	r.Get("/runs", h.HandleRuns)
	r.Post("/reload", h.HandleReload)
}

// HandleTrain handles POST /train - train the meta-learner
func (h *Handler) HandleTrain(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.manager.Current()
	if !ok {
		http.Error(w, "Metadata not loaded. Seed detection_metadata and call /reload", http.StatusServiceUnavailable)
		return
	}

	var opts TrainOptions
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil && err != io.EOF {
		http.Error(w, "Invalid training options", http.StatusBadRequest)
		return
	}

	metrics, err := svc.Train(opts)
	if err != nil {
		h.log.Error().Err(err).Msg("Training failed")
		h.writeError(w, err)
		return
	}

	h.persistRun(svc, opts.withDefaults(), metrics)

	writeJSON(w, metrics)
}

// HandleMetrics handles GET /metrics - report training metrics.
// If the service has never been trained this triggers a default training
// pass first.
func (h *Handler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.manager.Current()
	if !ok {
		http.Error(w, "Metadata not loaded. Seed detection_metadata and call /reload", http.StatusServiceUnavailable)
		return
	}

	alreadyTrained := svc.Trained()

	report, err := svc.ReportMetrics()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to report metrics")
		h.writeError(w, err)
		return
	}

	// ReportMetrics may have just run the implicit default training pass
	if !alreadyTrained {
		if metrics, ok := svc.Metrics(); ok {
			h.persistRun(svc, DefaultTrainOptions(), metrics)
		}
	}

	writeJSON(w, report)
}

// HandlePredict handles POST /predict - recommend a model for one series
func (h *Handler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.manager.Current()
	if !ok {
		http.Error(w, "Metadata not loaded. Seed detection_metadata and call /reload", http.StatusServiceUnavailable)
		return
	}

	var series domain.Series
	if err := json.NewDecoder(r.Body).Decode(&series); err != nil {
		http.Error(w, "Invalid series payload", http.StatusBadRequest)
		return
	}
	if err := series.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	label, err := svc.Predict(series)
	if err != nil {
		h.log.Error().Err(err).Msg("Prediction failed")
		h.writeError(w, err)
		return
	}

	writeJSON(w, map[string]string{"best_model": label})
}

// HandleFitResults handles GET /fit-results - predicted labels for the stored table
func (h *Handler) HandleFitResults(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.manager.Current()
	if !ok {
		http.Error(w, "Metadata not loaded. Seed detection_metadata and call /reload", http.StatusServiceUnavailable)
		return
	}

	labels, err := svc.FitResults()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute fit results")
		h.writeError(w, err)
		return
	}

	writeJSON(w, map[string][]string{"best_model": labels})
}

// HandlePredByFeature handles POST /pred-by-feature - predict from feature rows
func (h *Handler) HandlePredByFeature(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.manager.Current()
	if !ok {
		http.Error(w, "Metadata not loaded. Seed detection_metadata and call /reload", http.StatusServiceUnavailable)
		return
	}

	var payload struct {
		Rows []any `json:"rows"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}
	if len(payload.Rows) == 0 {
		http.Error(w, "rows is required", http.StatusBadRequest)
		return
	}

	labels, err := svc.PredByFeature(payload.Rows)
	if err != nil {
		h.log.Error().Err(err).Msg("Pred-by-feature failed")
		h.writeError(w, err)
		return
	}

	writeJSON(w, map[string][]string{"best_model": labels})
}

// HandleRuns handles GET /runs - list persisted training runs
func (h *Handler) HandleRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		http.Error(w, "Training runs are not persisted", http.StatusNotFound)
		return
	}

	var limit *int
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l < 1 || l > 10000 {
			http.Error(w, "Invalid limit. Must be 1-10000", http.StatusBadRequest)
			return
		}
		limit = &l
	}

	runs, err := h.runs.GetAll(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get training runs")
		http.Error(w, "Failed to retrieve training runs", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []TrainingRun{}
	}

	writeJSON(w, runs)
}

// HandleReload handles POST /reload - rebuild the service from stored metadata
func (h *Handler) HandleReload(w http.ResponseWriter, r *http.Request) {
	svc, err := h.manager.Reload()
	if err != nil {
		h.log.Error().Err(err).Msg("Reload failed")
		// a database failure is the server's fault; an unusable table is the caller's
		if errors.Is(err, ErrMetadataLoad) {
			http.Error(w, "Failed to load metadata", http.StatusInternalServerError)
		} else {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
		return
	}

	writeJSON(w, map[string]any{
		"rows":    svc.table.Len(),
		"trained": svc.Trained(),
	})
}

// persistRun best-effort stores a training run; failures are logged only
func (h *Handler) persistRun(svc *Service, opts TrainOptions, metrics TrainMetrics) {
	if h.runs == nil {
		return
	}
	records, err := svc.Records()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to snapshot training records")
		records = nil
	}
	if _, err := h.runs.Create(opts, metrics, records); err != nil {
		h.log.Error().Err(err).Msg("Failed to persist training run")
	}
}

// writeError maps service errors to HTTP status codes
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var rowErr *metadata.RowError
	var collabErr *CollaboratorError

	switch {
	case errors.Is(err, ErrNotTrained):
		http.Error(w, "Please train a classifier first", http.StatusPreconditionFailed)
	case errors.As(err, &collabErr):
		http.Error(w, err.Error(), http.StatusBadGateway)
	case errors.As(err, &rowErr):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
