package selection

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aristath/detection-selector/internal/metadata"
)

// ErrMetadataLoad marks a Reload failure caused by the metadata store rather
// than by the table's contents
var ErrMetadataLoad = errors.New("failed to load metadata")

// Manager owns the current Service instance so the HTTP handlers and the
// retrain job share one orchestrator. Reload swaps in a fresh service built
// from the stored metadata; the previous instance stays valid for callers
// that already hold it.
type Manager struct {
	repo        *metadata.Repository
	factory     ClassifierFactory
	extractor   FeatureExtractor
	scaleParams []string
	log         zerolog.Logger

	mu  sync.RWMutex
	svc *Service
}

// NewManager creates a manager without loading anything yet
func NewManager(
	repo *metadata.Repository,
	factory ClassifierFactory,
	extractor FeatureExtractor,
	scaleParams []string,
	log zerolog.Logger,
) *Manager {
	return &Manager{
		repo:        repo,
		factory:     factory,
		extractor:   extractor,
		scaleParams: scaleParams,
		log:         log.With().Str("component", "selection_manager").Logger(),
	}
}

// Reload builds a fresh untrained service from the stored metadata table and
// makes it current.
func (m *Manager) Reload() (*Service, error) {
	table, err := m.repo.LoadTable()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMetadataLoad, err)
	}

	svc, err := NewService(table, m.factory, m.extractor, m.log, WithScaleParams(m.scaleParams))
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.svc = svc
	m.mu.Unlock()

	m.log.Info().Int("rows", table.Len()).Msg("Selection service reloaded")
	return svc, nil
}

// Current returns the active service, if one has been loaded
func (m *Manager) Current() (*Service, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.svc, m.svc != nil
}
