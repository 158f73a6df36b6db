package quote

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fabworks/printquote/internal/catalog"
	"github.com/fabworks/printquote/internal/pricing"
	"github.com/fabworks/printquote/internal/slicer"
)

// Slicer is the external mesh-analysis collaborator. Slicing is the one
// expensive blocking call in the system; the manager enforces its timeout
// and never invokes it redundantly for the same configuration.
type Slicer interface {
	Slice(ctx context.Context, filePath string, params slicer.Params) (slicer.Result, error)
}

// UploadResolver maps an opaque upload id to a local file path.
type UploadResolver interface {
	Resolve(uploadID string) (string, error)
}

// History is the persistence seam for saved quotes.
type History interface {
	Append(ctx context.Context, sessionID string, q Quote) error
	UpdateStatus(ctx context.Context, id string, status Status) error
}

// Deps bundles the collaborators a Manager needs.
type Deps struct {
	Log           *zap.Logger
	Catalog       Catalog
	Slicer        Slicer
	Uploads       UploadResolver
	History       History
	Rates         pricing.Rates
	SliceTimeout  time.Duration
	QuoteValidFor time.Duration

	// Now is the clock; nil means time.Now. Tests pin it for determinism.
	Now func() time.Time
}

// Manager owns the quote lifecycle for one session: it serializes
// configuration edits and state transitions, coalesces duplicate
// calculation requests, and discards results that arrive after the
// configuration they were computed for has changed.
type Manager struct {
	sessionID string
	log       *zap.Logger
	config    *ConfigStore
	catalog   Catalog
	slicer    Slicer
	uploads   UploadResolver
	history   History
	rates     pricing.Rates

	sliceTimeout time.Duration
	validFor     time.Duration
	now          func() time.Time

	group singleflight.Group

	mu            sync.Mutex
	status        Status
	current       *Quote
	lastErr       *Error
	staleDiscards uint64
}

// NewManager creates a lifecycle manager for one session.
func NewManager(sessionID string, config *ConfigStore, deps Deps) *Manager {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		sessionID:    sessionID,
		log:          log.With(zap.String("session_id", sessionID)),
		config:       config,
		catalog:      deps.Catalog,
		slicer:       deps.Slicer,
		uploads:      deps.Uploads,
		history:      deps.History,
		rates:        deps.Rates,
		sliceTimeout: deps.SliceTimeout,
		validFor:     deps.QuoteValidFor,
		now:          now,
		status:       StatusDraft,
	}
}

// Status returns the current lifecycle state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Configuration returns a snapshot of the in-progress configuration.
func (m *Manager) Configuration() Configuration {
	return m.config.Snapshot()
}

// CurrentQuote returns a copy of the most recent calculated quote, if any.
func (m *Manager) CurrentQuote() (Quote, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return Quote{}, false
	}
	return *m.current, true
}

// LastError returns the structured error of the last failed calculation.
func (m *Manager) LastError() *Error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// StaleDiscards counts late-arriving calculations that were dropped.
func (m *Manager) StaleDiscards() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.staleDiscards
}

// UpdateConfiguration merges a patch and returns the fresh validation
// result. Any edit after a calculation starts a new draft cycle; an edit
// after a failure clears the error state.
func (m *Manager) UpdateConfiguration(ctx context.Context, patch ConfigurationPatch) (Validation, error) {
	// A patch that sets nothing is not an edit: it must not start a new
	// draft cycle or invalidate a calculated quote.
	if patch.IsZero() {
		return m.config.Validate(ctx)
	}

	if err := m.config.Apply(ctx, patch); err != nil {
		return Validation{}, err
	}

	m.mu.Lock()
	switch m.status {
	case StatusCalculated, StatusSaved, StatusOrdered, StatusError:
		m.status = StatusDraft
		m.lastErr = nil
	}
	m.mu.Unlock()

	return m.config.Validate(ctx)
}

// ApplyPreset merges a preset's partial configuration. Applying the same
// preset twice yields the same configuration as applying it once.
func (m *Manager) ApplyPreset(ctx context.Context, partial ConfigurationPatch) (Validation, error) {
	return m.UpdateConfiguration(ctx, partial)
}

// Validate checks the current configuration without side effects.
func (m *Manager) Validate(ctx context.Context) (Validation, error) {
	return m.config.Validate(ctx)
}

// RequestCalculation prices the current configuration. The transition into
// Calculating is refused synchronously while validation errors exist; the
// slicing collaborator is never reached in that case. Concurrent requests
// for the same configuration hash share a single slicer invocation, and a
// result whose configuration has been edited away in the meantime is
// discarded without touching the current quote.
func (m *Manager) RequestCalculation(ctx context.Context) (Quote, error) {
	snapshot := m.config.Snapshot()

	v, err := ValidateConfiguration(ctx, m.catalog, snapshot, m.config.maxQuantity)
	if err != nil {
		return Quote{}, newPersistenceError(err)
	}
	if !v.OK() {
		return Quote{}, newValidationError(v.Errors)
	}

	hash := Hash(snapshot)

	m.mu.Lock()
	m.status = StatusCalculating
	m.mu.Unlock()

	result, calcErr, _ := m.group.Do(hash, func() (any, error) {
		calc, err := m.calculate(ctx, snapshot)
		if err != nil {
			return nil, err
		}
		// The quote is minted inside the flight so every coalesced caller
		// receives the identical quote, id included.
		now := m.now()
		return Quote{
			ID:            uuid.NewString(),
			Configuration: snapshot,
			Calculation:   calc,
			Status:        StatusCalculated,
			ValidUntil:    now.Add(m.validFor),
			CreatedAt:     now,
			UpdatedAt:     now,
		}, nil
	})

	// Staleness guard: apply the result only if the configuration it was
	// computed for is still the current one. The discarded flight leaves
	// nothing in progress, so the session returns to draft unless a newer
	// calculation already moved the state on.
	if Hash(m.config.Snapshot()) != hash {
		m.mu.Lock()
		m.staleDiscards++
		if m.status == StatusCalculating {
			m.status = StatusDraft
		}
		m.mu.Unlock()
		m.log.Debug("discarded stale calculation", zap.String("config_hash", hash))
		return Quote{}, ErrStale
	}

	if calcErr != nil {
		lifecycleErr := m.asLifecycleError(calcErr)
		m.mu.Lock()
		m.status = StatusError
		m.lastErr = lifecycleErr
		m.mu.Unlock()
		return Quote{}, lifecycleErr
	}

	q := result.(Quote)

	m.mu.Lock()
	m.current = &q
	m.status = StatusCalculated
	m.lastErr = nil
	m.mu.Unlock()

	return q, nil
}

func (m *Manager) calculate(ctx context.Context, cfg Configuration) (pricing.Calculation, error) {
	path, err := m.uploads.Resolve(cfg.UploadID)
	if err != nil {
		return pricing.Calculation{}, &Error{
			Kind:    KindValidation,
			Message: "uploaded model not found",
			cause:   err,
		}
	}

	material, err := m.catalog.Get(ctx, cfg.MaterialID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return pricing.Calculation{}, newValidationError([]string{"selected material is no longer available"})
		}
		return pricing.Calculation{}, newPersistenceError(err)
	}

	sctx, cancel := context.WithTimeout(ctx, m.sliceTimeout)
	defer cancel()

	params := slicer.Params{
		LayerHeightMM:   cfg.PrintOptions.LayerHeightMM,
		InfillPercent:   cfg.PrintOptions.InfillPercentage,
		SupportsEnabled: cfg.PrintOptions.SupportGeneration != SupportNone,
		PrintSpeedMMS:   cfg.PrintOptions.PrintSpeedMMS,
	}
	result, err := m.slicer.Slice(sctx, path, params)
	if err != nil {
		return pricing.Calculation{}, newSlicingError(err)
	}
	if err := result.Validate(); err != nil {
		return pricing.Calculation{}, newSlicingError(err)
	}

	services := make([]string, 0, len(cfg.PostProcessing))
	for _, svc := range cfg.PostProcessing {
		services = append(services, string(svc))
	}
	order := pricing.Order{
		Quantity:       cfg.Quantity,
		Urgency:        string(cfg.Urgency),
		Color:          cfg.SelectedColor,
		PostProcessing: services,
	}

	calc, err := pricing.Calculate(order, result, material, m.rates, m.now())
	if err != nil {
		return pricing.Calculation{}, newPricingError(err)
	}

	return calc, nil
}

// asLifecycleError maps a calculation failure to the user-facing taxonomy.
// Pricing failures are defects: they are logged here and surfaced as a
// generic message, never with internals attached.
func (m *Manager) asLifecycleError(err error) *Error {
	lifecycleErr, ok := AsError(err)
	if !ok {
		lifecycleErr = newSlicingError(err)
	}
	if lifecycleErr.Kind == KindPricing {
		m.log.Error("pricing invariant violation", zap.Error(err))
	} else {
		m.log.Warn("calculation failed",
			zap.String("kind", string(lifecycleErr.Kind)),
			zap.Error(err))
	}
	return lifecycleErr
}

// SaveQuote appends the current calculated quote to history. When
// persistence fails the in-memory quote stays usable and the persistence
// error is returned alongside it so the caller can warn the user.
func (m *Manager) SaveQuote(ctx context.Context) (Quote, error) {
	m.mu.Lock()
	if m.current == nil || m.current.Status != StatusCalculated {
		m.mu.Unlock()
		return Quote{}, &Error{Kind: KindConflict, Message: "no calculated quote to save"}
	}
	saved := *m.current
	m.mu.Unlock()

	now := m.now()
	saved.Status = StatusSaved
	saved.UpdatedAt = now

	if err := m.history.Append(ctx, m.sessionID, saved); err != nil {
		m.log.Warn("quote history append failed", zap.String("quote_id", saved.ID), zap.Error(err))
		current := saved
		current.Status = StatusCalculated
		return current, newPersistenceError(err)
	}

	m.mu.Lock()
	m.current.Status = StatusSaved
	m.current.UpdatedAt = now
	m.status = StatusSaved
	saved = *m.current
	m.mu.Unlock()

	return saved, nil
}

// MarkOrdered records the payment collaborator's confirmation for the
// current quote. Ordered is terminal. The ordered quote is always written
// to history: a payment-confirmed order must survive later configuration
// edits replacing the in-memory quote.
func (m *Manager) MarkOrdered(ctx context.Context, quoteID string) (Quote, error) {
	m.mu.Lock()
	if m.current == nil || m.current.ID != quoteID {
		m.mu.Unlock()
		return Quote{}, &Error{Kind: KindNotFound, Message: "quote not found"}
	}
	if !m.current.Status.CanTransitionTo(StatusOrdered) {
		m.mu.Unlock()
		return Quote{}, &Error{Kind: KindConflict, Message: "quote cannot be ordered from its current state"}
	}
	wasSaved := m.current.Status == StatusSaved
	m.current.Status = StatusOrdered
	m.current.UpdatedAt = m.now()
	m.status = StatusOrdered
	ordered := *m.current
	m.mu.Unlock()

	if wasSaved {
		if err := m.history.UpdateStatus(ctx, quoteID, StatusOrdered); err != nil {
			m.log.Warn("failed to record ordered status in history",
				zap.String("quote_id", quoteID), zap.Error(err))
		}
	} else {
		if err := m.history.Append(ctx, m.sessionID, ordered); err != nil {
			m.log.Warn("failed to record ordered quote in history",
				zap.String("quote_id", quoteID), zap.Error(err))
		}
	}

	return ordered, nil
}
