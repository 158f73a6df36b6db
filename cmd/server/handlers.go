package main

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/fabworks/printquote/internal/catalog"
	"github.com/fabworks/printquote/internal/export"
	"github.com/fabworks/printquote/internal/preset"
	"github.com/fabworks/printquote/internal/quote"
)

// presentQuote returns a copy with currency values rounded for display.
func presentQuote(q quote.Quote) quote.Quote {
	q.Calculation = q.Calculation.Rounded()
	return q
}

func (s *server) handleListMaterials(w http.ResponseWriter, r *http.Request) {
	materials, err := s.catalog.List(r.Context())
	if err != nil {
		s.log.Error("failed to load material catalog", zap.Error(err))
		s.writeError(w, &quote.Error{Kind: quote.KindPersistence, Message: "material catalog is unavailable"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"materials": materials})
}

func (s *server) handleGetMaterial(w http.ResponseWriter, r *http.Request) {
	material, err := s.catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			s.writeError(w, &quote.Error{Kind: quote.KindNotFound, Message: "material not found"})
			return
		}
		s.log.Error("failed to load material", zap.Error(err))
		s.writeError(w, &quote.Error{Kind: quote.KindPersistence, Message: "material catalog is unavailable"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"material": material})
}

func (s *server) handleRefreshCatalog(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.Refresh(r.Context()); err != nil {
		s.log.Error("catalog refresh failed", zap.Error(err))
		s.writeError(w, &quote.Error{Kind: quote.KindPersistence, Message: "material catalog is unavailable"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"refreshed": true})
}

func (s *server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	presets, err := s.presets.List(r.Context())
	response := map[string]any{"presets": presets}
	if err != nil {
		// Defaults are compiled in, so the list is still usable.
		s.log.Warn("user presets unavailable, serving defaults only", zap.Error(err))
		response["warning"] = "saved presets are temporarily unavailable"
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *server) handleCreatePreset(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name          string                   `json:"name"`
		Description   string                   `json:"description"`
		Configuration quote.ConfigurationPatch `json:"configuration"`
	}
	if err := decodeStrict(r, &body); err != nil {
		s.writeError(w, &quote.Error{Kind: quote.KindValidation, Message: "invalid preset payload", Details: []string{err.Error()}})
		return
	}

	created, err := s.presets.Create(r.Context(), body.Name, body.Description, body.Configuration)
	if err != nil {
		s.log.Warn("preset create failed", zap.Error(err))
		s.writeError(w, &quote.Error{Kind: quote.KindPersistence, Message: "preset could not be saved"})
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{"preset": created})
}

func (s *server) handleApplyPreset(w http.ResponseWriter, r *http.Request) {
	p, err := s.presets.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, preset.ErrNotFound) {
			s.writeError(w, &quote.Error{Kind: quote.KindNotFound, Message: "preset not found"})
			return
		}
		s.log.Warn("preset lookup failed", zap.Error(err))
		s.writeError(w, &quote.Error{Kind: quote.KindPersistence, Message: "presets are temporarily unavailable"})
		return
	}

	manager := s.managerFor(r)
	validation, err := manager.ApplyPreset(r.Context(), p.Config)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"configuration": manager.Configuration(),
		"validation":    validation,
	})
}

func (s *server) handleGetConfiguration(w http.ResponseWriter, r *http.Request) {
	manager := s.managerFor(r)
	validation, err := manager.Validate(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"configuration": manager.Configuration(),
		"validation":    validation,
		"status":        manager.Status(),
	})
}

func (s *server) handlePatchConfiguration(w http.ResponseWriter, r *http.Request) {
	var patch quote.ConfigurationPatch
	if err := decodeStrict(r, &patch); err != nil {
		s.writeError(w, &quote.Error{Kind: quote.KindValidation, Message: "invalid configuration patch", Details: []string{err.Error()}})
		return
	}

	manager := s.managerFor(r)
	validation, err := manager.UpdateConfiguration(r.Context(), patch)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"configuration": manager.Configuration(),
		"validation":    validation,
	})
}

func (s *server) handleValidateConfiguration(w http.ResponseWriter, r *http.Request) {
	validation, err := s.managerFor(r).Validate(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"validation": validation})
}

func (s *server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	manager := s.managerFor(r)

	q, err := manager.RequestCalculation(r.Context())
	if errors.Is(err, quote.ErrStale) {
		// The configuration moved on while this calculation ran; report the
		// session's current state instead of a failure.
		response := map[string]any{"status": manager.Status(), "superseded": true}
		if current, ok := manager.CurrentQuote(); ok {
			response["quote"] = presentQuote(current)
		}
		s.writeJSON(w, http.StatusOK, response)
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"quote": presentQuote(q)})
}

func (s *server) handleCurrentQuote(w http.ResponseWriter, r *http.Request) {
	manager := s.managerFor(r)
	current, ok := manager.CurrentQuote()
	if !ok {
		s.writeError(w, &quote.Error{Kind: quote.KindNotFound, Message: "no quote calculated yet"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"quote":  presentQuote(current),
		"status": manager.Status(),
	})
}

func (s *server) handleSaveQuote(w http.ResponseWriter, r *http.Request) {
	manager := s.managerFor(r)

	saved, err := manager.SaveQuote(r.Context())
	if err != nil {
		if lifecycleErr, ok := quote.AsError(err); ok && lifecycleErr.Kind == quote.KindPersistence {
			// The in-memory quote is still usable; warn instead of failing.
			s.writeJSON(w, http.StatusOK, map[string]any{
				"quote":   presentQuote(saved),
				"warning": "the quote could not be saved to history",
			})
			return
		}
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"quote": presentQuote(saved)})
}

func (s *server) handleQuoteHistory(w http.ResponseWriter, r *http.Request) {
	quotes, err := s.history.List(r.Context(), sessionIDFrom(r))
	if err != nil {
		s.log.Warn("quote history unavailable", zap.Error(err))
		s.writeError(w, &quote.Error{Kind: quote.KindPersistence, Message: "quote history is unavailable"})
		return
	}

	items := make([]quote.Quote, 0, len(quotes))
	for _, q := range quotes {
		items = append(items, presentQuote(q))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"quotes": items})
}

// lookupQuote finds a quote by id, preferring the session's in-memory quote
// and falling back to saved history.
func (s *server) lookupQuote(r *http.Request, id string) (quote.Quote, error) {
	manager := s.managerFor(r)
	if current, ok := manager.CurrentQuote(); ok && current.ID == id {
		return current, nil
	}
	return s.history.Get(r.Context(), sessionIDFrom(r), id)
}

func (s *server) buildExport(r *http.Request, id string) (export.Document, error) {
	q, err := s.lookupQuote(r, id)
	if err != nil {
		return export.Document{}, err
	}

	material, err := s.catalog.Get(r.Context(), q.Configuration.MaterialID)
	if err != nil {
		return export.Document{}, fmt.Errorf("load material for export: %w", err)
	}

	return export.Build(q, material, time.Now()), nil
}

func (s *server) handleExportQuote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.buildExport(r, id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	raw, err := doc.JSON()
	if err != nil {
		s.log.Error("quote export failed", zap.Error(err))
		s.writeError(w, &quote.Error{Kind: quote.KindPersistence, Message: "quote export failed"})
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="quote-%s.json"`, id))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func (s *server) handleExportQuotePDF(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.buildExport(r, id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="quote-%s.pdf"`, id))
	if err := doc.PDF(w); err != nil {
		s.log.Error("quote pdf export failed", zap.Error(err))
	}
}

func (s *server) handleQuoteText(w http.ResponseWriter, r *http.Request) {
	doc, err := s.buildExport(r, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc.Text()))
}

func (s *server) handleOrderQuote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	manager := s.managerFor(r)

	current, ok := manager.CurrentQuote()
	if !ok || current.ID != id {
		s.writeError(w, &quote.Error{Kind: quote.KindNotFound, Message: "quote not found"})
		return
	}

	rounded := current.Calculation.Rounded()
	confirmation, err := s.gateway.Charge(r.Context(), current.ID, rounded.Total, rounded.Currency)
	if err != nil {
		s.log.Warn("payment failed", zap.String("quote_id", current.ID), zap.Error(err))
		s.writeError(w, &quote.Error{Kind: quote.KindConflict, Message: "payment was not confirmed"})
		return
	}

	ordered, err := manager.MarkOrdered(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"quote":        presentQuote(ordered),
		"confirmation": confirmation,
	})
}
