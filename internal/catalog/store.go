package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	json "github.com/goccy/go-json"
)

// ErrNotFound is returned when a material id is not in the catalog.
var ErrNotFound = errors.New("material not found")

// Store is a read-through cache over the materials table. The catalog is
// reference data: the quoting flow never mutates it, so the cache is filled
// once and shared by every session. Refresh reloads after admin edits.
//
// An unreachable backing store surfaces as an error, never as an empty
// catalog, so callers cannot silently price against nothing.
type Store struct {
	db *sql.DB

	mu     sync.RWMutex
	byID   map[string]Material
	order  []string
	loaded bool
}

// NewStore creates a Store over the given database.
func NewStore(database *sql.DB) *Store {
	return &Store{db: database, byID: make(map[string]Material)}
}

// List returns all active materials in insertion order.
func (s *Store) List(ctx context.Context) ([]Material, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	materials := make([]Material, 0, len(s.order))
	for _, id := range s.order {
		materials = append(materials, s.byID[id])
	}
	return materials, nil
}

// Get returns one material by id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (Material, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return Material{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.byID[id]
	if !ok {
		return Material{}, fmt.Errorf("material %q: %w", id, ErrNotFound)
	}
	return m, nil
}

// Refresh discards the cache and reloads from the backing store.
func (s *Store) Refresh(ctx context.Context) error {
	materials, order, err := s.loadAll(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.byID = materials
	s.order = order
	s.loaded = true
	s.mu.Unlock()
	return nil
}

func (s *Store) ensureLoaded(ctx context.Context) error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return nil
	}
	return s.Refresh(ctx)
}

func (s *Store) loadAll(ctx context.Context) (map[string]Material, []string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, base_price_per_gram, min_order_quantity,
		       rush_surcharge_percent, colors_json, discounts_json,
		       properties_json, spec_json
		FROM materials
		WHERE active = TRUE
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("query materials: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]Material)
	order := make([]string, 0)
	for rows.Next() {
		var (
			m          Material
			colors     string
			discounts  string
			properties string
			spec       string
		)
		if err := rows.Scan(
			&m.ID, &m.Name, &m.Category, &m.BasePricePerGram, &m.MinOrderQuantity,
			&m.RushSurchargePercent, &colors, &discounts, &properties, &spec,
		); err != nil {
			return nil, nil, fmt.Errorf("scan material: %w", err)
		}

		if err := json.Unmarshal([]byte(colors), &m.Colors); err != nil {
			return nil, nil, fmt.Errorf("decode colors for material %s: %w", m.ID, err)
		}
		if err := json.Unmarshal([]byte(discounts), &m.VolumeDiscounts); err != nil {
			return nil, nil, fmt.Errorf("decode discounts for material %s: %w", m.ID, err)
		}
		if err := json.Unmarshal([]byte(properties), &m.Properties); err != nil {
			return nil, nil, fmt.Errorf("decode properties for material %s: %w", m.ID, err)
		}
		if err := json.Unmarshal([]byte(spec), &m.Spec); err != nil {
			return nil, nil, fmt.Errorf("decode spec for material %s: %w", m.ID, err)
		}

		byID[m.ID] = m
		order = append(order, m.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate materials: %w", err)
	}

	return byID, order, nil
}
