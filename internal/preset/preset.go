package preset

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/fabworks/printquote/internal/quote"
)

// ErrNotFound is returned when a preset id is unknown.
var ErrNotFound = errors.New("preset not found")

// Preset is a named, reusable partial configuration. Applying one merges
// exactly the fields it sets; everything else is left untouched.
type Preset struct {
	ID          string                   `json:"id"`
	Name        string                   `json:"name"`
	Description string                   `json:"description"`
	Category    string                   `json:"category"`
	Config      quote.ConfigurationPatch `json:"configuration"`
	IsDefault   bool                     `json:"isDefault"`
	CreatedAt   time.Time                `json:"createdAt"`
}

func ptrOf[T any](v T) *T { return &v }

// Defaults returns the compiled-in system presets. They are constants, not
// fetched, so they stay available even when the persistence layer is down.
func Defaults() []Preset {
	return []Preset{
		{
			ID:          "default-standard",
			Name:        "Standard",
			Description: "Balanced quality and speed for everyday prints",
			Category:    "quality",
			IsDefault:   true,
			Config: quote.ConfigurationPatch{
				Urgency: ptrOf(quote.UrgencyStandard),
				PrintOptions: &quote.PrintOptionsPatch{
					LayerHeight:       ptrOf(0.2),
					InfillPercentage:  ptrOf(20),
					SupportGeneration: ptrOf(quote.SupportStandard),
					PrintSpeed:        ptrOf(50.0),
				},
			},
		},
		{
			ID:          "default-high-quality",
			Name:        "High Quality",
			Description: "Fine layers and dense shells for display pieces",
			Category:    "quality",
			IsDefault:   true,
			Config: quote.ConfigurationPatch{
				PrintOptions: &quote.PrintOptionsPatch{
					LayerHeight:       ptrOf(0.1),
					InfillPercentage:  ptrOf(30),
					SupportGeneration: ptrOf(quote.SupportStandard),
					PrintSpeed:        ptrOf(40.0),
					ShellThickness:    ptrOf(3),
					TopBottomLayers:   ptrOf(6),
					AdaptiveLayers:    ptrOf(true),
				},
			},
		},
		{
			ID:          "default-fast-print",
			Name:        "Fast Print",
			Description: "Thick layers and light infill when turnaround matters",
			Category:    "speed",
			IsDefault:   true,
			Config: quote.ConfigurationPatch{
				PrintOptions: &quote.PrintOptionsPatch{
					LayerHeight:       ptrOf(0.3),
					InfillPercentage:  ptrOf(10),
					SupportGeneration: ptrOf(quote.SupportMinimal),
					PrintSpeed:        ptrOf(70.0),
					TopBottomLayers:   ptrOf(3),
				},
			},
		},
		{
			ID:          "default-economy",
			Name:        "Economy",
			Description: "Lowest material use for cost-sensitive jobs",
			Category:    "economy",
			IsDefault:   true,
			Config: quote.ConfigurationPatch{
				Urgency: ptrOf(quote.UrgencyStandard),
				PrintOptions: &quote.PrintOptionsPatch{
					LayerHeight:       ptrOf(0.28),
					InfillPercentage:  ptrOf(8),
					SupportGeneration: ptrOf(quote.SupportNone),
					ShellThickness:    ptrOf(2),
				},
			},
		},
		{
			ID:          "default-functional",
			Name:        "Functional Parts",
			Description: "Dense infill and extra shells for mechanical loads",
			Category:    "quality",
			IsDefault:   true,
			Config: quote.ConfigurationPatch{
				PrintOptions: &quote.PrintOptionsPatch{
					LayerHeight:      ptrOf(0.2),
					InfillPercentage: ptrOf(60),
					ShellThickness:   ptrOf(4),
					TopBottomLayers:  ptrOf(6),
				},
			},
		},
	}
}

// Store serves system defaults merged with user-created presets. Defaults
// come first; a failure reading user presets still yields the defaults,
// together with the error so callers can warn.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store over the presets table.
func NewStore(database *sql.DB) *Store {
	return &Store{db: database}
}

// List returns defaults plus user presets, defaults first. When the backing
// store is unreachable the defaults are still returned along with the error.
func (s *Store) List(ctx context.Context) ([]Preset, error) {
	presets := Defaults()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, category, config_json, created_at
		FROM presets
		WHERE is_default = FALSE
		ORDER BY datetime(created_at), id
	`)
	if err != nil {
		return presets, fmt.Errorf("query presets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p          Preset
			configJSON string
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &configJSON, &p.CreatedAt); err != nil {
			return presets, fmt.Errorf("scan preset: %w", err)
		}
		if err := json.Unmarshal([]byte(configJSON), &p.Config); err != nil {
			return presets, fmt.Errorf("decode preset %s: %w", p.ID, err)
		}
		presets = append(presets, p)
	}
	if err := rows.Err(); err != nil {
		return presets, fmt.Errorf("iterate presets: %w", err)
	}

	return presets, nil
}

// Get returns one preset, checking the compiled-in defaults first.
func (s *Store) Get(ctx context.Context, id string) (Preset, error) {
	for _, p := range Defaults() {
		if p.ID == id {
			return p, nil
		}
	}

	var (
		p          Preset
		configJSON string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, category, config_json, created_at
		FROM presets
		WHERE id = ?
	`, id).Scan(&p.ID, &p.Name, &p.Description, &p.Category, &configJSON, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Preset{}, fmt.Errorf("preset %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return Preset{}, fmt.Errorf("query preset: %w", err)
	}

	if err := json.Unmarshal([]byte(configJSON), &p.Config); err != nil {
		return Preset{}, fmt.Errorf("decode preset %s: %w", p.ID, err)
	}
	return p, nil
}

// Create stores a user preset.
func (s *Store) Create(ctx context.Context, name, description string, cfg quote.ConfigurationPatch) (Preset, error) {
	if name == "" {
		return Preset{}, errors.New("preset name is required")
	}

	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return Preset{}, fmt.Errorf("encode preset configuration: %w", err)
	}

	p := Preset{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Category:    "custom",
		Config:      cfg,
		CreatedAt:   time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO presets (id, name, description, category, config_json, is_default, created_at)
		VALUES (?, ?, ?, ?, ?, FALSE, ?)
	`, p.ID, p.Name, p.Description, p.Category, string(configJSON), p.CreatedAt)
	if err != nil {
		return Preset{}, fmt.Errorf("insert preset: %w", err)
	}

	return p, nil
}
