package quote

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fabworks/printquote/internal/catalog"
)

// Catalog is the slice of the material catalog the configuration store and
// lifecycle manager depend on.
type Catalog interface {
	Get(ctx context.Context, id string) (catalog.Material, error)
}

// Validation is the outcome of checking a configuration against the catalog.
// Errors block calculation; warnings do not.
type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// OK reports whether calculation may proceed.
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// ConfigStore holds the in-progress configuration for one quote session.
// All mutations are serialized; each mutation is a partial merge so fields
// set earlier survive later edits.
type ConfigStore struct {
	catalog     Catalog
	maxQuantity int

	mu  sync.Mutex
	cfg Configuration
}

// NewConfigStore creates a store with a fresh draft configuration.
func NewConfigStore(cat Catalog, maxQuantity int) *ConfigStore {
	return &ConfigStore{
		catalog:     cat,
		maxQuantity: maxQuantity,
		cfg:         NewConfiguration(),
	}
}

// Snapshot returns a deep copy of the current configuration.
func (s *ConfigStore) Snapshot() Configuration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Clone()
}

// Apply merges a typed patch into the configuration. Values that fail
// structural checks (quantity bounds, unknown enum values, unknown material)
// are rejected as a whole; the configuration is left unchanged. Range
// mismatches against the material spec are not checked here: they surface as
// warnings from Validate, never as rejections.
func (s *ConfigStore) Apply(ctx context.Context, patch ConfigurationPatch) error {
	if err := s.checkPatch(ctx, patch); err != nil {
		return err
	}

	s.mu.Lock()
	patch.ApplyTo(&s.cfg)
	s.mu.Unlock()
	return nil
}

// SetMaterial replaces the selected material. Print options that fall
// outside the new material's ranges are preserved, not clamped; the next
// Validate call reports them as warnings.
func (s *ConfigStore) SetMaterial(ctx context.Context, materialID string) error {
	return s.Apply(ctx, ConfigurationPatch{MaterialID: &materialID})
}

// SetPrintOptions shallow-merges the patch into the current print options.
func (s *ConfigStore) SetPrintOptions(patch PrintOptionsPatch) {
	s.mu.Lock()
	patch.ApplyTo(&s.cfg.PrintOptions)
	s.mu.Unlock()
}

// SetQuantity replaces the order quantity, rejecting out-of-bounds values.
func (s *ConfigStore) SetQuantity(n int) error {
	if n < 1 {
		return newValidationError([]string{"quantity must be at least 1"})
	}
	if n > s.maxQuantity {
		return newValidationError([]string{fmt.Sprintf("quantity must not exceed %d", s.maxQuantity)})
	}

	s.mu.Lock()
	s.cfg.Quantity = n
	s.mu.Unlock()
	return nil
}

func (s *ConfigStore) checkPatch(ctx context.Context, patch ConfigurationPatch) error {
	details := make([]string, 0)

	if patch.Quantity != nil {
		if *patch.Quantity < 1 {
			details = append(details, "quantity must be at least 1")
		} else if *patch.Quantity > s.maxQuantity {
			details = append(details, fmt.Sprintf("quantity must not exceed %d", s.maxQuantity))
		}
	}
	if patch.Urgency != nil && !patch.Urgency.Valid() {
		details = append(details, fmt.Sprintf("unknown urgency %q", *patch.Urgency))
	}
	if patch.PostProcessing != nil {
		for _, svc := range *patch.PostProcessing {
			if !svc.Valid() {
				details = append(details, fmt.Sprintf("unknown post-processing service %q", svc))
			}
		}
	}
	if patch.PrintOptions != nil && patch.PrintOptions.SupportGeneration != nil &&
		!patch.PrintOptions.SupportGeneration.Valid() {
		details = append(details, fmt.Sprintf("unknown support mode %q", *patch.PrintOptions.SupportGeneration))
	}

	if patch.MaterialID != nil && *patch.MaterialID != "" {
		if _, err := s.catalog.Get(ctx, *patch.MaterialID); err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				details = append(details, fmt.Sprintf("material %q is not available", *patch.MaterialID))
			} else {
				return fmt.Errorf("look up material: %w", err)
			}
		}
	}

	if len(details) > 0 {
		return newValidationError(details)
	}
	return nil
}

// Validate checks the configuration against required fields and the selected
// material's specification ranges. Out-of-range print options are reported
// as warnings only; the user keeps what they typed.
func (s *ConfigStore) Validate(ctx context.Context) (Validation, error) {
	cfg := s.Snapshot()
	return ValidateConfiguration(ctx, s.catalog, cfg, s.maxQuantity)
}

// ValidateConfiguration applies the validation rules to an arbitrary
// configuration snapshot.
func ValidateConfiguration(ctx context.Context, cat Catalog, cfg Configuration, maxQuantity int) (Validation, error) {
	v := Validation{Errors: []string{}, Warnings: []string{}}

	if cfg.UploadID == "" {
		v.Errors = append(v.Errors, "an uploaded model is required")
	}
	if cfg.MaterialID == "" {
		v.Errors = append(v.Errors, "material is required")
	}
	if cfg.Quantity < 1 {
		v.Errors = append(v.Errors, "quantity must be at least 1")
	} else if cfg.Quantity > maxQuantity {
		v.Errors = append(v.Errors, fmt.Sprintf("quantity must not exceed %d", maxQuantity))
	}

	if cfg.MaterialID == "" {
		return v, nil
	}

	mat, err := cat.Get(ctx, cfg.MaterialID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			v.Errors = append(v.Errors, fmt.Sprintf("material %q is no longer available", cfg.MaterialID))
			return v, nil
		}
		return Validation{}, fmt.Errorf("look up material: %w", err)
	}

	if cfg.Quantity >= 1 && cfg.Quantity < mat.MinOrderQuantity {
		v.Errors = append(v.Errors, fmt.Sprintf("%s requires a minimum order of %d", mat.Name, mat.MinOrderQuantity))
	}

	if cfg.SelectedColor != "" {
		color, ok := mat.ColorByName(cfg.SelectedColor)
		if !ok {
			v.Errors = append(v.Errors, fmt.Sprintf("color %q is not offered for %s", cfg.SelectedColor, mat.Name))
		} else if color.Availability == catalog.OutOfStock {
			v.Warnings = append(v.Warnings, fmt.Sprintf("color %q is currently out of stock", cfg.SelectedColor))
		}
	}

	opts := cfg.PrintOptions
	if lh := mat.Spec.LayerHeightMM; opts.LayerHeightMM < lh.Min || opts.LayerHeightMM > lh.Max {
		v.Warnings = append(v.Warnings, fmt.Sprintf(
			"layer height %.2fmm is outside the %.2f-%.2fmm range recommended for %s",
			opts.LayerHeightMM, lh.Min, lh.Max, mat.Name))
	}
	if in := mat.Spec.InfillPercent; float64(opts.InfillPercentage) < in.Min || float64(opts.InfillPercentage) > in.Max {
		v.Warnings = append(v.Warnings, fmt.Sprintf(
			"infill %d%% is outside the %.0f-%.0f%% range recommended for %s",
			opts.InfillPercentage, in.Min, in.Max, mat.Name))
	}
	if mat.Spec.SupportsRequired && opts.SupportGeneration == SupportNone {
		v.Warnings = append(v.Warnings, fmt.Sprintf("%s usually requires support structures", mat.Name))
	}

	return v, nil
}
