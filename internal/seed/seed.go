package seed

import (
	"database/sql"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/fabworks/printquote/internal/catalog"
)

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
}

// Run inserts the default material catalog in an idempotent way: materials
// that already exist are left untouched, so admin edits survive restarts.
func Run(db *sql.DB) (Stats, error) {
	tx, err := db.Begin()
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	stats := Stats{}
	for _, m := range DefaultMaterials() {
		inserted, err := ensureMaterial(tx, m)
		if err != nil {
			_ = tx.Rollback()
			return Stats{}, err
		}
		if inserted {
			stats.Inserts++
		}
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

func ensureMaterial(tx *sql.Tx, m catalog.Material) (bool, error) {
	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM materials WHERE id = ? LIMIT 1)`, m.ID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check material %s existence: %w", m.ID, err)
	}
	if exists {
		return false, nil
	}

	colors, err := json.Marshal(m.Colors)
	if err != nil {
		return false, fmt.Errorf("encode colors for %s: %w", m.ID, err)
	}
	discounts, err := json.Marshal(m.VolumeDiscounts)
	if err != nil {
		return false, fmt.Errorf("encode discounts for %s: %w", m.ID, err)
	}
	properties, err := json.Marshal(m.Properties)
	if err != nil {
		return false, fmt.Errorf("encode properties for %s: %w", m.ID, err)
	}
	spec, err := json.Marshal(m.Spec)
	if err != nil {
		return false, fmt.Errorf("encode spec for %s: %w", m.ID, err)
	}

	if _, err := tx.Exec(`
		INSERT INTO materials (
			id, name, category, base_price_per_gram, min_order_quantity,
			rush_surcharge_percent, colors_json, discounts_json, properties_json, spec_json, active
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, TRUE)
	`, m.ID, m.Name, string(m.Category), m.BasePricePerGram, m.MinOrderQuantity,
		m.RushSurchargePercent, string(colors), string(discounts), string(properties), string(spec)); err != nil {
		return false, fmt.Errorf("insert material %s: %w", m.ID, err)
	}

	return true, nil
}

// DefaultMaterials is the compiled-in catalog for a fresh deployment.
func DefaultMaterials() []catalog.Material {
	standardTiers := []catalog.DiscountTier{
		{MinimumQuantity: 10, DiscountPercent: 5},
		{MinimumQuantity: 25, DiscountPercent: 10},
		{MinimumQuantity: 100, DiscountPercent: 15},
	}

	return []catalog.Material{
		{
			ID:                   "pla",
			Name:                 "PLA",
			Category:             catalog.CategoryPlastic,
			BasePricePerGram:     0.025,
			MinOrderQuantity:     1,
			RushSurchargePercent: 20,
			Colors: []catalog.Color{
				{Name: "White", Availability: catalog.InStock},
				{Name: "Black", Availability: catalog.InStock},
				{Name: "Gray", Availability: catalog.InStock},
				{Name: "Red", Availability: catalog.InStock, SurchargePercent: 5},
				{Name: "Blue", Availability: catalog.LowStock, SurchargePercent: 5},
				{Name: "Custom mix", Availability: catalog.CustomMix, SurchargePercent: 12},
			},
			VolumeDiscounts: standardTiers,
			Properties:      catalog.Properties{Strength: 5, Flexibility: 3, Detail: 8, Durability: 5, MaxTemperature: 60},
			Spec: catalog.Spec{
				LayerHeightMM: catalog.SpecRange{Min: 0.1, Max: 0.3, Recommended: 0.2},
				InfillPercent: catalog.SpecRange{Min: 5, Max: 100, Recommended: 20},
			},
		},
		{
			ID:                   "abs",
			Name:                 "ABS",
			Category:             catalog.CategoryPlastic,
			BasePricePerGram:     0.028,
			MinOrderQuantity:     1,
			RushSurchargePercent: 20,
			Colors: []catalog.Color{
				{Name: "White", Availability: catalog.InStock},
				{Name: "Black", Availability: catalog.InStock},
				{Name: "Yellow", Availability: catalog.OutOfStock, SurchargePercent: 5},
			},
			VolumeDiscounts: standardTiers,
			Properties:      catalog.Properties{Strength: 7, Flexibility: 4, Detail: 6, Durability: 8, MaxTemperature: 105},
			Spec: catalog.Spec{
				LayerHeightMM: catalog.SpecRange{Min: 0.1, Max: 0.3, Recommended: 0.2},
				InfillPercent: catalog.SpecRange{Min: 10, Max: 100, Recommended: 25},
			},
		},
		{
			ID:                   "petg",
			Name:                 "PETG",
			Category:             catalog.CategoryPlastic,
			BasePricePerGram:     0.035,
			MinOrderQuantity:     1,
			RushSurchargePercent: 25,
			Colors: []catalog.Color{
				{Name: "Clear", Availability: catalog.InStock},
				{Name: "Black", Availability: catalog.InStock},
				{Name: "Green", Availability: catalog.LowStock, SurchargePercent: 5},
			},
			VolumeDiscounts: []catalog.DiscountTier{
				{MinimumQuantity: 10, DiscountPercent: 5},
				{MinimumQuantity: 50, DiscountPercent: 12},
			},
			Properties: catalog.Properties{Strength: 7, Flexibility: 5, Detail: 6, Durability: 8, MaxTemperature: 80},
			Spec: catalog.Spec{
				LayerHeightMM: catalog.SpecRange{Min: 0.1, Max: 0.3, Recommended: 0.2},
				InfillPercent: catalog.SpecRange{Min: 10, Max: 100, Recommended: 25},
			},
		},
		{
			ID:                   "tpu",
			Name:                 "TPU",
			Category:             catalog.CategorySpecialty,
			BasePricePerGram:     0.045,
			MinOrderQuantity:     1,
			RushSurchargePercent: 30,
			Colors: []catalog.Color{
				{Name: "Black", Availability: catalog.InStock},
				{Name: "White", Availability: catalog.LowStock},
			},
			VolumeDiscounts: []catalog.DiscountTier{
				{MinimumQuantity: 20, DiscountPercent: 8},
			},
			Properties: catalog.Properties{Strength: 4, Flexibility: 10, Detail: 4, Durability: 9, MaxTemperature: 80},
			Spec: catalog.Spec{
				LayerHeightMM:    catalog.SpecRange{Min: 0.15, Max: 0.3, Recommended: 0.25},
				InfillPercent:    catalog.SpecRange{Min: 10, Max: 60, Recommended: 20},
				SupportsRequired: true,
			},
		},
	}
}
