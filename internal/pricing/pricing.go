package pricing

import (
	"fmt"
	"math"
	"time"

	"github.com/fabworks/printquote/internal/catalog"
	"github.com/fabworks/printquote/internal/slicer"
)

// Rates are the deployment-wide pricing parameters shared across all
// calculations. Material-specific coefficients come from the catalog.
type Rates struct {
	Currency          string
	MachineRatePerMin float64
	SetupFee          float64
	TaxPercent        float64

	// Floors applied per unit so degenerate meshes never price at zero.
	MinMaterialCost float64
	MinLaborCost    float64

	// Flat per-unit fee for each post-processing service.
	PostProcessingFees map[string]float64

	// Delivery estimation.
	StandardLeadDays int
	RushLeadDays     int
	UrgentLeadDays   int
	PerItemHours     float64
}

// DefaultRates returns the built-in rate card. Deployments override
// individual values from configuration.
func DefaultRates() Rates {
	return Rates{
		Currency:          "USD",
		MachineRatePerMin: 0.15,
		SetupFee:          5.00,
		TaxPercent:        0,
		MinMaterialCost:   0.50,
		MinLaborCost:      1.00,
		PostProcessingFees: map[string]float64{
			"sanding":         5.00,
			"painting":        15.00,
			"smoothing":       10.00,
			"drilling":        4.00,
			"threading":       6.00,
			"support_removal": 3.00,
		},
		StandardLeadDays: 7,
		RushLeadDays:     3,
		UrgentLeadDays:   1,
		PerItemHours:     2,
	}
}

// Order is the slice of a quote configuration the calculator needs.
type Order struct {
	Quantity       int
	Urgency        string
	Color          string
	PostProcessing []string
}

// Line is one auditable entry of the cost breakdown. Discounts appear as
// negative-total lines, so the subtotal always equals the sum of lines.
type Line struct {
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	Total       float64 `json:"total"`
}

// Calculation is the itemized outcome of pricing one configuration against
// one slicing result. All currency values keep full float64 precision;
// rounding happens only in Rounded copies at presentation boundaries.
type Calculation struct {
	MaterialCost       float64   `json:"materialCost"`
	LaborCost          float64   `json:"laborCost"`
	SetupCost          float64   `json:"setupCost"`
	PostProcessingCost float64   `json:"postProcessingCost"`
	RushSurcharge      float64   `json:"rushSurcharge"`
	QuantityDiscount   float64   `json:"quantityDiscount"`
	Subtotal           float64   `json:"subtotal"`
	Taxes              float64   `json:"taxes"`
	Total              float64   `json:"total"`
	Currency           string    `json:"currency"`
	EstimatedDelivery  time.Time `json:"estimatedDelivery"`
	Breakdown          []Line    `json:"breakdown"`
}

// A complexity score of 50 is neutral; the adjustment scales labor by up to
// 20% in either direction. Zero means the slicer did not report a score.
const (
	complexityNeutral = 50.0
	complexityImpact  = 0.2
)

var serviceLabels = map[string]string{
	"sanding":         "Sanding",
	"painting":        "Painting",
	"smoothing":       "Vapor smoothing",
	"drilling":        "Drilling",
	"threading":       "Thread tapping",
	"support_removal": "Support removal",
}

// Calculate prices an order deterministically: identical inputs always
// produce an identical breakdown.
//
// The rush surcharge and the quantity discount both apply to the same
// pre-adjustment (material + labor) x quantity base; they are never
// compounded on each other. Setup and post-processing are excluded from
// both.
func Calculate(order Order, slicing slicer.Result, material catalog.Material, rates Rates, now time.Time) (Calculation, error) {
	if order.Quantity < 1 {
		return Calculation{}, fmt.Errorf("quantity must be at least 1, got %d", order.Quantity)
	}
	if err := slicing.Validate(); err != nil {
		return Calculation{}, fmt.Errorf("invalid slicing result: %w", err)
	}

	qty := float64(order.Quantity)

	// Material cost per unit, with the selected color's flat percentage
	// surcharge folded in.
	materialUnit := slicing.FilamentUsedGrams * material.BasePricePerGram
	colorNote := ""
	if order.Color != "" {
		color, ok := material.ColorByName(order.Color)
		if !ok {
			return Calculation{}, fmt.Errorf("color %q is not in the catalog for %s", order.Color, material.Name)
		}
		materialUnit *= 1 + color.SurchargePercent/100
		colorNote = ", " + color.Name
	}
	if materialUnit < rates.MinMaterialCost {
		materialUnit = rates.MinMaterialCost
	}

	// Labor cost per unit, adjusted by the slicer's complexity heuristic.
	laborUnit := slicing.PrintTimeMinutes * rates.MachineRatePerMin
	if slicing.ComplexityScore > 0 {
		laborUnit *= 1 + complexityImpact*(slicing.ComplexityScore/complexityNeutral-1)
	}
	if laborUnit < rates.MinLaborCost {
		laborUnit = rates.MinLaborCost
	}

	breakdown := []Line{
		{
			Category:    "Materials",
			Description: fmt.Sprintf("%s filament (%.1fg%s)", material.Name, slicing.FilamentUsedGrams, colorNote),
			Quantity:    order.Quantity,
			UnitPrice:   materialUnit,
			Total:       materialUnit * qty,
		},
		{
			Category:    "Production",
			Description: fmt.Sprintf("Printing time (%.1f hours)", slicing.PrintTimeMinutes/60),
			Quantity:    order.Quantity,
			UnitPrice:   laborUnit,
			Total:       laborUnit * qty,
		},
		{
			Category:    "Setup",
			Description: "Job preparation",
			Quantity:    1,
			UnitPrice:   rates.SetupFee,
			Total:       rates.SetupFee,
		},
	}

	postProcessing := 0.0
	for _, svc := range order.PostProcessing {
		fee, ok := rates.PostProcessingFees[svc]
		if !ok {
			return Calculation{}, fmt.Errorf("no fee configured for post-processing service %q", svc)
		}
		label, ok := serviceLabels[svc]
		if !ok {
			label = svc
		}
		breakdown = append(breakdown, Line{
			Category:    "Post-processing",
			Description: label,
			Quantity:    order.Quantity,
			UnitPrice:   fee,
			Total:       fee * qty,
		})
		postProcessing += fee * qty
	}

	// Surcharge and discount share the pre-adjustment production base.
	productionBase := (materialUnit + laborUnit) * qty

	rush := 0.0
	if order.Urgency == "rush" || order.Urgency == "urgent" {
		rush = productionBase * material.RushSurchargePercent / 100
		if rush > 0 {
			breakdown = append(breakdown, Line{
				Category:    "Surcharges",
				Description: fmt.Sprintf("Rush order premium (%.0f%%)", material.RushSurchargePercent),
				Quantity:    1,
				UnitPrice:   rush,
				Total:       rush,
			})
		}
	}

	discount := 0.0
	if tier := material.DiscountFor(order.Quantity); tier.DiscountPercent > 0 {
		discount = -productionBase * tier.DiscountPercent / 100
		breakdown = append(breakdown, Line{
			Category:    "Discounts",
			Description: fmt.Sprintf("Quantity discount (%.0f%%, %d+ units)", tier.DiscountPercent, tier.MinimumQuantity),
			Quantity:    1,
			UnitPrice:   discount,
			Total:       discount,
		})
	}

	subtotal := 0.0
	for _, line := range breakdown {
		subtotal += line.Total
	}
	taxes := subtotal * rates.TaxPercent / 100
	total := subtotal + taxes

	calc := Calculation{
		MaterialCost:       materialUnit,
		LaborCost:          laborUnit,
		SetupCost:          rates.SetupFee,
		PostProcessingCost: postProcessing,
		RushSurcharge:      rush,
		QuantityDiscount:   discount,
		Subtotal:           subtotal,
		Taxes:              taxes,
		Total:              total,
		Currency:           rates.Currency,
		EstimatedDelivery:  estimateDelivery(order, rates, now),
		Breakdown:          breakdown,
	}

	if err := calc.CheckInvariants(); err != nil {
		return Calculation{}, err
	}

	return calc, nil
}

// estimateDelivery adds the urgency lead time plus a per-item production
// allowance that scales sub-linearly with quantity: doubling the order does
// not double the production window.
func estimateDelivery(order Order, rates Rates, now time.Time) time.Time {
	leadDays := rates.StandardLeadDays
	switch order.Urgency {
	case "rush":
		leadDays = rates.RushLeadDays
	case "urgent":
		leadDays = rates.UrgentLeadDays
	}

	productionHours := rates.PerItemHours * math.Sqrt(float64(order.Quantity))
	return now.
		Add(time.Duration(leadDays) * 24 * time.Hour).
		Add(time.Duration(productionHours * float64(time.Hour)))
}

// CheckInvariants verifies the auditability guarantees: the subtotal equals
// the sum of breakdown line totals, the total equals subtotal plus taxes,
// and no roll-up value is negative or non-finite.
func (c Calculation) CheckInvariants() error {
	sum := 0.0
	for _, line := range c.Breakdown {
		sum += line.Total
	}
	if math.Abs(sum-c.Subtotal) > 0.01 {
		return fmt.Errorf("breakdown lines sum to %.4f but subtotal is %.4f", sum, c.Subtotal)
	}
	if math.Abs(c.Subtotal+c.Taxes-c.Total) > 0.01 {
		return fmt.Errorf("total %.4f does not equal subtotal %.4f plus taxes %.4f", c.Total, c.Subtotal, c.Taxes)
	}
	for _, v := range []float64{c.Subtotal, c.Taxes, c.Total} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite value in calculation")
		}
	}
	if c.Total < 0 {
		return fmt.Errorf("negative total %.4f", c.Total)
	}
	return nil
}

// Rounded returns a copy with every currency value rounded to two decimal
// places, for presentation and export. The in-memory calculation keeps full
// precision so repeated derivations do not compound rounding error.
func (c Calculation) Rounded() Calculation {
	out := c
	out.MaterialCost = round2(c.MaterialCost)
	out.LaborCost = round2(c.LaborCost)
	out.SetupCost = round2(c.SetupCost)
	out.PostProcessingCost = round2(c.PostProcessingCost)
	out.RushSurcharge = round2(c.RushSurcharge)
	out.QuantityDiscount = round2(c.QuantityDiscount)
	out.Subtotal = round2(c.Subtotal)
	out.Taxes = round2(c.Taxes)
	out.Total = round2(c.Total)
	out.Breakdown = make([]Line, len(c.Breakdown))
	for i, line := range c.Breakdown {
		line.UnitPrice = round2(line.UnitPrice)
		line.Total = round2(line.Total)
		out.Breakdown[i] = line
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
