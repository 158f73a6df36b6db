package pricing

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/fabworks/printquote/internal/catalog"
	"github.com/fabworks/printquote/internal/slicer"
)

func nearlyEqual(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
}

func testMaterial() catalog.Material {
	return catalog.Material{
		ID:                   "pla",
		Name:                 "PLA",
		BasePricePerGram:     0.025,
		MinOrderQuantity:     1,
		RushSurchargePercent: 20,
		Colors: []catalog.Color{
			{Name: "White", Availability: catalog.InStock},
			{Name: "Red", Availability: catalog.InStock, SurchargePercent: 5},
		},
		VolumeDiscounts: []catalog.DiscountTier{
			{MinimumQuantity: 10, DiscountPercent: 5},
			{MinimumQuantity: 25, DiscountPercent: 10},
		},
	}
}

func testSlicing() slicer.Result {
	return slicer.Result{
		PrintTimeMinutes:  120,
		FilamentUsedGrams: 100,
		LayerCount:        250,
		ComplexityScore:   50,
	}
}

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func TestCalculate_SingleUnitStandard(t *testing.T) {
	calc, err := Calculate(Order{Quantity: 1, Urgency: "standard"}, testSlicing(), testMaterial(), DefaultRates(), testNow)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	// 100g x 0.025 = 2.50 material, 120min x 0.15 = 18 labor, 5 setup.
	nearlyEqual(t, "materialCost", calc.MaterialCost, 2.5)
	nearlyEqual(t, "laborCost", calc.LaborCost, 18)
	nearlyEqual(t, "setupCost", calc.SetupCost, 5)
	nearlyEqual(t, "subtotal", calc.Subtotal, 25.5)
	nearlyEqual(t, "taxes", calc.Taxes, 0)
	nearlyEqual(t, "total", calc.Total, 25.5)

	if len(calc.Breakdown) != 3 {
		t.Fatalf("breakdown has %d lines, want 3", len(calc.Breakdown))
	}
}

func TestCalculate_RushSurcharge(t *testing.T) {
	calc, err := Calculate(Order{Quantity: 1, Urgency: "rush"}, testSlicing(), testMaterial(), DefaultRates(), testNow)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	// 20% of the (material + labor) base of 20.50; setup is excluded.
	nearlyEqual(t, "rushSurcharge", calc.RushSurcharge, 4.1)
	nearlyEqual(t, "total", calc.Total, 29.6)
}

func TestCalculate_QuantityDiscount(t *testing.T) {
	calc, err := Calculate(Order{Quantity: 10, Urgency: "standard"}, testSlicing(), testMaterial(), DefaultRates(), testNow)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	// Base (2.50 + 18) x 10 = 205; 5% tier applies at 10 units.
	nearlyEqual(t, "quantityDiscount", calc.QuantityDiscount, -10.25)
	nearlyEqual(t, "subtotal", calc.Subtotal, 25+180+5-10.25)

	found := false
	for _, line := range calc.Breakdown {
		if line.Category == "Discounts" {
			found = true
			if line.Total >= 0 {
				t.Fatalf("discount line total = %v, want negative", line.Total)
			}
		}
	}
	if !found {
		t.Fatal("breakdown has no discount line")
	}
}

func TestCalculate_RushAndDiscountShareBase(t *testing.T) {
	calc, err := Calculate(Order{Quantity: 10, Urgency: "rush"}, testSlicing(), testMaterial(), DefaultRates(), testNow)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	// Both apply to the same 205 base; the surcharge is never discounted and
	// the discount is never surcharged.
	nearlyEqual(t, "rushSurcharge", calc.RushSurcharge, 41)
	nearlyEqual(t, "quantityDiscount", calc.QuantityDiscount, -10.25)
	nearlyEqual(t, "total", calc.Total, 25+180+5+41-10.25)
}

func TestCalculate_ColorSurcharge(t *testing.T) {
	plain, err := Calculate(Order{Quantity: 1, Urgency: "standard", Color: "White"}, testSlicing(), testMaterial(), DefaultRates(), testNow)
	if err != nil {
		t.Fatalf("Calculate white: %v", err)
	}
	premium, err := Calculate(Order{Quantity: 1, Urgency: "standard", Color: "Red"}, testSlicing(), testMaterial(), DefaultRates(), testNow)
	if err != nil {
		t.Fatalf("Calculate red: %v", err)
	}

	nearlyEqual(t, "white materialCost", plain.MaterialCost, 2.5)
	nearlyEqual(t, "red materialCost", premium.MaterialCost, 2.625)
}

func TestCalculate_UnknownColorRejected(t *testing.T) {
	_, err := Calculate(Order{Quantity: 1, Urgency: "standard", Color: "Chartreuse"}, testSlicing(), testMaterial(), DefaultRates(), testNow)
	if err == nil {
		t.Fatal("expected error for unknown color")
	}
}

func TestCalculate_PostProcessingPerUnit(t *testing.T) {
	order := Order{Quantity: 2, Urgency: "standard", PostProcessing: []string{"sanding", "painting"}}
	calc, err := Calculate(order, testSlicing(), testMaterial(), DefaultRates(), testNow)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	// sanding 5 + painting 15, each per unit.
	nearlyEqual(t, "postProcessingCost", calc.PostProcessingCost, (5+15)*2)
}

func TestCalculate_UnknownServiceRejected(t *testing.T) {
	order := Order{Quantity: 1, Urgency: "standard", PostProcessing: []string{"gilding"}}
	_, err := Calculate(order, testSlicing(), testMaterial(), DefaultRates(), testNow)
	if err == nil {
		t.Fatal("expected error for unknown post-processing service")
	}
}

func TestCalculate_MinimumFloors(t *testing.T) {
	tiny := slicer.Result{PrintTimeMinutes: 1, FilamentUsedGrams: 1, LayerCount: 2, ComplexityScore: 50}
	calc, err := Calculate(Order{Quantity: 1, Urgency: "standard"}, tiny, testMaterial(), DefaultRates(), testNow)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	nearlyEqual(t, "materialCost", calc.MaterialCost, 0.5)
	nearlyEqual(t, "laborCost", calc.LaborCost, 1)
}

func TestCalculate_ComplexityAdjustsLabor(t *testing.T) {
	complex := testSlicing()
	complex.ComplexityScore = 75

	neutral, err := Calculate(Order{Quantity: 1, Urgency: "standard"}, testSlicing(), testMaterial(), DefaultRates(), testNow)
	if err != nil {
		t.Fatalf("Calculate neutral: %v", err)
	}
	adjusted, err := Calculate(Order{Quantity: 1, Urgency: "standard"}, complex, testMaterial(), DefaultRates(), testNow)
	if err != nil {
		t.Fatalf("Calculate complex: %v", err)
	}

	nearlyEqual(t, "neutral laborCost", neutral.LaborCost, 18)
	// Score 75 is halfway to the +20% cap: 18 x 1.1.
	nearlyEqual(t, "adjusted laborCost", adjusted.LaborCost, 19.8)
}

func TestCalculate_TaxAddedOnSubtotal(t *testing.T) {
	rates := DefaultRates()
	rates.TaxPercent = 10

	calc, err := Calculate(Order{Quantity: 1, Urgency: "standard"}, testSlicing(), testMaterial(), rates, testNow)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	nearlyEqual(t, "subtotal", calc.Subtotal, 25.5)
	nearlyEqual(t, "taxes", calc.Taxes, 2.55)
	nearlyEqual(t, "total", calc.Total, 28.05)
}

func TestCalculate_Deterministic(t *testing.T) {
	order := Order{Quantity: 10, Urgency: "rush", Color: "Red", PostProcessing: []string{"sanding"}}

	first, err := Calculate(order, testSlicing(), testMaterial(), DefaultRates(), testNow)
	if err != nil {
		t.Fatalf("first Calculate: %v", err)
	}
	second, err := Calculate(order, testSlicing(), testMaterial(), DefaultRates(), testNow)
	if err != nil {
		t.Fatalf("second Calculate: %v", err)
	}

	if first.Total != second.Total || first.Subtotal != second.Subtotal {
		t.Fatalf("identical inputs priced differently: %v vs %v", first.Total, second.Total)
	}
	if len(first.Breakdown) != len(second.Breakdown) {
		t.Fatalf("breakdown lengths differ: %d vs %d", len(first.Breakdown), len(second.Breakdown))
	}
	for i := range first.Breakdown {
		if first.Breakdown[i] != second.Breakdown[i] {
			t.Fatalf("breakdown line %d differs: %+v vs %+v", i, first.Breakdown[i], second.Breakdown[i])
		}
	}
}

func TestCalculate_SubtotalEqualsLineSum(t *testing.T) {
	orders := []Order{
		{Quantity: 1, Urgency: "standard"},
		{Quantity: 10, Urgency: "rush", Color: "Red"},
		{Quantity: 25, Urgency: "urgent", PostProcessing: []string{"sanding", "painting", "drilling"}},
	}
	for _, order := range orders {
		calc, err := Calculate(order, testSlicing(), testMaterial(), DefaultRates(), testNow)
		if err != nil {
			t.Fatalf("Calculate qty %d: %v", order.Quantity, err)
		}
		sum := 0.0
		for _, line := range calc.Breakdown {
			sum += line.Total
		}
		nearlyEqual(t, "line sum", sum, calc.Subtotal)
	}
}

func TestCalculate_PerUnitPriceNonincreasing(t *testing.T) {
	// The total itself can dip when an order crosses into a better discount
	// tier; what must never increase is the effective per-unit price.
	prev := math.Inf(1)
	for qty := 1; qty <= 120; qty++ {
		calc, err := Calculate(Order{Quantity: qty, Urgency: "standard"}, testSlicing(), testMaterial(), DefaultRates(), testNow)
		if err != nil {
			t.Fatalf("Calculate qty %d: %v", qty, err)
		}
		perUnit := calc.Total / float64(qty)
		if perUnit > prev+1e-9 {
			t.Fatalf("per-unit price rose from %v to %v at quantity %d", prev, perUnit, qty)
		}
		prev = perUnit
	}
}

func TestCalculate_RejectsInvalidInputs(t *testing.T) {
	if _, err := Calculate(Order{Quantity: 0, Urgency: "standard"}, testSlicing(), testMaterial(), DefaultRates(), testNow); err == nil {
		t.Fatal("expected error for zero quantity")
	}

	bad := testSlicing()
	bad.FilamentUsedGrams = math.NaN()
	if _, err := Calculate(Order{Quantity: 1, Urgency: "standard"}, bad, testMaterial(), DefaultRates(), testNow); err == nil {
		t.Fatal("expected error for NaN filament usage")
	}

	negative := testSlicing()
	negative.PrintTimeMinutes = -10
	if _, err := Calculate(Order{Quantity: 1, Urgency: "standard"}, negative, testMaterial(), DefaultRates(), testNow); err == nil {
		t.Fatal("expected error for negative print time")
	}
}

func TestEstimateDelivery_UrgencyLanes(t *testing.T) {
	rates := DefaultRates()

	standard, _ := Calculate(Order{Quantity: 1, Urgency: "standard"}, testSlicing(), testMaterial(), rates, testNow)
	rush, _ := Calculate(Order{Quantity: 1, Urgency: "rush"}, testSlicing(), testMaterial(), rates, testNow)
	urgent, _ := Calculate(Order{Quantity: 1, Urgency: "urgent"}, testSlicing(), testMaterial(), rates, testNow)

	wantStandard := testNow.Add(7*24*time.Hour + 2*time.Hour)
	if !standard.EstimatedDelivery.Equal(wantStandard) {
		t.Fatalf("standard delivery = %v, want %v", standard.EstimatedDelivery, wantStandard)
	}
	if !rush.EstimatedDelivery.Before(standard.EstimatedDelivery) {
		t.Fatal("rush delivery should be before standard")
	}
	if !urgent.EstimatedDelivery.Before(rush.EstimatedDelivery) {
		t.Fatal("urgent delivery should be before rush")
	}
}

func TestEstimateDelivery_SublinearInQuantity(t *testing.T) {
	one, _ := Calculate(Order{Quantity: 1, Urgency: "standard"}, testSlicing(), testMaterial(), DefaultRates(), testNow)
	four, _ := Calculate(Order{Quantity: 4, Urgency: "standard"}, testSlicing(), testMaterial(), DefaultRates(), testNow)

	// 4 units add sqrt(4) x 2h = 4h of production, not 8h.
	gap := four.EstimatedDelivery.Sub(one.EstimatedDelivery)
	if gap != 2*time.Hour {
		t.Fatalf("delivery gap for 4x quantity = %v, want 2h", gap)
	}
}

func TestRounded_TwoDecimalPlaces(t *testing.T) {
	calc, err := Calculate(Order{Quantity: 3, Urgency: "rush", Color: "Red"}, testSlicing(), testMaterial(), DefaultRates(), testNow)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	rounded := calc.Rounded()
	values := []float64{
		rounded.MaterialCost, rounded.LaborCost, rounded.SetupCost,
		rounded.PostProcessingCost, rounded.RushSurcharge, rounded.QuantityDiscount,
		rounded.Subtotal, rounded.Taxes, rounded.Total,
	}
	for _, v := range values {
		if math.Abs(v*100-math.Round(v*100)) > 1e-9 {
			t.Fatalf("value %v is not rounded to two decimals", v)
		}
	}

	// The original keeps full precision.
	if calc.MaterialCost == rounded.MaterialCost && calc.MaterialCost != math.Round(calc.MaterialCost*100)/100 {
		t.Fatal("Rounded mutated the original calculation")
	}
}

func TestCheckInvariants_CatchesDrift(t *testing.T) {
	calc, err := Calculate(Order{Quantity: 1, Urgency: "standard"}, testSlicing(), testMaterial(), DefaultRates(), testNow)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	calc.Subtotal += 1
	err = calc.CheckInvariants()
	if err == nil {
		t.Fatal("expected invariant violation after tampering with subtotal")
	}
	if !strings.Contains(err.Error(), "subtotal") {
		t.Fatalf("unexpected invariant error: %v", err)
	}
}
