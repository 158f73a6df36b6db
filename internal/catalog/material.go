package catalog

// Category groups materials by manufacturing family.
type Category string

const (
	CategoryPlastic   Category = "plastic"
	CategoryResin     Category = "resin"
	CategoryMetal     Category = "metal"
	CategoryComposite Category = "composite"
	CategorySpecialty Category = "specialty"
)

// Availability describes the stock state of a material color.
type Availability string

const (
	InStock    Availability = "in_stock"
	LowStock   Availability = "low_stock"
	OutOfStock Availability = "out_of_stock"
	CustomMix  Availability = "custom"
)

// Color is a purchasable finish for a material. SurchargePercent is a flat
// percentage applied to the material cost component.
type Color struct {
	Name             string       `json:"name"`
	Availability     Availability `json:"availability"`
	SurchargePercent float64      `json:"surchargePercent"`
}

// DiscountTier grants a percentage reduction once an order reaches
// MinimumQuantity units.
type DiscountTier struct {
	MinimumQuantity int     `json:"minimumQuantity"`
	DiscountPercent float64 `json:"discountPercentage"`
}

// Properties holds physical characteristics on 1-10 scales.
type Properties struct {
	Strength       int `json:"strength"`
	Flexibility    int `json:"flexibility"`
	Detail         int `json:"detail"`
	Durability     int `json:"durability"`
	MaxTemperature int `json:"maxTemperatureC"`
}

// SpecRange bounds a print option for a material.
type SpecRange struct {
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Recommended float64 `json:"recommended"`
}

// Spec describes the parameter ranges a material supports.
type Spec struct {
	LayerHeightMM    SpecRange `json:"layerHeightMm"`
	InfillPercent    SpecRange `json:"infillPercent"`
	SupportsRequired bool      `json:"supportsRequired"`
}

// Material is immutable reference data: pricing coefficients, valid parameter
// ranges, colors and discount tiers for one printable material.
type Material struct {
	ID                   string         `json:"id"`
	Name                 string         `json:"name"`
	Category             Category       `json:"category"`
	BasePricePerGram     float64        `json:"basePricePerGram"`
	MinOrderQuantity     int            `json:"minOrderQuantity"`
	RushSurchargePercent float64        `json:"rushSurchargePercent"`
	Colors               []Color        `json:"colors"`
	VolumeDiscounts      []DiscountTier `json:"volumeDiscounts"`
	Properties           Properties     `json:"properties"`
	Spec                 Spec           `json:"spec"`
}

// ColorByName returns the named color, if the material offers it.
func (m Material) ColorByName(name string) (Color, bool) {
	for _, c := range m.Colors {
		if c.Name == name {
			return c, true
		}
	}
	return Color{}, false
}

// DiscountFor returns the highest tier the quantity qualifies for.
// The zero tier means no discount.
func (m Material) DiscountFor(quantity int) DiscountTier {
	best := DiscountTier{}
	for _, tier := range m.VolumeDiscounts {
		if quantity >= tier.MinimumQuantity && tier.DiscountPercent > best.DiscountPercent {
			best = tier
		}
	}
	return best
}
