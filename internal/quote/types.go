package quote

// Urgency selects the delivery lane and its surcharge treatment.
type Urgency string

const (
	UrgencyStandard Urgency = "standard"
	UrgencyRush     Urgency = "rush"
	UrgencyUrgent   Urgency = "urgent"
)

// Valid reports whether the urgency is one of the known lanes.
func (u Urgency) Valid() bool {
	switch u {
	case UrgencyStandard, UrgencyRush, UrgencyUrgent:
		return true
	}
	return false
}

// SupportGeneration controls how much support structure the slicer adds.
type SupportGeneration string

const (
	SupportNone      SupportGeneration = "none"
	SupportMinimal   SupportGeneration = "minimal"
	SupportStandard  SupportGeneration = "standard"
	SupportExtensive SupportGeneration = "extensive"
	SupportSoluble   SupportGeneration = "soluble"
)

// Valid reports whether the support mode is known.
func (s SupportGeneration) Valid() bool {
	switch s {
	case SupportNone, SupportMinimal, SupportStandard, SupportExtensive, SupportSoluble:
		return true
	}
	return false
}

// PostProcessing is an optional finishing service applied per printed unit.
type PostProcessing string

const (
	PostSanding        PostProcessing = "sanding"
	PostPainting       PostProcessing = "painting"
	PostSmoothing      PostProcessing = "smoothing"
	PostDrilling       PostProcessing = "drilling"
	PostThreading      PostProcessing = "threading"
	PostSupportRemoval PostProcessing = "support_removal"
)

// Valid reports whether the service is known.
func (p PostProcessing) Valid() bool {
	switch p {
	case PostSanding, PostPainting, PostSmoothing, PostDrilling, PostThreading, PostSupportRemoval:
		return true
	}
	return false
}

// PrintOptions are the slicer-facing print settings of a configuration.
type PrintOptions struct {
	LayerHeightMM     float64           `json:"layerHeight"`
	InfillPercentage  int               `json:"infillPercentage"`
	SupportGeneration SupportGeneration `json:"supportGeneration"`
	PrintSpeedMMS     float64           `json:"printSpeed"`
	ShellThickness    int               `json:"shellThickness"`
	TopBottomLayers   int               `json:"topBottomLayers"`
	BrimWidthMM       float64           `json:"brimWidth"`
	RaftEnabled       bool              `json:"raftEnabled"`
	AdaptiveLayers    bool              `json:"adaptiveLayers"`
}

// DefaultPrintOptions returns the settings a fresh configuration starts with.
func DefaultPrintOptions() PrintOptions {
	return PrintOptions{
		LayerHeightMM:     0.2,
		InfillPercentage:  20,
		SupportGeneration: SupportStandard,
		PrintSpeedMMS:     50,
		ShellThickness:    2,
		TopBottomLayers:   4,
	}
}

// Configuration is the mutable, in-progress set of user choices prior to
// calculation. Mutations are partial merges; previously set fields persist.
type Configuration struct {
	UploadID           string           `json:"uploadId"`
	MaterialID         string           `json:"materialId"`
	SelectedColor      string           `json:"selectedColor"`
	Quantity           int              `json:"quantity"`
	Urgency            Urgency          `json:"urgency"`
	PostProcessing     []PostProcessing `json:"postProcessing"`
	PrintOptions       PrintOptions     `json:"printOptions"`
	CustomRequirements string           `json:"customRequirements"`
}

// NewConfiguration returns an empty draft with defaults applied.
func NewConfiguration() Configuration {
	return Configuration{
		Quantity:     1,
		Urgency:      UrgencyStandard,
		PrintOptions: DefaultPrintOptions(),
	}
}

// Clone returns a deep copy safe to keep as a snapshot.
func (c Configuration) Clone() Configuration {
	out := c
	out.PostProcessing = append([]PostProcessing(nil), c.PostProcessing...)
	return out
}
