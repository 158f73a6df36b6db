package quote

// PrintOptionsPatch is a typed partial update for PrintOptions. Nil fields
// leave the current value untouched; a set field replaces it. Unknown JSON
// fields are rejected at the decoding boundary, not silently dropped.
type PrintOptionsPatch struct {
	LayerHeight       *float64           `json:"layerHeight,omitempty"`
	InfillPercentage  *int               `json:"infillPercentage,omitempty"`
	SupportGeneration *SupportGeneration `json:"supportGeneration,omitempty"`
	PrintSpeed        *float64           `json:"printSpeed,omitempty"`
	ShellThickness    *int               `json:"shellThickness,omitempty"`
	TopBottomLayers   *int               `json:"topBottomLayers,omitempty"`
	BrimWidth         *float64           `json:"brimWidth,omitempty"`
	RaftEnabled       *bool              `json:"raftEnabled,omitempty"`
	AdaptiveLayers    *bool              `json:"adaptiveLayers,omitempty"`
}

// ApplyTo shallow-merges the patch into opts.
func (p PrintOptionsPatch) ApplyTo(opts *PrintOptions) {
	if p.LayerHeight != nil {
		opts.LayerHeightMM = *p.LayerHeight
	}
	if p.InfillPercentage != nil {
		opts.InfillPercentage = *p.InfillPercentage
	}
	if p.SupportGeneration != nil {
		opts.SupportGeneration = *p.SupportGeneration
	}
	if p.PrintSpeed != nil {
		opts.PrintSpeedMMS = *p.PrintSpeed
	}
	if p.ShellThickness != nil {
		opts.ShellThickness = *p.ShellThickness
	}
	if p.TopBottomLayers != nil {
		opts.TopBottomLayers = *p.TopBottomLayers
	}
	if p.BrimWidth != nil {
		opts.BrimWidthMM = *p.BrimWidth
	}
	if p.RaftEnabled != nil {
		opts.RaftEnabled = *p.RaftEnabled
	}
	if p.AdaptiveLayers != nil {
		opts.AdaptiveLayers = *p.AdaptiveLayers
	}
}

// IsZero reports whether the patch changes nothing.
func (p PrintOptionsPatch) IsZero() bool {
	return p.LayerHeight == nil && p.InfillPercentage == nil &&
		p.SupportGeneration == nil && p.PrintSpeed == nil &&
		p.ShellThickness == nil && p.TopBottomLayers == nil &&
		p.BrimWidth == nil && p.RaftEnabled == nil && p.AdaptiveLayers == nil
}

// ConfigurationPatch is a typed partial update for a Configuration. It is
// also the payload of a preset: applying a preset merges exactly the fields
// the preset sets.
type ConfigurationPatch struct {
	UploadID           *string            `json:"uploadId,omitempty"`
	MaterialID         *string            `json:"materialId,omitempty"`
	SelectedColor      *string            `json:"selectedColor,omitempty"`
	Quantity           *int               `json:"quantity,omitempty"`
	Urgency            *Urgency           `json:"urgency,omitempty"`
	PostProcessing     *[]PostProcessing  `json:"postProcessing,omitempty"`
	PrintOptions       *PrintOptionsPatch `json:"printOptions,omitempty"`
	CustomRequirements *string            `json:"customRequirements,omitempty"`
}

// ApplyTo merges the patch into cfg. Fields not present in the patch are
// left untouched.
func (p ConfigurationPatch) ApplyTo(cfg *Configuration) {
	if p.UploadID != nil {
		cfg.UploadID = *p.UploadID
	}
	if p.MaterialID != nil {
		cfg.MaterialID = *p.MaterialID
	}
	if p.SelectedColor != nil {
		cfg.SelectedColor = *p.SelectedColor
	}
	if p.Quantity != nil {
		cfg.Quantity = *p.Quantity
	}
	if p.Urgency != nil {
		cfg.Urgency = *p.Urgency
	}
	if p.PostProcessing != nil {
		cfg.PostProcessing = normalizeServices(*p.PostProcessing)
	}
	if p.PrintOptions != nil {
		p.PrintOptions.ApplyTo(&cfg.PrintOptions)
	}
	if p.CustomRequirements != nil {
		cfg.CustomRequirements = *p.CustomRequirements
	}
}

// IsZero reports whether the patch changes nothing.
func (p ConfigurationPatch) IsZero() bool {
	return p.UploadID == nil && p.MaterialID == nil && p.SelectedColor == nil &&
		p.Quantity == nil && p.Urgency == nil && p.PostProcessing == nil &&
		(p.PrintOptions == nil || p.PrintOptions.IsZero()) &&
		p.CustomRequirements == nil
}

// normalizeServices deduplicates while preserving first-seen order, so the
// post-processing list behaves as a set.
func normalizeServices(services []PostProcessing) []PostProcessing {
	seen := make(map[PostProcessing]bool, len(services))
	out := make([]PostProcessing, 0, len(services))
	for _, svc := range services {
		if seen[svc] {
			continue
		}
		seen[svc] = true
		out = append(out, svc)
	}
	return out
}
