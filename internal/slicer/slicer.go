package slicer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"

	json "github.com/goccy/go-json"
)

// Params are the print settings passed to the external slicing engine.
type Params struct {
	LayerHeightMM   float64
	InfillPercent   int
	SupportsEnabled bool
	PrintSpeedMMS   float64
}

// Result is the analysis the external slicer reports for one mesh and one
// set of print settings. It is treated as an opaque input to pricing.
type Result struct {
	PrintTimeMinutes  float64 `json:"print_time_minutes"`
	FilamentUsedGrams float64 `json:"filament_used_grams"`
	LayerCount        int     `json:"layer_count"`
	ComplexityScore   float64 `json:"complexity_score"`
}

// Validate rejects results the pricing calculator must never see: negative,
// NaN or infinite values are reported as errors, not coerced to zero.
func (r Result) Validate() error {
	checks := []struct {
		name  string
		value float64
	}{
		{"print_time_minutes", r.PrintTimeMinutes},
		{"filament_used_grams", r.FilamentUsedGrams},
		{"complexity_score", r.ComplexityScore},
	}
	for _, c := range checks {
		if math.IsNaN(c.value) || math.IsInf(c.value, 0) {
			return fmt.Errorf("slicer reported non-finite %s", c.name)
		}
		if c.value < 0 {
			return fmt.Errorf("slicer reported negative %s", c.name)
		}
	}
	if r.LayerCount < 0 {
		return errors.New("slicer reported negative layer_count")
	}
	return nil
}

// CLI invokes an external slicing binary and decodes its JSON analysis
// output. The binary is a black box; only the four analysis fields are
// interpreted. Timeouts are the caller's responsibility via ctx.
type CLI struct {
	Bin string
}

// NewCLI creates a CLI adapter for the given slicer binary.
func NewCLI(bin string) *CLI {
	return &CLI{Bin: bin}
}

// Slice runs the slicer over the mesh at filePath with the given settings.
func (c *CLI) Slice(ctx context.Context, filePath string, params Params) (Result, error) {
	args := []string{
		"--analyze-json",
		"--layer-height", strconv.FormatFloat(params.LayerHeightMM, 'f', -1, 64),
		"--fill-density", strconv.Itoa(params.InfillPercent),
	}
	if params.SupportsEnabled {
		args = append(args, "--support-material")
	}
	if params.PrintSpeedMMS > 0 {
		args = append(args, "--print-speed", strconv.FormatFloat(params.PrintSpeedMMS, 'f', -1, 64))
	}
	args = append(args, filePath)

	cmd := exec.CommandContext(ctx, c.Bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, fmt.Errorf("slicer timed out: %w", ctxErr)
		}
		return Result{}, fmt.Errorf("run slicer: %w (stderr: %s)", err, bytes.TrimSpace(stderr.Bytes()))
	}

	var result Result
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return Result{}, fmt.Errorf("decode slicer output: %w", err)
	}

	if err := result.Validate(); err != nil {
		return Result{}, fmt.Errorf("malformed slicer output: %w", err)
	}

	return result, nil
}
