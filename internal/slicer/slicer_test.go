package slicer

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// fakeSlicerBin writes an executable shell script that stands in for the
// external slicing engine.
func fakeSlicerBin(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake slicer script requires a POSIX shell")
	}

	path := filepath.Join(t.TempDir(), "fake-slicer")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("write fake slicer: %v", err)
	}
	return path
}

func TestSlice_DecodesAnalysisOutput(t *testing.T) {
	t.Parallel()

	bin := fakeSlicerBin(t, `echo '{"print_time_minutes": 120.5, "filament_used_grams": 87.3, "layer_count": 250, "complexity_score": 62}'`)
	cli := NewCLI(bin)

	result, err := cli.Slice(context.Background(), "/tmp/model.stl", Params{
		LayerHeightMM: 0.2,
		InfillPercent: 20,
	})
	if err != nil {
		t.Fatalf("slice: %v", err)
	}

	if result.PrintTimeMinutes != 120.5 || result.FilamentUsedGrams != 87.3 {
		t.Fatalf("got %+v", result)
	}
	if result.LayerCount != 250 || result.ComplexityScore != 62 {
		t.Fatalf("got %+v", result)
	}
}

func TestSlice_PassesParams(t *testing.T) {
	t.Parallel()

	argsFile := filepath.Join(t.TempDir(), "args")
	bin := fakeSlicerBin(t,
		`echo "$@" > `+argsFile+"\n"+
			`echo '{"print_time_minutes": 1, "filament_used_grams": 1, "layer_count": 1, "complexity_score": 1}'`)
	cli := NewCLI(bin)

	_, err := cli.Slice(context.Background(), "/tmp/model.stl", Params{
		LayerHeightMM:   0.15,
		InfillPercent:   35,
		SupportsEnabled: true,
		PrintSpeedMMS:   60,
	})
	if err != nil {
		t.Fatalf("slice: %v", err)
	}

	raw, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	args := string(raw)
	for _, want := range []string{
		"--analyze-json",
		"--layer-height 0.15",
		"--fill-density 35",
		"--support-material",
		"--print-speed 60",
		"/tmp/model.stl",
	} {
		if !strings.Contains(args, want) {
			t.Fatalf("args %q missing %q", args, want)
		}
	}
}

func TestSlice_ReportsSlicerFailure(t *testing.T) {
	t.Parallel()

	bin := fakeSlicerBin(t, `echo "mesh is not manifold" >&2; exit 3`)
	cli := NewCLI(bin)

	_, err := cli.Slice(context.Background(), "/tmp/model.stl", Params{LayerHeightMM: 0.2})
	if err == nil {
		t.Fatal("expected an error from a failing slicer")
	}
	if !strings.Contains(err.Error(), "mesh is not manifold") {
		t.Fatalf("stderr not surfaced: %v", err)
	}
}

func TestSlice_Timeout(t *testing.T) {
	t.Parallel()

	bin := fakeSlicerBin(t, `sleep 10`)
	cli := NewCLI(bin)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := cli.Slice(ctx, "/tmp/model.stl", Params{LayerHeightMM: 0.2})
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("got %v, want a timeout error", err)
	}
}

func TestSlice_RejectsMalformedOutput(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"not json":        `echo "PrusaSlicer 2.7.0"`,
		"negative values": `echo '{"print_time_minutes": -5, "filament_used_grams": 10, "layer_count": 1, "complexity_score": 1}'`,
	}
	for name, script := range cases {
		bin := fakeSlicerBin(t, script)
		if _, err := NewCLI(bin).Slice(context.Background(), "/tmp/model.stl", Params{LayerHeightMM: 0.2}); err == nil {
			t.Fatalf("%s: expected an error", name)
		}
	}
}

func TestResult_Validate(t *testing.T) {
	t.Parallel()

	good := Result{PrintTimeMinutes: 10, FilamentUsedGrams: 5, LayerCount: 100, ComplexityScore: 50}
	if err := good.Validate(); err != nil {
		t.Fatalf("valid result rejected: %v", err)
	}

	cases := map[string]Result{
		"nan time":        {PrintTimeMinutes: math.NaN(), FilamentUsedGrams: 5},
		"inf filament":    {PrintTimeMinutes: 10, FilamentUsedGrams: math.Inf(1)},
		"negative grams":  {PrintTimeMinutes: 10, FilamentUsedGrams: -1},
		"negative layers": {PrintTimeMinutes: 10, FilamentUsedGrams: 5, LayerCount: -1},
	}
	for name, r := range cases {
		if err := r.Validate(); err == nil {
			t.Fatalf("%s: expected a validation error", name)
		}
	}
}
