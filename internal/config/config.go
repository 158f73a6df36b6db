package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultDBPath = "./printquote.db"
	defaultPort   = "8080"
)

// Config holds application configuration sourced from environment variables.
type Config struct {
	Port   string
	DBPath string
	Env    string

	// Slicer collaborator.
	SlicerBin     string
	SlicerTimeout time.Duration
	UploadDir     string

	// Pricing parameters shared across all calculations. Material-specific
	// coefficients live in the catalog, not here.
	Currency           string
	MachineRatePerMin  float64
	SetupFee           float64
	TaxPercent         float64
	MinMaterialCost    float64
	MinLaborCost       float64
	MaxQuantity        int
	QuoteValidFor      time.Duration
	ExpirySweepEnabled bool
}

// Load reads environment variables and returns a populated Config.
// Missing values fall back to development defaults.
func Load() Config {
	// Best-effort: load local dev environment variables.
	// Production should use real env injection.
	_ = godotenv.Load()

	cfg := Config{
		Port:   getEnv("PORT", defaultPort),
		DBPath: getEnv("DB_PATH", defaultDBPath),
		Env:    getEnv("APP_ENV", "dev"),

		SlicerBin:     getEnv("SLICER_BIN", "prusa-slicer"),
		SlicerTimeout: getDuration("SLICER_TIMEOUT", 60*time.Second),
		UploadDir:     getEnv("UPLOAD_DIR", "./uploads"),

		Currency:           getEnv("CURRENCY", "USD"),
		MachineRatePerMin:  getFloat("MACHINE_RATE_PER_MINUTE", 0.15),
		SetupFee:           getFloat("SETUP_FEE", 5.00),
		TaxPercent:         getFloat("TAX_PERCENT", 0),
		MinMaterialCost:    getFloat("MIN_MATERIAL_COST", 0.50),
		MinLaborCost:       getFloat("MIN_LABOR_COST", 1.00),
		MaxQuantity:        getInt("MAX_QUANTITY", 1000),
		QuoteValidFor:      getDuration("QUOTE_VALID_FOR", 24*time.Hour),
		ExpirySweepEnabled: getBool("EXPIRY_SWEEP_ENABLED", true),
	}

	return cfg
}

// IsDev reports whether the service runs in a development environment.
func (c Config) IsDev() bool {
	return c.Env != "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

func getInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return v
}
