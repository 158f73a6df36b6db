package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fabworks/printquote/internal/catalog"
	"github.com/fabworks/printquote/internal/config"
	"github.com/fabworks/printquote/internal/db"
	"github.com/fabworks/printquote/internal/migrations"
	"github.com/fabworks/printquote/internal/payment"
	"github.com/fabworks/printquote/internal/preset"
	"github.com/fabworks/printquote/internal/pricing"
	"github.com/fabworks/printquote/internal/quote"
	"github.com/fabworks/printquote/internal/seed"
	"github.com/fabworks/printquote/internal/slicer"
	"github.com/fabworks/printquote/internal/upload"
)

type server struct {
	log      *zap.Logger
	cfg      config.Config
	rates    pricing.Rates
	catalog  *catalog.Store
	presets  *preset.Store
	history  *quote.HistoryStore
	slicer   quote.Slicer
	uploads  quote.UploadResolver
	gateway  payment.Gateway
	sessions *sessionRegistry
}

// ratesFromConfig merges deployment overrides into the built-in rate card.
func ratesFromConfig(cfg config.Config) pricing.Rates {
	rates := pricing.DefaultRates()
	rates.Currency = cfg.Currency
	rates.MachineRatePerMin = cfg.MachineRatePerMin
	rates.SetupFee = cfg.SetupFee
	rates.TaxPercent = cfg.TaxPercent
	rates.MinMaterialCost = cfg.MinMaterialCost
	rates.MinLaborCost = cfg.MinLaborCost
	return rates
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.IsDev() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func main() {
	cfg := config.Load()

	log, err := newLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}
	defer database.Close()

	if err := migrations.Up(database); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	stats, err := seed.Run(database)
	if err != nil {
		log.Fatal("failed to seed material catalog", zap.Error(err))
	}
	if stats.Inserts > 0 {
		log.Info("seeded material catalog", zap.Int("inserted", stats.Inserts))
	}

	materials := catalog.NewStore(database)
	// An empty or unreachable catalog means nothing can be priced; refuse to
	// start rather than serve errors on every request.
	if err := materials.Refresh(context.Background()); err != nil {
		log.Fatal("failed to load material catalog", zap.Error(err))
	}

	rates := ratesFromConfig(cfg)
	history := quote.NewHistoryStore(database)
	sliceCLI := slicer.NewCLI(cfg.SlicerBin)
	uploads := upload.NewDir(cfg.UploadDir)

	s := &server{
		log:     log,
		cfg:     cfg,
		rates:   rates,
		catalog: materials,
		presets: preset.NewStore(database),
		history: history,
		slicer:  sliceCLI,
		uploads: uploads,
		gateway: payment.NewLogGateway(log),
	}
	s.sessions = newSessionRegistry(func(sessionID string) *quote.Manager {
		store := quote.NewConfigStore(materials, cfg.MaxQuantity)
		return quote.NewManager(sessionID, store, quote.Deps{
			Log:           log,
			Catalog:       materials,
			Slicer:        sliceCLI,
			Uploads:       uploads,
			History:       history,
			Rates:         rates,
			SliceTimeout:  cfg.SlicerTimeout,
			QuoteValidFor: cfg.QuoteValidFor,
		})
	})

	if cfg.ExpirySweepEnabled {
		sweeper := cron.New()
		if _, err := sweeper.AddFunc("@every 10m", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			expired, err := history.ExpireStale(ctx, time.Now())
			if err != nil {
				log.Warn("quote expiry sweep failed", zap.Error(err))
				return
			}
			if expired > 0 {
				log.Info("expired stale quotes", zap.Int64("count", expired))
			}
		}); err != nil {
			log.Fatal("failed to schedule expiry sweep", zap.Error(err))
		}
		sweeper.Start()
		defer sweeper.Stop()
	}

	log.Info("starting server",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
		zap.String("db", cfg.DBPath))
	if err := http.ListenAndServe(":"+cfg.Port, s.routes()); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.sessionMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/materials", s.handleListMaterials)
		r.Post("/materials/refresh", s.handleRefreshCatalog)
		r.Get("/materials/{id}", s.handleGetMaterial)

		r.Get("/presets", s.handleListPresets)
		r.Post("/presets", s.handleCreatePreset)
		r.Post("/presets/{id}/apply", s.handleApplyPreset)

		r.Get("/configuration", s.handleGetConfiguration)
		r.Patch("/configuration", s.handlePatchConfiguration)
		r.Post("/configuration/validate", s.handleValidateConfiguration)

		r.Post("/quote/calculate", s.handleCalculate)
		r.Get("/quote", s.handleCurrentQuote)
		r.Post("/quote/save", s.handleSaveQuote)
		r.Get("/quotes", s.handleQuoteHistory)
		r.Get("/quotes/{id}/export", s.handleExportQuote)
		r.Get("/quotes/{id}/export.pdf", s.handleExportQuotePDF)
		r.Get("/quotes/{id}/text", s.handleQuoteText)
		r.Post("/quote/{id}/order", s.handleOrderQuote)
	})

	return r
}
