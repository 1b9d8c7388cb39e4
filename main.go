package main

import (
	"os"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jitenkr2030/video-shiksha/config"
	"github.com/jitenkr2030/video-shiksha/models"
	"github.com/jitenkr2030/video-shiksha/routers"
	"github.com/jitenkr2030/video-shiksha/routers/api"
	"github.com/jitenkr2030/video-shiksha/service"
)

func main() {
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

	config.InitConfig()
	cfg := config.AppConfig
	gin.SetMode(cfg.Server.Mode)

	var store models.Store
	var artifacts service.ArtifactStore
	var queue service.WorkQueue

	if cfg.Pipeline.Backend == "stub" {
		// Fully in-process composition: no MySQL, Redis or MinIO needed.
		store = models.NewMemStore()
		artifacts = service.NewMemArtifactStore()
		queue = service.NewMemQueue(cfg.Pipeline.Concurrency)
		log.Info().Msg("running with in-memory store, queue and artifact store")
	} else {
		gormStore, err := models.InitDB(cfg.MySQL.DSN)
		if err != nil {
			log.Fatal().Err(err).Msg("database init failed")
		}
		defer gormStore.Close()
		store = gormStore

		minioStore, err := service.NewMinioStore(*cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("artifact store init failed")
		}
		artifacts = minioStore
		queue = service.NewAsynqQueue(*cfg, cfg.Pipeline)
	}
	defer queue.Close()

	pricing := service.NewPricing(cfg.Credits)
	credits := service.NewCredits(store, pricing)
	ledger := service.NewLedger(store)

	orchestrator, err := service.NewOrchestrator(store, ledger, credits, queue, cfg.Pipeline.FanoutPoolSize)
	if err != nil {
		log.Fatal().Err(err).Msg("orchestrator init failed")
	}
	defer orchestrator.Close()

	collab := service.NewCollaborators(cfg.Pipeline)
	processor := service.NewProcessor(store, ledger, queue, artifacts, collab, cfg.Pipeline)
	processor.Start()

	h := &api.Handler{
		Store:        store,
		Artifacts:    artifacts,
		Orchestrator: orchestrator,
		Credits:      credits,
		Pricing:      pricing,
		Ledger:       ledger,
		SignupGrant:  cfg.Credits.SignupGrant,
	}
	r := routers.InitRouter(h)

	log.Info().Str("port", cfg.Server.Port).Msg("server starting")
	if err := r.Run(cfg.Server.Port); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
