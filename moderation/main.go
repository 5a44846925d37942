package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	modapi "github.com/Ftotnem/MODERATION-SERVICE/moderation/api"
	"github.com/Ftotnem/MODERATION-SERVICE/moderation/cache"
	"github.com/Ftotnem/MODERATION-SERVICE/moderation/live"
	"github.com/Ftotnem/MODERATION-SERVICE/moderation/mojang"
	"github.com/Ftotnem/MODERATION-SERVICE/moderation/notify"
	"github.com/Ftotnem/MODERATION-SERVICE/moderation/service"
	"github.com/Ftotnem/MODERATION-SERVICE/moderation/store"
	"github.com/Ftotnem/MODERATION-SERVICE/moderation/syncer"
	"github.com/Ftotnem/MODERATION-SERVICE/moderation/webhook"
	"github.com/Ftotnem/MODERATION-SERVICE/shared/api"
	"github.com/Ftotnem/MODERATION-SERVICE/shared/config"
	"github.com/Ftotnem/MODERATION-SERVICE/shared/mongodb"
	redisu "github.com/Ftotnem/MODERATION-SERVICE/shared/redis"
	"github.com/Ftotnem/MODERATION-SERVICE/shared/registry"
)

func main() {
	// --- 1. Load Configuration ---
	cfg, err := config.LoadModerationServiceConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.Printf("Configuration loaded for Moderation Service. Listening on: %s", cfg.ListenAddr)

	// --- 2. Connect to Redis Cluster ---
	redisClient, err := redisu.NewRedisClusterClient(cfg.RedisAddrs, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("Failed to connect to Redis Cluster: %v", err)
	}
	defer func() {
		if err = redisClient.Close(); err != nil {
			log.Printf("Error closing Redis client: %v", err)
		}
		log.Println("Redis Client closed.")
	}()
	log.Println("Connected to Redis Cluster.")

	// --- 3. Connect to MongoDB ---
	mongoClient, err := mongodb.NewClient(cfg.MongoDBConnStr, cfg.MongoDBDatabase)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer disconnectCancel()
		if err := mongoClient.Disconnect(disconnectCtx); err != nil {
			log.Printf("Error disconnecting MongoDB client: %v", err)
		}
		log.Println("MongoDB Client disconnected.")
	}()
	log.Println("Connected to MongoDB.")

	// --- 4. Initialize Data Stores ---
	punishmentStore := store.NewPunishmentStore(mongoClient.Collection(cfg.MongoDBPunishmentsCollection))
	indexCtx, indexCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := punishmentStore.EnsureIndexes(indexCtx); err != nil {
		indexCancel()
		log.Fatalf("Failed to ensure punishment indexes: %v", err)
	}
	indexCancel()

	staffStore := store.NewStaffStore(mongoClient.Collection(cfg.MongoDBStaffCollection))
	banStore := store.NewBanStore(redisClient)
	onlinePlayersStore := store.NewOnlinePlayersStore(redisClient, cfg.RedisOnlineTTL)
	muteCache := cache.NewMuteCache()

	// --- 5. Live-world effects: serialized through a single dispatcher ---
	dispatcher := live.NewDispatcher(0)
	dispatcher.Start()
	defer dispatcher.Stop()
	gameClient := live.NewGameClient(cfg.GameServiceURL)

	// --- 6. Event sinks: staff websocket hub, optional webhook, optional peer sync ---
	hub := notify.NewHub()
	defer hub.CloseAll()

	registrar := registry.NewServiceRegistrar(redisClient, registry.ServiceTypeModeration, &cfg.CommonConfig)
	registrar.Start()
	defer registrar.Stop()
	registryClient := registry.NewRegistryClient(redisClient, cfg.HeartbeatTTL)

	sinks := []service.EventSink{hub}

	var webhookNotifier *webhook.Notifier
	if cfg.WebhookEnabled {
		webhookNotifier = webhook.NewNotifier(cfg)
		webhookNotifier.Start()
		defer webhookNotifier.Stop()
		sinks = append(sinks, webhookNotifier)
	}

	var punishmentSyncer *syncer.PunishmentSyncer
	if cfg.SyncEnabled {
		punishmentSyncer = syncer.NewPunishmentSyncer(cfg, registryClient, registrar)
		punishmentSyncer.Start()
		defer punishmentSyncer.Stop()
		sinks = append(sinks, punishmentSyncer)
	}

	// --- 7. Initialize Business Logic Services ---
	punishmentService := service.NewPunishmentService(
		cfg,
		punishmentStore,
		banStore,
		onlinePlayersStore,
		muteCache,
		dispatcher,
		gameClient,
		sinks...,
	)
	freezeService := service.NewFreezeService(
		cfg,
		punishmentService,
		onlinePlayersStore,
		dispatcher,
		gameClient,
		hub,
		sinks...,
	)
	freezeService.Start()
	defer freezeService.Stop()
	staffModeService := service.NewStaffModeService(staffStore, dispatcher, gameClient)
	log.Println("Moderation Service business logic initialized.")

	// --- 8. Background username backfill ---
	mojangService := mojang.NewMojangService(mongoClient, cfg.MongoDBPunishmentsCollection, cfg.UsernameFillerInterval)
	go mojangService.StartFillerJob()
	defer mojangService.StopFillerJob()

	// --- 9. Setup HTTP Server and Register Routes ---
	moderationAPIHandlers := modapi.NewModerationAPIHandlers(
		punishmentService,
		freezeService,
		staffModeService,
		hub,
		banStore,
		muteCache,
	)
	baseServer := api.NewBaseServer(cfg.ListenAddr, log.Default())
	moderationAPIHandlers.RegisterRoutes(baseServer.Router)
	log.Println("HTTP routes registered.")

	// --- 10. Start HTTP Server ---
	go func() {
		log.Printf("HTTP server starting on %s...", cfg.ListenAddr)
		if err := baseServer.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed to start: %v", err)
		}
	}()

	// --- 11. Graceful Shutdown ---
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down Moderation Service...")

	// Thaw everyone first so nobody gets escalated for a disconnect caused by
	// the shutdown itself.
	freezeService.UnfreezeAll()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := baseServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server graceful shutdown failed: %v", err)
	}
	log.Println("Moderation Service HTTP server gracefully stopped.")
	log.Println("Moderation Service gracefully shut down.")
}
