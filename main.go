package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"nexus-card-service/handlers"
	"nexus-card-service/middleware"
	"nexus-card-service/models"
	"nexus-card-service/services"
	"nexus-card-service/spatial"
	"nexus-card-service/utils"
	"nexus-card-service/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New()

	// 🔐 GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Spawn{},
		&models.MmrRating{},
		&models.Match{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	index := spatial.NewIndex(services.DefaultNearbyRadiusM)
	spawnService, err := services.NewSpawnService(db, index)
	if err != nil {
		log.Fatal("failed to initialize spawn service:", err)
	}
	mmrService := services.NewMmrService(db)
	matchRecorder := services.NewMatchRecorder(db, mmrService)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	spawnService.StartIndexCompaction(1 * time.Minute)

	// Match archive export is optional — enabled only when the R2 bucket
	// is configured.
	if utils.ArchiveConfigured() {
		if err := utils.InitArchiveStore(); err != nil {
			log.Fatal("failed to initialize archive store:", err)
		}
		archiveWorker := workers.NewMatchArchiveWorker(db)
		go archiveWorker.Run(ctx, 60*time.Second)
		log.Println("✅ Match archive worker running (every 60s)")
	} else {
		log.Println("⚠️  R2 archive not configured, match export disabled")
	}

	handlers.SetupSpawnRoutes(app, spawnService)
	handlers.SetupMmrRoutes(app, mmrService, matchRecorder)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Spatial index compaction running (every 1m)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
