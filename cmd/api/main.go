package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"log"
	"time"

	"github.com/bayerngomez/retouchlab/internal/analysis"
	"github.com/bayerngomez/retouchlab/internal/api"
	"github.com/bayerngomez/retouchlab/internal/auth"
	"github.com/bayerngomez/retouchlab/internal/config"
	"github.com/bayerngomez/retouchlab/internal/database"
	"github.com/bayerngomez/retouchlab/internal/gemini"
	"github.com/bayerngomez/retouchlab/internal/quota"
	"github.com/bayerngomez/retouchlab/internal/session"
	"github.com/bayerngomez/retouchlab/internal/storage"
	"github.com/joho/godotenv"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "app.yml", "Path to configuration file")
	flag.Parse()

	// Local development keeps secrets in .env; absence is fine.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	log.Printf("Starting RetouchLab API v%s with config: %s", version, *configPath)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	if cfg.TokenSecret == "" {
		// Sessions don't survive a restart without a configured secret,
		// matching the original's per-tab session lifetime.
		cfg.TokenSecret = randomSecret()
		log.Println("Token secret not specified, generated an ephemeral one")
	}

	ctx := context.Background()

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	ledger, err := quota.Open(cfg.LedgerPath)
	if err != nil {
		log.Fatal(err)
	}

	completer, err := gemini.NewClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		log.Fatal(err)
	}

	var archiver api.Archiver
	if cfg.Storage.Bucket != "" {
		a, err := storage.NewArchiver(
			cfg.Storage.Endpoint,
			cfg.Storage.Region,
			cfg.Storage.Bucket,
			cfg.Storage.AccessKeyID,
			cfg.Storage.SecretAccessKey,
		)
		if err != nil {
			log.Fatal(err)
		}
		archiver = a
		log.Printf("Report archival enabled (bucket %s)", cfg.Storage.Bucket)
	}

	sessions := session.NewManager()
	sessions.StartJanitor(1*time.Hour, make(chan struct{}))

	accounts := auth.ParseAccounts(cfg.Accounts)
	gate := auth.NewGate(accounts, ledger, sessions, db)
	tokens := auth.NewTokenManager(cfg.TokenSecret)
	service := analysis.NewService(completer, ledger, db, analysis.Modes(cfg.Models.Daily, cfg.Models.Pro))

	api.NewApi(cfg, gate, tokens, sessions, service, ledger, archiver).Serve()
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		log.Fatalf("Failed to generate token secret: %v", err)
	}
	return hex.EncodeToString(buf)
}
