package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jask/idojourney/internal/authn"
	"github.com/jask/idojourney/internal/config"
	"github.com/jask/idojourney/internal/database"
	"github.com/jask/idojourney/internal/database/repository"
	"github.com/jask/idojourney/internal/ido"
	"github.com/jask/idojourney/internal/journey"
	"github.com/jask/idojourney/internal/logging"
	"github.com/jask/idojourney/internal/prefs"
	"github.com/jask/idojourney/internal/secrets"
	"github.com/jask/idojourney/internal/tui"
)

func main() {
	writeConfig := flag.Bool("write-config", false, "Write the effective client config file and exit")
	flag.Parse()
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *writeConfig {
		path, err := config.Save(cfg)
		if err != nil {
			log.Fatalf("write config: %v", err)
		}
		fmt.Println("wrote", path)
		return
	}

	logger, err := logging.New(cfg.Log.Path, cfg.Log.Level)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.OpenMigrated(cfg.Database.Path)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	// repositories
	prefRepo := repository.NewPreferenceRepo(db)
	keyRepo := repository.NewDeviceKeyRepo(db)

	sealer, err := secrets.NewSealer(cfg.Device.SeedDir)
	if err != nil {
		log.Fatalf("device seed: %v", err)
	}

	device := authn.NewDevice(keyRepo, sealer, cfg.Device.Origin, cfg.Device.RPID)
	prompts := tui.NewPrompts()
	device.Prompt = prompts.Confirm
	client := ido.NewRemoteClient(cfg.Journey.BaseURL, cfg.Journey.ClientID, &http.Client{Timeout: cfg.Journey.Timeout})
	svc := &journey.Service{
		Client: client,
		Auth:   device,
		Prefs:  prefs.NewStore(prefRepo, cfg.Prefs.Namespace),
		Log:    logger,
	}

	logger.Info("idojourney starting",
		zap.String("base_url", cfg.Journey.BaseURL),
		zap.String("database", cfg.Database.Path),
		zap.String("prefs_namespace", svc.Prefs.Namespace()),
	)

	p := tea.NewProgram(tui.New(ctx, svc, prompts, logger), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("error: %v\n", err)
	}
}
