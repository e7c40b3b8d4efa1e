// Command resetleads wipes all classification state so the message
// history can be re-classified from scratch: detected leads,
// classification records and every message's processed flag.
package main

import (
	"flag"
	"os"

	"go.uber.org/zap"

	"github.com/noamzilo/whatsapp-miner/internal/config"
	"github.com/noamzilo/whatsapp-miner/internal/repository"
)

func main() {
	confirm := flag.Bool("confirm", false, "actually perform the reset")
	cfgPath := flag.String("config", "configs/config.yml", "path to config file")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if !*confirm {
		logger.Warn("Dry run: pass -confirm to delete all leads and classifications and clear processed flags")
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*cfgPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	db, err := repository.NewPostgresDB(cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	messageRepo := repository.NewMessageRepository(db, logger)
	classificationRepo := repository.NewClassificationRepository(db, logger)
	leadRepo := repository.NewLeadRepository(db, logger)

	// Leads reference classifications, so they go first.
	deletedLeads, err := leadRepo.DeleteAllLeads()
	if err != nil {
		logger.Fatal("Failed to delete leads", zap.Error(err))
	}

	deletedClassifications, err := classificationRepo.DeleteAllClassifications()
	if err != nil {
		logger.Fatal("Failed to delete classifications", zap.Error(err))
	}

	clearedMessages, err := messageRepo.ResetProcessed()
	if err != nil {
		logger.Fatal("Failed to reset processed flags", zap.Error(err))
	}

	logger.Info("Classification state reset",
		zap.String("environment", cfg.Environment),
		zap.Int64("deleted_leads", deletedLeads),
		zap.Int64("deleted_classifications", deletedClassifications),
		zap.Int64("cleared_messages", clearedMessages))
}
