package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"estatechain/config"
	"estatechain/core"
	"estatechain/observability"
	"estatechain/observability/logging"
	"estatechain/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("ESTATE_ENV"))
	logger := logging.Setup("estated", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DataDir, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	node, err := core.NewNode(cfg, db, observability.MetricsEmitter(nil))
	if err != nil {
		logger.Error("failed to initialise ledger", "error", err)
		os.Exit(1)
	}

	propertyTypes, err := node.State().Params().PropertyTypes()
	if err != nil {
		logger.Error("failed to enumerate property types", "error", err)
		os.Exit(1)
	}
	counter, err := node.State().AssetCounter()
	if err != nil {
		logger.Error("failed to read asset counter", "error", err)
		os.Exit(1)
	}
	logger.Info("property ledger ready",
		"network", cfg.NetworkName,
		"dataDir", cfg.DataDir,
		"propertyTypes", fmt.Sprintf("%v", propertyTypes),
		"assetsMinted", counter,
	)
}
