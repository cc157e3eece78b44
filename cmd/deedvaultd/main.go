package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"deedvault/config"
	"deedvault/core"
	"deedvault/observability/logging"
	"deedvault/rpc"
	"deedvault/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("DEEDVAULT_ENV"))
	logger := logging.Setup("deedvaultd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	seller, err := cfg.Seller()
	if err != nil {
		panic(fmt.Sprintf("Failed to decode seller address: %v", err))
	}
	minFundAmount, err := cfg.MinFundAmount()
	if err != nil {
		panic(fmt.Sprintf("Failed to decode minimum fund amount: %v", err))
	}
	alloc, err := cfg.Allocations()
	if err != nil {
		panic(fmt.Sprintf("Failed to decode genesis allocations: %v", err))
	}

	node, err := core.NewNode(db, core.Genesis{
		NetworkName:          cfg.NetworkName,
		Seller:               seller,
		InitialMinFundAmount: minFundAmount,
		Alloc:                alloc,
	}, logger)
	if err != nil {
		panic(fmt.Sprintf("Failed to create node: %v", err))
	}

	logger.Info("node ready",
		slog.String("network", cfg.NetworkName),
		slog.String("seller", cfg.SellerAddress),
		slog.String("rpc", cfg.RPCAddress))

	server := rpc.NewServer(node)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
