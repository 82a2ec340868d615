package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/quizdrill/quizdrill-backend/internal/config"
	"github.com/quizdrill/quizdrill-backend/internal/logger"
	"github.com/quizdrill/quizdrill-backend/internal/storage"
)

// Offline maintenance for the durable store: validate and repair records,
// or move a full backup in and out without starting the server.
func main() {
	var dataDir string
	flag.StringVar(&dataDir, "data", "", "Data directory (defaults to DATA_DIR from env)")
	flag.Parse()

	cfg := config.Load()
	if dataDir == "" {
		dataDir = cfg.DataDir
	}
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	medium, err := storage.NewFileMedium(dataDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", dataDir).Msg("Failed to open data directory")
	}
	store := storage.New(medium, storage.Options{
		MaxBytes:       cfg.MaxStorageBytes,
		EvictThreshold: cfg.EvictThreshold,
		KeepSessions:   cfg.KeepSessions,
		KeepResults:    cfg.KeepResults,
	}, log)

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "check":
		report := store.ValidateAndRepair()
		fmt.Printf("Healthy: %t\n", report.IsHealthy)
		fmt.Printf("Repairs attempted: %d\n", report.RepairsAttempted)
		for _, e := range report.Errors {
			fmt.Printf("  - %s\n", e)
		}
		usage := store.Usage()
		fmt.Printf("Usage: %d/%d bytes (%.1f%%), %d keys\n",
			usage.UsedBytes, usage.MaxBytes, usage.UsedRatio*100, usage.KeyCount)

	case "export":
		if len(args) < 2 {
			log.Fatal().Msg("export requires an output file argument")
		}
		blob, err := store.CreateFullBackup()
		if err != nil {
			log.Fatal().Err(err).Msg("Backup failed")
		}
		if err := os.WriteFile(args[1], blob, 0o644); err != nil {
			log.Fatal().Err(err).Msg("Failed to write backup file")
		}
		fmt.Printf("Backup written to %s (%d bytes)\n", args[1], len(blob))

	case "import":
		if len(args) < 2 {
			log.Fatal().Msg("import requires an input file argument")
		}
		blob, err := os.ReadFile(args[1])
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read backup file")
		}
		if !store.RestoreFullBackup(blob) {
			log.Fatal().Msg("Restore failed; existing data left unchanged")
		}
		fmt.Printf("Restored %d keys from %s\n", store.Usage().KeyCount, args[1])

	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: repair [-data DIR] <command>")
	fmt.Println("Commands:")
	fmt.Println("  check            Validate all records, restoring or discarding broken ones")
	fmt.Println("  export <file>    Write a full-store backup")
	fmt.Println("  import <file>    Replace store contents from a backup (fails closed)")
}
