// Command importer ingests a CSV or XLSX schedule grid into the store,
// replacing the named sheet's contents.
//
// Usage:
//
//	importer -db=./schedule.db -file=week32.csv -sheet="Week 32"
package main

import (
	"context"
	"flag"
	"log"

	"github.com/warp/schedule-engine/config"
	"github.com/warp/schedule-engine/importer"
	"github.com/warp/schedule-engine/store/sqlite"
)

func main() {
	configPath := flag.String("config", "config.toml", "configuration file path")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	filePath := flag.String("file", "", "CSV or XLSX grid file to import")
	sheetName := flag.String("sheet", "", "target sheet name")
	flag.Parse()

	if *filePath == "" || *sheetName == "" {
		log.Fatal("both -file and -sheet are required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *dbPath != "" {
		cfg.Server.DBPath = *dbPath
	}

	store, err := sqlite.New(cfg.Server.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	stats, err := importer.Import(context.Background(), store, *filePath, *sheetName,
		importer.Options{Sections: cfg.Sections.Order})
	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}

	log.Printf("Imported rows=%d cells=%d into sheet %q (id=%d)",
		stats.Rows, stats.Cells, *sheetName, stats.SheetID)
}
