// Command import loads a document-store JSON export into the database.
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"sort"
	"time"

	"bookclub/internal/config"
	"bookclub/internal/database"
	"bookclub/internal/importer"
)

func main() {
	file := flag.String("file", "", "Path to the export JSON (reads stdin when empty)")
	timeout := flag.Duration("timeout", 10*time.Minute, "Import timeout")
	flag.Parse()

	var in io.Reader = os.Stdin
	if *file != "" {
		f, err := os.Open(*file)
		if err != nil {
			log.Fatalf("Failed to open export: %v", err)
		}
		defer func() { _ = f.Close() }()
		in = f
	}
	export, err := io.ReadAll(in)
	if err != nil {
		log.Fatalf("Failed to read export: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	sum, err := importer.Import(ctx, db, export)
	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}

	kinds := make([]string, 0, len(sum.Imported)+len(sum.Dropped))
	seen := map[string]bool{}
	for _, m := range []map[string]int{sum.Imported, sum.Dropped} {
		for k := range m {
			if !seen[k] {
				seen[k] = true
				kinds = append(kinds, k)
			}
		}
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		log.Printf("%-8s imported=%d dropped=%d", k, sum.Imported[k], sum.Dropped[k])
	}
	log.Printf("thread counters repaired: %d", sum.CountersRepaired)
}
