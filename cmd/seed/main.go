package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"inventorycounter/internal/repository/sqlite"
)

func main() {
	file := flag.String("file", "inventory.yaml", "YAML or JSON file mapping item names to quantities")
	dbPath := flag.String("db", "data/inventory.db", "Database path")
	add := flag.Bool("add", false, "Add to existing quantities instead of replacing them")
	flag.Parse()

	fmt.Printf("Seeding inventory from %s into %s\n", *file, *dbPath)

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", *file, err)
	}

	items, err := parseSeed(data, filepath.Ext(*file))
	if err != nil {
		log.Fatalf("Failed to parse %s: %v", *file, err)
	}
	if len(items) == 0 {
		fmt.Println("No items found to seed")
		return
	}

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	repo := sqlite.NewLedgerRepository(db)

	current := map[string]int{}
	if *add {
		if current, err = repo.Load(ctx); err != nil {
			log.Fatalf("Failed to load inventory: %v", err)
		}
	}

	names := make([]string, 0, len(items))
	for name := range items {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		quantity := current[name] + items[name]
		if err := repo.Save(ctx, name, quantity); err != nil {
			log.Fatalf("Failed to save %s: %v", name, err)
		}
		fmt.Printf("  %s = %d\n", name, quantity)
	}

	fmt.Printf("✅ Successfully seeded %d items\n", len(names))
}

// parseSeed reads {item: quantity}. JSON is used for .json files, YAML otherwise.
func parseSeed(data []byte, ext string) (map[string]int, error) {
	items := map[string]int{}

	var err error
	if strings.EqualFold(ext, ".json") {
		err = json.Unmarshal(data, &items)
	} else {
		err = yaml.Unmarshal(data, &items)
	}
	if err != nil {
		return nil, err
	}

	for name, quantity := range items {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("empty item name")
		}
		if quantity < 0 {
			return nil, fmt.Errorf("negative quantity %d for %s", quantity, name)
		}
	}
	return items, nil
}
