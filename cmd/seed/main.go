package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"weatherdesk/internal/config"
	"weatherdesk/internal/database"
)

type seedLocation struct {
	Name      string
	Latitude  float64
	Longitude float64
	Country   string
}

// locationUpserter is the part of the store the seeder needs
type locationUpserter interface {
	UpsertLocation(ctx context.Context, name string, lat, lon float64, country string) (int64, error)
}

func main() {
	csvPath := flag.String("csv", "locations_seed.csv", "CSV with name,latitude,longitude[,country]")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	// Initialize database
	db, err := database.NewDB(config.GetDatabaseDSN())
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	file, err := os.Open(*csvPath)
	if err != nil {
		log.Fatalf("Failed to open CSV file: %v", err)
	}
	defer file.Close()

	count, skipped, err := seed(context.Background(), db, file)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	total, err := db.GetAllLocations(context.Background())
	if err != nil {
		log.Fatalf("Failed to count locations: %v", err)
	}

	log.Printf("✓ Import complete! Upserted %d locations, skipped %d, %d in table", count, skipped, len(total))
}

// seed reads the CSV (header row first) and upserts every valid record
func seed(ctx context.Context, store locationUpserter, r io.Reader) (count, skipped int, err error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	// Read header row
	header, err := reader.Read()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read CSV header: %w", err)
	}
	log.Printf("CSV Header: %v", header)

	for {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return count, skipped, fmt.Errorf("failed to read CSV record: %w", err)
		}

		loc, err := parseRecord(record)
		if err != nil {
			log.Printf("Skipping record %v: %v", record, err)
			skipped++
			continue
		}

		if _, err := store.UpsertLocation(ctx, loc.Name, loc.Latitude, loc.Longitude, loc.Country); err != nil {
			log.Printf("Failed to upsert location %s: %v", loc.Name, err)
			skipped++
			continue
		}

		count++
		if count%100 == 0 {
			log.Printf("Upserted %d locations...", count)
		}
	}

	return count, skipped, nil
}

func parseRecord(record []string) (seedLocation, error) {
	if len(record) < 3 {
		return seedLocation{}, fmt.Errorf("expected at least 3 fields, got %d", len(record))
	}

	name := strings.TrimSpace(record[0])
	if name == "" {
		return seedLocation{}, fmt.Errorf("empty name")
	}

	latitude, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
	if err != nil || latitude < -90 || latitude > 90 {
		return seedLocation{}, fmt.Errorf("invalid latitude %q", record[1])
	}

	longitude, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
	if err != nil || longitude < -180 || longitude > 180 {
		return seedLocation{}, fmt.Errorf("invalid longitude %q", record[2])
	}

	loc := seedLocation{Name: name, Latitude: latitude, Longitude: longitude}
	if len(record) > 3 {
		loc.Country = strings.TrimSpace(record[3])
	}
	return loc, nil
}
