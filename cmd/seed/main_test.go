package main

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type recordingStore struct {
	upserts []seedLocation
	failOn  string
}

func (r *recordingStore) UpsertLocation(_ context.Context, name string, lat, lon float64, country string) (int64, error) {
	if name == r.failOn {
		return 0, errors.New("duplicate entry")
	}
	r.upserts = append(r.upserts, seedLocation{Name: name, Latitude: lat, Longitude: lon, Country: country})
	return int64(len(r.upserts)), nil
}

func TestParseRecord(t *testing.T) {
	tests := []struct {
		name    string
		record  []string
		want    seedLocation
		wantErr bool
	}{
		{"with country", []string{"Bydgoszcz", "53.1235", "18.0084", "PL"}, seedLocation{"Bydgoszcz", 53.1235, 18.0084, "PL"}, false},
		{"without country", []string{" Toruń ", " 53.0138", "18.5984"}, seedLocation{"Toruń", 53.0138, 18.5984, ""}, false},
		{"too few fields", []string{"Gdańsk", "54.35"}, seedLocation{}, true},
		{"bad latitude", []string{"X", "north", "18"}, seedLocation{}, true},
		{"latitude out of range", []string{"X", "91", "18"}, seedLocation{}, true},
		{"longitude out of range", []string{"X", "50", "-181"}, seedLocation{}, true},
		{"empty name", []string{"", "50", "18"}, seedLocation{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRecord(tt.record)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseRecord() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseRecord() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSeed(t *testing.T) {
	input := `name,latitude,longitude,country
Bydgoszcz,53.1235,18.0084,PL
Broken,abc,18
Berlin,52.52,13.405,DE
Toruń,53.0138,18.5984
`
	store := &recordingStore{failOn: "Berlin"}

	count, skipped, err := seed(context.Background(), store, strings.NewReader(input))
	if err != nil {
		t.Fatalf("seed() error = %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
	if skipped != 2 {
		t.Errorf("skipped = %d, want 2", skipped)
	}
	if len(store.upserts) != 2 || store.upserts[1].Name != "Toruń" {
		t.Errorf("upserts = %+v", store.upserts)
	}
}

func TestSeed_EmptyInput(t *testing.T) {
	if _, _, err := seed(context.Background(), &recordingStore{}, strings.NewReader("")); err == nil {
		t.Error("seed() expected error for missing header")
	}
}
