package nodelog

import (
	"testing"
	"time"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func entry(offset time.Duration, text string) Entry {
	return Entry{At: baseTime.Add(offset), Text: text}
}

func TestLatestBlockProduced(t *testing.T) {
	tests := []struct {
		name       string
		entries    []Entry
		wantFound  bool
		wantHeight uint64
	}{
		{"empty window", nil, false, 0},
		{"no matching lines", []Entry{entry(0, "Imported #100")}, false, 0},
		{"single match", []Entry{entry(0, "Producing block #42")}, true, 42},
		{
			"newest wins",
			[]Entry{
				entry(0, "Producing block #42"),
				entry(10*time.Second, "Producing block #43"),
				entry(20*time.Second, "Producing block #44"),
			},
			true, 44,
		},
		{
			"line without timestamp is skipped",
			[]Entry{
				entry(0, "Producing block #42"),
				{Text: "Producing block #999"},
			},
			true, 42,
		},
		{
			"match embedded in a longer line",
			[]Entry{entry(0, "2026-03-01 12:00:00 INFO Producing block #1234 (parent 0xabc)")},
			true, 1234,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scan := LatestBlockProduced(tt.entries)
			if scan.Found != tt.wantFound {
				t.Fatalf("Found=%v, want %v", scan.Found, tt.wantFound)
			}
			if scan.Found && scan.Height != tt.wantHeight {
				t.Errorf("Height=%d, want %d", scan.Height, tt.wantHeight)
			}
		})
	}
}

func TestLatestHashrate(t *testing.T) {
	tests := []struct {
		name      string
		entries   []Entry
		wantFound bool
		wantRate  float64
	}{
		{"empty window", nil, false, 0},
		{"plain H/s", []Entry{entry(0, "Mining at 250 H/s")}, true, 250},
		{"zero", []Entry{entry(0, "Mining at 0 H/s")}, true, 0},
		{"kilo", []Entry{entry(0, "Mining at 342.1 kH/s")}, true, 342100},
		{"mega", []Entry{entry(0, "hashrate: 1.2 MH/s")}, true, 1.2e6},
		{"giga", []Entry{entry(0, "hashrate: 2 GH/s")}, true, 2e9},
		{"no space before unit", []Entry{entry(0, "Mining at 500H/s")}, true, 500},
		{
			"newest wins",
			[]Entry{
				entry(0, "Mining at 100 H/s"),
				entry(10*time.Second, "Mining at 0 H/s"),
			},
			true, 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scan := LatestHashrate(tt.entries)
			if scan.Found != tt.wantFound {
				t.Fatalf("Found=%v, want %v", scan.Found, tt.wantFound)
			}
			if scan.Found && scan.Rate != tt.wantRate {
				t.Errorf("Rate=%f, want %f", scan.Rate, tt.wantRate)
			}
		})
	}
}
