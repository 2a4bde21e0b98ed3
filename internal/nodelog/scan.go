package nodelog

import (
	"regexp"
	"strconv"
	"time"
)

// producingRe matches the node's block-production announcement.
var producingRe = regexp.MustCompile(`Producing block #(\d+)`)

// hashrateRe matches the node's reported mining throughput, e.g. "0 H/s",
// "342.1 kH/s", "1.2 MH/s".
var hashrateRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*([kMG]?)H/s`)

// ProgressScan is the newest block-production observation in the window.
type ProgressScan struct {
	Found  bool
	Height uint64
	At     time.Time
}

// LatestBlockProduced finds the most recent "Producing block #N" line.
// Lines without a parseable timestamp are skipped: an age decision cannot be
// made from them, and absence of evidence must stay distinguishable from
// evidence of staleness.
func LatestBlockProduced(entries []Entry) ProgressScan {
	var scan ProgressScan
	for _, e := range entries {
		if e.At.IsZero() {
			continue
		}
		m := producingRe.FindStringSubmatch(e.Text)
		if m == nil {
			continue
		}
		height, err := strconv.ParseUint(m[1], 10, 64)
		if err != nil {
			continue
		}
		// Entries arrive oldest first; keep overwriting to end on the newest.
		scan = ProgressScan{Found: true, Height: height, At: e.At}
	}
	return scan
}

// HashrateScan is the newest throughput observation in the window.
type HashrateScan struct {
	Found bool
	Rate  float64 // H/s
	At    time.Time
}

var siFactor = map[string]float64{"": 1, "k": 1e3, "M": 1e6, "G": 1e9}

// LatestHashrate finds the most recent reported hashrate figure.
func LatestHashrate(entries []Entry) HashrateScan {
	var scan HashrateScan
	for _, e := range entries {
		if e.At.IsZero() {
			continue
		}
		m := hashrateRe.FindStringSubmatch(e.Text)
		if m == nil {
			continue
		}
		rate, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		scan = HashrateScan{Found: true, Rate: rate * siFactor[m[2]], At: e.At}
	}
	return scan
}
