// Package stats summarizes finished encounters per raid gate.
package stats

import (
	"fmt"
	"math"
	"slices"
)

// RaidMetric is one finished encounter seen from the local player.
type RaidMetric struct {
	RaidType RaidType
	Support  bool
	DPS      int64
	AP       float64
	Brand    float64
	Identity float64
	Hyper    float64
}

type DpsValue struct {
	Raw       int64  `json:"raw"`
	Formatted string `json:"formatted"`
}

// Uptimes holds mean support uptime percentages formatted with two decimals.
type Uptimes struct {
	AP       string `json:"ap"`
	Brand    string `json:"brand"`
	Identity string `json:"identity"`
	Hyper    string `json:"hyper"`
}

type RaidStats struct {
	Name    string    `json:"name"`
	Order   int       `json:"order"`
	Count   int       `json:"count"`
	DPS     *DpsValue `json:"dps,omitempty"`
	Uptimes *Uptimes  `json:"uptimes,omitempty"`
}

// Aggregate buckets metrics by raid type. Metrics of unknown raids are
// skipped. DPS is absent when a bucket has no non-support metric, uptimes
// when it has no support metric. The result is sorted by Order.
func Aggregate(metrics []RaidMetric) []RaidStats {
	type bucket struct {
		count        int
		dpsSum       float64
		dpsCount     int
		supportCount int
		ap           float64
		brand        float64
		identity     float64
		hyper        float64
	}

	buckets := make(map[RaidType]*bucket)
	for _, m := range metrics {
		if m.RaidType == RaidUnknown || m.RaidType >= raidTypeCount || m.RaidType < 0 {
			continue
		}
		b, ok := buckets[m.RaidType]
		if !ok {
			b = &bucket{}
			buckets[m.RaidType] = b
		}
		b.count++
		if m.Support {
			b.supportCount++
			b.ap += m.AP
			b.brand += m.Brand
			b.identity += m.Identity
			b.hyper += m.Hyper
			continue
		}
		b.dpsCount++
		b.dpsSum += float64(m.DPS)
	}

	result := make([]RaidStats, 0, len(buckets))
	for raid, b := range buckets {
		rs := RaidStats{
			Name:  raid.String(),
			Order: raid.Order(),
			Count: b.count,
		}
		if b.dpsCount > 0 {
			mean := b.dpsSum / float64(b.dpsCount)
			rs.DPS = &DpsValue{
				Raw:       int64(math.Round(mean)),
				Formatted: AbbreviateNumber(mean),
			}
		}
		if b.supportCount > 0 {
			n := float64(b.supportCount)
			rs.Uptimes = &Uptimes{
				AP:       fmt.Sprintf("%.2f", b.ap/n),
				Brand:    fmt.Sprintf("%.2f", b.brand/n),
				Identity: fmt.Sprintf("%.2f", b.identity/n),
				Hyper:    fmt.Sprintf("%.2f", b.hyper/n),
			}
		}
		result = append(result, rs)
	}

	slices.SortFunc(result, func(a, b RaidStats) int { return a.Order - b.Order })
	return result
}

var magnitudes = []struct {
	threshold float64
	suffix    string
}{
	{1e12, "t"},
	{1e9, "b"},
	{1e6, "m"},
	{1e3, "k"},
}

// AbbreviateNumber renders 1234567 as "1.23m"; values under a thousand are
// printed as integers.
func AbbreviateNumber(n float64) string {
	abs := math.Abs(n)
	for i, m := range magnitudes {
		if abs < m.threshold {
			continue
		}
		// rounding can carry into the next magnitude
		scaled := fmt.Sprintf("%.2f", abs/m.threshold)
		if scaled == "1000.00" && i > 0 {
			m = magnitudes[i-1]
			scaled = fmt.Sprintf("%.2f", abs/m.threshold)
		}
		if n < 0 {
			scaled = "-" + scaled
		}
		return scaled + m.suffix
	}
	return fmt.Sprintf("%d", int64(n))
}
