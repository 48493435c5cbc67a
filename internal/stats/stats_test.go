package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateMixedRoles(t *testing.T) {
	metrics := []RaidMetric{
		{RaidType: RaidEchidnaG2, DPS: 100},
		{RaidType: RaidEchidnaG2, DPS: 300},
		{RaidType: RaidEchidnaG2, Support: true, AP: 10},
	}

	got := Aggregate(metrics)
	require.Len(t, got, 1)

	rs := got[0]
	assert.Equal(t, "Echidna G2", rs.Name)
	assert.Equal(t, 3, rs.Count)
	require.NotNil(t, rs.DPS)
	assert.Equal(t, int64(200), rs.DPS.Raw)
	assert.Equal(t, "200", rs.DPS.Formatted)
	require.NotNil(t, rs.Uptimes)
	assert.Equal(t, "10.00", rs.Uptimes.AP)
	assert.Equal(t, "0.00", rs.Uptimes.Brand)
}

func TestAggregateAbsentParts(t *testing.T) {
	got := Aggregate([]RaidMetric{
		{RaidType: RaidValtanG1, DPS: 1_500_000},
		{RaidType: RaidKayangelG3, Support: true, AP: 80.5, Brand: 90, Identity: 30.333, Hyper: 12},
	})
	require.Len(t, got, 2)

	assert.Equal(t, "Valtan G1", got[0].Name)
	require.NotNil(t, got[0].DPS)
	assert.Equal(t, "1.50m", got[0].DPS.Formatted)
	assert.Nil(t, got[0].Uptimes)

	assert.Equal(t, "Kayangel G3", got[1].Name)
	assert.Nil(t, got[1].DPS)
	require.NotNil(t, got[1].Uptimes)
	assert.Equal(t, Uptimes{AP: "80.50", Brand: "90.00", Identity: "30.33", Hyper: "12.00"}, *got[1].Uptimes)
}

func TestAggregateSkipsUnknown(t *testing.T) {
	got := Aggregate([]RaidMetric{
		{RaidType: RaidUnknown, DPS: 100},
		{RaidType: ClassifyRaid("Training Dummy"), DPS: 100},
	})
	assert.Empty(t, got)
}

func TestAggregateOrdersByRaid(t *testing.T) {
	got := Aggregate([]RaidMetric{
		{RaidType: RaidAegirG2, DPS: 1},
		{RaidType: RaidValtanG2, DPS: 1},
		{RaidType: RaidThaemineG4, DPS: 1},
	})
	require.Len(t, got, 3)
	assert.Equal(t, []string{"Valtan G2", "Thaemine G4", "Aegir G2"}, []string{got[0].Name, got[1].Name, got[2].Name})
	assert.Less(t, got[0].Order, got[1].Order)
}

func TestClassifyRaid(t *testing.T) {
	tests := []struct {
		boss string
		want RaidType
	}{
		{"Demon Beast Commander Valtan", RaidValtanG2},
		{"Kakul-Saydon", RaidKakulG3},
		{"Covetous Master Echidna", RaidEchidnaG2},
		{"Aegir, the Oppressor", RaidAegirG2},
		{"", RaidUnknown},
		{"Lesser Sea Serpent", RaidUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.boss, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyRaid(tt.boss))
		})
	}
}

func TestAbbreviateNumber(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{999.9, "999"},
		{1000, "1.00k"},
		{12340, "12.34k"},
		{1_234_567, "1.23m"},
		{2_500_000_000, "2.50b"},
		{3e12, "3.00t"},
		{-4500, "-4.50k"},
		{999_999.6, "1.00m"},
		{999_995_000, "1.00b"},
		{999_994_000, "999.99m"},
		{-999_999.6, "-1.00m"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, AbbreviateNumber(tt.in))
		})
	}
}

func TestRaidTypeString(t *testing.T) {
	assert.Equal(t, "Unknown", RaidUnknown.String())
	assert.Equal(t, "RaidType(99)", RaidType(99).String())
}
