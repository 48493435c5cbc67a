package stats

import "fmt"

// RaidType is the closed set of raid gates encounters are grouped by.
// Declaration order is the display order.
type RaidType int

const (
	RaidUnknown RaidType = iota
	RaidValtanG1
	RaidValtanG2
	RaidVykasG1
	RaidVykasG2
	RaidVykasG3
	RaidKakulG1
	RaidKakulG2
	RaidKakulG3
	RaidBrelshazaG1
	RaidBrelshazaG2
	RaidBrelshazaG3
	RaidKayangelG1
	RaidKayangelG2
	RaidKayangelG3
	RaidAkkanG1
	RaidAkkanG2
	RaidAkkanG3
	RaidThaemineG1
	RaidThaemineG2
	RaidThaemineG3
	RaidThaemineG4
	RaidEchidnaG1
	RaidEchidnaG2
	RaidBehemothG1
	RaidAegirG1
	RaidAegirG2
	raidTypeCount
)

var raidNames = [...]string{
	RaidUnknown:     "Unknown",
	RaidValtanG1:    "Valtan G1",
	RaidValtanG2:    "Valtan G2",
	RaidVykasG1:     "Vykas G1",
	RaidVykasG2:     "Vykas G2",
	RaidVykasG3:     "Vykas G3",
	RaidKakulG1:     "Kakul-Saydon G1",
	RaidKakulG2:     "Kakul-Saydon G2",
	RaidKakulG3:     "Kakul-Saydon G3",
	RaidBrelshazaG1: "Brelshaza G1",
	RaidBrelshazaG2: "Brelshaza G2",
	RaidBrelshazaG3: "Brelshaza G3",
	RaidKayangelG1:  "Kayangel G1",
	RaidKayangelG2:  "Kayangel G2",
	RaidKayangelG3:  "Kayangel G3",
	RaidAkkanG1:     "Akkan G1",
	RaidAkkanG2:     "Akkan G2",
	RaidAkkanG3:     "Akkan G3",
	RaidThaemineG1:  "Thaemine G1",
	RaidThaemineG2:  "Thaemine G2",
	RaidThaemineG3:  "Thaemine G3",
	RaidThaemineG4:  "Thaemine G4",
	RaidEchidnaG1:   "Echidna G1",
	RaidEchidnaG2:   "Echidna G2",
	RaidBehemothG1:  "Behemoth G1",
	RaidAegirG1:     "Aegir G1",
	RaidAegirG2:     "Aegir G2",
}

var bossRaids = map[string]RaidType{
	"Dark Mountain Predator":             RaidValtanG1,
	"Destroyer Lucas":                    RaidValtanG1,
	"Leader Lugaru":                      RaidValtanG1,
	"Demon Beast Commander Valtan":       RaidValtanG2,
	"Ravaged Tyrant of Beasts":           RaidValtanG2,
	"Incubus Morphe":                     RaidVykasG1,
	"Nightmarish Morphe":                 RaidVykasG1,
	"Covetous Devourer Vykas":            RaidVykasG2,
	"Covetous Legion Commander Vykas":    RaidVykasG3,
	"Saydon":                             RaidKakulG1,
	"Kakul":                              RaidKakulG2,
	"Kakul-Saydon":                       RaidKakulG3,
	"Gehenna Helkasirs":                  RaidBrelshazaG1,
	"Ashtarot":                           RaidBrelshazaG2,
	"Phantom Legion Commander Brelshaza": RaidBrelshazaG3,
	"Tienis":                             RaidKayangelG1,
	"Prunya":                             RaidKayangelG2,
	"Lauriel":                            RaidKayangelG3,
	"Griefbringer Maurug":                RaidAkkanG1,
	"Lord of Degradation Akkan":          RaidAkkanG2,
	"Plague Legion Commander Akkan":      RaidAkkanG3,
	"Killineza the Dark Worshipper":      RaidThaemineG1,
	"Valinak, Herald of the End":         RaidThaemineG2,
	"Thaemine the Lightqueller":          RaidThaemineG3,
	"Darkness Legion Commander Thaemine": RaidThaemineG4,
	"Red Doom Narkiel":                   RaidEchidnaG1,
	"Covetous Master Echidna":            RaidEchidnaG2,
	"Behemoth, the Storm Commander":      RaidBehemothG1,
	"Akkan, Lord of Death":               RaidAegirG1,
	"Aegir, the Oppressor":               RaidAegirG2,
}

func (r RaidType) String() string {
	if r < 0 || r >= raidTypeCount {
		return fmt.Sprintf("RaidType(%d)", int(r))
	}
	return raidNames[r]
}

// Order is the position used when presenting raid summaries.
func (r RaidType) Order() int {
	return int(r)
}

// ClassifyRaid maps a boss name to its raid gate, RaidUnknown if unlisted.
func ClassifyRaid(boss string) RaidType {
	if r, ok := bossRaids[boss]; ok {
		return r
	}
	return RaidUnknown
}
