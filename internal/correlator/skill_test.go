package correlator

import (
	"testing"
	"time"

	"combat-meter/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hitAt(ts, damage int64) domain.SkillHit {
	return domain.SkillHit{Timestamp: ts, Damage: damage}
}

func TestSkillTrackerJoinsHitToCast(t *testing.T) {
	tracker := NewSkillTracker(time.Minute)
	tracker.SetFightStart(1_000)

	relative := tracker.NewCast(1, 16010, 1_500)
	assert.Equal(t, int64(500), relative)

	got := tracker.OnHit(1, 77, 16010, hitAt(700, 10))
	assert.Equal(t, int64(500), got)

	log := tracker.CastLog()
	casts := log[1][16010]
	require.Len(t, casts, 1)
	assert.Equal(t, int64(500), casts[0].Timestamp)
	assert.Equal(t, int64(700), casts[0].Last)
	assert.Len(t, casts[0].Hits, 1)
}

func TestSkillTrackerProjectileWinsOverSkillCache(t *testing.T) {
	tracker := NewSkillTracker(time.Minute)
	tracker.SetFightStart(0)

	tracker.NewCast(1, 16010, 100)
	require.True(t, tracker.OnProjectile(9, 1, 16010))
	tracker.NewCast(1, 16010, 900)

	assert.Equal(t, int64(100), tracker.OnHit(1, 9, 16010, hitAt(950, 5)))
	assert.Equal(t, int64(900), tracker.OnHit(1, 10, 16010, hitAt(960, 5)))

	casts := tracker.CastLog()[1][16010]
	require.Len(t, casts, 2)
	assert.Equal(t, int64(100), casts[0].Timestamp)
	assert.Equal(t, int64(900), casts[1].Timestamp)
}

func TestSkillTrackerDropsUnresolvedHit(t *testing.T) {
	tracker := NewSkillTracker(time.Minute)
	tracker.SetFightStart(0)

	assert.Equal(t, Unresolved, tracker.OnHit(1, 5, 16010, hitAt(10, 5)))
	assert.Empty(t, tracker.CastLog())
	assert.False(t, tracker.OnProjectile(5, 1, 16010))
}

func TestSkillTrackerSynthesizesMissingCast(t *testing.T) {
	tracker := NewSkillTracker(time.Minute)
	tracker.SetFightStart(0)
	tracker.NewCast(1, 16010, 200)
	tracker.casts = make(map[castKey]*domain.SkillCast)

	assert.Equal(t, int64(200), tracker.OnHit(1, 0, 16010, hitAt(250, 5)))

	casts := tracker.CastLog()[1][16010]
	require.Len(t, casts, 1)
	assert.Equal(t, int64(200), casts[0].Timestamp)
	assert.Equal(t, int64(250), casts[0].Last)
}

func TestSkillTrackerOmitsCastsWithoutHits(t *testing.T) {
	tracker := NewSkillTracker(time.Minute)
	tracker.NewCast(1, 16010, 100)
	tracker.NewCast(1, 16140, 200)
	tracker.OnHit(1, 0, 16140, hitAt(150, 1))

	log := tracker.CastLog()
	assert.NotContains(t, log[1], uint32(16010))
	for _, skills := range log {
		for _, casts := range skills {
			for _, cast := range casts {
				assert.NotEmpty(t, cast.Hits)
			}
		}
	}
}

func TestSkillTrackerFirstCastStartsFight(t *testing.T) {
	tracker := NewSkillTracker(time.Minute)

	assert.Equal(t, int64(0), tracker.NewCast(1, 16010, 5_000))
	start, ok := tracker.FightStart()
	require.True(t, ok)
	assert.Equal(t, int64(5_000), start)
	assert.Equal(t, int64(250), tracker.Relative(5_250))
}

func TestSkillTrackerIdleEviction(t *testing.T) {
	tracker := NewSkillTracker(50 * time.Millisecond)
	tracker.SetFightStart(0)
	tracker.NewCast(1, 16010, 100)

	time.Sleep(120 * time.Millisecond)

	assert.Equal(t, Unresolved, tracker.Resolve(1, 0, 16010))
}

func TestSkillTrackerAccessKeepsEntryAlive(t *testing.T) {
	tracker := NewSkillTracker(200 * time.Millisecond)
	tracker.SetFightStart(0)
	tracker.NewCast(1, 16010, 100)

	for range 4 {
		time.Sleep(80 * time.Millisecond)
		require.Equal(t, int64(100), tracker.Resolve(1, 0, 16010))
	}
}

func TestSkillTrackerRenameAndReset(t *testing.T) {
	tracker := NewSkillTracker(time.Minute)
	tracker.NewCast(1, 16010, 100)
	tracker.OnHit(1, 0, 16010, hitAt(120, 1))

	tracker.RenameEntity(1, 2)
	log := tracker.CastLog()
	assert.NotContains(t, log, uint64(1))
	assert.Len(t, log[2][16010], 1)

	tracker.Reset()
	assert.Empty(t, tracker.CastLog())
	_, ok := tracker.FightStart()
	assert.False(t, ok)
	assert.Equal(t, Unresolved, tracker.Resolve(1, 0, 16010))
}

func TestSkillTrackerRenameKeepsLatestCast(t *testing.T) {
	tracker := NewSkillTracker(time.Minute)
	tracker.SetFightStart(0)
	tracker.NewCast(2, 16010, 1_000)

	tracker.RenameEntity(2, 22)

	assert.Equal(t, int64(1_000), tracker.OnHit(22, 0, 16010, hitAt(1_100, 5)))
	assert.Equal(t, Unresolved, tracker.Resolve(2, 0, 16010))

	log := tracker.CastLog()
	require.Len(t, log[22][16010], 1)
	assert.Len(t, log[22][16010][0].Hits, 1)
	assert.NotContains(t, log, uint64(2))
}

func TestSkillTrackerRenameMergesCasts(t *testing.T) {
	tracker := NewSkillTracker(time.Minute)
	tracker.SetFightStart(0)

	tracker.NewCast(2, 16010, 500)
	tracker.OnHit(2, 0, 16010, hitAt(700, 1))
	tracker.NewCast(22, 16010, 500)
	tracker.OnHit(22, 0, 16010, hitAt(600, 2))

	tracker.RenameEntity(2, 22)

	casts := tracker.CastLog()[22][16010]
	require.Len(t, casts, 1)
	require.Len(t, casts[0].Hits, 2)
	assert.Equal(t, int64(600), casts[0].Hits[0].Timestamp)
	assert.Equal(t, int64(700), casts[0].Hits[1].Timestamp)
	assert.Equal(t, int64(700), casts[0].Last)
}
