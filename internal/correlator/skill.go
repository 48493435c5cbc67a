package correlator

import (
	"cmp"
	"slices"
	"time"

	"combat-meter/internal/domain"

	"github.com/jellydator/ttlcache/v3"
)

// Unresolved is returned by OnHit when no cast could be found for a hit.
const Unresolved int64 = -1

type skillKey struct {
	entityID uint64
	skillID  uint32
}

type castKey struct {
	entityID  uint64
	skillID   uint32
	timestamp int64
}

// SkillTracker joins skill hits to the cast that produced them. Hits can land
// seconds after their cast, so the cast timestamp is remembered in two idle
// caches: per projectile (exact) and per entity+skill (latest cast).
//
// The caches may be read concurrently; every mutating method must be called
// from the ingestion goroutine.
type SkillTracker struct {
	fightStart int64

	projectiles *ttlcache.Cache[uint64, int64]
	skills      *ttlcache.Cache[skillKey, int64]
	casts       map[castKey]*domain.SkillCast
}

func NewSkillTracker(idleTTL time.Duration) *SkillTracker {
	return &SkillTracker{
		fightStart: -1,
		projectiles: ttlcache.New[uint64, int64](
			ttlcache.WithTTL[uint64, int64](idleTTL),
		),
		skills: ttlcache.New[skillKey, int64](
			ttlcache.WithTTL[skillKey, int64](idleTTL),
		),
		casts: make(map[castKey]*domain.SkillCast),
	}
}

func (t *SkillTracker) SetFightStart(timestamp int64) {
	t.fightStart = timestamp
}

func (t *SkillTracker) FightStart() (int64, bool) {
	return t.fightStart, t.fightStart >= 0
}

// Relative converts an absolute timestamp to an offset from the fight start.
func (t *SkillTracker) Relative(timestamp int64) int64 {
	if t.fightStart < 0 || timestamp < t.fightStart {
		return 0
	}
	return timestamp - t.fightStart
}

// NewCast opens a cast for entityID/skillID at the fight-relative time of timestamp.
func (t *SkillTracker) NewCast(entityID uint64, skillID uint32, timestamp int64) int64 {
	if t.fightStart < 0 {
		t.fightStart = timestamp
	}
	t.skills.DeleteExpired()
	t.projectiles.DeleteExpired()

	relative := t.Relative(timestamp)
	t.skills.Set(skillKey{entityID, skillID}, relative, ttlcache.DefaultTTL)

	key := castKey{entityID, skillID, relative}
	if _, ok := t.casts[key]; !ok {
		t.casts[key] = &domain.SkillCast{Timestamp: relative, Last: relative}
	}
	return relative
}

// OnProjectile ties a projectile to the latest cast of its owner's skill.
func (t *SkillTracker) OnProjectile(projectileID, ownerID uint64, skillID uint32) bool {
	item := t.skills.Get(skillKey{ownerID, skillID})
	if item == nil {
		return false
	}
	t.projectiles.Set(projectileID, item.Value(), ttlcache.DefaultTTL)
	return true
}

// Resolve finds the relative cast timestamp for a hit: projectile first, then
// the latest cast of the skill, else Unresolved.
func (t *SkillTracker) Resolve(entityID, projectileID uint64, skillID uint32) int64 {
	if projectileID != 0 {
		if item := t.projectiles.Get(projectileID); item != nil {
			return item.Value()
		}
	}
	if item := t.skills.Get(skillKey{entityID, skillID}); item != nil {
		return item.Value()
	}
	return Unresolved
}

// OnHit appends hit to its cast and returns the cast timestamp. A hit whose
// cast cannot be resolved is dropped and Unresolved is returned. A resolved
// hit without an open cast (cast packet lost) creates one.
func (t *SkillTracker) OnHit(entityID, projectileID uint64, skillID uint32, hit domain.SkillHit) int64 {
	timestamp := t.Resolve(entityID, projectileID, skillID)
	if timestamp == Unresolved {
		return Unresolved
	}

	key := castKey{entityID, skillID, timestamp}
	cast, ok := t.casts[key]
	if !ok {
		cast = &domain.SkillCast{Timestamp: timestamp}
		t.casts[key] = cast
	}
	cast.Hits = append(cast.Hits, hit)
	cast.Last = hit.Timestamp
	return timestamp
}

// CastLog returns entity -> skill -> casts ordered by timestamp. Casts that
// never landed a hit are left out.
func (t *SkillTracker) CastLog() map[uint64]map[uint32][]domain.SkillCast {
	log := make(map[uint64]map[uint32][]domain.SkillCast)
	for key, cast := range t.casts {
		if len(cast.Hits) == 0 {
			continue
		}
		skills, ok := log[key.entityID]
		if !ok {
			skills = make(map[uint32][]domain.SkillCast)
			log[key.entityID] = skills
		}
		c := *cast
		c.Hits = slices.Clone(cast.Hits)
		skills[key.skillID] = append(skills[key.skillID], c)
	}

	for _, skills := range log {
		for _, casts := range skills {
			slices.SortFunc(casts, func(a, b domain.SkillCast) int {
				return cmp.Compare(a.Timestamp, b.Timestamp)
			})
		}
	}
	return log
}

// RenameEntity moves casts and the latest-cast cache entries recorded under
// oldID to newID. Casts that already exist under newID keep their hits and
// gain the moved ones.
func (t *SkillTracker) RenameEntity(oldID, newID uint64) {
	if oldID == newID {
		return
	}

	for key, item := range t.skills.Items() {
		if key.entityID != oldID {
			continue
		}
		t.skills.Set(skillKey{newID, key.skillID}, item.Value(), ttlcache.DefaultTTL)
		t.skills.Delete(key)
	}

	var moved []castKey
	for key := range t.casts {
		if key.entityID == oldID {
			moved = append(moved, key)
		}
	}
	for _, key := range moved {
		cast := t.casts[key]
		delete(t.casts, key)
		key.entityID = newID

		existing, ok := t.casts[key]
		if !ok {
			t.casts[key] = cast
			continue
		}
		existing.Hits = append(existing.Hits, cast.Hits...)
		slices.SortStableFunc(existing.Hits, func(a, b domain.SkillHit) int {
			return cmp.Compare(a.Timestamp, b.Timestamp)
		})
		existing.Last = max(existing.Last, cast.Last)
	}
}

func (t *SkillTracker) Reset() {
	t.fightStart = -1
	t.projectiles.DeleteAll()
	t.skills.DeleteAll()
	clear(t.casts)
}
