package live

import (
	"cmp"
	"maps"
	"slices"

	"combat-meter/internal/domain"
)

// build assembles the encounter in progress without mutating engine state.
// It returns nil before the first cast or hit.
func (e *Engine) build() *domain.Encounter {
	fightStart, started := e.skills.FightStart()
	if !started {
		return nil
	}

	last := max(e.lastCombatPacket, fightStart)
	duration := last - fightStart

	enc := &domain.Encounter{
		FightStart:       fightStart,
		LastCombatPacket: last,
		Duration:         duration,
		LocalPlayer:      e.localName,
		Cleared:          e.cleared,
		DamageStats: domain.EncounterDamageStats{
			TotalDamageDealt:   e.stats.TotalDamageDealt,
			TopDamageDealt:     e.stats.TopDamageDealt,
			TotalDamageTaken:   e.stats.TotalDamageTaken,
			TopDamageTaken:     e.stats.TopDamageTaken,
			DPS:                perSecond(e.stats.TotalDamageDealt, duration),
			TotalShielding:     e.stats.TotalShielding,
			Buffs:              maps.Clone(e.stats.Buffs),
			Debuffs:            maps.Clone(e.stats.Debuffs),
			AppliedShieldBuffs: maps.Clone(e.stats.AppliedShieldBuffs),
			BossHPLog:          make(map[string][]domain.BossHPEntry, len(e.stats.BossHPLog)),
		},
		Misc: &domain.EncounterMisc{
			Version:   e.appVersion,
			SessionID: e.sessionID,
			RaidClear: e.cleared,
			PartyInfo: make(map[uint32][]string, len(e.partyNames)),
		},
	}
	for boss, log := range e.stats.BossHPLog {
		enc.DamageStats.BossHPLog[boss] = slices.Clone(log)
	}
	for party, names := range e.partyNames {
		enc.Misc.PartyInfo[party] = slices.Clone(names)
	}

	castLog := e.skills.CastLog()
	var boss *entity
	for id, ent := range e.entities {
		if ent.EntityType == domain.EntityTypeBoss && ent.DamageStats.DamageTaken > 0 &&
			(boss == nil || ent.DamageStats.DamageTaken > boss.DamageStats.DamageTaken) {
			boss = ent
		}

		if !included(ent) {
			continue
		}
		enc.Entities = append(enc.Entities, e.snapshotEntity(ent, castLog[id], duration))
	}
	if boss != nil {
		enc.CurrentBossName = boss.Name
	}

	slices.SortFunc(enc.Entities, func(a, b domain.EncounterEntity) int {
		if c := cmp.Compare(b.DamageStats.DamageDealt, a.DamageStats.DamageDealt); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})

	if local, ok := e.entities[e.localEntityID]; ok && e.data.IsSupportClass(local.ClassID) {
		enc.Misc.SupportUptimes = e.supportUptimes()
	}
	return enc
}

func included(ent *entity) bool {
	switch ent.EntityType {
	case domain.EntityTypePlayer:
		return true
	case domain.EntityTypeBoss:
		return ent.DamageStats.DamageTaken > 0 || ent.DamageStats.DamageDealt > 0
	}
	return ent.DamageStats.DamageDealt > 0
}

func (e *Engine) snapshotEntity(ent *entity, casts map[uint32][]domain.SkillCast, duration int64) domain.EncounterEntity {
	out := ent.EncounterEntity
	out.DamageStats.DPS = perSecond(ent.DamageStats.DamageDealt, duration)
	out.Skills = make(map[uint32]*domain.SkillData, len(ent.Skills))
	for id, skill := range ent.Skills {
		s := *skill
		s.DPS = perSecond(skill.TotalDamage, duration)
		s.CastLog = slices.Clone(skill.CastLog)
		s.SkillCasts = casts[id]
		out.Skills[id] = &s
	}
	return out
}

// supportUptimes reports, as percentages, how much of the local party's
// non-support damage carried each kind of support buff.
func (e *Engine) supportUptimes() *domain.SupportUptimes {
	localParty, hasParty := e.party.LocalParty()

	var total, ap, brand, identity, hyper int64
	for id, ent := range e.entities {
		if ent.EntityType != domain.EntityTypePlayer || e.data.IsSupportClass(ent.ClassID) {
			continue
		}
		if hasParty {
			party, ok := e.party.PartyOfEntity(id)
			if !ok {
				party, ok = e.party.PartyOfCharacter(ent.CharacterID)
			}
			if !ok || party != localParty {
				continue
			}
		}
		total += ent.DamageStats.DamageDealt
		ap += ent.DamageStats.BuffedBySupport
		brand += ent.DamageStats.DebuffedBySupport
		identity += ent.DamageStats.BuffedByIdentity
		hyper += ent.DamageStats.BuffedByHyper
	}

	if total == 0 {
		return &domain.SupportUptimes{}
	}
	return &domain.SupportUptimes{
		AP:       percent(ap, total),
		Brand:    percent(brand, total),
		Identity: percent(identity, total),
		Hyper:    percent(hyper, total),
	}
}

func perSecond(value, durationMillis int64) int64 {
	if durationMillis <= 0 {
		return 0
	}
	return value * 1000 / durationMillis
}

func percent(part, total int64) float64 {
	return float64(part) / float64(total) * 100
}
