package live

import (
	"fmt"
	"time"

	"combat-meter/internal/constants"
	"combat-meter/internal/correlator"
	"combat-meter/internal/domain"
	"combat-meter/internal/gamedata"
	"combat-meter/internal/packet"
)

const (
	minDurationMillis    = int64(constants.MinEncounterDuration / time.Millisecond)
	bossLogIntervalMilli = int64(constants.BossHPLogInterval / time.Millisecond)
)

type decodedTarget struct {
	packet.DamageTarget
	direction packet.HitDirection
	outcome   packet.HitOutcome
}

func (e *Engine) onSkillDamage(ev *packet.SkillDamage) error {
	targets := make([]decodedTarget, 0, len(ev.Targets))
	for _, t := range ev.Targets {
		dir, outcome, err := packet.DecodeHitInfo(t.HitInfo)
		if err != nil {
			return fmt.Errorf("failed to decode hit on %d from %d: %w", t.TargetID, ev.SourceID, err)
		}
		targets = append(targets, decodedTarget{DamageTarget: t, direction: dir, outcome: outcome})
	}

	if _, started := e.skills.FightStart(); !started {
		e.skills.SetFightStart(ev.Timestamp)
	}
	e.lastCombatPacket = ev.Timestamp
	relative := e.skills.Relative(ev.Timestamp)

	sourceID := e.attribute(ev.SourceID)
	source, sourceKnown := e.entities[sourceID]

	for _, t := range targets {
		target, targetKnown := e.entities[t.TargetID]
		if targetKnown {
			e.applyDamageTaken(target, t, relative)
		}

		if !sourceKnown {
			continue
		}

		hit := domain.SkillHit{
			Timestamp:   relative,
			Damage:      t.Damage,
			Crit:        t.outcome.IsCritical(),
			BackAttack:  t.direction == packet.DirectionBackAttack,
			FrontAttack: t.direction == packet.DirectionFrontalAttack,
		}
		e.applyDamageDealt(source, ev.SkillID, t, &hit)

		if e.skills.OnHit(sourceID, ev.ProjectileID, ev.SkillID, hit) == correlator.Unresolved {
			e.logger.Debug().
				Uint64("source_id", sourceID).
				Uint32("skill_id", ev.SkillID).
				Msg("hit without resolvable cast")
		}
	}
	return nil
}

func (e *Engine) applyDamageTaken(target *entity, t decodedTarget, relative int64) {
	target.DamageStats.DamageTaken += t.Damage
	if t.MaxHP > 0 {
		target.MaxHP = t.MaxHP
	}
	target.CurrentHP = t.CurrentHP

	if t.CurrentHP <= 0 {
		if !target.IsDead {
			target.IsDead = true
			target.DamageStats.Deaths++
		}
	} else {
		target.IsDead = false
	}

	switch target.EntityType {
	case domain.EntityTypePlayer:
		e.stats.TotalDamageTaken += t.Damage
		e.stats.TopDamageTaken = max(e.stats.TopDamageTaken, target.DamageStats.DamageTaken)
	case domain.EntityTypeBoss:
		e.logBossHP(target, relative)
	}
}

// logBossHP keeps at most one sample per interval per boss.
func (e *Engine) logBossHP(boss *entity, relative int64) {
	if last, ok := e.bossLastLogged[boss.Name]; ok && relative-last < bossLogIntervalMilli {
		return
	}
	e.bossLastLogged[boss.Name] = relative

	var percent float32
	if boss.MaxHP > 0 {
		percent = float32(boss.CurrentHP) / float32(boss.MaxHP)
	}
	e.stats.BossHPLog[boss.Name] = append(e.stats.BossHPLog[boss.Name], domain.BossHPEntry{
		Time:    relative / 1000,
		HP:      boss.CurrentHP,
		Percent: percent,
	})
}

func (e *Engine) applyDamageDealt(source *entity, skillID uint32, t decodedTarget, hit *domain.SkillHit) {
	source.DamageStats.DamageDealt += t.Damage

	skill := e.skillData(source, skillID)
	skill.TotalDamage += t.Damage
	skill.MaxDamage = max(skill.MaxDamage, t.Damage)
	skill.Hits++
	source.SkillStats.Hits++
	if hit.Crit {
		skill.Crits++
		source.SkillStats.Crits++
	}
	if hit.BackAttack {
		skill.BackAttacks++
		source.SkillStats.BackAttacks++
	}
	if hit.FrontAttack {
		skill.FrontAttacks++
		source.SkillStats.FrontAttacks++
	}

	if source.EntityType != domain.EntityTypePlayer {
		return
	}
	e.stats.TotalDamageDealt += t.Damage
	e.stats.TopDamageDealt = max(e.stats.TopDamageDealt, source.DamageStats.DamageDealt)

	var ap, identity, hyper, brand bool
	for _, id := range t.Buffs {
		effect, ok := e.data.StatusEffect(id)
		if !ok {
			continue
		}
		e.stats.Buffs[id] = effectInfo(effect)
		hit.BuffedBy = append(hit.BuffedBy, id)
		switch effect.SupportKind {
		case gamedata.SupportAP:
			ap = true
		case gamedata.SupportIdentity:
			identity = true
		case gamedata.SupportHyper:
			hyper = true
		}
	}
	for _, id := range t.Debuffs {
		effect, ok := e.data.StatusEffect(id)
		if !ok {
			continue
		}
		e.stats.Debuffs[id] = effectInfo(effect)
		hit.DebuffedBy = append(hit.DebuffedBy, id)
		if effect.SupportKind == gamedata.SupportBrand {
			brand = true
		}
	}

	if ap {
		source.DamageStats.BuffedBySupport += t.Damage
	}
	if identity {
		source.DamageStats.BuffedByIdentity += t.Damage
	}
	if hyper {
		source.DamageStats.BuffedByHyper += t.Damage
	}
	if brand {
		source.DamageStats.DebuffedBySupport += t.Damage
	}
}

func (e *Engine) onShieldApplied(ev *packet.ShieldApplied) {
	if ev.Amount <= 0 {
		return
	}
	if source, ok := e.entities[e.attribute(ev.SourceID)]; ok {
		source.DamageStats.ShieldsGiven += ev.Amount
	}
	if target, ok := e.entities[ev.TargetID]; ok {
		target.DamageStats.ShieldsReceived += ev.Amount
	}
	e.stats.TotalShielding += ev.Amount
	if effect, ok := e.data.StatusEffect(ev.StatusEffectID); ok {
		e.stats.AppliedShieldBuffs[ev.StatusEffectID] = effectInfo(effect)
	}
}

func effectInfo(effect gamedata.StatusEffect) domain.StatusEffectInfo {
	return domain.StatusEffectInfo{
		ID:          effect.ID,
		Name:        effect.Name,
		Category:    effect.Category,
		Target:      effect.Target,
		SupportKind: string(effect.SupportKind),
		Icon:        effect.Icon,
	}
}
