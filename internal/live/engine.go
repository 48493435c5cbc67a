// Package live turns the decoded packet stream into encounters.
package live

import (
	"context"
	"errors"
	"fmt"

	"combat-meter/internal/config"
	"combat-meter/internal/constants"
	"combat-meter/internal/correlator"
	"combat-meter/internal/domain"
	"combat-meter/internal/gamedata"
	"combat-meter/internal/packet"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrNoActiveEncounter = errors.New("no active encounter")

// Sink receives every finished encounter.
type Sink interface {
	Save(ctx context.Context, enc *domain.Encounter) (int64, error)
}

type entity struct {
	domain.EncounterEntity
	ownerID uint64
}

// Engine owns all correlator state. Handle, Finish and Reset must only be
// called from one goroutine; when Run is used that goroutine is Run's, and
// other goroutines go through Snapshot and RequestReset.
type Engine struct {
	data       *gamedata.Data
	sink       Sink
	appVersion string
	sessionID  string
	logger     zerolog.Logger

	identity *correlator.IdentityCorrelator
	party    *correlator.PartyCorrelator
	skills   *correlator.SkillTracker

	entities      map[uint64]*entity
	localEntityID uint64
	localName     string
	partyNames    map[uint32][]string

	lastCombatPacket int64
	cleared          bool
	stats            domain.EncounterDamageStats
	bossLastLogged   map[string]int64

	control chan func()
}

func NewEngine(cfg *config.Config, data *gamedata.Data, sink Sink, logger zerolog.Logger) *Engine {
	identity := correlator.NewIdentityCorrelator()
	sessionID := uuid.NewString()

	e := &Engine{
		data:       data,
		sink:       sink,
		appVersion: cfg.AppVersion,
		sessionID:  sessionID,
		logger:     logger.With().Str("session_id", sessionID).Logger(),
		identity:   identity,
		party:      correlator.NewPartyCorrelator(identity),
		skills:     correlator.NewSkillTracker(cfg.CastIdleTTL),
		entities:   make(map[uint64]*entity),
		partyNames: make(map[uint32][]string),
		control:    make(chan func()),
	}
	e.resetFight()
	return e
}

func (e *Engine) SessionID() string {
	return e.sessionID
}

// Run consumes events until ctx is cancelled or events is closed. Both
// finish the encounter in progress.
func (e *Engine) Run(ctx context.Context, events <-chan packet.Event) error {
	e.logger.Info().Msg("live engine started")
	defer e.logger.Info().Msg("live engine stopped")

	for {
		select {
		case <-ctx.Done():
			// the fight in progress is still saved on shutdown
			finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.DatabaseTimeout)
			e.Finish(finishCtx)
			cancel()
			return ctx.Err()
		case fn := <-e.control:
			fn()
		case ev, ok := <-events:
			if !ok {
				e.Finish(ctx)
				return nil
			}
			if err := e.Handle(ctx, ev); err != nil {
				e.logger.Warn().Err(err).Stringer("opcode", ev.Opcode()).Msg("rejected packet")
			}
		}
	}
}

// Snapshot returns a copy of the encounter in progress. It must be called
// while Run is active.
func (e *Engine) Snapshot(ctx context.Context) (*domain.Encounter, error) {
	reply := make(chan *domain.Encounter, 1)
	if err := e.submit(ctx, func() { reply <- e.build() }); err != nil {
		return nil, err
	}

	select {
	case enc := <-reply:
		if enc == nil {
			return nil, ErrNoActiveEncounter
		}
		return enc, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RequestReset asks the Run goroutine to discard all session state.
func (e *Engine) RequestReset(ctx context.Context) error {
	return e.submit(ctx, e.Reset)
}

func (e *Engine) submit(ctx context.Context, fn func()) error {
	select {
	case e.control <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handle applies one event. Only malformed packets produce an error; the
// event is then ignored as a whole.
func (e *Engine) Handle(ctx context.Context, ev packet.Event) error {
	switch ev := ev.(type) {
	case *packet.InitPC:
		e.onInitPC(ev)
	case *packet.NewPC:
		e.onNewPC(ev)
	case *packet.NewNpc:
		e.onNewNpc(ev)
	case *packet.PartyInfo:
		e.onPartyInfo(ev)
	case *packet.PartyLeave:
		e.onPartyLeave(ev)
	case *packet.EntityIDChange:
		e.onEntityIDChange(ev)
	case *packet.SkillStart:
		e.onSkillStart(ev)
	case *packet.NewProjectile:
		if !e.skills.OnProjectile(ev.ProjectileID, e.attribute(ev.OwnerID), ev.SkillID) {
			e.logger.Debug().
				Uint64("projectile_id", ev.ProjectileID).
				Uint32("skill_id", ev.SkillID).
				Msg("projectile without known cast")
		}
	case *packet.SkillDamage:
		return e.onSkillDamage(ev)
	case *packet.ShieldApplied:
		e.onShieldApplied(ev)
	case *packet.CombatEnd:
		e.cleared = ev.Cleared
		e.Finish(ctx)
	case *packet.ZoneChange:
		e.Finish(ctx)
		e.Reset()
	default:
		return fmt.Errorf("unsupported event %T", ev)
	}
	return nil
}

// Finish hands the encounter in progress to the sink and starts a new fight.
// Encounters without damage or shorter than the minimum duration are dropped.
// A sink failure is logged and the encounter discarded.
func (e *Engine) Finish(ctx context.Context) *domain.Encounter {
	enc := e.build()
	e.resetFight()

	if enc == nil || enc.DamageStats.TotalDamageDealt == 0 || enc.Duration < minDurationMillis {
		e.logger.Debug().Msg("discarding empty encounter")
		return nil
	}

	if e.sink != nil {
		id, err := e.sink.Save(ctx, enc)
		if err != nil {
			e.logger.Error().Err(err).Str("boss", enc.CurrentBossName).Msg("failed to persist encounter")
			return enc
		}
		enc.ID = id
	}

	e.logger.Info().
		Int64("encounter_id", enc.ID).
		Str("boss", enc.CurrentBossName).
		Int64("duration_ms", enc.Duration).
		Bool("cleared", enc.Cleared).
		Msg("encounter finished")
	return enc
}

// Reset clears all session state: correlators, known entities and the fight.
func (e *Engine) Reset() {
	e.identity.Clear()
	e.party.ResetPartyMappings()
	clear(e.entities)
	clear(e.partyNames)
	e.localEntityID = 0
	e.resetFight()
	e.logger.Debug().Msg("session reset")
}

// resetFight starts a new fight but keeps who is around.
func (e *Engine) resetFight() {
	e.skills.Reset()
	e.lastCombatPacket = 0
	e.cleared = false
	e.stats = domain.EncounterDamageStats{
		Buffs:              make(map[uint32]domain.StatusEffectInfo),
		Debuffs:            make(map[uint32]domain.StatusEffectInfo),
		AppliedShieldBuffs: make(map[uint32]domain.StatusEffectInfo),
		BossHPLog:          make(map[string][]domain.BossHPEntry),
	}
	e.bossLastLogged = make(map[string]int64)

	for _, ent := range e.entities {
		ent.Skills = make(map[uint32]*domain.SkillData)
		ent.DamageStats = domain.EntityDamageStats{}
		ent.SkillStats = domain.EntitySkillStats{}
		ent.IsDead = false
	}
}

func (e *Engine) onInitPC(ev *packet.InitPC) {
	e.localEntityID = ev.EntityID
	e.localName = ev.Name
	e.party.SetLocalName(ev.Name)
	e.registerPlayer(ev.EntityID, ev.CharacterID, ev.Name, ev.ClassID, ev.GearLevel, ev.MaxHP)
}

func (e *Engine) onNewPC(ev *packet.NewPC) {
	e.registerPlayer(ev.EntityID, ev.CharacterID, ev.Name, ev.ClassID, ev.GearLevel, ev.MaxHP)
}

func (e *Engine) registerPlayer(entityID, characterID uint64, name string, classID uint32, gear float32, maxHP int64) {
	if characterID != 0 {
		e.identity.AddMapping(characterID, entityID)
		e.party.CompleteEntry(characterID, entityID)
	}

	// a respawned player keeps the stats gathered under the old entity id
	for id, ent := range e.entities {
		if id != entityID && ent.EntityType == domain.EntityTypePlayer && ent.Name == name {
			e.moveEntity(id, entityID)
			break
		}
	}

	ent, ok := e.entities[entityID]
	if !ok {
		ent = &entity{EncounterEntity: domain.EncounterEntity{Skills: make(map[uint32]*domain.SkillData)}}
		e.entities[entityID] = ent
	}
	ent.EntityID = entityID
	ent.CharacterID = characterID
	ent.Name = name
	ent.EntityType = domain.EntityTypePlayer
	ent.ClassID = classID
	ent.Class = e.data.ClassName(classID)
	ent.GearScore = gear
	ent.MaxHP = maxHP
	if ent.CurrentHP == 0 {
		ent.CurrentHP = maxHP
	}
	ent.ownerID = 0
}

func (e *Engine) onNewNpc(ev *packet.NewNpc) {
	ent := &entity{
		EncounterEntity: domain.EncounterEntity{
			EntityID:   ev.EntityID,
			NpcID:      ev.TypeID,
			Name:       fmt.Sprintf("%d", ev.TypeID),
			EntityType: domain.EntityTypeNpc,
			CurrentHP:  ev.MaxHP,
			MaxHP:      ev.MaxHP,
			Skills:     make(map[uint32]*domain.SkillData),
		},
		ownerID: ev.OwnerID,
	}

	if npc, ok := e.data.Npc(ev.TypeID); ok {
		ent.Name = npc.Name
		if npc.IsBoss() {
			ent.EntityType = domain.EntityTypeBoss
		}
	}
	if ev.OwnerID != 0 {
		ent.EntityType = domain.EntityTypeSummon
	}
	e.entities[ev.EntityID] = ent
}

func (e *Engine) onPartyInfo(ev *packet.PartyInfo) {
	names := make([]string, 0, len(ev.Members))
	for _, m := range ev.Members {
		e.party.Add(ev.RaidInstanceID, ev.PartyInstanceID, m.CharacterID, 0, m.Name)
		names = append(names, m.Name)

		if entityID, ok := e.identity.EntityID(m.CharacterID); ok {
			if ent, ok := e.entities[entityID]; ok && ent.ClassID == 0 {
				ent.ClassID = m.ClassID
				ent.Class = e.data.ClassName(m.ClassID)
			}
		}
	}
	e.partyNames[ev.PartyInstanceID] = names
}

func (e *Engine) onPartyLeave(ev *packet.PartyLeave) {
	e.party.Remove(ev.PartyInstanceID, ev.Name)
	if ev.Name != "" && ev.Name == e.localName {
		delete(e.partyNames, ev.PartyInstanceID)
	}
}

func (e *Engine) onEntityIDChange(ev *packet.EntityIDChange) {
	if characterID, ok := e.identity.CharacterID(ev.OldEntityID); ok {
		e.identity.AddMapping(characterID, ev.NewEntityID)
	}
	e.party.ChangeEntityID(ev.OldEntityID, ev.NewEntityID)
	e.moveEntity(ev.OldEntityID, ev.NewEntityID)
	if e.localEntityID == ev.OldEntityID {
		e.localEntityID = ev.NewEntityID
	}
}

func (e *Engine) moveEntity(oldID, newID uint64) {
	e.skills.RenameEntity(oldID, newID)
	ent, ok := e.entities[oldID]
	if !ok {
		return
	}
	delete(e.entities, oldID)
	ent.EntityID = newID
	e.entities[newID] = ent

	for _, other := range e.entities {
		if other.ownerID == oldID {
			other.ownerID = newID
		}
	}
}

// attribute maps a summon to the entity that owns it.
func (e *Engine) attribute(entityID uint64) uint64 {
	if ent, ok := e.entities[entityID]; ok && ent.ownerID != 0 {
		return ent.ownerID
	}
	return entityID
}

func (e *Engine) onSkillStart(ev *packet.SkillStart) {
	sourceID := e.attribute(ev.SourceID)
	relative := e.skills.NewCast(sourceID, ev.SkillID, ev.Timestamp)

	ent, ok := e.entities[sourceID]
	if !ok {
		return
	}
	skill := e.skillData(ent, ev.SkillID)
	skill.Casts++
	skill.CastLog = append(skill.CastLog, relative)
	ent.SkillStats.Casts++
}

func (e *Engine) skillData(ent *entity, skillID uint32) *domain.SkillData {
	skill, ok := ent.Skills[skillID]
	if !ok {
		skill = &domain.SkillData{ID: skillID, Name: e.data.SkillName(skillID)}
		if s, ok := e.data.Skill(skillID); ok {
			skill.Icon = s.Icon
		}
		ent.Skills[skillID] = skill
	}
	return skill
}
