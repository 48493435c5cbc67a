package domain

import "time"

const (
	EntityTypePlayer = "player"
	EntityTypeBoss   = "boss"
	EntityTypeNpc    = "npc"
	EntityTypeSummon = "summon"
)

// Encounter timestamps are milliseconds since the epoch; Duration is in milliseconds.
type Encounter struct {
	ID               int64                `json:"id"`
	FightStart       int64                `json:"fightStart"`
	LastCombatPacket int64                `json:"lastCombatPacket"`
	Duration         int64                `json:"duration"`
	LocalPlayer      string               `json:"localPlayer"`
	CurrentBossName  string               `json:"currentBossName"`
	Cleared          bool                 `json:"cleared"`
	Entities         []EncounterEntity    `json:"entities"`
	DamageStats      EncounterDamageStats `json:"encounterDamageStats"`
	Misc             *EncounterMisc       `json:"misc,omitempty"`
}

// EncounterDamageStats carries the encounter-wide aggregates. Buffs, Debuffs,
// AppliedShieldBuffs and BossHPLog are the version-encoded columns.
type EncounterDamageStats struct {
	TotalDamageDealt   int64                       `json:"totalDamageDealt"`
	TopDamageDealt     int64                       `json:"topDamageDealt"`
	TotalDamageTaken   int64                       `json:"totalDamageTaken"`
	TopDamageTaken     int64                       `json:"topDamageTaken"`
	DPS                int64                       `json:"dps"`
	TotalShielding     int64                       `json:"totalShielding"`
	Buffs              map[uint32]StatusEffectInfo `json:"buffs"`
	Debuffs            map[uint32]StatusEffectInfo `json:"debuffs"`
	AppliedShieldBuffs map[uint32]StatusEffectInfo `json:"appliedShieldBuffs"`
	BossHPLog          map[string][]BossHPEntry    `json:"bossHpLog"`
}

type StatusEffectInfo struct {
	ID          uint32 `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Target      string `json:"target"`
	SupportKind string `json:"supportKind,omitempty"`
	Icon        string `json:"icon,omitempty"`
}

type BossHPEntry struct {
	Time    int64   `json:"time"` // seconds into the fight
	HP      int64   `json:"hp"`
	Percent float32 `json:"p"`
}

// EncounterMisc is always stored as plain JSON; Version selects the encoding
// of the other blob columns of the same row.
type EncounterMisc struct {
	Version   string              `json:"version,omitempty"`
	SessionID string              `json:"sessionId,omitempty"`
	RaidClear bool                `json:"raidClear,omitempty"`
	PartyInfo map[uint32][]string `json:"partyInfo,omitempty"`
	// support uptimes of the local player's party, set only when the local player is a support
	SupportUptimes *SupportUptimes `json:"supportUptimes,omitempty"`
}

type SupportUptimes struct {
	AP       float64 `json:"ap"`
	Brand    float64 `json:"brand"`
	Identity float64 `json:"identity"`
	Hyper    float64 `json:"hyper"`
}

type EncounterEntity struct {
	EntityID    uint64                `json:"id"`
	CharacterID uint64                `json:"characterId"`
	NpcID       uint32                `json:"npcId"`
	Name        string                `json:"name"`
	EntityType  string                `json:"entityType"`
	ClassID     uint32                `json:"classId"`
	Class       string                `json:"class"`
	GearScore   float32               `json:"gearScore"`
	CurrentHP   int64                 `json:"currentHp"`
	MaxHP       int64                 `json:"maxHp"`
	IsDead      bool                  `json:"isDead"`
	Skills      map[uint32]*SkillData `json:"skills"`
	DamageStats EntityDamageStats     `json:"damageStats"`
	SkillStats  EntitySkillStats      `json:"skillStats"`
}

type SkillData struct {
	ID           uint32      `json:"id"`
	Name         string      `json:"name"`
	Icon         string      `json:"icon,omitempty"`
	TotalDamage  int64       `json:"totalDamage"`
	MaxDamage    int64       `json:"maxDamage"`
	Casts        int64       `json:"casts"`
	Hits         int64       `json:"hits"`
	Crits        int64       `json:"crits"`
	BackAttacks  int64       `json:"backAttacks"`
	FrontAttacks int64       `json:"frontAttacks"`
	DPS          int64       `json:"dps"`
	CastLog      []int64     `json:"castLog"`
	SkillCasts   []SkillCast `json:"skillCastLog"`
}

type EntityDamageStats struct {
	DamageDealt       int64 `json:"damageDealt"`
	DamageTaken       int64 `json:"damageTaken"`
	DPS               int64 `json:"dps"`
	BuffedBySupport   int64 `json:"buffedBySupport"`
	BuffedByIdentity  int64 `json:"buffedByIdentity"`
	BuffedByHyper     int64 `json:"buffedByHat"`
	DebuffedBySupport int64 `json:"debuffedBySupport"`
	ShieldsGiven      int64 `json:"shieldsGiven"`
	ShieldsReceived   int64 `json:"shieldsReceived"`
	Deaths            int64 `json:"deaths"`
}

type EntitySkillStats struct {
	Casts        int64 `json:"casts"`
	Hits         int64 `json:"hits"`
	Crits        int64 `json:"crits"`
	BackAttacks  int64 `json:"backAttacks"`
	FrontAttacks int64 `json:"frontAttacks"`
}

// SkillCast groups the hits produced by one cast. Timestamps are relative to the fight start.
type SkillCast struct {
	Timestamp int64      `json:"timestamp"`
	Last      int64      `json:"last"`
	Hits      []SkillHit `json:"hits"`
}

type SkillHit struct {
	Timestamp   int64    `json:"timestamp"`
	Damage      int64    `json:"damage"`
	Crit        bool     `json:"crit"`
	BackAttack  bool     `json:"backAttack"`
	FrontAttack bool     `json:"frontAttack"`
	BuffedBy    []uint32 `json:"buffedBy,omitempty"`
	DebuffedBy  []uint32 `json:"debuffedBy,omitempty"`
}

// EncounterPreview is the denormalized listing row.
type EncounterPreview struct {
	ID          int64    `json:"id"`
	FightStart  int64    `json:"fightStart"`
	BossName    string   `json:"bossName"`
	Duration    int64    `json:"duration"`
	Classes     []string `json:"classes"`
	Names       []string `json:"names"`
	LocalPlayer string   `json:"localPlayer"`
	MyDPS       int64    `json:"myDps"`
	Cleared     bool     `json:"cleared"`
}

// StatsUpload records the last submission of an encounter to the stats service.
type StatsUpload struct {
	EncounterID int64     `json:"encounterId"`
	UploadID    string    `json:"uploadId"`
	StatusCode  int       `json:"statusCode"`
	UploadedOn  time.Time `json:"uploadedOn"`
}
