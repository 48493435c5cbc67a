// Package packet holds the typed events produced by the capture transport and
// the bit-level helpers needed to interpret them.
package packet

import "fmt"

type Opcode uint16

const (
	OpInitPC Opcode = iota + 1
	OpNewPC
	OpNewNpc
	OpPartyInfo
	OpPartyLeave
	OpEntityIDChange
	OpSkillStart
	OpNewProjectile
	OpSkillDamage
	OpShieldApplied
	OpCombatEnd
	OpZoneChange
)

var opcodeNames = map[Opcode]string{
	OpInitPC:         "InitPC",
	OpNewPC:          "NewPC",
	OpNewNpc:         "NewNpc",
	OpPartyInfo:      "PartyInfo",
	OpPartyLeave:     "PartyLeave",
	OpEntityIDChange: "EntityIDChange",
	OpSkillStart:     "SkillStart",
	OpNewProjectile:  "NewProjectile",
	OpSkillDamage:    "SkillDamage",
	OpShieldApplied:  "ShieldApplied",
	OpCombatEnd:      "CombatEnd",
	OpZoneChange:     "ZoneChange",
}

func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Opcode(%d)", uint16(o))
}

// ParseOpcode maps a capture name back to its opcode.
func ParseOpcode(name string) (Opcode, bool) {
	for op, n := range opcodeNames {
		if n == name {
			return op, true
		}
	}
	return 0, false
}

// Event is a decoded packet. Timestamp is milliseconds since the epoch,
// assigned by the transport on receipt.
type Event interface {
	Opcode() Opcode
	Time() int64
}

type Header struct {
	Timestamp int64 `json:"ts"`
}

func (h Header) Time() int64 { return h.Timestamp }

// InitPC announces the local player.
type InitPC struct {
	Header
	EntityID    uint64  `json:"entity_id"`
	CharacterID uint64  `json:"character_id"`
	Name        string  `json:"name"`
	ClassID     uint32  `json:"class_id"`
	GearLevel   float32 `json:"gear_level"`
	MaxHP       int64   `json:"max_hp"`
}

func (InitPC) Opcode() Opcode { return OpInitPC }

type NewPC struct {
	Header
	EntityID    uint64  `json:"entity_id"`
	CharacterID uint64  `json:"character_id"`
	Name        string  `json:"name"`
	ClassID     uint32  `json:"class_id"`
	GearLevel   float32 `json:"gear_level"`
	MaxHP       int64   `json:"max_hp"`
}

func (NewPC) Opcode() Opcode { return OpNewPC }

type NewNpc struct {
	Header
	EntityID uint64 `json:"entity_id"`
	TypeID   uint32 `json:"type_id"`
	MaxHP    int64  `json:"max_hp"`
	// OwnerID is set for summons and points at the summoning entity.
	OwnerID uint64 `json:"owner_id,omitempty"`
}

func (NewNpc) Opcode() Opcode { return OpNewNpc }

type PartyMember struct {
	CharacterID uint64  `json:"character_id"`
	Name        string  `json:"name"`
	ClassID     uint32  `json:"class_id"`
	GearLevel   float32 `json:"gear_level"`
}

type PartyInfo struct {
	Header
	RaidInstanceID  uint32        `json:"raid_instance_id"`
	PartyInstanceID uint32        `json:"party_instance_id"`
	Members         []PartyMember `json:"members"`
}

func (PartyInfo) Opcode() Opcode { return OpPartyInfo }

type PartyLeave struct {
	Header
	PartyInstanceID uint32 `json:"party_instance_id"`
	Name            string `json:"name"`
}

func (PartyLeave) Opcode() Opcode { return OpPartyLeave }

type EntityIDChange struct {
	Header
	OldEntityID uint64 `json:"old_entity_id"`
	NewEntityID uint64 `json:"new_entity_id"`
}

func (EntityIDChange) Opcode() Opcode { return OpEntityIDChange }

type SkillStart struct {
	Header
	SourceID uint64 `json:"source_id"`
	SkillID  uint32 `json:"skill_id"`
}

func (SkillStart) Opcode() Opcode { return OpSkillStart }

type NewProjectile struct {
	Header
	ProjectileID uint64 `json:"projectile_id"`
	OwnerID      uint64 `json:"owner_id"`
	SkillID      uint32 `json:"skill_id"`
}

func (NewProjectile) Opcode() Opcode { return OpNewProjectile }

type DamageTarget struct {
	TargetID  uint64   `json:"target_id"`
	Damage    int64    `json:"damage"`
	HitInfo   int32    `json:"hit_info"`
	CurrentHP int64    `json:"current_hp"`
	MaxHP     int64    `json:"max_hp"`
	Buffs     []uint32 `json:"buffs,omitempty"`
	Debuffs   []uint32 `json:"debuffs,omitempty"`
}

type SkillDamage struct {
	Header
	SourceID      uint64         `json:"source_id"`
	SkillID       uint32         `json:"skill_id"`
	SkillEffectID uint32         `json:"skill_effect_id"`
	ProjectileID  uint64         `json:"projectile_id,omitempty"`
	Targets       []DamageTarget `json:"targets"`
}

func (SkillDamage) Opcode() Opcode { return OpSkillDamage }

type ShieldApplied struct {
	Header
	SourceID       uint64 `json:"source_id"`
	TargetID       uint64 `json:"target_id"`
	StatusEffectID uint32 `json:"status_effect_id"`
	Amount         int64  `json:"amount"`
}

func (ShieldApplied) Opcode() Opcode { return OpShieldApplied }

// CombatEnd marks a boss kill or a wipe.
type CombatEnd struct {
	Header
	Cleared bool `json:"cleared"`
}

func (CombatEnd) Opcode() Opcode { return OpCombatEnd }

type ZoneChange struct {
	Header
	ZoneID uint32 `json:"zone_id"`
}

func (ZoneChange) Opcode() Opcode { return OpZoneChange }
