package packet

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidHitOutcome   = errors.New("invalid hit outcome")
	ErrInvalidHitDirection = errors.New("invalid hit direction")
)

// HitOutcome is stored in the low 4 bits of a packed hit-info value.
type HitOutcome uint8

const (
	HitNormal HitOutcome = iota
	HitCritical
	HitMiss
	HitInvincible
	HitDot
	HitImmune
	HitImmuneSilenced
	HitFontSilenced
	HitDotCritical
	HitDodge
	HitReflect
	HitDamageShare
	HitDodgeHit
	HitMax
)

var hitOutcomeNames = [...]string{
	"normal", "critical", "miss", "invincible", "dot", "immune", "immune_silenced",
	"font_silenced", "dot_critical", "dodge", "reflect", "damage_share", "dodge_hit", "max",
}

func (o HitOutcome) String() string {
	if int(o) < len(hitOutcomeNames) {
		return hitOutcomeNames[o]
	}
	return fmt.Sprintf("HitOutcome(%d)", uint8(o))
}

func (o HitOutcome) IsCritical() bool {
	return o == HitCritical || o == HitDotCritical
}

// HitDirection is stored in bits 4-6, offset by one so that a zero field means no direction.
type HitDirection int8

const (
	DirectionNone HitDirection = iota - 1
	DirectionBackAttack
	DirectionFrontalAttack
	DirectionFlankAttack
	DirectionMax
)

func (d HitDirection) String() string {
	switch d {
	case DirectionNone:
		return "none"
	case DirectionBackAttack:
		return "back_attack"
	case DirectionFrontalAttack:
		return "frontal_attack"
	case DirectionFlankAttack:
		return "flank_attack"
	case DirectionMax:
		return "max"
	}
	return fmt.Sprintf("HitDirection(%d)", int8(d))
}

// DecodeHitInfo splits a packed hit-info value. Patterns outside the known
// ranges are rejected; callers must drop the event instead of guessing.
func DecodeHitInfo(v int32) (HitDirection, HitOutcome, error) {
	outcome := HitOutcome(v & 0xf)
	if outcome > HitMax {
		return DirectionNone, 0, fmt.Errorf("%w: %d in hit info %#x", ErrInvalidHitOutcome, outcome, v)
	}

	raw := (v >> 4) & 0x7
	direction := HitDirection(raw - 1)
	if direction >= DirectionMax {
		return DirectionNone, 0, fmt.Errorf("%w: %d in hit info %#x", ErrInvalidHitDirection, raw, v)
	}

	return direction, outcome, nil
}

func EncodeHitInfo(direction HitDirection, outcome HitOutcome) int32 {
	return int32(direction+1)<<4 | int32(outcome)
}
