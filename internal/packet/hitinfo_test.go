package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeHitInfoRoundTrip(t *testing.T) {
	for raw := int32(0); raw <= 3; raw++ {
		for outcome := HitNormal; outcome <= HitMax; outcome++ {
			packed := raw<<4 | int32(outcome)

			direction, got, err := DecodeHitInfo(packed)
			require.NoError(t, err, "packed %#x", packed)
			assert.Equal(t, outcome, got)
			assert.Equal(t, HitDirection(raw-1), direction)
			assert.Equal(t, packed, EncodeHitInfo(direction, got))
		}
	}
}

func TestDecodeHitInfoRejects(t *testing.T) {
	tests := []struct {
		name    string
		packed  int32
		wantErr error
	}{
		{name: "outcome 14", packed: 14, wantErr: ErrInvalidHitOutcome},
		{name: "outcome 15", packed: 0x1f, wantErr: ErrInvalidHitOutcome},
		{name: "direction 4", packed: 4 << 4, wantErr: ErrInvalidHitDirection},
		{name: "direction 7", packed: 7<<4 | int32(HitCritical), wantErr: ErrInvalidHitDirection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeHitInfo(tt.packed)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDecodeHitInfoIgnoresHighBits(t *testing.T) {
	direction, outcome, err := DecodeHitInfo(0x100 | 1<<4 | int32(HitCritical))
	require.NoError(t, err)
	assert.Equal(t, DirectionBackAttack, direction)
	assert.True(t, outcome.IsCritical())
}

func TestHitNames(t *testing.T) {
	assert.Equal(t, "dot_critical", HitDotCritical.String())
	assert.Equal(t, "none", DirectionNone.String())
	assert.Equal(t, "flank_attack", DirectionFlankAttack.String())
}
