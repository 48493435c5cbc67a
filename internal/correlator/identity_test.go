package correlator

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityCorrelatorLookups(t *testing.T) {
	c := NewIdentityCorrelator()
	c.AddMapping(100, 1)

	entity, ok := c.EntityID(100)
	require.True(t, ok)
	assert.Equal(t, uint64(1), entity)

	character, ok := c.CharacterID(1)
	require.True(t, ok)
	assert.Equal(t, uint64(100), character)

	_, ok = c.CharacterID(2)
	assert.False(t, ok, "npc entities have no character")
}

func TestIdentityCorrelatorRespawn(t *testing.T) {
	c := NewIdentityCorrelator()
	c.AddMapping(100, 1)
	c.AddMapping(100, 2)

	_, ok := c.CharacterID(1)
	assert.False(t, ok, "stale entity pointer must be dropped")

	entity, _ := c.EntityID(100)
	assert.Equal(t, uint64(2), entity)
}

func TestIdentityCorrelatorReusedEntity(t *testing.T) {
	c := NewIdentityCorrelator()
	c.AddMapping(100, 1)
	c.AddMapping(200, 1)

	_, ok := c.EntityID(100)
	assert.False(t, ok, "entity id reused by another character")

	character, _ := c.CharacterID(1)
	assert.Equal(t, uint64(200), character)
}

func TestIdentityCorrelatorLastWriteWins(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	c := NewIdentityCorrelator()
	latest := make(map[uint64]uint64)

	for range 5000 {
		character := rng.Uint64N(50) + 1
		entity := rng.Uint64N(80) + 1
		c.AddMapping(character, entity)
		for ch, e := range latest {
			if e == entity {
				delete(latest, ch)
			}
		}
		latest[character] = entity
	}

	for character, entity := range latest {
		gotCharacter, ok := c.CharacterID(entity)
		require.True(t, ok)
		assert.Equal(t, character, gotCharacter)

		gotEntity, ok := c.EntityID(gotCharacter)
		require.True(t, ok)
		assert.Equal(t, entity, gotEntity)
	}
	assert.Equal(t, len(latest), c.Len())
}

func TestIdentityCorrelatorClear(t *testing.T) {
	c := NewIdentityCorrelator()
	c.AddMapping(100, 1)
	c.Clear()

	_, ok := c.EntityID(100)
	assert.False(t, ok)
	_, ok = c.CharacterID(1)
	assert.False(t, ok)
}
