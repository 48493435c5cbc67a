package correlator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newParty() (*IdentityCorrelator, *PartyCorrelator) {
	identity := NewIdentityCorrelator()
	return identity, NewPartyCorrelator(identity)
}

func TestPartyAddResolvesMissingEntity(t *testing.T) {
	identity, party := newParty()
	identity.AddMapping(100, 1)

	party.Add(7, 42, 100, 0, "")

	id, ok := party.PartyOfEntity(1)
	require.True(t, ok)
	assert.Equal(t, uint32(42), id)

	id, ok = party.PartyOfCharacter(100)
	require.True(t, ok)
	assert.Equal(t, uint32(42), id)
	assert.ElementsMatch(t, []uint32{42}, party.RaidParties(7))
}

func TestPartyAddResolvesMissingCharacter(t *testing.T) {
	identity, party := newParty()
	identity.AddMapping(100, 1)

	party.Add(7, 42, 0, 1, "")

	id, ok := party.PartyOfCharacter(100)
	require.True(t, ok)
	assert.Equal(t, uint32(42), id)
}

func TestPartyAddUnresolved(t *testing.T) {
	_, party := newParty()

	party.Add(7, 42, 100, 0, "")

	_, ok := party.PartyOfEntity(1)
	assert.False(t, ok)
	id, ok := party.PartyOfCharacter(100)
	require.True(t, ok)
	assert.Equal(t, uint32(42), id)
}

func TestPartyAddNoIDs(t *testing.T) {
	_, party := newParty()

	party.Add(7, 42, 0, 0, "someone")

	assert.Empty(t, party.RaidParties(7), "party must not be registered without an identity")
}

func TestPartyRemoveGatedByLocalName(t *testing.T) {
	tests := []struct {
		name        string
		localName   string
		leaveName   string
		wantRemoved bool
	}{
		{name: "local player leaves", localName: "Alice", leaveName: "Alice", wantRemoved: true},
		{name: "other player leaves", localName: "Alice", leaveName: "Bob", wantRemoved: false},
		{name: "local name unknown", localName: "", leaveName: "", wantRemoved: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity, party := newParty()
			party.SetLocalName(tt.localName)
			identity.AddMapping(100, 1)
			identity.AddMapping(200, 2)
			party.Add(7, 42, 100, 0, "Alice")
			party.Add(7, 43, 200, 0, "Bob")

			party.Remove(42, tt.leaveName)

			_, ok := party.PartyOfCharacter(100)
			assert.Equal(t, !tt.wantRemoved, ok)
			_, ok = party.PartyOfEntity(1)
			assert.Equal(t, !tt.wantRemoved, ok)

			other, ok := party.PartyOfCharacter(200)
			require.True(t, ok, "other parties are never touched")
			assert.Equal(t, uint32(43), other)
		})
	}
}

func TestPartyLocalParty(t *testing.T) {
	identity, party := newParty()
	party.SetLocalName("Alice")
	identity.AddMapping(100, 1)

	party.Add(7, 42, 100, 1, "Alice")

	id, ok := party.LocalParty()
	require.True(t, ok)
	assert.Equal(t, uint32(42), id)

	party.Remove(42, "Alice")
	_, ok = party.LocalParty()
	assert.False(t, ok)
	assert.Empty(t, party.RaidParties(7))
}

func TestPartyChangeEntityID(t *testing.T) {
	identity, party := newParty()
	identity.AddMapping(100, 1)
	party.Add(7, 42, 100, 1, "")

	party.ChangeEntityID(1, 5)

	_, ok := party.PartyOfEntity(1)
	assert.False(t, ok)
	id, ok := party.PartyOfEntity(5)
	require.True(t, ok)
	assert.Equal(t, uint32(42), id)
	id, ok = party.PartyOfCharacter(100)
	require.True(t, ok)
	assert.Equal(t, uint32(42), id)

	party.ChangeEntityID(99, 98)
	_, ok = party.PartyOfEntity(98)
	assert.False(t, ok)
}

func TestPartyCompleteEntry(t *testing.T) {
	t.Run("character side known", func(t *testing.T) {
		_, party := newParty()
		party.Add(7, 42, 100, 0, "")

		party.CompleteEntry(100, 1)

		id, ok := party.PartyOfEntity(1)
		require.True(t, ok)
		assert.Equal(t, uint32(42), id)
	})

	t.Run("entity side known", func(t *testing.T) {
		_, party := newParty()
		party.Add(7, 42, 0, 1, "")

		party.CompleteEntry(100, 1)

		id, ok := party.PartyOfCharacter(100)
		require.True(t, ok)
		assert.Equal(t, uint32(42), id)
	})

	t.Run("both known and different", func(t *testing.T) {
		_, party := newParty()
		party.Add(7, 42, 100, 0, "")
		party.Add(7, 43, 0, 1, "")

		party.CompleteEntry(100, 1)

		c, _ := party.PartyOfCharacter(100)
		e, _ := party.PartyOfEntity(1)
		assert.Equal(t, uint32(42), c)
		assert.Equal(t, uint32(43), e)
	})
}

func TestPartyReset(t *testing.T) {
	identity, party := newParty()
	party.SetLocalName("Alice")
	identity.AddMapping(100, 1)
	party.Add(7, 42, 100, 1, "Alice")

	party.ResetPartyMappings()

	_, ok := party.PartyOfCharacter(100)
	assert.False(t, ok)
	_, ok = party.LocalParty()
	assert.False(t, ok)
	assert.Empty(t, party.RaidParties(7))
	assert.Equal(t, "Alice", party.LocalName())
}
