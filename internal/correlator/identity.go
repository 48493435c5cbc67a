// Package correlator reconciles the transient identifiers emitted by the packet
// stream into stable logical entities. None of the correlators are
// synchronized: they belong to the single ingestion goroutine.
package correlator

// IdentityCorrelator maps durable character ids to per-spawn entity ids and back.
type IdentityCorrelator struct {
	characterToEntity map[uint64]uint64
	entityToCharacter map[uint64]uint64
}

func NewIdentityCorrelator() *IdentityCorrelator {
	return &IdentityCorrelator{
		characterToEntity: make(map[uint64]uint64),
		entityToCharacter: make(map[uint64]uint64),
	}
}

// AddMapping upserts both directions. Pointers left behind by an earlier
// mapping of either id are dropped so the two maps never disagree.
func (c *IdentityCorrelator) AddMapping(characterID, entityID uint64) {
	if oldEntity, ok := c.characterToEntity[characterID]; ok && oldEntity != entityID {
		if c.entityToCharacter[oldEntity] == characterID {
			delete(c.entityToCharacter, oldEntity)
		}
	}
	if oldCharacter, ok := c.entityToCharacter[entityID]; ok && oldCharacter != characterID {
		if c.characterToEntity[oldCharacter] == entityID {
			delete(c.characterToEntity, oldCharacter)
		}
	}

	c.characterToEntity[characterID] = entityID
	c.entityToCharacter[entityID] = characterID
}

func (c *IdentityCorrelator) CharacterID(entityID uint64) (uint64, bool) {
	id, ok := c.entityToCharacter[entityID]
	return id, ok
}

func (c *IdentityCorrelator) EntityID(characterID uint64) (uint64, bool) {
	id, ok := c.characterToEntity[characterID]
	return id, ok
}

func (c *IdentityCorrelator) Len() int {
	return len(c.characterToEntity)
}

func (c *IdentityCorrelator) Clear() {
	clear(c.characterToEntity)
	clear(c.entityToCharacter)
}
