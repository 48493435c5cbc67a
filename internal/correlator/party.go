package correlator

// PartyCorrelator tracks party membership by both character and entity id.
// It resolves missing ids through the IdentityCorrelator it is given, which
// must outlive it and be owned by the same ingestion goroutine.
type PartyCorrelator struct {
	identity *IdentityCorrelator

	characterParty map[uint64]uint32
	entityParty    map[uint64]uint32
	raidParties    map[uint32]map[uint32]struct{}

	localName    string
	localPartyID uint32
	hasLocal     bool
}

func NewPartyCorrelator(identity *IdentityCorrelator) *PartyCorrelator {
	return &PartyCorrelator{
		identity:       identity,
		characterParty: make(map[uint64]uint32),
		entityParty:    make(map[uint64]uint32),
		raidParties:    make(map[uint32]map[uint32]struct{}),
	}
}

// SetLocalName records the local player's name; it gates Remove.
func (p *PartyCorrelator) SetLocalName(name string) {
	p.localName = name
}

func (p *PartyCorrelator) LocalName() string {
	return p.localName
}

// Add records a party membership. It is a no-op when both ids are zero; when
// only one is known the other is looked up through the identity correlator.
func (p *PartyCorrelator) Add(raidInstanceID, partyID uint32, characterID, entityID uint64, name string) {
	if characterID == 0 && entityID == 0 {
		return
	}

	if characterID != 0 && entityID == 0 {
		if id, ok := p.identity.EntityID(characterID); ok {
			entityID = id
		}
	} else if entityID != 0 && characterID == 0 {
		if id, ok := p.identity.CharacterID(entityID); ok {
			characterID = id
		}
	}

	mapped := false
	if characterID != 0 {
		p.characterParty[characterID] = partyID
		mapped = true
	}
	if entityID != 0 {
		p.entityParty[entityID] = partyID
		mapped = true
	}
	if !mapped {
		return
	}

	parties, ok := p.raidParties[raidInstanceID]
	if !ok {
		parties = make(map[uint32]struct{})
		p.raidParties[raidInstanceID] = parties
	}
	parties[partyID] = struct{}{}

	if name != "" && name == p.localName {
		p.localPartyID = partyID
		p.hasLocal = true
	}
}

// Remove clears every mapping for partyInstanceID, but only when name is the
// local player's name. Leave notifications for anyone else are ignored.
func (p *PartyCorrelator) Remove(partyInstanceID uint32, name string) {
	if p.localName == "" || name != p.localName {
		return
	}

	for id, party := range p.characterParty {
		if party == partyInstanceID {
			delete(p.characterParty, id)
		}
	}
	for id, party := range p.entityParty {
		if party == partyInstanceID {
			delete(p.entityParty, id)
		}
	}
	for raid, parties := range p.raidParties {
		delete(parties, partyInstanceID)
		if len(parties) == 0 {
			delete(p.raidParties, raid)
		}
	}
	if p.hasLocal && p.localPartyID == partyInstanceID {
		p.hasLocal = false
		p.localPartyID = 0
	}
}

// ChangeEntityID moves the party mapping of oldID to newID. The character
// side is left alone.
func (p *PartyCorrelator) ChangeEntityID(oldID, newID uint64) {
	party, ok := p.entityParty[oldID]
	if !ok {
		return
	}
	delete(p.entityParty, oldID)
	p.entityParty[newID] = party
}

// CompleteEntry copies a party id recorded on one side of the pair to the
// other side when that side has none. Existing mappings are never overwritten.
func (p *PartyCorrelator) CompleteEntry(characterID, entityID uint64) {
	if characterID == 0 || entityID == 0 {
		return
	}

	characterParty, hasCharacter := p.characterParty[characterID]
	entityParty, hasEntity := p.entityParty[entityID]

	switch {
	case hasCharacter && !hasEntity:
		p.entityParty[entityID] = characterParty
	case hasEntity && !hasCharacter:
		p.characterParty[characterID] = entityParty
	}
}

func (p *PartyCorrelator) PartyOfCharacter(characterID uint64) (uint32, bool) {
	party, ok := p.characterParty[characterID]
	return party, ok
}

func (p *PartyCorrelator) PartyOfEntity(entityID uint64) (uint32, bool) {
	party, ok := p.entityParty[entityID]
	return party, ok
}

// LocalParty returns the party the local player was last added to.
func (p *PartyCorrelator) LocalParty() (uint32, bool) {
	return p.localPartyID, p.hasLocal
}

// RaidParties returns the party ids registered for a raid instance.
func (p *PartyCorrelator) RaidParties(raidInstanceID uint32) []uint32 {
	parties := p.raidParties[raidInstanceID]
	ids := make([]uint32, 0, len(parties))
	for id := range parties {
		ids = append(ids, id)
	}
	return ids
}

// ResetPartyMappings drops all membership state. The local name survives.
func (p *PartyCorrelator) ResetPartyMappings() {
	clear(p.characterParty)
	clear(p.entityParty)
	clear(p.raidParties)
	p.localPartyID = 0
	p.hasLocal = false
}
