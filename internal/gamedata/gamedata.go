// Package gamedata exposes the static reference tables (skills, status
// effects, npcs, classes) as an immutable value built once at startup.
package gamedata

import (
	"embed"
	"fmt"

	"github.com/goccy/go-json"
)

//go:embed data/*.json
var embedded embed.FS

type SupportKind string

const (
	SupportNone     SupportKind = ""
	SupportAP       SupportKind = "ap"
	SupportBrand    SupportKind = "brand"
	SupportIdentity SupportKind = "identity"
	SupportHyper    SupportKind = "hyper"
)

type Skill struct {
	ID      uint32 `json:"id"`
	Name    string `json:"name"`
	ClassID uint32 `json:"class_id"`
	Icon    string `json:"icon"`
}

type StatusEffect struct {
	ID          uint32      `json:"id"`
	Name        string      `json:"name"`
	Category    string      `json:"category"`
	Target      string      `json:"target"`
	SupportKind SupportKind `json:"support_kind"`
	Shield      bool        `json:"shield"`
	Icon        string      `json:"icon"`
}

type Npc struct {
	ID     uint32 `json:"id"`
	Name   string `json:"name"`
	Grade  string `json:"grade"`
	HPBars int    `json:"hp_bars"`
}

// IsBoss reports whether the npc counts as an encounter boss.
func (n Npc) IsBoss() bool {
	switch n.Grade {
	case "boss", "raid", "epic_raid", "commander":
		return true
	}
	return false
}

type Class struct {
	ID      uint32 `json:"id"`
	Name    string `json:"name"`
	Support bool   `json:"support"`
}

// Data is safe for concurrent use; nothing mutates it after New returns.
type Data struct {
	skills  map[uint32]Skill
	effects map[uint32]StatusEffect
	npcs    map[uint32]Npc
	classes map[uint32]Class
}

func New(skills []Skill, effects []StatusEffect, npcs []Npc, classes []Class) *Data {
	d := &Data{
		skills:  make(map[uint32]Skill, len(skills)),
		effects: make(map[uint32]StatusEffect, len(effects)),
		npcs:    make(map[uint32]Npc, len(npcs)),
		classes: make(map[uint32]Class, len(classes)),
	}
	for _, s := range skills {
		d.skills[s.ID] = s
	}
	for _, e := range effects {
		d.effects[e.ID] = e
	}
	for _, n := range npcs {
		d.npcs[n.ID] = n
	}
	for _, c := range classes {
		d.classes[c.ID] = c
	}
	return d
}

// LoadEmbedded builds Data from the reference tables bundled with the binary.
func LoadEmbedded() (*Data, error) {
	var skills []Skill
	var effects []StatusEffect
	var npcs []Npc
	var classes []Class

	files := []struct {
		name string
		dst  any
	}{
		{"data/skills.json", &skills},
		{"data/status_effects.json", &effects},
		{"data/npcs.json", &npcs},
		{"data/classes.json", &classes},
	}
	for _, f := range files {
		raw, err := embedded.ReadFile(f.name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f.name, err)
		}
		if err := json.Unmarshal(raw, f.dst); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", f.name, err)
		}
	}

	return New(skills, effects, npcs, classes), nil
}

func (d *Data) Skill(id uint32) (Skill, bool) {
	s, ok := d.skills[id]
	return s, ok
}

func (d *Data) StatusEffect(id uint32) (StatusEffect, bool) {
	e, ok := d.effects[id]
	return e, ok
}

func (d *Data) Npc(typeID uint32) (Npc, bool) {
	n, ok := d.npcs[typeID]
	return n, ok
}

func (d *Data) Class(id uint32) (Class, bool) {
	c, ok := d.classes[id]
	return c, ok
}

// ClassName falls back to "Unknown" for ids missing from the table.
func (d *Data) ClassName(id uint32) string {
	if c, ok := d.classes[id]; ok {
		return c.Name
	}
	return "Unknown"
}

func (d *Data) IsSupportClass(id uint32) bool {
	return d.classes[id].Support
}

// SkillName returns the table name or a numeric placeholder.
func (d *Data) SkillName(id uint32) string {
	if s, ok := d.skills[id]; ok {
		return s.Name
	}
	return fmt.Sprintf("skill_%d", id)
}
