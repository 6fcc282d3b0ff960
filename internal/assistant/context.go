// Package assistant answers free-form questions about the family with a
// Bedrock-hosted model, using the roster as its only knowledge.
package assistant

import (
	"fmt"
	"sort"
	"strings"

	"github.com/familyhub/aniversaris/internal/domain"
	"github.com/familyhub/aniversaris/internal/graph"
)

// BuildContext renders the roster as the flat text block fed to the model:
// one line per person, then one line per person with known relatives.
// Ages are computed for year.
func BuildContext(persons []domain.Person, year int) string {
	sorted := make([]domain.Person, len(persons))
	copy(sorted, persons)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var b strings.Builder
	b.WriteString("DADES FAMILIARS:\n\n")
	for _, p := range sorted {
		b.WriteString("- " + p.Name)
		if p.InMemory() {
			b.WriteString(" (difunt/a)")
		}
		fmt.Fprintf(&b, ": %d/%d", p.Day, p.Month)
		if p.BirthYear != nil && *p.BirthYear > 0 {
			fmt.Fprintf(&b, "/%d", *p.BirthYear)
		}
		if age, ok := p.Age(year); ok && age > 0 {
			fmt.Fprintf(&b, " - %d anys", age)
		}
		if p.Birthplace != "" {
			b.WriteString(" - Nascut/da a " + p.Birthplace)
		}
		if p.Phone != "" {
			b.WriteString(" - Tel: " + p.Phone)
		}
		if p.Email != "" {
			b.WriteString(" - Email: " + p.Email)
		}
		if p.RelationshipStatus != "" {
			b.WriteString(" - " + p.RelationshipStatus)
		}
		b.WriteString("\n")
	}

	g := graph.Build(persons)
	b.WriteString("\nRELACIONS FAMILIARS:\n")
	for _, p := range sorted {
		var rel []string
		if f, ok := g.Father(p.ID); ok {
			rel = append(rel, "pare: "+f.Name)
		}
		if m, ok := g.Mother(p.ID); ok {
			rel = append(rel, "mare: "+m.Name)
		}
		if pt, ok := g.Partner(p.ID); ok {
			rel = append(rel, "parella: "+pt.Name)
		}
		if len(rel) > 0 {
			b.WriteString("- " + p.Name + ": " + strings.Join(rel, ", ") + "\n")
		}
	}
	return b.String()
}

// SystemPrompt wraps the family context with the assistant instructions.
func SystemPrompt(familyContext string) string {
	return `Ets un assistent familiar intel·ligent que ajuda amb informació sobre la família.
Tens accés a les següents dades familiars actualitzades:

` + familyContext + `
INSTRUCCIONS:
- Respon sempre en català
- Sigues breu i concís
- No reveles mai la font de les dades (no diguis "segons les dades" o similar)
- Si et pregunten per aniversaris, pots consultar les dates de naixement
- Si et pregunten per relacions familiars, utilitza la informació de pare/mare/parella
- Pots analitzar imatges si te les envien
- Si no tens la informació, digues-ho amablement`
}
