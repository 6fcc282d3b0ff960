// Package graph models the parent and partner links of the roster as a
// directed graph over person ids and validates it as a separate pass.
// Inserts and updates never consult it.
package graph

import (
	"fmt"
	"sort"

	"github.com/familyhub/aniversaris/internal/domain"
)

// IssueKind classifies a graph inconsistency.
type IssueKind string

const (
	IssueSelfReference     IssueKind = "self_reference"
	IssueDanglingReference IssueKind = "dangling_reference"
	IssueAncestryCycle     IssueKind = "ancestry_cycle"
	IssueAsymmetricPartner IssueKind = "asymmetric_partner"
)

// Issue is one inconsistency found by Validate.
type Issue struct {
	Kind     IssueKind `json:"kind"`
	PersonID int64     `json:"person_id"`
	Field    string    `json:"field,omitempty"`
	TargetID int64     `json:"target_id,omitempty"`
	Path     []int64   `json:"path,omitempty"`
	Message  string    `json:"message"`
}

// Graph indexes a roster snapshot.
type Graph struct {
	byID     map[int64]domain.Person
	children map[int64][]int64
	order    []int64
}

// Build indexes persons. The slice is not retained.
func Build(persons []domain.Person) *Graph {
	g := &Graph{
		byID:     make(map[int64]domain.Person, len(persons)),
		children: make(map[int64][]int64),
	}
	for _, p := range persons {
		g.byID[p.ID] = p
		g.order = append(g.order, p.ID)
	}
	sort.Slice(g.order, func(i, j int) bool { return g.order[i] < g.order[j] })

	for _, id := range g.order {
		p := g.byID[id]
		for _, parent := range []*int64{p.FatherID, p.MotherID} {
			if parent != nil {
				g.children[*parent] = append(g.children[*parent], id)
			}
		}
	}
	return g
}

// Person returns the person with id.
func (g *Graph) Person(id int64) (domain.Person, bool) {
	p, ok := g.byID[id]
	return p, ok
}

// Father returns the father of id when it is set and present.
func (g *Graph) Father(id int64) (domain.Person, bool) {
	return g.ref(g.byID[id].FatherID)
}

// Mother returns the mother of id when it is set and present.
func (g *Graph) Mother(id int64) (domain.Person, bool) {
	return g.ref(g.byID[id].MotherID)
}

// Partner returns the partner of id when it is set and present.
func (g *Graph) Partner(id int64) (domain.Person, bool) {
	return g.ref(g.byID[id].PartnerID)
}

// Children returns the persons naming id as father or mother, by id.
func (g *Graph) Children(id int64) []domain.Person {
	var out []domain.Person
	for _, c := range g.children[id] {
		out = append(out, g.byID[c])
	}
	return out
}

func (g *Graph) ref(id *int64) (domain.Person, bool) {
	if id == nil {
		return domain.Person{}, false
	}
	p, ok := g.byID[*id]
	return p, ok
}

// Validate reports self references, references to missing persons, cycles
// in the parent relation and partner links that are not reciprocated.
// Issues are ordered by person id.
func (g *Graph) Validate() []Issue {
	var issues []Issue
	for _, id := range g.order {
		p := g.byID[id]
		for _, f := range []struct {
			name string
			ref  *int64
		}{{"father_id", p.FatherID}, {"mother_id", p.MotherID}, {"partner_id", p.PartnerID}} {
			if f.ref == nil {
				continue
			}
			target := *f.ref
			switch _, ok := g.byID[target]; {
			case target == id:
				issues = append(issues, Issue{Kind: IssueSelfReference, PersonID: id, Field: f.name, TargetID: target,
					Message: fmt.Sprintf("%s references themselves through %s", p.Name, f.name)})
			case !ok:
				issues = append(issues, Issue{Kind: IssueDanglingReference, PersonID: id, Field: f.name, TargetID: target,
					Message: fmt.Sprintf("%s has %s %d, which does not exist", p.Name, f.name, target)})
			}
		}

		if partner, ok := g.Partner(id); ok && partner.ID != id {
			if partner.PartnerID == nil || *partner.PartnerID != id {
				issues = append(issues, Issue{Kind: IssueAsymmetricPartner, PersonID: id, Field: "partner_id", TargetID: partner.ID,
					Message: fmt.Sprintf("%s names %s as partner but not the other way round", p.Name, partner.Name)})
			}
		}
	}
	return append(issues, g.cycles()...)
}

// cycles finds loops in the child -> parent relation with a colouring DFS.
// Each cycle is reported once, from its smallest id.
func (g *Graph) cycles() []Issue {
	const (
		white = iota
		grey
		black
	)
	color := make(map[int64]int, len(g.order))
	var (
		stack  []int64
		issues []Issue
		seen   = make(map[int64]bool)
	)

	var visit func(id int64)
	visit = func(id int64) {
		color[id] = grey
		stack = append(stack, id)
		p := g.byID[id]
		for _, parent := range []*int64{p.FatherID, p.MotherID} {
			if parent == nil || *parent == id {
				continue
			}
			if _, ok := g.byID[*parent]; !ok {
				continue
			}
			switch color[*parent] {
			case white:
				visit(*parent)
			case grey:
				path := cyclePath(stack, *parent)
				if !seen[path[0]] {
					seen[path[0]] = true
					issues = append(issues, Issue{Kind: IssueAncestryCycle, PersonID: path[0], Path: path,
						Message: fmt.Sprintf("%s is their own ancestor", g.byID[path[0]].Name)})
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
	}

	for _, id := range g.order {
		if color[id] == white {
			visit(id)
		}
	}
	return issues
}

// cyclePath extracts the loop starting at target from the DFS stack,
// rotated so that it starts at its smallest id.
func cyclePath(stack []int64, target int64) []int64 {
	start := len(stack) - 1
	for start >= 0 && stack[start] != target {
		start--
	}
	loop := append([]int64(nil), stack[start:]...)
	lo := 0
	for i, v := range loop {
		if v < loop[lo] {
			lo = i
		}
	}
	return append(loop[lo:], loop[:lo]...)
}
