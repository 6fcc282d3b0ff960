// Package mcpserver exposes the family roster to MCP clients as read-only
// tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/familyhub/aniversaris/internal/assistant"
	"github.com/familyhub/aniversaris/internal/domain"
	"github.com/familyhub/aniversaris/internal/graph"
)

// Roster is the read side of the registry used by the tools.
type Roster interface {
	List(ctx context.Context) ([]domain.Person, error)
	Search(ctx context.Context, query string) ([]domain.Person, error)
}

// Tools holds the tool handlers.
type Tools struct {
	Roster Roster
	Loc    *time.Location
	Now    func() time.Time
}

// NewTools creates tool handlers reading roster in timezone loc.
func NewTools(roster Roster, loc *time.Location) *Tools {
	if loc == nil {
		loc = time.UTC
	}
	return &Tools{Roster: roster, Loc: loc, Now: time.Now}
}

// New creates an MCP server with all tools registered.
func New(t *Tools, version string) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "aniversaris",
		Version: version,
	}, nil)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "family_context",
		Description: "Full family roster as text: one line per person, then parent and partner relations",
	}, t.FamilyContext)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "birthdays_on",
		Description: "Persons born on a given day and month (defaults to today), deceased included",
	}, t.BirthdaysOn)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "find_person",
		Description: "Find persons whose name contains or closely resembles the query",
	}, t.FindPerson)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "relationship_issues",
		Description: "Inconsistencies in the family tree: self references, missing relatives, ancestry cycles, one-sided partners",
	}, t.RelationshipIssues)

	return srv
}

// --- Input types ---

type FamilyContextInput struct{}

type BirthdaysOnInput struct {
	Day   int `json:"day,omitempty" jsonschema:"Day of month 1-31; defaults to today"`
	Month int `json:"month,omitempty" jsonschema:"Month 1-12; defaults to today"`
}

type FindPersonInput struct {
	Query string `json:"query" jsonschema:"Name or part of a name"`
}

type RelationshipIssuesInput struct{}

// --- Output types ---

type personSummary struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Day       int    `json:"day"`
	Month     int    `json:"month"`
	BirthYear *int   `json:"birth_year,omitempty"`
	Age       *int   `json:"age,omitempty"`
	InMemory  bool   `json:"in_memory"`
}

// --- Handlers ---

func (t *Tools) FamilyContext(ctx context.Context, _ *mcp.CallToolRequest, _ FamilyContextInput) (*mcp.CallToolResult, any, error) {
	persons, err := t.Roster.List(ctx)
	if err != nil {
		return toolError("Failed to load roster: %v", err), nil, nil
	}
	text := assistant.BuildContext(persons, t.now().Year())
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}, nil, nil
}

func (t *Tools) BirthdaysOn(ctx context.Context, _ *mcp.CallToolRequest, in BirthdaysOnInput) (*mcp.CallToolResult, any, error) {
	today := t.now()
	day, month := in.Day, in.Month
	if day == 0 && month == 0 {
		day, month = today.Day(), int(today.Month())
	}
	if !domain.ValidBirthday(day, month) {
		return toolError("Invalid date %d/%d", day, month), nil, nil
	}

	persons, err := t.Roster.List(ctx)
	if err != nil {
		return toolError("Failed to load roster: %v", err), nil, nil
	}
	out := []personSummary{}
	for _, p := range persons {
		if p.Day == day && p.Month == month {
			out = append(out, summarize(p, today.Year()))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return toolJSON(out)
}

func (t *Tools) FindPerson(ctx context.Context, _ *mcp.CallToolRequest, in FindPersonInput) (*mcp.CallToolResult, any, error) {
	if in.Query == "" {
		return toolError("Query is required"), nil, nil
	}
	persons, err := t.Roster.Search(ctx, in.Query)
	if err != nil {
		return toolError("Search failed: %v", err), nil, nil
	}
	year := t.now().Year()
	out := make([]personSummary, 0, len(persons))
	for _, p := range persons {
		out = append(out, summarize(p, year))
	}
	return toolJSON(out)
}

func (t *Tools) RelationshipIssues(ctx context.Context, _ *mcp.CallToolRequest, _ RelationshipIssuesInput) (*mcp.CallToolResult, any, error) {
	persons, err := t.Roster.List(ctx)
	if err != nil {
		return toolError("Failed to load roster: %v", err), nil, nil
	}
	issues := graph.Build(persons).Validate()
	if issues == nil {
		issues = []graph.Issue{}
	}
	return toolJSON(issues)
}

func (t *Tools) now() time.Time {
	if t.Now == nil {
		return time.Now().In(t.Loc)
	}
	return t.Now().In(t.Loc)
}

func summarize(p domain.Person, year int) personSummary {
	s := personSummary{ID: p.ID, Name: p.Name, Day: p.Day, Month: p.Month, BirthYear: p.BirthYear, InMemory: p.InMemory()}
	if age, ok := p.Age(year); ok {
		s.Age = &age
	}
	return s
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError("Failed to marshal result: %v", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
