package importer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/familyhub/aniversaris/internal/domain"
	"github.com/familyhub/aniversaris/internal/metrics"
)

// IDMap maps external row references to the ids assigned in pass 1. It
// lives for one run and is never persisted.
type IDMap map[string]int64

// DroppedRef is a relationship reference that did not resolve.
type DroppedRef struct {
	Row   string `json:"row"`
	Field string `json:"field"`
	Ref   string `json:"ref"`
}

// LinkReport summarizes pass 2.
type LinkReport struct {
	Linked  int          `json:"linked"`
	Dropped []DroppedRef `json:"dropped,omitempty"`
	Failed  []RowError   `json:"failed,omitempty"`
}

// Report summarizes an import run.
type Report struct {
	Total    int          `json:"total"`
	Inserted int          `json:"inserted"`
	Failed   []RowError   `json:"failed,omitempty"`
	Linked   int          `json:"linked"`
	Dropped  []DroppedRef `json:"dropped,omitempty"`
	IDs      IDMap        `json:"ids"`
}

// Service runs bulk imports.
type Service struct {
	repo    Repository
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewService creates an import service. log and m may be nil.
func NewService(repo Repository, log *zap.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, log: log, metrics: m}
}

// Import inserts every record without relationships, then links the
// references that resolved. Duplicate screening does not apply. Failed
// rows are reported and skipped; only context cancellation aborts the run.
func (s *Service) Import(ctx context.Context, records []Record) (*Report, error) {
	report := &Report{Total: len(records), IDs: make(IDMap, len(records))}
	inserted := make([]Record, 0, len(records))

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		p := rec.Person
		p.ID = 0
		p.FatherID, p.MotherID, p.PartnerID = nil, nil, nil
		p.Normalize()

		fail := func(reason string) {
			report.Failed = append(report.Failed, RowError{Row: rec.Row, Name: p.Name, Reason: reason})
			s.log.Warn("import row failed", zap.String("row", rec.Row), zap.String("name", p.Name), zap.String("reason", reason))
		}
		if _, dup := report.IDs[rec.Row]; dup {
			fail("duplicate row reference")
			continue
		}
		if err := p.Validate(); err != nil {
			fail(err.Error())
			continue
		}
		if err := s.repo.Insert(ctx, &p); err != nil {
			fail(err.Error())
			continue
		}
		report.IDs[rec.Row] = p.ID
		report.Inserted++
		inserted = append(inserted, rec)
		s.log.Debug("import row inserted", zap.String("row", rec.Row), zap.Int64("person_id", p.ID))
	}
	s.metrics.AddImportRows("inserted", report.Inserted)
	s.metrics.AddImportRows("failed", len(report.Failed))

	link, err := s.LinkRelationships(ctx, inserted, report.IDs)
	report.Linked = link.Linked
	report.Dropped = link.Dropped
	report.Failed = append(report.Failed, link.Failed...)
	if err != nil {
		return report, err
	}

	s.log.Info("import finished",
		zap.Int("total", report.Total),
		zap.Int("inserted", report.Inserted),
		zap.Int("failed", len(report.Failed)),
		zap.Int("linked", report.Linked),
		zap.Int("dropped_refs", len(report.Dropped)),
	)
	return report, nil
}

// LinkRelationships is pass 2. records must be the rows pass 1 inserted,
// one per reference in ids; a rejected row sharing a reference would
// otherwise write its relatives onto the inserted person. For each it
// writes the father, mother and partner references that resolve through
// ids, in one partial update per record. A reference seen a second time
// is skipped. Unresolved references are dropped; a
// record with none resolved gets no update. Running it again with the same
// ids writes the same values.
func (s *Service) LinkRelationships(ctx context.Context, records []Record, ids IDMap) (LinkReport, error) {
	var report LinkReport
	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		id, ok := ids[rec.Row]
		if !ok || seen[rec.Row] {
			continue
		}
		seen[rec.Row] = true

		var rel domain.Relations
		resolve := func(field, ref string) *int64 {
			if ref == "" {
				return nil
			}
			target, ok := ids[ref]
			if !ok || target == id {
				report.Dropped = append(report.Dropped, DroppedRef{Row: rec.Row, Field: field, Ref: ref})
				return nil
			}
			return &target
		}
		rel.FatherID = resolve("father", rec.FatherRef)
		rel.MotherID = resolve("mother", rec.MotherRef)
		rel.PartnerID = resolve("partner", rec.PartnerRef)
		if rel.Empty() {
			continue
		}

		if err := s.repo.SetRelations(ctx, id, rel); err != nil {
			report.Failed = append(report.Failed, RowError{Row: rec.Row, Name: rec.Person.Name, Reason: fmt.Sprintf("link relations: %v", err)})
			s.log.Warn("import link failed", zap.String("row", rec.Row), zap.Int64("person_id", id), zap.Error(err))
			continue
		}
		report.Linked++
	}
	s.metrics.AddImportRows("linked", report.Linked)
	return report, nil
}
