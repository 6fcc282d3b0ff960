package registry

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/familyhub/aniversaris/internal/domain"
)

// memRepo is an in-memory repository for testing.
type memRepo struct {
	mu       sync.RWMutex
	nextID   int64
	store    map[int64]domain.Person
	archived []domain.Person

	archiveErr error
	listErr    error
}

func newMemRepo() *memRepo {
	return &memRepo{store: make(map[int64]domain.Person)}
}

func (m *memRepo) Insert(_ context.Context, p *domain.Person) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p.ID = m.nextID
	m.store[p.ID] = *p
	return nil
}

func (m *memRepo) Update(_ context.Context, p *domain.Person) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[p.ID]; !ok {
		return domain.ErrNotFound
	}
	m.store[p.ID] = *p
	return nil
}

func (m *memRepo) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.store, id)
	return nil
}

func (m *memRepo) Get(_ context.Context, id int64) (*domain.Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (m *memRepo) List(_ context.Context) ([]domain.Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]domain.Person, 0, len(m.store))
	for _, p := range m.store {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memRepo) ListByBirthday(ctx context.Context, day, month int) ([]domain.Person, error) {
	all, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []domain.Person
	for _, p := range all {
		if p.Day == day && p.Month == month {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memRepo) SetPhotoURL(_ context.Context, id int64, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.PhotoURL = url
	m.store[id] = p
	return nil
}

func (m *memRepo) Archive(_ context.Context, p domain.Person) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.archiveErr != nil {
		return m.archiveErr
	}
	m.archived = append(m.archived, p)
	return nil
}

func (m *memRepo) count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.store)
}

type failingMatcher struct{}

func (failingMatcher) FindCandidates(context.Context, string, int, int, float64) ([]domain.DuplicateCandidate, error) {
	return nil, errors.New("statement timeout")
}

func anna() domain.Person {
	return domain.Person{Name: "Anna", Day: 5, Month: 3, Alive: true}
}

func TestCreate_EmptyRosterSucceeds(t *testing.T) {
	svc := NewService(newMemRepo())

	p, err := svc.Create(context.Background(), anna(), false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.ID == 0 {
		t.Error("expected an assigned id")
	}
	if p.Gender != domain.GenderUnspecified {
		t.Errorf("gender = %q, want unspecified", p.Gender)
	}
}

func TestCreate_ExactDuplicateRejectedUnlessForced(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	ctx := context.Background()

	first, err := svc.Create(ctx, anna(), false)
	if err != nil {
		t.Fatalf("first Create: %v", err)
	}

	_, err = svc.Create(ctx, anna(), false)
	if !errors.Is(err, domain.ErrDuplicateExact) {
		t.Fatalf("expected ErrDuplicateExact, got %v", err)
	}
	var dup *domain.DuplicateError
	if !errors.As(err, &dup) || len(dup.Names) != 1 || dup.Names[0] != "Anna" {
		t.Errorf("expected duplicate naming Anna, got %+v", dup)
	}

	second, err := svc.Create(ctx, anna(), true)
	if err != nil {
		t.Fatalf("forced Create: %v", err)
	}
	if second.ID == first.ID {
		t.Error("forced insert must get a distinct id")
	}
	if repo.count() != 2 {
		t.Errorf("count = %d, want 2", repo.count())
	}
}

func TestCreate_CaseAndWhitespaceVariantsAreExact(t *testing.T) {
	svc := NewService(newMemRepo())
	ctx := context.Background()
	if _, err := svc.Create(ctx, domain.Person{Name: "Maria  Rosa", Day: 12, Month: 8}, false); err != nil {
		t.Fatalf("Create: %v", err)
	}

	for _, name := range []string{"maria rosa", " MARIA ROSA ", "Maria\tRosa"} {
		_, err := svc.Create(ctx, domain.Person{Name: name, Day: 12, Month: 8}, false)
		if !errors.Is(err, domain.ErrDuplicateExact) {
			t.Errorf("%q: expected ErrDuplicateExact, got %v", name, err)
		}
	}
}

func TestCreate_SimilarNameRejected(t *testing.T) {
	svc := NewService(newMemRepo())
	ctx := context.Background()
	if _, err := svc.Create(ctx, domain.Person{Name: "Josep Maria Vila", Day: 1, Month: 1}, false); err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err := svc.Create(ctx, domain.Person{Name: "Josep Maria Vilà", Day: 2, Month: 2}, false)
	if !errors.Is(err, domain.ErrSimilarNames) {
		t.Fatalf("expected ErrSimilarNames, got %v", err)
	}
	if errors.Is(err, domain.ErrDuplicateExact) {
		t.Error("similar match must never report EXACT")
	}
}

func TestCreate_SameNameOtherBirthdayIsSimilar(t *testing.T) {
	svc := NewService(newMemRepo())
	ctx := context.Background()
	if _, err := svc.Create(ctx, anna(), false); err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err := svc.Create(ctx, domain.Person{Name: "anna", Day: 6, Month: 3}, false)
	if !errors.Is(err, domain.ErrSimilarNames) {
		t.Fatalf("expected ErrSimilarNames, got %v", err)
	}
}

func TestCreate_ValidationBeforeScreening(t *testing.T) {
	svc := NewService(newMemRepo(), WithMatcher(failingMatcher{}))

	_, err := svc.Create(context.Background(), domain.Person{Name: "", Day: 5, Month: 3}, false)
	var ve *domain.ValidationError
	if !errors.As(err, &ve) || ve.Field != "name" {
		t.Fatalf("expected name validation error, got %v", err)
	}
}

func TestCreate_MatcherFailureIsUpstream(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, WithMatcher(failingMatcher{}))

	_, err := svc.Create(context.Background(), anna(), false)
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if repo.count() != 0 {
		t.Error("nothing must be inserted when screening fails")
	}

	if _, err := svc.Create(context.Background(), anna(), true); err != nil {
		t.Fatalf("forced Create should skip the matcher: %v", err)
	}
}

func TestUpdate_ByLocatorAndScreening(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	ctx := context.Background()

	a, _ := svc.Create(ctx, anna(), false)
	_, _ = svc.Create(ctx, domain.Person{Name: "Jordi", Day: 9, Month: 10}, false)

	email := "anna@example.com"
	got, err := svc.Update(ctx, Locator{Name: "ANNA", Day: 5, Month: 3}, domain.PersonPatch{Email: &email}, false)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.ID != a.ID || got.Email != email {
		t.Errorf("unexpected update result %+v", got)
	}

	name := "Jordi"
	day, month := 9, 10
	_, err = svc.Update(ctx, Locator{ID: a.ID}, domain.PersonPatch{Name: &name, Day: &day, Month: &month}, false)
	if !errors.Is(err, domain.ErrDuplicateExact) {
		t.Fatalf("expected ErrDuplicateExact on identity change, got %v", err)
	}
}

func TestUpdate_DoesNotMatchItself(t *testing.T) {
	svc := NewService(newMemRepo())
	ctx := context.Background()
	a, _ := svc.Create(ctx, anna(), false)

	name := "anna "
	if _, err := svc.Update(ctx, Locator{ID: a.ID}, domain.PersonPatch{Name: &name}, false); err != nil {
		t.Fatalf("Update: %v", err)
	}
}

func TestUpdate_SelfReferenceRejected(t *testing.T) {
	svc := NewService(newMemRepo())
	ctx := context.Background()
	a, _ := svc.Create(ctx, anna(), false)

	self := a.ID
	_, err := svc.Update(ctx, Locator{ID: a.ID}, domain.PersonPatch{PartnerID: &self}, false)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestLocator_NotFoundAndAmbiguous(t *testing.T) {
	svc := NewService(newMemRepo())
	ctx := context.Background()

	_, err := svc.Delete(ctx, Locator{Name: "Anna", Day: 5, Month: 3})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	_, _ = svc.Create(ctx, anna(), false)
	_, _ = svc.Create(ctx, anna(), true)
	_, err = svc.Delete(ctx, Locator{Name: "anna", Day: 5, Month: 3})
	if !errors.Is(err, domain.ErrAmbiguous) {
		t.Fatalf("expected ErrAmbiguous, got %v", err)
	}

	_, err = svc.Delete(ctx, Locator{Name: "Anna"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for incomplete locator, got %v", err)
	}
}

func TestDelete_ArchivesFirst(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	ctx := context.Background()
	a, _ := svc.Create(ctx, anna(), false)

	if _, err := svc.Delete(ctx, Locator{ID: a.ID}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(repo.archived) != 1 || repo.archived[0].ID != a.ID {
		t.Errorf("expected archived snapshot, got %+v", repo.archived)
	}
	if _, err := svc.Get(ctx, a.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestDelete_ArchiveFailureDoesNotBlock(t *testing.T) {
	repo := newMemRepo()
	repo.archiveErr = errors.New("disk full")
	svc := NewService(repo)
	ctx := context.Background()
	a, _ := svc.Create(ctx, anna(), false)

	if _, err := svc.Delete(ctx, Locator{ID: a.ID}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if repo.count() != 0 {
		t.Error("person should be deleted")
	}
}

func TestListFailureIsUpstream(t *testing.T) {
	repo := newMemRepo()
	repo.listErr = errors.New("connection refused")
	svc := NewService(repo)

	if _, err := svc.List(context.Background()); !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}

func TestSearch(t *testing.T) {
	svc := NewService(newMemRepo())
	ctx := context.Background()
	_, _ = svc.Create(ctx, domain.Person{Name: "Josep Maria Vila", Day: 1, Month: 1}, false)
	_, _ = svc.Create(ctx, domain.Person{Name: "Núria Vila", Day: 2, Month: 1}, false)
	_, _ = svc.Create(ctx, domain.Person{Name: "Pere Soler", Day: 3, Month: 1}, false)

	got, err := svc.Search(ctx, "vila")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 || got[0].Name != "Josep Maria Vila" || got[1].Name != "Núria Vila" {
		t.Errorf("unexpected search result %+v", got)
	}

	if _, err := svc.Search(ctx, "  "); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation for empty query, got %v", err)
	}
}
