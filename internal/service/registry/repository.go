package registry

import (
	"context"

	"github.com/familyhub/aniversaris/internal/domain"
)

// Repository is the roster storage used by the service.
type Repository interface {
	Insert(ctx context.Context, p *domain.Person) error
	Update(ctx context.Context, p *domain.Person) error
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*domain.Person, error)
	List(ctx context.Context) ([]domain.Person, error)
	ListByBirthday(ctx context.Context, day, month int) ([]domain.Person, error)
	SetPhotoURL(ctx context.Context, id int64, url string) error
	Archive(ctx context.Context, p domain.Person) error
}

// Lister is the read side the matcher needs.
type Lister interface {
	List(ctx context.Context) ([]domain.Person, error)
}

// CandidateFinder screens a name and birthday against the roster.
type CandidateFinder interface {
	FindCandidates(ctx context.Context, name string, day, month int, threshold float64) ([]domain.DuplicateCandidate, error)
}
