package importer

import (
	"context"

	"github.com/familyhub/aniversaris/internal/domain"
)

// Repository is the roster storage used by an import.
type Repository interface {
	Insert(ctx context.Context, p *domain.Person) error
	SetRelations(ctx context.Context, id int64, rel domain.Relations) error
}
