package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/familyhub/aniversaris/internal/domain"
)

const personColumns = `id, name, day, month, birth_year, phone, email, gender, alive, photo_url,
	relationship_status, birthplace, death_year, father_id, mother_id, partner_id, created_at, updated_at`

// PersonRepo implements the roster repositories of the registry, importer
// and notifier services.
type PersonRepo struct{ db *DB }

// NewPersonRepo creates a roster repository.
func NewPersonRepo(db *DB) *PersonRepo { return &PersonRepo{db: db} }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerson(row rowScanner) (*domain.Person, error) {
	var (
		p                                        domain.Person
		gender                                   string
		birthYear, deathYear, father, mother, pt sql.NullInt64
	)
	err := row.Scan(&p.ID, &p.Name, &p.Day, &p.Month, &birthYear, &p.Phone, &p.Email, &gender, &p.Alive,
		&p.PhotoURL, &p.RelationshipStatus, &p.Birthplace, &deathYear, &father, &mother, &pt,
		timeValue{&p.CreatedAt}, timeValue{&p.UpdatedAt})
	if err != nil {
		return nil, err
	}
	p.Gender = domain.Gender(gender)
	p.BirthYear = intPtr(birthYear)
	p.DeathYear = intPtr(deathYear)
	p.FatherID = idPtr(father)
	p.MotherID = idPtr(mother)
	p.PartnerID = idPtr(pt)
	return &p, nil
}

func (r *PersonRepo) list(ctx context.Context, op, query string, args ...any) ([]domain.Person, error) {
	rows, err := r.db.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []domain.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// Insert stores p and sets its id and timestamps.
func (r *PersonRepo) Insert(ctx context.Context, p *domain.Person) error {
	now := r.db.now()
	err := r.db.queryRow(ctx, `
		INSERT INTO persons (name, day, month, birth_year, phone, email, gender, alive, photo_url,
			relationship_status, birthplace, death_year, father_id, mother_id, partner_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		p.Name, p.Day, p.Month, nullInt(p.BirthYear), p.Phone, p.Email, string(p.Gender), p.Alive, p.PhotoURL,
		p.RelationshipStatus, p.Birthplace, nullInt(p.DeathYear), nullID(p.FatherID), nullID(p.MotherID), nullID(p.PartnerID),
		now, now,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("insert person: %w", err)
	}
	p.CreatedAt, p.UpdatedAt = now, now
	return nil
}

// Update overwrites every column of the person with p.ID.
func (r *PersonRepo) Update(ctx context.Context, p *domain.Person) error {
	now := r.db.now()
	res, err := r.db.exec(ctx, `
		UPDATE persons SET name = ?, day = ?, month = ?, birth_year = ?, phone = ?, email = ?, gender = ?,
			alive = ?, photo_url = ?, relationship_status = ?, birthplace = ?, death_year = ?,
			father_id = ?, mother_id = ?, partner_id = ?, updated_at = ?
		WHERE id = ?`,
		p.Name, p.Day, p.Month, nullInt(p.BirthYear), p.Phone, p.Email, string(p.Gender),
		p.Alive, p.PhotoURL, p.RelationshipStatus, p.Birthplace, nullInt(p.DeathYear),
		nullID(p.FatherID), nullID(p.MotherID), nullID(p.PartnerID), now, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update person: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	p.UpdatedAt = now
	return nil
}

// SetRelations writes only the relationship fields that are set in rel.
// An empty rel is a no-op.
func (r *PersonRepo) SetRelations(ctx context.Context, id int64, rel domain.Relations) error {
	var (
		sets []string
		args []any
	)
	if rel.FatherID != nil {
		sets, args = append(sets, "father_id = ?"), append(args, *rel.FatherID)
	}
	if rel.MotherID != nil {
		sets, args = append(sets, "mother_id = ?"), append(args, *rel.MotherID)
	}
	if rel.PartnerID != nil {
		sets, args = append(sets, "partner_id = ?"), append(args, *rel.PartnerID)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, r.db.now(), id)

	res, err := r.db.exec(ctx, `UPDATE persons SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("set relations: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetPhotoURL records the stored photo of a person.
func (r *PersonRepo) SetPhotoURL(ctx context.Context, id int64, url string) error {
	res, err := r.db.exec(ctx, `UPDATE persons SET photo_url = ?, updated_at = ? WHERE id = ?`, url, r.db.now(), id)
	if err != nil {
		return fmt.Errorf("set photo url: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes a person. References held by other persons are left as
// they are.
func (r *PersonRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.exec(ctx, `DELETE FROM persons WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete person: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Archive keeps a JSON snapshot of a person about to be deleted.
func (r *PersonRepo) Archive(ctx context.Context, p domain.Person) error {
	snapshot, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = r.db.exec(ctx,
		`INSERT INTO deleted_persons (person_id, name, snapshot, deleted_at) VALUES (?, ?, ?, ?)`,
		p.ID, p.Name, string(snapshot), r.db.now(),
	)
	if err != nil {
		return fmt.Errorf("archive person: %w", err)
	}
	return nil
}

// Get returns the person with the given id or domain.ErrNotFound.
func (r *PersonRepo) Get(ctx context.Context, id int64) (*domain.Person, error) {
	p, err := scanPerson(r.db.queryRow(ctx, `SELECT `+personColumns+` FROM persons WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get person: %w", err)
	}
	return p, nil
}

// List returns the whole roster in calendar order.
func (r *PersonRepo) List(ctx context.Context) ([]domain.Person, error) {
	return r.list(ctx, "list persons", `SELECT `+personColumns+` FROM persons ORDER BY month, day, name`)
}

// ListByBirthday returns the persons born on day/month of any year, living
// or not.
func (r *PersonRepo) ListByBirthday(ctx context.Context, day, month int) ([]domain.Person, error) {
	return r.list(ctx, "list by birthday",
		`SELECT `+personColumns+` FROM persons WHERE day = ? AND month = ? ORDER BY name`, day, month)
}

// ListActive returns living persons that can be contacted.
func (r *PersonRepo) ListActive(ctx context.Context) ([]domain.Person, error) {
	return r.list(ctx, "list active",
		`SELECT `+personColumns+` FROM persons WHERE alive = ? AND (email <> '' OR phone <> '') ORDER BY name`, true)
}
