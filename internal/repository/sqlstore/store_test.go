package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/familyhub/aniversaris/internal/domain"
)

var fixedNow = time.Date(2026, 3, 5, 9, 30, 0, 0, time.UTC)

func newMockDB(t *testing.T, dialect Dialect) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	db := New(sqlDB, dialect)
	db.now = func() time.Time { return fixedNow }
	return db, mock
}

var personCols = []string{"id", "name", "day", "month", "birth_year", "phone", "email", "gender", "alive", "photo_url",
	"relationship_status", "birthplace", "death_year", "father_id", "mother_id", "partner_id", "created_at", "updated_at"}

func TestRebind(t *testing.T) {
	pg := New(nil, DialectPostgres)
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", pg.rebind("SELECT * FROM t WHERE a = ? AND b = ?"))

	lite := New(nil, DialectSQLite)
	assert.Equal(t, "SELECT ? ", lite.rebind("SELECT ? "))
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "file:data/x.db?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", sqliteDSN("data/x.db"))
	assert.Equal(t, "file::memory:", sqliteDSN("file::memory:"))
}

func TestPersonRepo_Insert(t *testing.T) {
	db, mock := newMockDB(t, DialectPostgres)
	repo := NewPersonRepo(db)

	year := 1990
	p := &domain.Person{Name: "Anna", Day: 5, Month: 3, BirthYear: &year, Gender: domain.GenderFemale, Alive: true}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO persons")).
		WithArgs("Anna", 5, 3, int64(1990), "", "", "female", true, "", "", "", nil, nil, nil, nil, fixedNow, fixedNow).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(41))

	require.NoError(t, repo.Insert(context.Background(), p))
	assert.Equal(t, int64(41), p.ID)
	assert.Equal(t, fixedNow, p.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersonRepo_GetNotFound(t *testing.T) {
	db, mock := newMockDB(t, DialectSQLite)
	repo := NewPersonRepo(db)

	mock.ExpectQuery("SELECT .+ FROM persons WHERE id = \\?").
		WithArgs(int64(9)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), 9)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPersonRepo_ListByBirthday(t *testing.T) {
	db, mock := newMockDB(t, DialectPostgres)
	repo := NewPersonRepo(db)

	rows := sqlmock.NewRows(personCols).
		AddRow(1, "Avi Joan", 5, 3, 1930, "", "", "male", false, "", "", "Reus", 2010, nil, nil, nil, fixedNow, fixedNow).
		AddRow(2, "Anna", 5, 3, nil, "612345678", "anna@example.com", "female", true, "", "", "", nil, int64(1), nil, nil,
			"2026-03-01T10:00:00Z", "2026-03-01T10:00:00Z")
	mock.ExpectQuery(`FROM persons WHERE day = \$1 AND month = \$2 ORDER BY name`).
		WithArgs(5, 3).
		WillReturnRows(rows)

	got, err := repo.ListByBirthday(context.Background(), 5, 3)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.True(t, got[0].InMemory())
	require.NotNil(t, got[0].DeathYear)
	assert.Equal(t, 2010, *got[0].DeathYear)

	assert.Nil(t, got[1].BirthYear)
	require.NotNil(t, got[1].FatherID)
	assert.Equal(t, int64(1), *got[1].FatherID)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), got[1].CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersonRepo_SetRelations(t *testing.T) {
	db, mock := newMockDB(t, DialectPostgres)
	repo := NewPersonRepo(db)
	father := int64(3)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE persons SET father_id = $1, updated_at = $2 WHERE id = $3")).
		WithArgs(father, fixedNow, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetRelations(context.Background(), 7, domain.Relations{FatherID: &father}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersonRepo_SetRelationsEmptyIsNoop(t *testing.T) {
	db, mock := newMockDB(t, DialectSQLite)
	repo := NewPersonRepo(db)

	require.NoError(t, repo.SetRelations(context.Background(), 7, domain.Relations{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersonRepo_DeleteNotFound(t *testing.T) {
	db, mock := newMockDB(t, DialectSQLite)
	repo := NewPersonRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM persons WHERE id = ?")).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), 5), domain.ErrNotFound)
}

func TestPersonRepo_UpdateWrapsErrors(t *testing.T) {
	db, mock := newMockDB(t, DialectPostgres)
	repo := NewPersonRepo(db)

	mock.ExpectExec("UPDATE persons SET name").WillReturnError(errors.New("connection reset"))

	err := repo.Update(context.Background(), &domain.Person{ID: 1, Name: "Anna", Day: 5, Month: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "update person")
}

func TestPersonRepo_Archive(t *testing.T) {
	db, mock := newMockDB(t, DialectSQLite)
	repo := NewPersonRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO deleted_persons")).
		WithArgs(int64(4), "Pere", sqlmock.AnyArg(), fixedNow).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Archive(context.Background(), domain.Person{ID: 4, Name: "Pere", Day: 1, Month: 1}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepo_AppendAndCount(t *testing.T) {
	db, mock := newMockDB(t, DialectPostgres)
	repo := NewNotificationRepo(db)
	pid := int64(2)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO notification_log")).
		WithArgs(pid, "person:2", "Anna", "anna@example.com", "BIRTHDAY", "EMAIL", "FAILED", "", "timeout", "2026-03-05", fixedNow).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM notification_log`).
		WithArgs("EMAIL", "person:2", "BIRTHDAY", "2026-03-05", "SUCCESS", "FAILED").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	rec := &domain.NotificationRecord{
		PersonID: &pid, RecipientKey: "person:2", RecipientName: "Anna", Address: "anna@example.com",
		Category: domain.CategoryBirthday, Channel: domain.ChannelEmail, Outcome: domain.OutcomeFailed,
		Error: "timeout", LocalDate: "2026-03-05",
	}
	require.NoError(t, repo.Append(context.Background(), rec))
	assert.Equal(t, int64(10), rec.ID)

	n, err := repo.CountAttempts(context.Background(), domain.ChannelEmail, "person:2", domain.CategoryBirthday, "2026-03-05")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepo_ListByDate(t *testing.T) {
	db, mock := newMockDB(t, DialectSQLite)
	repo := NewNotificationRepo(db)

	mock.ExpectQuery("FROM notification_log WHERE local_date = \\?").
		WithArgs("2026-03-05").
		WillReturnRows(sqlmock.NewRows([]string{"id", "person_id", "recipient_key", "recipient_name", "address", "category",
			"channel", "outcome", "provider_id", "error", "local_date", "created_at"}).
			AddRow(1, nil, "system", "", "", "BIRTHDAY", "EMAIL", "NO_BIRTHDAYS", "", "", "2026-03-05", "2026-03-05T08:00:00Z"))

	got, err := repo.ListByDate(context.Background(), "2026-03-05")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].PersonID)
	assert.Equal(t, domain.OutcomeNoBirthdays, got[0].Outcome)
}

func TestSettingsRepo(t *testing.T) {
	db, mock := newMockDB(t, DialectPostgres)
	repo := NewSettingsRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM settings WHERE key = $1")).
		WithArgs("maintenance").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO settings .+ ON CONFLICT \\(key\\) DO UPDATE").
		WithArgs("maintenance", "true", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, ok, err := repo.Get(context.Background(), "maintenance")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Set(context.Background(), "maintenance", "true"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrations(t *testing.T) {
	for _, d := range []Dialect{DialectPostgres, DialectSQLite} {
		ms, err := Migrations(d)
		require.NoError(t, err)
		require.Len(t, ms, 3, d)
		assert.Equal(t, "001_persons", ms[0].Version)
		assert.Contains(t, ms[1].SQL, "notification_log")
	}
}

func TestMigrate_SkipsApplied(t *testing.T) {
	db, mock := newMockDB(t, DialectSQLite)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("001_persons").AddRow("002_notification_log"))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS settings").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)")).
		WithArgs("003_settings", "2026-03-05T09:30:00Z").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	done, err := db.Migrate(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"003_settings"}, done)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_RollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t, DialectPostgres)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version FROM schema_migrations").WillReturnRows(sqlmock.NewRows([]string{"version"}))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS persons").WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()

	done, err := db.Migrate(context.Background(), nil)
	require.Error(t, err)
	assert.Empty(t, done)
	assert.Contains(t, err.Error(), "apply 001_persons")
}

func TestTimeValueScan(t *testing.T) {
	var got time.Time
	require.NoError(t, timeValue{&got}.Scan([]byte("2026-03-05 09:30:00")))
	assert.Equal(t, fixedNow, got)

	require.NoError(t, timeValue{&got}.Scan(nil))
	assert.True(t, got.IsZero())

	assert.Error(t, timeValue{&got}.Scan(3.14))
}
