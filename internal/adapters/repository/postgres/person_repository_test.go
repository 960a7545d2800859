package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/ogurasousui/personnel-backoffice/internal/core/person"
)

var personRowColumns = []string{"id", "file_number", "name", "email", "status", "created_at", "updated_at"}

func TestScanPerson_Success(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	row := stubRow{scanFn: func(dest ...interface{}) error {
		if len(dest) != 7 {
			return errors.New("unexpected dest length")
		}
		*(dest[0].(*string)) = "person-1"
		*(dest[1].(*string)) = "LEG-001"
		*(dest[2].(*string)) = "Juan Perez"
		*(dest[3].(*string)) = "juan@example.com"
		*(dest[4].(*string)) = string(person.StatusActive)
		*(dest[5].(*time.Time)) = now
		*(dest[6].(*time.Time)) = now
		return nil
	}}

	p, err := scanPerson(row)
	if err != nil {
		t.Fatalf("scanPerson returned error: %v", err)
	}
	if p.ID != "person-1" || p.FileNumber != "LEG-001" || p.Status != person.StatusActive {
		t.Fatalf("unexpected person %+v", p)
	}
}

func TestScanPerson_NoRows(t *testing.T) {
	t.Parallel()

	row := stubRow{scanFn: func(dest ...interface{}) error {
		return pgx.ErrNoRows
	}}

	if _, err := scanPerson(row); !errors.Is(err, person.ErrPersonNotFound) {
		t.Fatalf("expected ErrPersonNotFound, got %v", err)
	}
}

func TestTranslatePersonPgError(t *testing.T) {
	t.Parallel()

	if err := translatePersonPgError(&pgconn.PgError{Code: uniqueViolationCode}); !errors.Is(err, person.ErrFileNumberAlreadyExists) {
		t.Fatalf("expected ErrFileNumberAlreadyExists, got %v", err)
	}
	if err := translatePersonPgError(&pgconn.PgError{Code: invalidTextRepresentationCode}); !errors.Is(err, person.ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
	if err := translatePersonPgError(pgx.ErrNoRows); !errors.Is(err, person.ErrPersonNotFound) {
		t.Fatalf("expected ErrPersonNotFound, got %v", err)
	}

	other := errors.New("other")
	if translatePersonPgError(other) != other {
		t.Fatalf("unexpected translation for generic error")
	}
}

func TestPersonRepository_List_NextToken(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewPersonRepository(mock)
	now := time.Now().UTC()

	rows := pgxmock.NewRows(personRowColumns).
		AddRow("p-1", "LEG-001", "Ana Perez", "", "active", now, now).
		AddRow("p-2", "LEG-002", "Juan Perez", "", "active", now, now).
		AddRow("p-3", "LEG-003", "Luis Gomez", "", "inactive", now, now)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY name, id")+`\s+LIMIT \$1\s+OFFSET \$2`).
		WithArgs(3, 0).
		WillReturnRows(rows)

	persons, next, err := repo.List(context.Background(), person.ListPersonsFilter{Limit: 2, Offset: 0})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(persons) != 2 {
		t.Fatalf("expected 2 persons, got %d", len(persons))
	}
	if next != "2" {
		t.Fatalf("expected next token 2, got %q", next)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPersonRepository_List_WithFilters(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewPersonRepository(mock)
	now := time.Now().UTC()
	status := person.StatusActive

	rows := pgxmock.NewRows(personRowColumns).
		AddRow("p-2", "LEG-002", "Juan Perez", "", "active", now, now)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = $1 AND (name ILIKE $2 OR file_number ILIKE $2)")).
		WithArgs("active", "%perez%", 11, 10).
		WillReturnRows(rows)

	persons, next, err := repo.List(context.Background(), person.ListPersonsFilter{Limit: 10, Offset: 10, Status: &status, Query: "perez"})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(persons) != 1 || next != "" {
		t.Fatalf("unexpected result %v next=%q", persons, next)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPersonRepository_List_InvalidArguments(t *testing.T) {
	t.Parallel()

	repo := NewPersonRepository(nil)

	if _, _, err := repo.List(context.Background(), person.ListPersonsFilter{Limit: 0}); !errors.Is(err, person.ErrInvalidPageSize) {
		t.Fatalf("expected ErrInvalidPageSize, got %v", err)
	}
	if _, _, err := repo.List(context.Background(), person.ListPersonsFilter{Limit: 1, Offset: -1}); !errors.Is(err, person.ErrInvalidPageToken) {
		t.Fatalf("expected ErrInvalidPageToken, got %v", err)
	}
}

func TestPersonRepository_Create_DuplicateFileNumber(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewPersonRepository(mock)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO persons")).
		WithArgs("LEG-001", "Juan Perez", "", "active", now, now).
		WillReturnError(&pgconn.PgError{Code: uniqueViolationCode})

	_, err = repo.Create(context.Background(), &person.Person{
		FileNumber: "LEG-001",
		Name:       "Juan Perez",
		Status:     person.StatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if !errors.Is(err, person.ErrFileNumberAlreadyExists) {
		t.Fatalf("expected ErrFileNumberAlreadyExists, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
