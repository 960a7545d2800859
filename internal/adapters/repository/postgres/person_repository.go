package postgres

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ogurasousui/personnel-backoffice/internal/core/person"
	pgdb "github.com/ogurasousui/personnel-backoffice/internal/platform/db/postgres"
)

const uniqueViolationCode = "23505"

// PersonRepository は PostgreSQL を利用した職員永続化の実装です。
type PersonRepository struct {
	pool pgdb.Queryer
}

// NewPersonRepository は PersonRepository を生成します。
func NewPersonRepository(pool pgdb.Queryer) *PersonRepository {
	return &PersonRepository{pool: pool}
}

// Create は職員を新規登録します。
func (r *PersonRepository) Create(ctx context.Context, p *person.Person) (*person.Person, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO persons (file_number, name, email, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, file_number, name, email, status, created_at, updated_at
    `, p.FileNumber, p.Name, p.Email, string(p.Status), p.CreatedAt, p.UpdatedAt)

	created, err := scanPerson(row)
	if err != nil {
		return nil, translatePersonPgError(err)
	}
	return created, nil
}

// Update は職員情報を更新します。
func (r *PersonRepository) Update(ctx context.Context, p *person.Person) (*person.Person, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE persons
           SET name = $1,
               email = $2,
               status = $3,
               updated_at = $4
         WHERE id = $5
        RETURNING id, file_number, name, email, status, created_at, updated_at
    `, p.Name, p.Email, string(p.Status), p.UpdatedAt, p.ID)

	updated, err := scanPerson(row)
	if err != nil {
		return nil, translatePersonPgError(err)
	}
	return updated, nil
}

// FindByID は ID で職員を取得します。
func (r *PersonRepository) FindByID(ctx context.Context, id string) (*person.Person, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT id, file_number, name, email, status, created_at, updated_at
          FROM persons
         WHERE id = $1
         LIMIT 1
    `, id)

	found, err := scanPerson(row)
	if err != nil {
		return nil, translatePersonPgError(err)
	}
	return found, nil
}

// FindByFileNumber は職員番号で職員を取得します。
func (r *PersonRepository) FindByFileNumber(ctx context.Context, fileNumber string) (*person.Person, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT id, file_number, name, email, status, created_at, updated_at
          FROM persons
         WHERE file_number = $1
         LIMIT 1
    `, fileNumber)

	found, err := scanPerson(row)
	if err != nil {
		return nil, translatePersonPgError(err)
	}
	return found, nil
}

// List は職員の一覧を氏名順に取得します。
func (r *PersonRepository) List(ctx context.Context, filter person.ListPersonsFilter) ([]*person.Person, string, error) {
	if filter.Limit <= 0 {
		return nil, "", person.ErrInvalidPageSize
	}
	if filter.Offset < 0 {
		return nil, "", person.ErrInvalidPageToken
	}

	limitWithBuffer := filter.Limit + 1

	args := make([]any, 0, 4)
	conditions := make([]string, 0, 2)

	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conditions = append(conditions, "status = $"+strconv.Itoa(len(args)))
	}
	if filter.Query != "" {
		args = append(args, "%"+filter.Query+"%")
		placeholder := "$" + strconv.Itoa(len(args))
		conditions = append(conditions, "(name ILIKE "+placeholder+" OR file_number ILIKE "+placeholder+")")
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	args = append(args, limitWithBuffer)
	limitPlaceholder := "$" + strconv.Itoa(len(args))
	args = append(args, filter.Offset)
	offsetPlaceholder := "$" + strconv.Itoa(len(args))

	query := `
        SELECT id, file_number, name, email, status, created_at, updated_at
          FROM persons` + whereClause + `
         ORDER BY name, id
         LIMIT ` + limitPlaceholder + `
        OFFSET ` + offsetPlaceholder + `
    `

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, "", translatePersonPgError(err)
	}
	defer rows.Close()

	persons := make([]*person.Person, 0, filter.Limit)
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, "", translatePersonPgError(err)
		}
		persons = append(persons, p)
	}

	if err := rows.Err(); err != nil {
		return nil, "", translatePersonPgError(err)
	}

	var nextToken string
	if len(persons) == limitWithBuffer {
		persons = persons[:filter.Limit]
		nextToken = strconv.Itoa(filter.Offset + filter.Limit)
	}

	return persons, nextToken, nil
}

func scanPerson(row pgx.Row) (*person.Person, error) {
	var (
		id                   string
		fileNumber           string
		name                 string
		email                string
		status               string
		createdAt, updatedAt time.Time
	)

	if err := row.Scan(&id, &fileNumber, &name, &email, &status, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, person.ErrPersonNotFound
		}
		return nil, err
	}

	return &person.Person{
		ID:         id,
		FileNumber: fileNumber,
		Name:       name,
		Email:      email,
		Status:     person.Status(status),
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
	}, nil
}

func translatePersonPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return person.ErrPersonNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			return person.ErrFileNumberAlreadyExists
		case invalidTextRepresentationCode:
			return person.ErrInvalidID
		}
	}
	return err
}
