package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ogurasousui/personnel-backoffice/internal/core/record"
	pgdb "github.com/ogurasousui/personnel-backoffice/internal/platform/db/postgres"
)

const (
	foreignKeyViolationCode       = "23503"
	checkViolationCode            = "23514"
	invalidTextRepresentationCode = "22P02"
)

const recordColumns = `r.id,
               r.kind,
               r.subject_id,
               COALESCE(p.name, ''),
               r.category,
               r.description,
               r.effective_from,
               r.effective_until,
               r.approved,
               r.deactivated_at,
               r.deleted_at,
               r.created_at,
               r.updated_at`

// RecordRepository は PostgreSQL を利用した人事記録永続化の実装です。
// 記録は物理削除せず、deleted_at による論理削除のみを行います。
type RecordRepository struct {
	pool pgdb.Queryer
}

// NewRecordRepository は RecordRepository を生成します。
func NewRecordRepository(pool pgdb.Queryer) *RecordRepository {
	return &RecordRepository{pool: pool}
}

// Create は記録を新規作成します。
func (r *RecordRepository) Create(ctx context.Context, rec *record.Record) (*record.Record, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        WITH r AS (
            INSERT INTO records (kind, subject_id, category, description, effective_from, effective_until, approved, deactivated_at, deleted_at, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
            RETURNING *
        )
        SELECT `+recordColumns+`
          FROM r
          LEFT JOIN persons p ON p.id = r.subject_id
    `,
		string(rec.Kind),
		nullableString(rec.SubjectID),
		rec.Category,
		rec.Description,
		nullableDate(rec.EffectiveFrom),
		nullableDate(rec.EffectiveUntil),
		nullableBool(rec.Approved),
		nullableTimestamp(rec.DeactivatedAt),
		nullableTimestamp(rec.DeletedAt),
		rec.CreatedAt,
		rec.UpdatedAt,
	)

	created, err := scanRecord(row)
	if err != nil {
		return nil, translateRecordPgError(err)
	}
	return created, nil
}

// Update は記録の可変項目をすべて書き戻します。
func (r *RecordRepository) Update(ctx context.Context, rec *record.Record) (*record.Record, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        WITH r AS (
            UPDATE records
               SET subject_id = $1,
                   category = $2,
                   description = $3,
                   effective_from = $4,
                   effective_until = $5,
                   approved = $6,
                   deactivated_at = $7,
                   deleted_at = $8,
                   updated_at = $9
             WHERE id = $10
            RETURNING *
        )
        SELECT `+recordColumns+`
          FROM r
          LEFT JOIN persons p ON p.id = r.subject_id
    `,
		nullableString(rec.SubjectID),
		rec.Category,
		rec.Description,
		nullableDate(rec.EffectiveFrom),
		nullableDate(rec.EffectiveUntil),
		nullableBool(rec.Approved),
		nullableTimestamp(rec.DeactivatedAt),
		nullableTimestamp(rec.DeletedAt),
		rec.UpdatedAt,
		rec.ID,
	)

	updated, err := scanRecord(row)
	if err != nil {
		return nil, translateRecordPgError(err)
	}
	return updated, nil
}

// FindByID は ID で記録を取得します。論理削除済みの記録も返します。
func (r *RecordRepository) FindByID(ctx context.Context, id string) (*record.Record, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+recordColumns+`
          FROM records r
          LEFT JOIN persons p ON p.id = r.subject_id
         WHERE r.id = $1
         LIMIT 1
    `, id)

	found, err := scanRecord(row)
	if err != nil {
		return nil, translateRecordPgError(err)
	}
	return found, nil
}

// List は種別ごとの記録を作成順に取得します。
func (r *RecordRepository) List(ctx context.Context, filter record.ListRecordsFilter) ([]*record.Record, error) {
	if !filter.Kind.Valid() {
		return nil, record.ErrInvalidKind
	}

	args := []any{string(filter.Kind)}
	conditions := []string{"r.kind = $1"}

	if !filter.WithDeleted {
		conditions = append(conditions, "r.deleted_at IS NULL")
	}
	if filter.SubjectID != nil {
		args = append(args, *filter.SubjectID)
		conditions = append(conditions, "r.subject_id = $"+strconv.Itoa(len(args)))
	}

	query := `
        SELECT ` + recordColumns + `
          FROM records r
          LEFT JOIN persons p ON p.id = r.subject_id
         WHERE ` + strings.Join(conditions, " AND ") + `
         ORDER BY r.created_at, r.id
    `

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, translateRecordPgError(err)
	}
	defer rows.Close()

	records := make([]*record.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, translateRecordPgError(err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, translateRecordPgError(err)
	}

	return records, nil
}

func scanRecord(row pgx.Row) (*record.Record, error) {
	var (
		id             string
		kind           string
		subjectID      sql.NullString
		subjectName    string
		category       string
		description    string
		effectiveFrom  sql.NullTime
		effectiveUntil sql.NullTime
		approved       sql.NullBool
		deactivatedAt  sql.NullTime
		deletedAt      sql.NullTime
		createdAt      time.Time
		updatedAt      time.Time
	)

	if err := row.Scan(
		&id,
		&kind,
		&subjectID,
		&subjectName,
		&category,
		&description,
		&effectiveFrom,
		&effectiveUntil,
		&approved,
		&deactivatedAt,
		&deletedAt,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, record.ErrNotFound
		}
		return nil, err
	}

	rec := &record.Record{
		ID:             id,
		Kind:           record.Kind(kind),
		SubjectName:    subjectName,
		Category:       category,
		Description:    description,
		EffectiveFrom:  dateFromNull(effectiveFrom),
		EffectiveUntil: dateFromNull(effectiveUntil),
		DeactivatedAt:  timestampFromNull(deactivatedAt),
		DeletedAt:      timestampFromNull(deletedAt),
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}
	if subjectID.Valid {
		v := subjectID.String
		rec.SubjectID = &v
	}
	if approved.Valid {
		v := approved.Bool
		rec.Approved = &v
	}
	return rec, nil
}

func translateRecordPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return record.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case foreignKeyViolationCode:
			return record.ErrSubjectMissing
		case checkViolationCode:
			return record.ErrInvalidPeriod
		case invalidTextRepresentationCode:
			return record.ErrInvalidID
		}
	}

	return err
}

func nullableString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableBool(v *bool) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableDate(v *time.Time) any {
	if v == nil {
		return nil
	}
	return time.Date(v.Year(), v.Month(), v.Day(), 0, 0, 0, 0, time.UTC)
}

func nullableTimestamp(v *time.Time) any {
	if v == nil {
		return nil
	}
	return v.UTC()
}

func dateFromNull(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	date := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &date
}

func timestampFromNull(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}
