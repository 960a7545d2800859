package record

import "context"

// Repository は人事記録の永続化を行うインターフェースです。
// 記録は物理削除されないため Delete は持ちません。
type Repository interface {
	Create(ctx context.Context, rec *Record) (*Record, error)
	Update(ctx context.Context, rec *Record) (*Record, error)
	FindByID(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context, filter ListRecordsFilter) ([]*Record, error)
}

// ListRecordsFilter は一覧取得時の検索条件を表します。
type ListRecordsFilter struct {
	Kind        Kind
	WithDeleted bool
	SubjectID   *string
}
