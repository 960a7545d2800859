package person

import "context"

// Repository は職員の永続化を行うインターフェースです。
type Repository interface {
	Create(ctx context.Context, p *Person) (*Person, error)
	Update(ctx context.Context, p *Person) (*Person, error)
	FindByID(ctx context.Context, id string) (*Person, error)
	FindByFileNumber(ctx context.Context, fileNumber string) (*Person, error)
	List(ctx context.Context, filter ListPersonsFilter) ([]*Person, string, error)
}

// ListPersonsFilter は一覧取得時の条件です。
type ListPersonsFilter struct {
	Limit  int
	Offset int
	Status *Status
	Query  string
}
