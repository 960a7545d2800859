package person

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

const (
	defaultListPageSize = 50
	maxListPageSize     = 200
	maxFileNumberLength = 32
)

// Service は職員に関するユースケースをまとめます。
type Service struct {
	repo  Repository
	clock Clock
}

// UseCase は職員ユースケースの公開インターフェースです。
type UseCase interface {
	CreatePerson(ctx context.Context, in CreatePersonInput) (*Person, error)
	UpdatePerson(ctx context.Context, in UpdatePersonInput) (*Person, error)
	GetPerson(ctx context.Context, in GetPersonInput) (*Person, error)
	ListPersons(ctx context.Context, in ListPersonsInput) (*ListPersonsResult, error)
}

// NewService は Service を生成します。
func NewService(repo Repository, clock Clock) *Service {
	if clock == nil {
		clock = realClock{}
	}
	return &Service{repo: repo, clock: clock}
}

// CreatePersonInput は職員登録時の入力です。Email は任意です。
type CreatePersonInput struct {
	FileNumber string
	Name       string
	Email      string
}

// UpdatePersonInput は職員更新時の入力です。
type UpdatePersonInput struct {
	ID     string
	Name   *string
	Email  *string
	Status *Status
}

// GetPersonInput は職員取得時の入力です。
type GetPersonInput struct {
	ID string
}

// ListPersonsInput は一覧取得時の入力です。
type ListPersonsInput struct {
	PageSize  int
	PageToken string
	Status    *Status
	Query     string
}

// ListPersonsResult は一覧取得結果を表します。
type ListPersonsResult struct {
	Persons       []*Person
	NextPageToken string
}

// CreatePerson は新しい職員を登録します。
func (s *Service) CreatePerson(ctx context.Context, in CreatePersonInput) (*Person, error) {
	fileNumber, err := normalizeFileNumber(in.FileNumber)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrInvalidName
	}

	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}

	if err := s.ensureFileNumberNotExists(ctx, fileNumber); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	p := &Person{
		FileNumber: fileNumber,
		Name:       name,
		Email:      email,
		Status:     StatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	return s.repo.Create(ctx, p)
}

// UpdatePerson は職員情報を更新します。
func (s *Service) UpdatePerson(ctx context.Context, in UpdatePersonInput) (*Person, error) {
	id, err := normalizeID(in.ID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, ErrInvalidName
		}
		existing.Name = name
	}

	if in.Email != nil {
		email, err := normalizeEmail(*in.Email)
		if err != nil {
			return nil, err
		}
		existing.Email = email
	}

	if in.Status != nil {
		if !isValidStatus(*in.Status) {
			return nil, ErrInvalidStatus
		}
		existing.Status = *in.Status
	}

	existing.UpdatedAt = s.clock.Now()

	return s.repo.Update(ctx, existing)
}

// GetPerson は ID で職員を取得します。
func (s *Service) GetPerson(ctx context.Context, in GetPersonInput) (*Person, error) {
	id, err := normalizeID(in.ID)
	if err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, id)
}

// ListPersons は職員の一覧を取得します。
func (s *Service) ListPersons(ctx context.Context, in ListPersonsInput) (*ListPersonsResult, error) {
	limit, err := normalizePageSize(in.PageSize)
	if err != nil {
		return nil, err
	}

	offset, err := parsePageToken(in.PageToken)
	if err != nil {
		return nil, err
	}

	var statusPtr *Status
	if in.Status != nil {
		if !isValidStatus(*in.Status) {
			return nil, ErrInvalidStatus
		}
		status := *in.Status
		statusPtr = &status
	}

	persons, nextToken, err := s.repo.List(ctx, ListPersonsFilter{
		Limit:  limit,
		Offset: offset,
		Status: statusPtr,
		Query:  strings.TrimSpace(in.Query),
	})
	if err != nil {
		return nil, err
	}

	return &ListPersonsResult{
		Persons:       persons,
		NextPageToken: nextToken,
	}, nil
}

func (s *Service) ensureFileNumberNotExists(ctx context.Context, fileNumber string) error {
	p, err := s.repo.FindByFileNumber(ctx, fileNumber)
	if err != nil && !errors.Is(err, ErrPersonNotFound) {
		return err
	}
	if p != nil {
		return ErrFileNumberAlreadyExists
	}
	return nil
}

func normalizeID(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("id: %w", ErrInvalidID)
	}
	if _, err := uuid.Parse(trimmed); err != nil {
		return "", fmt.Errorf("id %q: %w", trimmed, ErrInvalidID)
	}
	return trimmed, nil
}

func normalizeFileNumber(raw string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(raw))
	if trimmed == "" || len(trimmed) > maxFileNumberLength {
		return "", ErrInvalidFileNumber
	}
	return trimmed, nil
}

func normalizeEmail(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", nil
	}

	addr, err := mail.ParseAddress(trimmed)
	if err != nil {
		return "", ErrInvalidEmail
	}

	return strings.ToLower(addr.Address), nil
}

func isValidStatus(status Status) bool {
	switch status {
	case StatusActive, StatusInactive:
		return true
	default:
		return false
	}
}

func normalizePageSize(pageSize int) (int, error) {
	if pageSize <= 0 {
		return defaultListPageSize, nil
	}
	if pageSize > maxListPageSize {
		return 0, ErrInvalidPageSize
	}
	return pageSize, nil
}

func parsePageToken(token string) (int, error) {
	if strings.TrimSpace(token) == "" {
		return 0, nil
	}

	offset, err := strconv.Atoi(token)
	if err != nil || offset < 0 {
		return 0, ErrInvalidPageToken
	}

	return offset, nil
}
