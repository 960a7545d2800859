package record

import (
	"context"
	"fmt"
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

// TransactionManager はトランザクション制御の抽象化です。
type TransactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

type noopTransactionManager struct{}

func (noopTransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (noopTransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// SideEffect は Source 種別の記録が作成・有効化されたときに Target 種別へ連動する処理です。
// Apply は同一トランザクション内で呼び出され、影響を受けた記録の ID を返します。
type SideEffect interface {
	Source() Kind
	Target() Kind
	Apply(ctx context.Context, trigger *Record) ([]string, error)
}

// CascadeResult は 1 つの連動処理の結果です。AffectedIDs が空でもエラーではありません。
type CascadeResult struct {
	Kind        Kind
	AffectedIDs []string
}

// MutationResult は更新系ユースケースの結果を表します。
type MutationResult struct {
	Record   *Record
	Cascades []CascadeResult
}

// Affected は連動処理で影響を受けた記録の ID をすべて返します。
func (m *MutationResult) Affected() []string {
	if m == nil {
		return nil
	}
	var ids []string
	for _, c := range m.Cascades {
		ids = append(ids, c.AffectedIDs...)
	}
	return ids
}

// Service は人事記録のライフサイクルに関するユースケースをまとめます。
type Service struct {
	repo    Repository
	clock   Clock
	tx      TransactionManager
	effects []SideEffect
}

// UseCase は人事記録ユースケースの公開インターフェースです。
type UseCase interface {
	CreateRecord(ctx context.Context, in CreateRecordInput) (*MutationResult, error)
	UpdateRecord(ctx context.Context, in UpdateRecordInput) (*MutationResult, error)
	DeleteRecord(ctx context.Context, in DeleteRecordInput) (*Record, error)
	RestoreRecord(ctx context.Context, in RestoreRecordInput) (*MutationResult, error)
	DeactivateRecord(ctx context.Context, in DeactivateRecordInput) (*Record, error)
	GetRecord(ctx context.Context, in GetRecordInput) (*Record, error)
	ListRecords(ctx context.Context, in ListRecordsInput) ([]*Record, error)
}

// NewService は Service を生成します。
func NewService(repo Repository, clock Clock, tx TransactionManager, effects ...SideEffect) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	return &Service{repo: repo, clock: clock, tx: tx, effects: effects}
}

// Effects は登録済みの連動処理を返します。
func (s *Service) Effects() []SideEffect {
	return append([]SideEffect(nil), s.effects...)
}

// CreateRecordInput は記録作成時の入力です。
type CreateRecordInput struct {
	Kind           Kind
	SubjectID      *string
	Category       string
	Description    string
	EffectiveFrom  *time.Time
	EffectiveUntil *time.Time
	Approved       *bool
}

// UpdateRecordInput は記録更新時の入力です。nil の項目は変更しません。
type UpdateRecordInput struct {
	ID                string
	SubjectID         *string
	Category          *string
	Description       *string
	EffectiveFrom     *time.Time
	EffectiveFromSet  bool
	EffectiveUntil    *time.Time
	EffectiveUntilSet bool
	Approved          *bool
	ApprovedSet       bool
}

// DeleteRecordInput は論理削除時の入力です。
type DeleteRecordInput struct {
	ID string
}

// RestoreRecordInput は復元時の入力です。
type RestoreRecordInput struct {
	ID string
}

// DeactivateRecordInput は失効時の入力です。
type DeactivateRecordInput struct {
	ID string
}

// GetRecordInput は記録取得時の入力です。
type GetRecordInput struct {
	ID string
}

// ListRecordsInput は一覧取得時の入力です。
type ListRecordsInput struct {
	Kind        Kind
	WithDeleted bool
	SubjectID   *string
}

// CreateRecord は新しい記録を作成し、連動処理を同一トランザクションで実行します。
// 連動処理は作成した記録の期間が開始前であっても実行されます。
func (s *Service) CreateRecord(ctx context.Context, in CreateRecordInput) (*MutationResult, error) {
	rec := &Record{
		Kind:           Kind(strings.TrimSpace(string(in.Kind))),
		SubjectID:      normalizeSubjectID(in.SubjectID),
		Category:       strings.TrimSpace(in.Category),
		Description:    strings.TrimSpace(in.Description),
		EffectiveFrom:  NormalizeDate(in.EffectiveFrom),
		EffectiveUntil: NormalizeDate(in.EffectiveUntil),
	}
	if in.Approved != nil {
		approved := *in.Approved
		rec.Approved = &approved
	}

	if err := validateRecord(rec); err != nil {
		return nil, err
	}

	var result *MutationResult
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		now := s.clock.Now()
		rec.CreatedAt = now
		rec.UpdatedAt = now

		created, err := s.repo.Create(txCtx, rec)
		if err != nil {
			return err
		}
		created.Active = ComputeActive(created, now)

		cascades, err := s.runEffects(txCtx, created)
		if err != nil {
			return err
		}

		result = &MutationResult{Record: created, Cascades: cascades}
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// UpdateRecord は記録を部分更新します。更新後に有効となった記録には連動処理を実行します。
func (s *Service) UpdateRecord(ctx context.Context, in UpdateRecordInput) (*MutationResult, error) {
	id, err := normalizeID(in.ID)
	if err != nil {
		return nil, err
	}

	var result *MutationResult
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		if existing.Deleted() {
			return ErrRecordDeleted
		}

		now := s.clock.Now()
		wasActive := ComputeActive(existing, now)
		scopeChanged := false

		if in.SubjectID != nil {
			existing.SubjectID = normalizeSubjectID(in.SubjectID)
			scopeChanged = true
		}
		if in.Category != nil {
			existing.Category = strings.TrimSpace(*in.Category)
		}
		if in.Description != nil {
			existing.Description = strings.TrimSpace(*in.Description)
		}
		if in.EffectiveFromSet {
			existing.EffectiveFrom = NormalizeDate(in.EffectiveFrom)
			scopeChanged = true
		}
		if in.EffectiveUntilSet {
			existing.EffectiveUntil = NormalizeDate(in.EffectiveUntil)
			scopeChanged = true
		}
		if in.ApprovedSet {
			existing.Approved = nil
			if in.Approved != nil {
				approved := *in.Approved
				existing.Approved = &approved
			}
		}

		if err := validateRecord(existing); err != nil {
			return err
		}

		existing.UpdatedAt = now
		updated, err := s.repo.Update(txCtx, existing)
		if err != nil {
			return err
		}
		updated.Active = ComputeActive(updated, now)

		result = &MutationResult{Record: updated}
		if updated.Active && (!wasActive || scopeChanged) {
			cascades, err := s.runEffects(txCtx, updated)
			if err != nil {
				return err
			}
			result.Cascades = cascades
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// DeleteRecord は記録を論理削除します。deleted_at 以外の項目は変更しません。
func (s *Service) DeleteRecord(ctx context.Context, in DeleteRecordInput) (*Record, error) {
	id, err := normalizeID(in.ID)
	if err != nil {
		return nil, err
	}

	var deleted *Record
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		if existing.Deleted() {
			return ErrAlreadyDeleted
		}

		now := s.clock.Now()
		existing.DeletedAt = &now

		result, err := s.repo.Update(txCtx, existing)
		if err != nil {
			return err
		}
		result.Active = ComputeActive(result, now)
		deleted = result
		return nil
	}); err != nil {
		return nil, err
	}

	return deleted, nil
}

// RestoreRecord は論理削除された記録を復元します。復元により有効となった記録には連動処理を実行します。
func (s *Service) RestoreRecord(ctx context.Context, in RestoreRecordInput) (*MutationResult, error) {
	id, err := normalizeID(in.ID)
	if err != nil {
		return nil, err
	}

	var result *MutationResult
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		if !existing.Deleted() {
			return ErrNotDeleted
		}

		existing.DeletedAt = nil

		restored, err := s.repo.Update(txCtx, existing)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		restored.Active = ComputeActive(restored, now)

		result = &MutationResult{Record: restored}
		if restored.Active {
			cascades, err := s.runEffects(txCtx, restored)
			if err != nil {
				return err
			}
			result.Cascades = cascades
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// DeactivateRecord は記録を失効させます。失効済みの記録に対しては何もしません。
func (s *Service) DeactivateRecord(ctx context.Context, in DeactivateRecordInput) (*Record, error) {
	id, err := normalizeID(in.ID)
	if err != nil {
		return nil, err
	}

	var out *Record
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if existing.DeactivatedAt != nil {
			existing.Active = ComputeActive(existing, now)
			out = existing
			return nil
		}
		if existing.Deleted() {
			return ErrRecordDeleted
		}

		Deactivate(existing, now)

		result, err := s.repo.Update(txCtx, existing)
		if err != nil {
			return err
		}
		result.Active = ComputeActive(result, now)
		out = result
		return nil
	}); err != nil {
		return nil, err
	}

	return out, nil
}

// GetRecord は ID で記録を取得します。
func (s *Service) GetRecord(ctx context.Context, in GetRecordInput) (*Record, error) {
	id, err := normalizeID(in.ID)
	if err != nil {
		return nil, err
	}

	var found *Record
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		result, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		result.Active = ComputeActive(result, s.clock.Now())
		found = result
		return nil
	}); err != nil {
		return nil, err
	}

	return found, nil
}

// ListRecords は種別ごとの記録一覧を取得します。
func (s *Service) ListRecords(ctx context.Context, in ListRecordsInput) ([]*Record, error) {
	if !in.Kind.Valid() {
		return nil, fmt.Errorf("kind %q: %w", in.Kind, ErrInvalidKind)
	}

	var records []*Record
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		result, err := s.repo.List(txCtx, ListRecordsFilter{
			Kind:        in.Kind,
			WithDeleted: in.WithDeleted,
			SubjectID:   normalizeSubjectID(in.SubjectID),
		})
		if err != nil {
			return err
		}
		Refresh(s.clock.Now(), result...)
		records = result
		return nil
	}); err != nil {
		return nil, err
	}

	return records, nil
}

// runEffects は trigger の種別を起点とする連動処理を実行します。
// 作成時は期間が未来でも実行し、更新・復元時は呼び出し側が有効かどうかを判定します。
func (s *Service) runEffects(ctx context.Context, trigger *Record) ([]CascadeResult, error) {
	if trigger.Deleted() {
		return nil, nil
	}

	var results []CascadeResult
	for _, effect := range s.effects {
		if effect.Source() != trigger.Kind {
			continue
		}
		ids, err := effect.Apply(ctx, trigger)
		if err != nil {
			return nil, fmt.Errorf("cascade %s -> %s: %w", effect.Source(), effect.Target(), err)
		}
		results = append(results, CascadeResult{Kind: effect.Target(), AffectedIDs: ids})
	}
	return results, nil
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

func normalizeSubjectID(raw *string) *string {
	if raw == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
