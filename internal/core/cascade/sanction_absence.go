package cascade

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ogurasousui/personnel-backoffice/internal/core/record"
	"github.com/samber/lo"
)

// Mode は連動処理の対象となる休職記録の選び方です。
type Mode string

const (
	// ModeAnyActive は対象者の有効な休職記録をすべて失効させます。
	ModeAnyActive Mode = "any_active"
	// ModeOverlap は処分期間と重なる有効な休職記録のみを失効させます。
	ModeOverlap Mode = "overlap"
)

// ErrInvalidMode は未知のモードが指定された場合に返却されます。
var ErrInvalidMode = errors.New("cascade: invalid mode")

// ParseMode は設定値から Mode を解釈します。空文字列は ModeAnyActive として扱います。
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeAnyActive:
		return ModeAnyActive, nil
	case ModeOverlap:
		return ModeOverlap, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, raw)
	}
}

// Store は連動処理が利用する記録の読み書きです。record.Repository が満たします。
type Store interface {
	List(ctx context.Context, filter record.ListRecordsFilter) ([]*record.Record, error)
	Update(ctx context.Context, rec *record.Record) (*record.Record, error)
}

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// SanctionAbsenceRule は懲戒処分の作成・有効化に伴い、同じ対象者の有効な休職記録を失効させます。
type SanctionAbsenceRule struct {
	store Store
	clock Clock
	mode  Mode
}

// NewSanctionAbsenceRule は SanctionAbsenceRule を生成します。
func NewSanctionAbsenceRule(store Store, clock Clock, mode Mode) *SanctionAbsenceRule {
	if clock == nil {
		clock = realClock{}
	}
	if mode == "" {
		mode = ModeAnyActive
	}
	return &SanctionAbsenceRule{store: store, clock: clock, mode: mode}
}

// Source は record.SideEffect を満たします。
func (r *SanctionAbsenceRule) Source() record.Kind {
	return record.KindSanction
}

// Target は record.SideEffect を満たします。
func (r *SanctionAbsenceRule) Target() record.Kind {
	return record.KindAbsence
}

// Apply は対象の休職記録を失効させ、その ID を返します。
// 該当がない場合は空のスライスを返し、エラーにはしません。
func (r *SanctionAbsenceRule) Apply(ctx context.Context, sanction *record.Record) ([]string, error) {
	affected := []string{}
	if sanction == nil || sanction.Kind != record.KindSanction || sanction.SubjectID == nil {
		return affected, nil
	}

	absences, err := r.store.List(ctx, record.ListRecordsFilter{
		Kind:      record.KindAbsence,
		SubjectID: sanction.SubjectID,
	})
	if err != nil {
		return nil, fmt.Errorf("cascade: list absences: %w", err)
	}

	now := r.clock.Now()
	targets := lo.Filter(absences, func(absence *record.Record, _ int) bool {
		return r.selects(sanction, absence, now)
	})

	for _, absence := range targets {
		if !record.Deactivate(absence, now) {
			continue
		}
		if _, err := r.store.Update(ctx, absence); err != nil {
			return nil, fmt.Errorf("cascade: deactivate absence %s: %w", absence.ID, err)
		}
		affected = append(affected, absence.ID)
	}

	return affected, nil
}

func (r *SanctionAbsenceRule) selects(sanction, absence *record.Record, now time.Time) bool {
	if absence.SubjectID == nil || *absence.SubjectID != *sanction.SubjectID {
		return false
	}
	if !record.ComputeActive(absence, now) {
		return false
	}
	if r.mode == ModeOverlap {
		return record.Overlaps(sanction.EffectiveFrom, sanction.EffectiveUntil, absence.EffectiveFrom, absence.EffectiveUntil)
	}
	return true
}
