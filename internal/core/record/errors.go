package record

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrInvalidID      = errors.New("record: invalid id")
	ErrInvalidKind    = errors.New("record: invalid kind")
	ErrInvalidInput   = errors.New("record: invalid input")
	ErrInvalidPeriod  = errors.New("record: invalid period")
	ErrNotFound       = errors.New("record: not found")
	ErrSubjectMissing = errors.New("record: subject not found")
	// ErrConflict は現在の状態では実行できない操作に対して返却されます。
	ErrConflict = errors.New("record: conflict")

	ErrAlreadyDeleted = fmt.Errorf("record: already deleted: %w", ErrConflict)
	ErrNotDeleted     = fmt.Errorf("record: not deleted: %w", ErrConflict)
	ErrRecordDeleted  = fmt.Errorf("record: record is deleted: %w", ErrConflict)
)

// ValidationError は入力項目ごとの検証エラーをまとめます。
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError は単一項目の ValidationError を生成します。
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return ErrInvalidInput.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrInvalidInput.Error() + " (" + strings.Join(parts, "; ") + ")"
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}
