package workspace

import (
	"context"

	"github.com/ogurasousui/personnel-backoffice/internal/core/record"
	"github.com/ogurasousui/personnel-backoffice/internal/platform/logger"
)

// Level は通知の重要度です。
type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Operation は変更操作の種別です。
type Operation string

const (
	OperationCreate  Operation = "create"
	OperationEdit    Operation = "edit"
	OperationDelete  Operation = "delete"
	OperationRestore Operation = "restore"
)

// Notification は利用者に提示する通知です。
type Notification struct {
	Level       Level
	Resource    record.Kind
	Operation   Operation
	RecordID    string
	Message     string
	FieldErrors map[string]string
	// Affected は連鎖処理で無効化された記録の ID です。
	Affected []string
}

// Notifier は通知の送り先です。
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc は関数を Notifier として扱うためのアダプタです。
type NotifierFunc func(ctx context.Context, n Notification)

// Notify は f(ctx, n) を呼び出します。
func (f NotifierFunc) Notify(ctx context.Context, n Notification) {
	f(ctx, n)
}

// LogNotifier は通知を構造化ログとして出力します。
type LogNotifier struct {
	logger *logger.Logger
}

// NewLogNotifier は LogNotifier を生成します。
func NewLogNotifier(l *logger.Logger) *LogNotifier {
	if l == nil {
		l = logger.NewNop()
	}
	return &LogNotifier{logger: l.Named("notification")}
}

// Notify は重要度に応じたレベルで通知を記録します。
func (n *LogNotifier) Notify(_ context.Context, note Notification) {
	fields := []any{
		"resource", note.Resource,
		"operation", note.Operation,
		"record_id", note.RecordID,
	}
	if len(note.FieldErrors) > 0 {
		fields = append(fields, "field_errors", note.FieldErrors)
	}
	if len(note.Affected) > 0 {
		fields = append(fields, "affected", note.Affected)
	}

	switch note.Level {
	case LevelError:
		n.logger.Errorw(note.Message, fields...)
	case LevelWarning:
		n.logger.Warnw(note.Message, fields...)
	default:
		n.logger.Infow(note.Message, fields...)
	}
}
