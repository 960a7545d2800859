package workspace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/ogurasousui/personnel-backoffice/internal/core/cache"
	"github.com/ogurasousui/personnel-backoffice/internal/core/projection"
	"github.com/ogurasousui/personnel-backoffice/internal/core/record"
	"github.com/ogurasousui/personnel-backoffice/internal/platform/logger"
	"github.com/ogurasousui/personnel-backoffice/internal/platform/metrics"
)

// Status は変更操作の結果区分です。
type Status string

const (
	StatusSuccess  Status = "success"
	StatusInvalid  Status = "invalid"
	StatusNotFound Status = "not_found"
	StatusConflict Status = "conflict"
	StatusBusy     Status = "busy"
	StatusFailed   Status = "failed"
)

// Outcome は変更操作の結果です。エラーは Notification に変換済みです。
type Outcome struct {
	Status       Status
	Notification Notification
	Record       *record.Record
	DialogClosed bool
	Invalidated  []record.Kind
}

// Dependencies は Controller が利用するコンポーネントです。
type Dependencies struct {
	Records   record.UseCase
	Cache     *cache.Cache
	Projector *projection.Projector
	Notifier  Notifier
	Metrics   *metrics.Metrics
	Logger    *logger.Logger
}

// Controller は 1 リソース分の画面状態と変更操作の境界です。
// 永続化の呼び出し中は Store のロックを保持しません。
type Controller struct {
	kind      record.Kind
	store     *Store
	records   record.UseCase
	cache     *cache.Cache
	projector *projection.Projector
	notifier  Notifier
	metrics   *metrics.Metrics
	logger    *logger.Logger
}

// NewController は Controller を生成します。
func NewController(store *Store, deps Dependencies) *Controller {
	l := deps.Logger
	if l == nil {
		l = logger.NewNop()
	}
	projector := deps.Projector
	if projector == nil {
		projector = projection.New()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = NewLogNotifier(l)
	}
	return &Controller{
		kind:      store.Kind(),
		store:     store,
		records:   deps.Records,
		cache:     deps.Cache,
		projector: projector,
		notifier:  notifier,
		metrics:   deps.Metrics,
		logger:    l.Named("workspace").With("resource", store.Kind()),
	}
}

// Kind はリソース種別を返します。
func (c *Controller) Kind() record.Kind {
	return c.kind
}

// Store は画面状態を返します。
func (c *Controller) Store() *Store {
	return c.store
}

// Open はダイアログを開きます。対象が必要なダイアログでは現在のコレクションから id の記録を選択します。
func (c *Controller) Open(ctx context.Context, d Dialog, id string) error {
	if !d.NeedsSelection() {
		return c.store.Open(d, nil)
	}
	if id == "" {
		return fmt.Errorf("%s: %w", d, ErrSelectionRequired)
	}

	records, err := c.cache.Snapshot(ctx, c.kind)
	if err != nil {
		return err
	}
	rec, ok := lo.Find(records, func(r *record.Record) bool { return r.ID == id })
	if !ok {
		return fmt.Errorf("%s %s: %w", c.kind, id, record.ErrNotFound)
	}
	return c.store.Open(d, rec)
}

// Close はダイアログを閉じます。
func (c *Controller) Close() {
	c.store.Close()
}

// Page は現在の表示条件でコレクションを射影します。補正後のページ番号は Store に反映されます。
func (c *Controller) Page(ctx context.Context) (projection.Page, error) {
	records, err := c.cache.Snapshot(ctx, c.kind)
	if err != nil {
		return projection.Page{}, err
	}

	start := time.Now()
	criteria := c.store.Criteria()
	page := c.projector.Project(records, criteria)
	c.metrics.ObserveProjection(string(c.kind), start)

	if page.Page != criteria.Page {
		c.store.syncPage(page.Page)
	}
	return page, nil
}

// Stats は現在の表示対象に対する集計値を返します。
func (c *Controller) Stats(ctx context.Context) (projection.Stats, error) {
	return c.cache.Stats(ctx, c.kind, c.store.Criteria().ShowDeleted)
}

// SubmitCreate は記録を作成します。種別は Controller のリソースに固定されます。
func (c *Controller) SubmitCreate(ctx context.Context, in record.CreateRecordInput) Outcome {
	in.Kind = c.kind
	return c.mutate(ctx, OperationCreate, newPendingKey, func(ctx context.Context) (*record.Record, []record.CascadeResult, error) {
		res, err := c.records.CreateRecord(ctx, in)
		if err != nil {
			return nil, nil, err
		}
		return res.Record, res.Cascades, nil
	})
}

// SubmitEdit は id の記録を部分更新します。
func (c *Controller) SubmitEdit(ctx context.Context, id string, in record.UpdateRecordInput) Outcome {
	in.ID = id
	return c.mutate(ctx, OperationEdit, id, func(ctx context.Context) (*record.Record, []record.CascadeResult, error) {
		res, err := c.records.UpdateRecord(ctx, in)
		if err != nil {
			return nil, nil, err
		}
		return res.Record, res.Cascades, nil
	})
}

// SubmitDelete は id の記録を論理削除します。
func (c *Controller) SubmitDelete(ctx context.Context, id string) Outcome {
	return c.mutate(ctx, OperationDelete, id, func(ctx context.Context) (*record.Record, []record.CascadeResult, error) {
		rec, err := c.records.DeleteRecord(ctx, record.DeleteRecordInput{ID: id})
		return rec, nil, err
	})
}

// SubmitRestore は id の記録を復元します。
func (c *Controller) SubmitRestore(ctx context.Context, id string) Outcome {
	return c.mutate(ctx, OperationRestore, id, func(ctx context.Context) (*record.Record, []record.CascadeResult, error) {
		res, err := c.records.RestoreRecord(ctx, record.RestoreRecordInput{ID: id})
		if err != nil {
			return nil, nil, err
		}
		return res.Record, res.Cascades, nil
	})
}

type mutation func(ctx context.Context) (*record.Record, []record.CascadeResult, error)

func (c *Controller) mutate(ctx context.Context, op Operation, key string, fn mutation) Outcome {
	epoch, ok := c.store.begin(key)
	if !ok {
		return c.finish(ctx, op, Outcome{
			Status: StatusBusy,
			Notification: Notification{
				Level:    LevelWarning,
				RecordID: recordID(key),
				Message:  fmt.Sprintf("%s %s is already in progress", c.kind, op),
			},
		})
	}
	defer c.store.end(key)

	rec, cascades, err := fn(ctx)
	if err != nil {
		return c.finish(ctx, op, c.failure(op, key, epoch, err))
	}

	out := Outcome{
		Status:       StatusSuccess,
		Record:       rec,
		DialogClosed: c.store.closeIfCurrent(epoch),
		Invalidated:  c.invalidate(cascades),
	}

	var affected []string
	for _, cascade := range cascades {
		affected = append(affected, cascade.AffectedIDs...)
		c.metrics.AddCascadeAffected(string(c.kind), string(cascade.Kind), len(cascade.AffectedIDs))
	}

	message := fmt.Sprintf("%s %s succeeded", c.kind, op)
	if len(affected) > 0 {
		message = fmt.Sprintf("%s; %d related record(s) deactivated", message, len(affected))
	}
	out.Notification = Notification{
		Level:    LevelSuccess,
		RecordID: lo.TernaryF(rec != nil, func() string { return rec.ID }, func() string { return recordID(key) }),
		Message:  message,
		Affected: affected,
	}
	return c.finish(ctx, op, out)
}

// failure はエラーを通知に変換します。検証エラーではダイアログを開いたままにします。
func (c *Controller) failure(op Operation, key string, epoch uint64, err error) Outcome {
	note := Notification{Level: LevelError, RecordID: recordID(key)}

	var ve *record.ValidationError
	switch {
	case errors.As(err, &ve):
		note.Message = "validation failed"
		note.FieldErrors = lo.Assign(ve.Fields)
		return Outcome{Status: StatusInvalid, Notification: note}

	case errors.Is(err, record.ErrInvalidID),
		errors.Is(err, record.ErrInvalidKind),
		errors.Is(err, record.ErrInvalidInput),
		errors.Is(err, record.ErrInvalidPeriod),
		errors.Is(err, record.ErrSubjectMissing):
		note.Message = err.Error()
		return Outcome{Status: StatusInvalid, Notification: note}

	case errors.Is(err, record.ErrNotFound):
		note.Message = fmt.Sprintf("%s no longer exists", c.kind)
		return Outcome{
			Status:       StatusNotFound,
			Notification: note,
			DialogClosed: c.store.closeIfCurrent(epoch),
			Invalidated:  c.invalidate(nil),
		}

	case errors.Is(err, record.ErrConflict):
		note.Message = err.Error()
		return Outcome{
			Status:       StatusConflict,
			Notification: note,
			Invalidated:  c.invalidate(nil),
		}

	default:
		c.logger.Errorw("mutation failed", "operation", op, "record_id", recordID(key), "error", err)
		note.Message = fmt.Sprintf("%s %s failed", c.kind, op)
		return Outcome{Status: StatusFailed, Notification: note}
	}
}

// invalidate は自リソースと依存グラフで到達できるリソース、および連鎖処理の対象を無効化します。
func (c *Controller) invalidate(cascades []record.CascadeResult) []record.Kind {
	kinds := c.cache.InvalidateWithDependents(c.kind)
	extra := lo.Without(lo.Uniq(lo.Map(cascades, func(r record.CascadeResult, _ int) record.Kind { return r.Kind })), kinds...)
	if len(extra) > 0 {
		c.cache.Invalidate(extra...)
		kinds = append(kinds, extra...)
	}
	return kinds
}

func (c *Controller) finish(ctx context.Context, op Operation, out Outcome) Outcome {
	out.Notification.Resource = c.kind
	out.Notification.Operation = op
	c.metrics.ObserveMutation(string(c.kind), string(op), string(out.Status))
	c.notifier.Notify(ctx, out.Notification)
	return out
}

func recordID(key string) string {
	if key == newPendingKey {
		return ""
	}
	return key
}
