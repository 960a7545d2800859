package workspace

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/ogurasousui/personnel-backoffice/internal/core/projection"
	"github.com/ogurasousui/personnel-backoffice/internal/core/record"
)

// Dialog は画面で開いているダイアログの種別です。
type Dialog string

const (
	DialogNone    Dialog = "none"
	DialogCreate  Dialog = "create"
	DialogEdit    Dialog = "edit"
	DialogDelete  Dialog = "delete"
	DialogRestore Dialog = "restore"
	DialogView    Dialog = "view"
)

// ParseDialog はダイアログ名を解釈します。空文字は DialogNone です。
func ParseDialog(raw string) (Dialog, error) {
	d := Dialog(strings.ToLower(strings.TrimSpace(raw)))
	switch d {
	case "":
		return DialogNone, nil
	case DialogNone, DialogCreate, DialogEdit, DialogDelete, DialogRestore, DialogView:
		return d, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDialog, raw)
	}
}

// NeedsSelection は対象の記録が必要なダイアログかどうかを返します。
func (d Dialog) NeedsSelection() bool {
	switch d {
	case DialogEdit, DialogDelete, DialogRestore, DialogView:
		return true
	default:
		return false
	}
}

// newPendingKey は作成中の記録を表す保留キーです。
const newPendingKey = "new"

// State は Store の読み取り専用のスナップショットです。
type State struct {
	Kind     record.Kind
	Dialog   Dialog
	Selected *record.Record
	Criteria projection.Criteria
	Pending  []string
	Epoch    uint64
}

// Store はリソースごとの画面状態です。すべての遷移は名前付きメソッドで行います。
type Store struct {
	mu sync.Mutex

	kind            record.Kind
	dialog          Dialog
	selected        *record.Record
	criteria        projection.Criteria
	pending         map[string]struct{}
	epoch           uint64
	defaultPageSize int
	maxPageSize     int
}

// NewStore は Store を生成します。
func NewStore(kind record.Kind, defaultPageSize, maxPageSize int) *Store {
	if defaultPageSize <= 0 {
		defaultPageSize = projection.DefaultPageSize
	}
	if maxPageSize < defaultPageSize {
		maxPageSize = defaultPageSize
	}
	return &Store{
		kind:            kind,
		dialog:          DialogNone,
		criteria:        projection.Criteria{Page: 1, PageSize: defaultPageSize},
		pending:         make(map[string]struct{}),
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
	}
}

// Kind はリソース種別を返します。
func (s *Store) Kind() record.Kind {
	return s.kind
}

// State は現在の状態の複製を返します。
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := make([]string, 0, len(s.pending))
	for id := range s.pending {
		pending = append(pending, id)
	}
	slices.Sort(pending)

	return State{
		Kind:     s.kind,
		Dialog:   s.dialog,
		Selected: s.selected.Clone(),
		Criteria: s.criteria.Clone(),
		Pending:  pending,
		Epoch:    s.epoch,
	}
}

// Open はダイアログを開き、対象の記録を選択します。DialogNone は Close と同じです。
func (s *Store) Open(d Dialog, rec *record.Record) error {
	if d == DialogNone {
		s.Close()
		return nil
	}
	if d.NeedsSelection() && rec == nil {
		return fmt.Errorf("%s: %w", d, ErrSelectionRequired)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.dialog = d
	s.selected = nil
	if d != DialogCreate {
		s.selected = rec.Clone()
	}
	s.epoch++
	return nil
}

// Close はダイアログを閉じ、選択を解除します。
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *Store) closeLocked() {
	s.dialog = DialogNone
	s.selected = nil
	s.epoch++
}

// Criteria は現在の表示条件の複製を返します。
func (s *Store) Criteria() projection.Criteria {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.criteria.Clone()
}

// SetQuery は検索語を設定し、1 ページ目に戻します。
func (s *Store) SetQuery(q string) {
	s.update(func(c *projection.Criteria) {
		c.Query = q
		c.Page = 1
	})
}

// SetFilter は項目の絞り込み条件を設定し、1 ページ目に戻します。
func (s *Store) SetFilter(f projection.Field, constraint projection.Constraint) {
	s.update(func(c *projection.Criteria) {
		if constraint.Unconstrained() {
			delete(c.Filters, f)
		} else {
			if c.Filters == nil {
				c.Filters = make(map[projection.Field]projection.Constraint)
			}
			c.Filters[f] = constraint
		}
		c.Page = 1
	})
}

// ClearFilter は項目の絞り込み条件を解除し、1 ページ目に戻します。
func (s *Store) ClearFilter(f projection.Field) {
	s.SetFilter(f, projection.NoConstraint())
}

// ClearFilters はすべての絞り込み条件を解除し、1 ページ目に戻します。
func (s *Store) ClearFilters() {
	s.update(func(c *projection.Criteria) {
		c.Filters = nil
		c.Page = 1
	})
}

// SetSort は並び替え条件を設定し、1 ページ目に戻します。
func (s *Store) SetSort(sort projection.Sort) {
	s.update(func(c *projection.Criteria) {
		if sort.Direction != projection.Descending {
			sort.Direction = projection.Ascending
		}
		c.Sort = sort
		c.Page = 1
	})
}

// SetShowDeleted は削除済みの表示を切り替え、1 ページ目に戻します。
func (s *Store) SetShowDeleted(show bool) {
	s.update(func(c *projection.Criteria) {
		c.ShowDeleted = show
		c.Page = 1
	})
}

// SetPage はページ番号を設定します。範囲外の値は次の射影で補正されます。
func (s *Store) SetPage(page int) {
	s.update(func(c *projection.Criteria) {
		c.Page = max(page, 1)
	})
}

// SetPageSize はページサイズを設定します。0 以下は既定値、上限を超える値は上限になります。
func (s *Store) SetPageSize(size int) {
	s.update(func(c *projection.Criteria) {
		switch {
		case size <= 0:
			c.PageSize = s.defaultPageSize
		case size > s.maxPageSize:
			c.PageSize = s.maxPageSize
		default:
			c.PageSize = size
		}
	})
}

func (s *Store) update(fn func(*projection.Criteria)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.criteria)
}

// syncPage は射影で補正されたページ番号を反映します。
func (s *Store) syncPage(page int) {
	s.update(func(c *projection.Criteria) {
		c.Page = page
	})
}

// begin は変更処理の開始を記録します。同じキーが処理中の場合は false を返します。
func (s *Store) begin(key string) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.pending[key]; busy {
		return 0, false
	}
	s.pending[key] = struct{}{}
	return s.epoch, true
}

func (s *Store) end(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, key)
}

// closeIfCurrent は epoch 以降にダイアログ操作がなければダイアログを閉じます。
func (s *Store) closeIfCurrent(epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return false
	}
	s.closeLocked()
	return true
}

// IsPending は key の変更処理が進行中かどうかを返します。
func (s *Store) IsPending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[key]
	return ok
}
