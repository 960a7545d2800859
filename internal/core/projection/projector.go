package projection

import (
	"cmp"
	"slices"
	"strings"

	"github.com/ogurasousui/personnel-backoffice/internal/core/record"
	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Direction は並び順です。
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// DefaultPageSize はページサイズ未指定時の件数です。
const DefaultPageSize = 10

// DefaultSearchFields は全文検索の対象項目の既定値です。
var DefaultSearchFields = []Field{FieldSubjectName, FieldDescription, FieldID}

// Sort は並び替え条件です。Field が空の場合は元の順序を維持します。
type Sort struct {
	Field     Field
	Direction Direction
}

// Criteria は一覧の表示条件です。
type Criteria struct {
	ShowDeleted bool
	Query       string
	Filters     map[Field]Constraint
	Sort        Sort
	Page        int
	PageSize    int
}

// Clone は Filters を含めて Criteria を複製します。
func (c Criteria) Clone() Criteria {
	out := c
	if c.Filters != nil {
		out.Filters = make(map[Field]Constraint, len(c.Filters))
		for k, v := range c.Filters {
			out.Filters[k] = v
		}
	}
	return out
}

// Page は射影結果の 1 ページです。
type Page struct {
	Items         []*record.Record
	TotalFiltered int
	TotalPages    int
	Page          int
	PageSize      int
}

// Projector は記録の集合から表示ページを計算します。状態を持たず、入力を変更しません。
type Projector struct {
	locale          language.Tag
	searchFields    []Field
	defaultPageSize int
}

// Option は Projector の設定です。
type Option func(*Projector)

// WithLocale は文字列比較に使うロケールを指定します。
func WithLocale(tag language.Tag) Option {
	return func(p *Projector) {
		p.locale = tag
	}
}

// WithSearchFields は全文検索の対象項目を指定します。
func WithSearchFields(fields ...Field) Option {
	return func(p *Projector) {
		if len(fields) > 0 {
			p.searchFields = append([]Field(nil), fields...)
		}
	}
}

// WithDefaultPageSize はページサイズ未指定時の件数を指定します。
func WithDefaultPageSize(size int) Option {
	return func(p *Projector) {
		if size > 0 {
			p.defaultPageSize = size
		}
	}
}

// New は Projector を生成します。
func New(opts ...Option) *Projector {
	p := &Projector{
		locale:          language.Und,
		searchFields:    DefaultSearchFields,
		defaultPageSize: DefaultPageSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Project は 可視性 → 項目絞り込み → 全文検索 → 並び替え → ページ分割 の順に評価します。
func (p *Projector) Project(records []*record.Record, c Criteria) Page {
	filtered := p.Filter(records, c)
	p.sort(filtered, c.Sort)
	return p.paginate(filtered, c.Page, c.PageSize)
}

// Filter は可視性・項目・全文検索の条件をすべて満たす記録を元の順序で返します。
func (p *Projector) Filter(records []*record.Record, c Criteria) []*record.Record {
	fold := cases.Fold()
	query := fold.String(strings.TrimSpace(c.Query))

	out := make([]*record.Record, 0, len(records))
	for _, rec := range records {
		if rec == nil || rec.Deleted() != c.ShowDeleted {
			continue
		}
		if !matchesFilters(rec, c.Filters, fold) {
			continue
		}
		if query != "" && !p.matchesQuery(rec, query, fold) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func matchesFilters(rec *record.Record, filters map[Field]Constraint, fold cases.Caser) bool {
	for field, constraint := range filters {
		if constraint.Unconstrained() {
			continue
		}
		if _, ok := fieldTypes[field]; !ok {
			return false
		}
		if !constraint.matches(extract(rec, field), fold) {
			return false
		}
	}
	return true
}

func (p *Projector) matchesQuery(rec *record.Record, foldedQuery string, fold cases.Caser) bool {
	for _, field := range p.searchFields {
		if strings.Contains(fold.String(extract(rec, field).text()), foldedQuery) {
			return true
		}
	}
	return false
}

// sort は安定ソートです。値のない記録は並び順に関係なく末尾に置きます。
func (p *Projector) sort(records []*record.Record, s Sort) {
	if s.Field == "" {
		return
	}
	if _, ok := fieldTypes[s.Field]; !ok {
		return
	}

	collator := collate.New(p.locale, collate.IgnoreCase)
	desc := s.Direction == Descending

	slices.SortStableFunc(records, func(a, b *record.Record) int {
		va, vb := extract(a, s.Field), extract(b, s.Field)
		switch {
		case !va.present && !vb.present:
			return 0
		case !va.present:
			return 1
		case !vb.present:
			return -1
		}

		c := compareValues(collator, va, vb)
		if desc {
			return -c
		}
		return c
	})
}

func compareValues(collator *collate.Collator, a, b value) int {
	switch a.typ {
	case typeString:
		return collator.CompareString(a.str, b.str)
	case typeTime:
		return a.t.Compare(b.t)
	case typeBool:
		switch {
		case a.b == b.b:
			return 0
		case !a.b:
			return -1
		default:
			return 1
		}
	case typeNumber:
		return cmp.Compare(a.n, b.n)
	default:
		return 0
	}
}

func (p *Projector) paginate(records []*record.Record, page, size int) Page {
	if size <= 0 {
		size = p.defaultPageSize
	}
	total := len(records)
	totalPages := total / size
	if total%size != 0 {
		totalPages++
	}

	page = ClampPage(page, totalPages)
	start := min((page-1)*size, total)
	end := min(start+size, total)

	return Page{
		Items:         records[start:end],
		TotalFiltered: total,
		TotalPages:    totalPages,
		Page:          page,
		PageSize:      size,
	}
}

// ClampPage はページ番号を [1, totalPages] に収めます。totalPages が 0 の場合は 1 です。
func ClampPage(page, totalPages int) int {
	if page > totalPages {
		page = totalPages
	}
	if page < 1 {
		page = 1
	}
	return page
}
