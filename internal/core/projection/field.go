package projection

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ogurasousui/personnel-backoffice/internal/core/record"
)

// Field は一覧で絞り込み・検索・並び替えに使える射影項目です。
type Field string

const (
	FieldID             Field = "id"
	FieldSubjectID      Field = "subject_id"
	FieldSubjectName    Field = "subject_name"
	FieldCategory       Field = "category"
	FieldDescription    Field = "description"
	FieldEffectiveFrom  Field = "effective_from"
	FieldEffectiveUntil Field = "effective_until"
	FieldApproved       Field = "approved"
	FieldActive         Field = "active"
	FieldCreatedAt      Field = "created_at"
	FieldDeletedAt      Field = "deleted_at"
	FieldDurationDays   Field = "duration_days"
)

// ErrUnknownField は未知の項目名が指定された場合に返却されます。
var ErrUnknownField = errors.New("projection: unknown field")

type fieldType int

const (
	typeString fieldType = iota
	typeTime
	typeBool
	typeNumber
)

var fieldTypes = map[Field]fieldType{
	FieldID:             typeString,
	FieldSubjectID:      typeString,
	FieldSubjectName:    typeString,
	FieldCategory:       typeString,
	FieldDescription:    typeString,
	FieldEffectiveFrom:  typeTime,
	FieldEffectiveUntil: typeTime,
	FieldApproved:       typeBool,
	FieldActive:         typeBool,
	FieldCreatedAt:      typeTime,
	FieldDeletedAt:      typeTime,
	FieldDurationDays:   typeNumber,
}

// ParseField は項目名を Field に変換します。
func ParseField(raw string) (Field, error) {
	f := Field(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := fieldTypes[f]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownField, raw)
	}
	return f, nil
}

// value は記録から取り出した型付きの値です。present が false の場合は値なしです。
type value struct {
	typ     fieldType
	present bool
	str     string
	t       time.Time
	b       bool
	n       float64
}

func extract(rec *record.Record, f Field) value {
	switch f {
	case FieldID:
		return stringValue(rec.ID)
	case FieldSubjectID:
		if rec.SubjectID == nil {
			return value{typ: typeString}
		}
		return stringValue(*rec.SubjectID)
	case FieldSubjectName:
		return stringValue(rec.SubjectName)
	case FieldCategory:
		return stringValue(rec.Category)
	case FieldDescription:
		return stringValue(rec.Description)
	case FieldEffectiveFrom:
		return timeValue(rec.EffectiveFrom)
	case FieldEffectiveUntil:
		return timeValue(rec.EffectiveUntil)
	case FieldApproved:
		if rec.Approved == nil {
			return value{typ: typeBool}
		}
		return value{typ: typeBool, present: true, b: *rec.Approved}
	case FieldActive:
		return value{typ: typeBool, present: true, b: rec.Active}
	case FieldCreatedAt:
		return timeValue(&rec.CreatedAt)
	case FieldDeletedAt:
		return timeValue(rec.DeletedAt)
	case FieldDurationDays:
		days, ok := record.DurationDays(rec.EffectiveFrom, rec.EffectiveUntil)
		return value{typ: typeNumber, present: ok, n: float64(days)}
	default:
		return value{}
	}
}

func stringValue(s string) value {
	return value{typ: typeString, present: true, str: s}
}

func timeValue(t *time.Time) value {
	// ゼロ値の日付は不正な値として扱います。
	if t == nil || t.IsZero() {
		return value{typ: typeTime}
	}
	return value{typ: typeTime, present: true, t: *t}
}

// text は全文検索用の文字列表現を返します。
func (v value) text() string {
	if !v.present {
		return ""
	}
	switch v.typ {
	case typeString:
		return v.str
	case typeTime:
		return v.t.UTC().Format(dateLayout)
	case typeBool:
		return strconv.FormatBool(v.b)
	case typeNumber:
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	default:
		return ""
	}
}

const dateLayout = "2006-01-02"

func parseDate(raw string) (time.Time, bool) {
	trimmed := strings.TrimSpace(raw)
	if t, err := time.ParseInLocation(dateLayout, trimmed, time.UTC); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func sameDay(a, b time.Time) bool {
	ua, ub := a.UTC(), b.UTC()
	return ua.Year() == ub.Year() && ua.YearDay() == ub.YearDay()
}
