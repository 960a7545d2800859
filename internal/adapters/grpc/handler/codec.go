package handler

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ogurasousui/personnel-backoffice/internal/core/person"
	"github.com/ogurasousui/personnel-backoffice/internal/core/projection"
	"github.com/ogurasousui/personnel-backoffice/internal/core/record"
	"github.com/ogurasousui/personnel-backoffice/internal/core/workspace"
)

const dateLayout = "2006-01-02"

// errInvalidRequest はリクエスト本文の形式が不正な場合に返却されます。
var errInvalidRequest = errors.New("handler: invalid request")

func invalidField(key, format string, args ...any) error {
	return fmt.Errorf("%w: %s %s", errInvalidRequest, key, fmt.Sprintf(format, args...))
}

// fields は google.protobuf.Struct の読み取りヘルパーです。
// キーが存在しない場合はゼロ値、型が合わない場合は errInvalidRequest を返します。
type fields struct {
	m map[string]*structpb.Value
}

func newFields(s *structpb.Struct) fields {
	if s == nil {
		return fields{}
	}
	return fields{m: s.GetFields()}
}

func (f fields) has(key string) bool {
	_, ok := f.m[key]
	return ok
}

func (f fields) isNull(key string) bool {
	v, ok := f.m[key]
	if !ok {
		return false
	}
	_, null := v.GetKind().(*structpb.Value_NullValue)
	return null
}

func (f fields) string(key string) (string, error) {
	v, ok := f.m[key]
	if !ok || f.isNull(key) {
		return "", nil
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", invalidField(key, "must be a string")
	}
	return s.StringValue, nil
}

func (f fields) requiredString(key string) (string, error) {
	s, err := f.string(key)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(s) == "" {
		return "", invalidField(key, "is required")
	}
	return s, nil
}

// optionalString は値が指定されていれば非 nil を返します。null も nil です。
func (f fields) optionalString(key string) (*string, error) {
	if !f.has(key) || f.isNull(key) {
		return nil, nil
	}
	s, err := f.string(key)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (f fields) bool(key string) (*bool, error) {
	v, ok := f.m[key]
	if !ok || f.isNull(key) {
		return nil, nil
	}
	b, ok := v.GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return nil, invalidField(key, "must be a boolean")
	}
	return lo.ToPtr(b.BoolValue), nil
}

func (f fields) int(key string) (int, bool, error) {
	v, ok := f.m[key]
	if !ok || f.isNull(key) {
		return 0, false, nil
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue != math.Trunc(n.NumberValue) {
		return 0, false, invalidField(key, "must be an integer")
	}
	return int(n.NumberValue), true, nil
}

func (f fields) date(key string) (*time.Time, error) {
	s, err := f.optionalString(key)
	if err != nil || s == nil {
		return nil, err
	}
	raw := strings.TrimSpace(*s)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.ParseInLocation(dateLayout, raw, time.UTC); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, invalidField(key, "must be a date (YYYY-MM-DD)")
	}
	return &t, nil
}

func (f fields) object(key string) (fields, bool, error) {
	v, ok := f.m[key]
	if !ok || f.isNull(key) {
		return fields{}, false, nil
	}
	s, ok := v.GetKind().(*structpb.Value_StructValue)
	if !ok {
		return fields{}, false, invalidField(key, "must be an object")
	}
	return newFields(s.StructValue), true, nil
}

func (f fields) kind() (record.Kind, error) {
	raw, err := f.requiredString("resource")
	if err != nil {
		return "", err
	}
	k := record.Kind(strings.ToLower(strings.TrimSpace(raw)))
	if !k.Valid() {
		return "", fmt.Errorf("resource %q: %w", raw, record.ErrInvalidKind)
	}
	return k, nil
}

// constraint は filters の 1 項目を Constraint に変換します。
// null は制約なし、配列は OneOf、それ以外は Equals です。
func constraint(key string, v *structpb.Value) (projection.Constraint, error) {
	switch kind := v.GetKind().(type) {
	case *structpb.Value_NullValue:
		return projection.NoConstraint(), nil
	case *structpb.Value_ListValue:
		values := make([]string, 0, len(kind.ListValue.GetValues()))
		for _, item := range kind.ListValue.GetValues() {
			s, ok := scalarString(item)
			if !ok {
				return projection.Constraint{}, invalidField("filters."+key, "must contain scalar values")
			}
			values = append(values, s)
		}
		return projection.OneOf(values...), nil
	default:
		s, ok := scalarString(v)
		if !ok {
			return projection.Constraint{}, invalidField("filters."+key, "must be a scalar, a list or null")
		}
		return projection.Equals(s), nil
	}
}

func scalarString(v *structpb.Value) (string, bool) {
	switch kind := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return kind.StringValue, true
	case *structpb.Value_BoolValue:
		return strconv.FormatBool(kind.BoolValue), true
	case *structpb.Value_NumberValue:
		return strconv.FormatFloat(kind.NumberValue, 'f', -1, 64), true
	default:
		return "", false
	}
}

// toStruct は map を google.protobuf.Struct に変換します。
func toStruct(m map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("handler: encode response: %w", err)
	}
	return s, nil
}

func formatDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(dateLayout)
}

func formatTimestamp(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func stringList[T ~string](values []T) []any {
	return lo.Map(values, func(v T, _ int) any { return string(v) })
}

func encodeRecord(rec *record.Record) any {
	if rec == nil {
		return nil
	}
	m := map[string]any{
		"id":              rec.ID,
		"kind":            string(rec.Kind),
		"subject_id":      nil,
		"subject_name":    rec.SubjectName,
		"category":        rec.Category,
		"description":     rec.Description,
		"effective_from":  formatDate(rec.EffectiveFrom),
		"effective_until": formatDate(rec.EffectiveUntil),
		"approved":        nil,
		"active":          rec.Active,
		"deactivated_at":  formatTimestamp(rec.DeactivatedAt),
		"deleted_at":      formatTimestamp(rec.DeletedAt),
		"created_at":      formatTimestamp(&rec.CreatedAt),
		"updated_at":      formatTimestamp(&rec.UpdatedAt),
	}
	if rec.SubjectID != nil {
		m["subject_id"] = *rec.SubjectID
	}
	if rec.Approved != nil {
		m["approved"] = *rec.Approved
	}
	if days, ok := record.DurationDays(rec.EffectiveFrom, rec.EffectiveUntil); ok {
		m["duration_days"] = days
	}
	return m
}

func encodeRecords(records []*record.Record) []any {
	return lo.Map(records, func(r *record.Record, _ int) any { return encodeRecord(r) })
}

func encodeCriteria(c projection.Criteria) map[string]any {
	filters := make(map[string]any, len(c.Filters))
	for field, constraint := range c.Filters {
		filters[string(field)] = stringList(constraint.Values())
	}
	return map[string]any{
		"query":        c.Query,
		"show_deleted": c.ShowDeleted,
		"filters":      filters,
		"sort": map[string]any{
			"field":     string(c.Sort.Field),
			"direction": string(c.Sort.Direction),
		},
		"page":      c.Page,
		"page_size": c.PageSize,
	}
}

func encodeState(s workspace.State) map[string]any {
	return map[string]any{
		"resource": string(s.Kind),
		"dialog":   string(s.Dialog),
		"selected": encodeRecord(s.Selected),
		"criteria": encodeCriteria(s.Criteria),
		"pending":  stringList(s.Pending),
		"epoch":    s.Epoch,
	}
}

func encodePage(p projection.Page) map[string]any {
	return map[string]any{
		"items":          encodeRecords(p.Items),
		"total_filtered": p.TotalFiltered,
		"total_pages":    p.TotalPages,
		"page":           p.Page,
		"page_size":      p.PageSize,
	}
}

func encodeStats(s projection.Stats) map[string]any {
	byCategory := make(map[string]any, len(s.ByCategory))
	for k, v := range s.ByCategory {
		byCategory[k] = v
	}
	byStatus := make(map[string]any, len(s.ByStatus))
	for k, v := range s.ByStatus {
		byStatus[string(k)] = v
	}
	return map[string]any{
		"total":       s.Total,
		"active":      s.Active,
		"inactive":    s.Inactive,
		"by_category": byCategory,
		"by_status":   byStatus,
	}
}

func encodeOutcome(o workspace.Outcome) map[string]any {
	fieldErrors := make(map[string]any, len(o.Notification.FieldErrors))
	for k, v := range o.Notification.FieldErrors {
		fieldErrors[k] = v
	}
	return map[string]any{
		"status":        string(o.Status),
		"dialog_closed": o.DialogClosed,
		"invalidated":   stringList(o.Invalidated),
		"record":        encodeRecord(o.Record),
		"notification": map[string]any{
			"level":        string(o.Notification.Level),
			"resource":     string(o.Notification.Resource),
			"operation":    string(o.Notification.Operation),
			"record_id":    o.Notification.RecordID,
			"message":      o.Notification.Message,
			"field_errors": fieldErrors,
			"affected":     stringList(o.Notification.Affected),
		},
	}
}

func encodePerson(p *person.Person) map[string]any {
	return map[string]any{
		"id":          p.ID,
		"file_number": p.FileNumber,
		"name":        p.Name,
		"email":       p.Email,
		"status":      string(p.Status),
		"created_at":  formatTimestamp(&p.CreatedAt),
		"updated_at":  formatTimestamp(&p.UpdatedAt),
	}
}
