package handler

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ogurasousui/personnel-backoffice/internal/core/person"
	"github.com/ogurasousui/personnel-backoffice/internal/core/projection"
	"github.com/ogurasousui/personnel-backoffice/internal/core/record"
	"github.com/ogurasousui/personnel-backoffice/internal/core/workspace"
)

// BackofficeHandler は BackofficeService の gRPC 実装です。
// 業務ルールは持たず、リクエストを workspace と person の操作に変換します。
type BackofficeHandler struct {
	sessions *workspace.Manager
	persons  person.UseCase
}

var _ BackofficeServer = (*BackofficeHandler)(nil)

// NewBackofficeHandler は BackofficeHandler を生成します。
func NewBackofficeHandler(sessions *workspace.Manager, persons person.UseCase) *BackofficeHandler {
	return &BackofficeHandler{sessions: sessions, persons: persons}
}

// OpenSession は画面セッションを開始します。
func (h *BackofficeHandler) OpenSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	s := h.sessions.Open()
	return respond(map[string]any{
		"session_id": s.ID,
		"created_at": formatTimestamp(&s.CreatedAt),
	})
}

// CloseSession は画面セッションを破棄します。
func (h *BackofficeHandler) CloseSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	id, err := newFields(req).requiredString("session_id")
	if err != nil {
		return nil, toStatusError(err)
	}
	if err := h.sessions.Close(id); err != nil {
		return nil, toStatusError(err)
	}
	return respond(map[string]any{})
}

// OpenDialog はダイアログを開きます。
func (h *BackofficeHandler) OpenDialog(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	c, f, err := h.controller(req)
	if err != nil {
		return nil, toStatusError(err)
	}

	rawDialog, err := f.string("dialog")
	if err != nil {
		return nil, toStatusError(err)
	}
	dialog, err := workspace.ParseDialog(rawDialog)
	if err != nil {
		return nil, toStatusError(err)
	}
	id, err := f.string("record_id")
	if err != nil {
		return nil, toStatusError(err)
	}

	if err := c.Open(ctx, dialog, id); err != nil {
		return nil, toStatusError(err)
	}
	return respond(map[string]any{"state": encodeState(c.Store().State())})
}

// CloseDialog はダイアログを閉じます。
func (h *BackofficeHandler) CloseDialog(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	c, _, err := h.controller(req)
	if err != nil {
		return nil, toStatusError(err)
	}

	c.Close()
	return respond(map[string]any{"state": encodeState(c.Store().State())})
}

// UpdateCriteria は一覧の表示条件を変更します。指定された項目のみ反映します。
func (h *BackofficeHandler) UpdateCriteria(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	c, f, err := h.controller(req)
	if err != nil {
		return nil, toStatusError(err)
	}

	changes, err := decodeCriteriaChanges(f)
	if err != nil {
		return nil, toStatusError(err)
	}

	store := c.Store()
	for _, apply := range changes {
		apply(store)
	}
	return respond(map[string]any{"state": encodeState(store.State())})
}

// ListRecords は現在の表示条件で一覧を返します。
func (h *BackofficeHandler) ListRecords(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	c, _, err := h.controller(req)
	if err != nil {
		return nil, toStatusError(err)
	}

	page, err := c.Page(ctx)
	if err != nil {
		return nil, toStatusError(err)
	}
	return respond(encodePage(page))
}

// GetStats は現在の表示対象の集計値を返します。
func (h *BackofficeHandler) GetStats(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	c, _, err := h.controller(req)
	if err != nil {
		return nil, toStatusError(err)
	}

	stats, err := c.Stats(ctx)
	if err != nil {
		return nil, toStatusError(err)
	}
	return respond(encodeStats(stats))
}

// SubmitCreate は記録を作成します。
func (h *BackofficeHandler) SubmitCreate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	c, f, err := h.controller(req)
	if err != nil {
		return nil, toStatusError(err)
	}

	body, _, err := f.object("record")
	if err != nil {
		return nil, toStatusError(err)
	}
	in, err := decodeCreateInput(body)
	if err != nil {
		return nil, toStatusError(err)
	}

	return respond(encodeOutcome(c.SubmitCreate(ctx, in)))
}

// SubmitEdit は記録を部分更新します。record に含まれない項目は変更しません。
func (h *BackofficeHandler) SubmitEdit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	c, f, err := h.controller(req)
	if err != nil {
		return nil, toStatusError(err)
	}

	id, err := f.requiredString("record_id")
	if err != nil {
		return nil, toStatusError(err)
	}
	body, _, err := f.object("record")
	if err != nil {
		return nil, toStatusError(err)
	}
	in, err := decodeUpdateInput(body)
	if err != nil {
		return nil, toStatusError(err)
	}

	return respond(encodeOutcome(c.SubmitEdit(ctx, id, in)))
}

// SubmitDelete は記録を論理削除します。
func (h *BackofficeHandler) SubmitDelete(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	c, f, err := h.controller(req)
	if err != nil {
		return nil, toStatusError(err)
	}

	id, err := f.requiredString("record_id")
	if err != nil {
		return nil, toStatusError(err)
	}
	return respond(encodeOutcome(c.SubmitDelete(ctx, id)))
}

// SubmitRestore は論理削除された記録を復元します。
func (h *BackofficeHandler) SubmitRestore(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	c, f, err := h.controller(req)
	if err != nil {
		return nil, toStatusError(err)
	}

	id, err := f.requiredString("record_id")
	if err != nil {
		return nil, toStatusError(err)
	}
	return respond(encodeOutcome(c.SubmitRestore(ctx, id)))
}

// CreatePerson は職員を登録します。
func (h *BackofficeHandler) CreatePerson(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	f := newFields(req)
	var in person.CreatePersonInput
	var err error
	if in.FileNumber, err = f.string("file_number"); err != nil {
		return nil, toStatusError(err)
	}
	if in.Name, err = f.string("name"); err != nil {
		return nil, toStatusError(err)
	}
	if in.Email, err = f.string("email"); err != nil {
		return nil, toStatusError(err)
	}

	created, err := h.persons.CreatePerson(ctx, in)
	if err != nil {
		return nil, toStatusError(err)
	}
	return respond(map[string]any{"person": encodePerson(created)})
}

// ListPersons は職員の一覧を返します。
func (h *BackofficeHandler) ListPersons(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	f := newFields(req)
	var in person.ListPersonsInput
	var err error
	if in.PageSize, _, err = f.int("page_size"); err != nil {
		return nil, toStatusError(err)
	}
	if in.PageToken, err = f.string("page_token"); err != nil {
		return nil, toStatusError(err)
	}
	if in.Query, err = f.string("query"); err != nil {
		return nil, toStatusError(err)
	}
	rawStatus, err := f.string("status")
	if err != nil {
		return nil, toStatusError(err)
	}
	if rawStatus != "" {
		st := person.Status(strings.ToLower(rawStatus))
		in.Status = &st
	}

	result, err := h.persons.ListPersons(ctx, in)
	if err != nil {
		return nil, toStatusError(err)
	}

	persons := make([]any, 0, len(result.Persons))
	for _, p := range result.Persons {
		persons = append(persons, encodePerson(p))
	}
	return respond(map[string]any{
		"persons":         persons,
		"next_page_token": result.NextPageToken,
	})
}

func (h *BackofficeHandler) controller(req *structpb.Struct) (*workspace.Controller, fields, error) {
	if req == nil {
		return nil, fields{}, fmt.Errorf("%w: request is required", errInvalidRequest)
	}

	f := newFields(req)
	id, err := f.requiredString("session_id")
	if err != nil {
		return nil, fields{}, err
	}
	kind, err := f.kind()
	if err != nil {
		return nil, fields{}, err
	}
	c, err := h.sessions.Controller(id, kind)
	if err != nil {
		return nil, fields{}, err
	}
	return c, f, nil
}

func respond(m map[string]any) (*structpb.Struct, error) {
	s, err := toStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return s, nil
}

type criteriaChange func(*workspace.Store)

// decodeCriteriaChanges は表示条件の変更を検証し、適用順に返します。
// 検証に失敗した場合は何も適用しません。
func decodeCriteriaChanges(f fields) ([]criteriaChange, error) {
	var changes []criteriaChange

	if f.has("query") {
		q, err := f.string("query")
		if err != nil {
			return nil, err
		}
		changes = append(changes, func(s *workspace.Store) { s.SetQuery(q) })
	}

	reset, err := f.bool("clear_filters")
	if err != nil {
		return nil, err
	}
	if reset != nil && *reset {
		changes = append(changes, func(s *workspace.Store) { s.ClearFilters() })
	}

	filters, ok, err := f.object("filters")
	if err != nil {
		return nil, err
	}
	if ok {
		for key, v := range filters.m {
			field, err := projection.ParseField(key)
			if err != nil {
				return nil, err
			}
			c, err := constraint(key, v)
			if err != nil {
				return nil, err
			}
			changes = append(changes, func(s *workspace.Store) { s.SetFilter(field, c) })
		}
	}

	if f.has("sort") {
		sort, err := decodeSort(f)
		if err != nil {
			return nil, err
		}
		changes = append(changes, func(s *workspace.Store) { s.SetSort(sort) })
	}

	showDeleted, err := f.bool("show_deleted")
	if err != nil {
		return nil, err
	}
	if showDeleted != nil {
		v := *showDeleted
		changes = append(changes, func(s *workspace.Store) { s.SetShowDeleted(v) })
	}

	size, ok, err := f.int("page_size")
	if err != nil {
		return nil, err
	}
	if ok {
		changes = append(changes, func(s *workspace.Store) { s.SetPageSize(size) })
	}

	// ページ番号は他の条件によるリセットの後に適用します。
	page, ok, err := f.int("page")
	if err != nil {
		return nil, err
	}
	if ok {
		changes = append(changes, func(s *workspace.Store) { s.SetPage(page) })
	}

	return changes, nil
}

func decodeSort(f fields) (projection.Sort, error) {
	if f.isNull("sort") {
		return projection.Sort{}, nil
	}
	body, _, err := f.object("sort")
	if err != nil {
		return projection.Sort{}, err
	}
	rawField, err := body.string("field")
	if err != nil {
		return projection.Sort{}, err
	}
	if strings.TrimSpace(rawField) == "" {
		return projection.Sort{}, nil
	}
	field, err := projection.ParseField(rawField)
	if err != nil {
		return projection.Sort{}, err
	}
	direction, err := body.string("direction")
	if err != nil {
		return projection.Sort{}, err
	}
	return projection.Sort{Field: field, Direction: projection.Direction(strings.ToLower(direction))}, nil
}

func decodeCreateInput(body fields) (record.CreateRecordInput, error) {
	var in record.CreateRecordInput
	var err error

	if in.SubjectID, err = body.optionalString("subject_id"); err != nil {
		return in, err
	}
	if in.Category, err = body.string("category"); err != nil {
		return in, err
	}
	if in.Description, err = body.string("description"); err != nil {
		return in, err
	}
	if in.EffectiveFrom, err = body.date("effective_from"); err != nil {
		return in, err
	}
	if in.EffectiveUntil, err = body.date("effective_until"); err != nil {
		return in, err
	}
	if in.Approved, err = body.bool("approved"); err != nil {
		return in, err
	}
	return in, nil
}

// decodeUpdateInput は存在するキーのみを更新対象にします。
// 日付と承認は null で値を消去できます。
func decodeUpdateInput(body fields) (record.UpdateRecordInput, error) {
	var in record.UpdateRecordInput
	var err error

	if in.SubjectID, err = body.optionalString("subject_id"); err != nil {
		return in, err
	}
	if in.Category, err = body.optionalString("category"); err != nil {
		return in, err
	}
	if in.Description, err = body.optionalString("description"); err != nil {
		return in, err
	}
	if body.has("effective_from") {
		in.EffectiveFromSet = true
		if in.EffectiveFrom, err = body.date("effective_from"); err != nil {
			return in, err
		}
	}
	if body.has("effective_until") {
		in.EffectiveUntilSet = true
		if in.EffectiveUntil, err = body.date("effective_until"); err != nil {
			return in, err
		}
	}
	if body.has("approved") {
		in.ApprovedSet = true
		if in.Approved, err = body.bool("approved"); err != nil {
			return in, err
		}
	}
	return in, nil
}
