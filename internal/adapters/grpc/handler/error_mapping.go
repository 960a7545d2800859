package handler

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ogurasousui/personnel-backoffice/internal/core/person"
	"github.com/ogurasousui/personnel-backoffice/internal/core/projection"
	"github.com/ogurasousui/personnel-backoffice/internal/core/record"
	"github.com/ogurasousui/personnel-backoffice/internal/core/workspace"
)

func toStatusError(err error) error {
	var verr *record.ValidationError

	switch {
	case err == nil:
		return nil
	case errors.As(err, &verr),
		errors.Is(err, errInvalidRequest),
		errors.Is(err, record.ErrInvalidID),
		errors.Is(err, record.ErrInvalidKind),
		errors.Is(err, record.ErrInvalidInput),
		errors.Is(err, record.ErrInvalidPeriod),
		errors.Is(err, projection.ErrUnknownField),
		errors.Is(err, workspace.ErrInvalidDialog),
		errors.Is(err, workspace.ErrSelectionRequired),
		errors.Is(err, person.ErrInvalidFileNumber),
		errors.Is(err, person.ErrInvalidEmail),
		errors.Is(err, person.ErrInvalidName),
		errors.Is(err, person.ErrInvalidStatus),
		errors.Is(err, person.ErrInvalidID),
		errors.Is(err, person.ErrInvalidPageSize),
		errors.Is(err, person.ErrInvalidPageToken):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, person.ErrFileNumberAlreadyExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, workspace.ErrSessionNotFound),
		errors.Is(err, record.ErrNotFound),
		errors.Is(err, person.ErrPersonNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, record.ErrConflict),
		errors.Is(err, record.ErrSubjectMissing):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
