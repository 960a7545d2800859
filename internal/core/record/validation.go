package record

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// draft は作成・更新時に検証される項目です。
type draft struct {
	Kind        string `json:"kind" validate:"required,oneof=absence sanction commission position_assignment destination_change position unit"`
	SubjectID   string `json:"subject_id" validate:"omitempty,uuid"`
	Category    string `json:"category" validate:"max=64"`
	Description string `json:"description" validate:"max=2000"`
}

// validateRecord は種別ルールを含めて記録を検証します。
func validateRecord(rec *Record) error {
	fields := make(map[string]string)

	d := draft{
		Kind:        string(rec.Kind),
		Category:    rec.Category,
		Description: rec.Description,
	}
	if rec.SubjectID != nil {
		d.SubjectID = *rec.SubjectID
	}

	if err := validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			fields[fe.Field()] = describe(fe)
		}
	}

	spec, ok := rec.Kind.Spec()
	if ok {
		if spec.RequiresSubject && rec.SubjectID == nil {
			fields["subject_id"] = "is required"
		}
		if spec.Temporal && rec.EffectiveFrom == nil {
			fields["effective_from"] = "is required"
		}
	}

	if err := validatePeriod(rec.EffectiveFrom, rec.EffectiveUntil); err != nil {
		fields["effective_until"] = "must not be before effective_from"
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func validatePeriod(from, until *time.Time) error {
	if from == nil || until == nil {
		return nil
	}
	if until.Before(*from) {
		return ErrInvalidPeriod
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "uuid":
		return "must be a valid UUID"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
