package core

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"glucogate/internal/types"
)

// Validator wraps go-playground/validator with the domain tags used by the
// handler groups and converts failures into 400 AppErrors.
type Validator struct {
	v *validator.Validate
}

// NewValidator creates a Validator that reports JSON field names and registers
// the custom tags:
//   - notfuture: a time.Time that is not after now (plus a small skew).
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("notfuture", validateNotFuture)
	return &Validator{v: v}
}

// clockSkew tolerates client clocks slightly ahead of the server.
const clockSkew = 5 * time.Minute

func validateNotFuture(fl validator.FieldLevel) bool {
	t, ok := fl.Field().Interface().(time.Time)
	if !ok {
		return false
	}
	return !t.After(time.Now().Add(clockSkew))
}

// ValidateStruct validates s and returns a *types.AppError listing every
// failing field, or nil.
func (v *Validator) ValidateStruct(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return types.NewAppError(types.ErrCodeValidationInvalidValue, "invalid request", err)
	}

	fields := make(map[string]any, len(verrs))
	code := types.ErrCodeValidationInvalidValue
	for _, fe := range verrs {
		fields[fe.Field()] = describe(fe)
		if fe.Tag() == "required" {
			code = types.ErrCodeValidationMissingField
		}
	}

	first := verrs[0]
	return types.NewAppErrorWithDetails(
		code,
		first.Field()+" "+describe(first),
		err,
		map[string]any{"fields": fields},
	)
}

// describe renders one field error as a short client-facing phrase.
func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "uuid", "uuid4":
		return "must be a valid UUID"
	case "notfuture":
		return "must not be in the future"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
