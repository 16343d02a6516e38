package validation

import (
	stderrors "errors"
	"reflect"
	"strings"

	errors "github.com/frahmantamala/fitness-content/internal"
	"github.com/go-playground/validator/v10"
)

// Validator wraps go-playground/validator and reports failures as JSON:API field errors
// keyed by json names.
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("pathsegment", pathSegment)
	return &Validator{v: v}
}

var std = New()

// Attributes validates a resource document's attributes; pointers read /data/attributes/<field>.
func Attributes(s any) error {
	return std.Check(s, "/data/attributes/")
}

// Body validates a plain JSON body; pointers read /<field>.
func Body(s any) error {
	return std.Check(s, "/")
}

// Check validates s and returns a 422 AppError listing every failing field.
func (v *Validator) Check(s any, pointerPrefix string) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !stderrors.As(err, &ve) {
		return errors.NewInternalError("validation failed", err)
	}

	out := make([]errors.ValidationError, 0, len(ve))
	for _, fe := range ve {
		msg, args := message(fe)
		out = append(out, errors.ValidationError{
			Field:   fe.Field(),
			Message: msg,
			Args:    args,
			Code:    strings.ToUpper(fe.Tag()),
			Pointer: pointerPrefix + fe.Field(),
		})
	}
	return errors.NewUnprocessableError(out)
}

// Merge folds extra field errors into err; used when a handler adds checks the tags cannot express.
func Merge(err error, extra ...errors.ValidationError) error {
	if len(extra) == 0 {
		return err
	}
	if err == nil {
		return errors.NewUnprocessableError(extra)
	}
	appErr, ok := errors.IsAppError(err)
	if !ok {
		return err
	}
	return errors.NewUnprocessableError(append(appErr.FieldErrors(), extra...))
}

// pathSegment rejects names that are empty or only dots once trimmed, such as "." or "..".
func pathSegment(fl validator.FieldLevel) bool {
	return strings.Trim(fl.Field().String(), ". ") != ""
}

func message(fe validator.FieldError) (string, []any) {
	field := fe.Field()
	isString := fe.Kind() == reflect.String

	switch fe.Tag() {
	case "required", "required_without", "required_with":
		return "The %s field is required.", []any{field}
	case "email":
		return "The %s must be a valid email address.", []any{field}
	case "min", "gte":
		if isString {
			return "The %s must be at least %s characters.", []any{field, fe.Param()}
		}
		return "The %s must be at least %s.", []any{field, fe.Param()}
	case "max", "lte":
		if isString {
			return "The %s may not be greater than %s characters.", []any{field, fe.Param()}
		}
		return "The %s may not be greater than %s.", []any{field, fe.Param()}
	case "gt":
		return "The %s must be at least %s.", []any{field, fe.Param()}
	case "oneof":
		return "The %s must be one of: %s.", []any{field, strings.ReplaceAll(fe.Param(), " ", ", ")}
	case "eqfield":
		return "The %s confirmation does not match.", []any{strings.TrimSuffix(field, "_confirmation")}
	default:
		return "The %s is invalid.", []any{field}
	}
}
