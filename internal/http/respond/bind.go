package respond

import (
	"encoding/json"
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/omchandarana/geogate/internal/apperr"
)

// Dotted-quad shape only; octets are not range-checked. Tightening to 0-255
// would change observable validation behavior, so the looseness stays.
var ipv4LooseRe = regexp.MustCompile(`^\d{1,3}(\.\d{1,3}){3}$`)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("ipv4_loose", func(fl validator.FieldLevel) bool {
			return ipv4LooseRe.MatchString(fl.Field().String())
		})
	}
}

// BindJSON decodes and validates a JSON body. On failure it routes a
// validation error through the terminal mapper, reporting every failing
// constraint at once in schema-declaration order.
func (m *ErrorMapper) BindJSON(ctx *gin.Context, out any) bool {
	err := ctx.ShouldBindJSON(out)

	if err != nil {
		m.Fail(ctx, bindError(err, out, "json"))

		return false
	}

	return true
}

// BindQuery is BindJSON for query parameters.
func (m *ErrorMapper) BindQuery(ctx *gin.Context, out any) bool {
	err := ctx.ShouldBindQuery(out)

	if err != nil {
		m.Fail(ctx, bindError(err, out, "form"))

		return false
	}

	return true
}

func bindError(err error, out any, tagKey string) error {
	rootType := baseStructType(out)

	// validator errors (struct bind tags)

	var validatorError validator.ValidationErrors

	if errors.As(err, &validatorError) {
		fields := make([]apperr.FieldViolation, 0, len(validatorError))

		for _, fieldError := range validatorError {
			fields = append(fields, apperr.FieldViolation{
				Field:   wireFieldName(rootType, fieldError.StructField(), tagKey),
				Message: validationMessage(fieldError.Tag(), fieldError.Param()),
			})
		}

		return apperr.Validation(fields)
	}

	// in the event of a type mismatch

	var unmatchedTypeError *json.UnmarshalTypeError

	if errors.As(err, &unmatchedTypeError) {
		field := wireFieldName(rootType, unmatchedTypeError.Field, tagKey)

		return apperr.Validation([]apperr.FieldViolation{
			{
				Field:   field,
				Message: "must be of type " + unmatchedTypeError.Type.String(),
			},
		})
	}

	// bad JSON or an unreadable body

	return apperr.Wrap(apperr.KindValidation, "Invalid request body", err)
}

func baseStructType(v any) reflect.Type {
	t := reflect.TypeOf(v)

	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t != nil && t.Kind() == reflect.Struct {
		return t
	}

	return nil
}

// wireFieldName maps a Go struct field back to the name the client sent
// (json or form tag).
func wireFieldName(rootType reflect.Type, goName, tagKey string) string {
	if rootType == nil || goName == "" {
		return goName
	}

	sf, ok := rootType.FieldByName(goName)

	if !ok {
		return goName
	}

	tag := sf.Tag.Get(tagKey)
	if tag == "" {
		return goName
	}

	name, _, _ := strings.Cut(tag, ",")
	if name == "" || name == "-" {
		return goName
	}

	return name
}

func validationMessage(rule, param string) string {
	switch rule {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + param + " characters"
	case "max":
		return "must be at most " + param + " characters"
	case "eqfield":
		return "must match " + strings.ToLower(param)
	case "ipv4_loose":
		return "must be a valid IPv4 address"
	default:
		if param != "" {
			return "failed " + rule + " validation (" + param + ")"
		}
		return "failed " + rule + " validation"
	}
}
