package http

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = newValidator()

// newValidator reports fields under the name the client sent: the json,
// query or param tag, in that order.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "query", "param"} {
			name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return f.Name
	})
	return v
}

// ReadAndValidateRequest binds path, query and body into req, fills
// `default` tags and runs `validate` tags. It returns nil on success and a
// []ValidationError otherwise. Query parameters are bound for every method;
// a body field wins over the query parameter of the same name.
func ReadAndValidateRequest(c echo.Context, req interface{}) interface{} {
	if m := c.Request().Method; m != http.MethodGet && m != http.MethodDelete && m != http.MethodHead {
		if err := (&echo.DefaultBinder{}).BindQueryParams(c, req); err != nil {
			return toValidationErrors(err)
		}
	}
	if err := c.Bind(req); err != nil {
		return toValidationErrors(err)
	}
	if err := defaults.Set(req); err != nil {
		return toValidationErrors(err)
	}
	if err := validate.StructCtx(c.Request().Context(), req); err != nil {
		return toValidationErrors(err)
	}
	return nil
}

func toValidationErrors(err error) []ValidationError {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		out := make([]ValidationError, len(fieldErrs))
		for i, fe := range fieldErrs {
			out[i] = ValidationError{
				Code:    "ERR_" + strings.ToUpper(fe.Tag()),
				Field:   fe.Field(),
				Message: describe(fe),
				Params:  params(fe),
			}
		}
		return out
	}

	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg = fmt.Sprint(he.Message)
	}
	return []ValidationError{{Code: "ERR_BIND", Message: msg}}
}

// bounds maps comparison tags to the phrase used in messages.
var bounds = map[string]string{
	"gt":  "greater than",
	"gte": "greater than or equal to",
	"lt":  "less than",
	"lte": "less than or equal to",
}

func describe(fe validator.FieldError) string {
	field, param := fe.Field(), fe.Param()
	if phrase, ok := bounds[fe.Tag()]; ok {
		return fmt.Sprintf("%s must be %s %s", field, phrase, param)
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "required_without":
		return fmt.Sprintf("%s is required when %s is empty", field, strings.ToLower(param))
	case "min", "max":
		least := map[string]string{"min": "at least", "max": "at most"}[fe.Tag()]
		switch fe.Kind() {
		case reflect.String:
			return fmt.Sprintf("%s must be %s %s characters", field, least, param)
		case reflect.Slice, reflect.Array, reflect.Map:
			return fmt.Sprintf("%s must hold %s %s items", field, least, param)
		}
		return fmt.Sprintf("%s must be %s %s", field, least, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	}
	return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
}

func params(fe validator.FieldError) map[string]interface{} {
	switch fe.Tag() {
	case "min", "gte":
		return map[string]interface{}{"min": fe.Param()}
	case "max", "lte":
		return map[string]interface{}{"max": fe.Param()}
	case "gt", "lt":
		return map[string]interface{}{"value": fe.Param()}
	case "oneof":
		return map[string]interface{}{"options": strings.Fields(fe.Param())}
	case "required_without":
		return map[string]interface{}{"without": strings.ToLower(fe.Param())}
	}
	return map[string]interface{}{}
}
