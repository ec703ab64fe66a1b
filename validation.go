package accesshub

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// requestValidator applies struct tags plus the configurable password and
// name rules.
type requestValidator struct {
	v           *validator.Validate
	minPassword int
	maxPassword int
	requireName bool
}

func newRequestValidator(cfg Config) *requestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return &requestValidator{
		v:           v,
		minPassword: cfg.Account.MinPasswordLength,
		maxPassword: cfg.Password.MaxBytes,
		requireName: cfg.Account.RequireName,
	}
}

func (rv *requestValidator) register(req RegisterRequest) error {
	var fields []FieldError
	fields = rv.collect(fields, rv.v.Struct(req))
	fields = rv.collect(fields, rv.varField("password", req.Password,
		fmt.Sprintf("min=%d,max=%d", rv.minPassword, rv.maxPassword)))
	if rv.requireName {
		fields = rv.collect(fields, rv.varField("name", strings.TrimSpace(req.Name), "required"))
	}
	return asValidationError(fields)
}

func (rv *requestValidator) login(req LoginRequest) error {
	return asValidationError(rv.collect(nil, rv.v.Struct(req)))
}

// required checks that every named value is non-empty.
func (rv *requestValidator) required(pairs ...string) error {
	var fields []FieldError
	for i := 0; i+1 < len(pairs); i += 2 {
		fields = rv.collect(fields, rv.varField(pairs[i], strings.TrimSpace(pairs[i+1]), "required"))
	}
	return asValidationError(fields)
}

type namedVarError struct {
	field string
	err   error
}

func (e namedVarError) Error() string { return e.err.Error() }

func (rv *requestValidator) varField(field, value, tag string) error {
	if err := rv.v.Var(value, tag); err != nil {
		return namedVarError{field: field, err: err}
	}
	return nil
}

func (rv *requestValidator) collect(fields []FieldError, err error) []FieldError {
	if err == nil {
		return fields
	}
	name := ""
	var named namedVarError
	if errors.As(err, &named) {
		name = named.field
		err = named.err
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return append(fields, FieldError{Field: name, Rule: "invalid", Message: err.Error()})
	}
	for _, fe := range verrs {
		field := fe.Field()
		if name != "" {
			field = name
		}
		if hasField(fields, field) {
			continue
		}
		fields = append(fields, FieldError{Field: field, Rule: fe.Tag(), Message: msgForTag(fe)})
	}
	return fields
}

func hasField(fields []FieldError, name string) bool {
	for _, f := range fields {
		if f.Field == name {
			return true
		}
	}
	return false
}

func asValidationError(fields []FieldError) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

func msgForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed on '%s' validation", fe.Tag())
	}
}
