// Package forms turns raw request payloads into validated, storage-ready inputs.
package forms

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Stage identifies which validation pass rejected the input
type Stage string

const (
	StageForm     Stage = "form"
	StageInternal Stage = "internal"
)

// ValidationError carries field-level messages keyed by JSON field path
type ValidationError struct {
	Stage   Stage
	Message string
	Fields  map[string][]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	paths := make([]string, 0, len(e.Fields))
	for path := range e.Fields {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return fmt.Sprintf("%s (%s)", e.Message, strings.Join(paths, ", "))
}

// Add appends a message for path
func (e *ValidationError) Add(path, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[path] = append(e.Fields[path], message)
}

// Has reports whether path has at least one message
func (e *ValidationError) Has(path string) bool {
	return len(e.Fields[path]) > 0
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// structValidator returns the shared validator, reporting JSON field names
func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// checkStruct runs tag validation and folds failures into verr
func checkStruct(v interface{}, verr *ValidationError) error {
	err := structValidator().Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	for _, fe := range fieldErrs {
		verr.Add(fe.Field(), messageFor(fe))
	}
	return nil
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Invalid email address."
	case "url":
		return "Must be a valid URL."
	case "min":
		return fmt.Sprintf("Must be at least %s characters.", fe.Param())
	case "gte":
		return fmt.Sprintf("Must be greater than or equal to %s.", fe.Param())
	case "gt":
		return fmt.Sprintf("Must be greater than %s.", fe.Param())
	case "oneof":
		return fmt.Sprintf("Must be one of: %s.", fe.Param())
	case "jobstatus":
		return "Invalid job status."
	default:
		return fmt.Sprintf("Failed %q validation.", fe.Tag())
	}
}

// trimmed returns s without surrounding whitespace
func trimmed(s string) string {
	return strings.TrimSpace(s)
}
