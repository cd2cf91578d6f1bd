package schema

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// ErrTitleRequired is returned when a form is saved without a title.
var ErrTitleRequired = errors.New("form title is required")

// ValidationError describes a single problem with a schema or an answer set.
type ValidationError struct {
	FieldID FieldID `json:"field_id,omitempty"`
	Label   string  `json:"label,omitempty"`
	Message string  `json:"message"`
}

func (e *ValidationError) Error() string {
	switch {
	case e.Label != "":
		return fmt.Sprintf("field %q: %s", e.Label, e.Message)
	case e.FieldID != "":
		return fmt.Sprintf("field %s: %s", e.FieldID, e.Message)
	default:
		return e.Message
	}
}

func invalid(f Field, format string, args ...any) *ValidationError {
	return &ValidationError{
		FieldID: f.ID,
		Label:   f.Label,
		Message: fmt.Sprintf(format, args...),
	}
}

// Problems flattens err into the validation errors it carries.
// It returns nil when err holds no *ValidationError.
func Problems(err error) []*ValidationError {
	if err == nil {
		return nil
	}

	var merr *multierror.Error
	if errors.As(err, &merr) {
		var out []*ValidationError
		for _, e := range merr.Errors {
			out = append(out, Problems(e)...)
		}
		return out
	}

	var verr *ValidationError
	if errors.As(err, &verr) {
		return []*ValidationError{verr}
	}
	return nil
}

// IsValidation reports whether err is (or wraps) a validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrTitleRequired) || len(Problems(err)) > 0
}
