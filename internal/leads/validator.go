package leads

import (
	"regexp"
	"strings"

	"github.com/wolfman30/roofing-leads/internal/abuse"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// FieldError names the field that failed and the client-facing reason.
type FieldError struct {
	Field string
	Err   error
}

// ValidationResult lists every failed field; Valid is true when there are none.
type ValidationResult struct {
	Valid  bool
	Errors []FieldError
}

// Err returns the first failure, or nil when valid.
func (r ValidationResult) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return r.Errors[0].Err
}

// Fields returns the names of the failed fields.
func (r ValidationResult) Fields() []string {
	fields := make([]string, 0, len(r.Errors))
	for _, fe := range r.Errors {
		fields = append(fields, fe.Field)
	}
	return fields
}

// Validate checks required fields and formats. Email is optional.
func Validate(sub *Submission) ValidationResult {
	var errs []FieldError

	if strings.TrimSpace(sub.Name) == "" {
		errs = append(errs, FieldError{Field: "name", Err: ErrMissingRequired})
	}

	phone := strings.TrimSpace(sub.Phone)
	switch {
	case phone == "":
		errs = append(errs, FieldError{Field: "phone", Err: ErrMissingRequired})
	case len(abuse.NormalizePhone(phone)) != 10:
		errs = append(errs, FieldError{Field: "phone", Err: ErrInvalidPhone})
	}

	if email := strings.TrimSpace(sub.Email); email != "" && !emailPattern.MatchString(email) {
		errs = append(errs, FieldError{Field: "email", Err: ErrInvalidEmail})
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}
