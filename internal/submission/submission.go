// Package submission holds the submission record, its validation rules and
// the PostgreSQL store.
package submission

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind is the category a submission is filed under. The empty Kind means
// no category was given; it is stored as NULL and encoded as JSON null.
type Kind string

const (
	KindCandidature Kind = "candidature"
	KindOpenCall    Kind = "opencall"
	KindPlenaryTime Kind = "plenarytime"
)

// Kinds lists every accepted Kind.
var Kinds = []Kind{KindCandidature, KindOpenCall, KindPlenaryTime}

func (k Kind) Valid() bool {
	for _, v := range Kinds {
		if k == v {
			return true
		}
	}
	return false
}

func (k Kind) MarshalJSON() ([]byte, error) {
	if k == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(k))
}

func (k Kind) Value() (driver.Value, error) {
	if k == "" {
		return nil, nil
	}
	return string(k), nil
}

func (k *Kind) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*k = ""
	case string:
		*k = Kind(v)
	case []byte:
		*k = Kind(v)
	default:
		return fmt.Errorf("cannot scan %T into Kind", src)
	}
	return nil
}

// Submission is a persisted form submission. Filepath is the name of the
// relocated file inside the upload directory.
type Submission struct {
	ID        uuid.UUID `json:"id"`
	Filepath  string    `json:"filepath"`
	Type      Kind      `json:"type"`
	Body      string    `json:"body"`
	Timeslot  string    `json:"timeslot"`
	Person    string    `json:"person"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Input carries the client-writable fields plus the server-assigned Filepath.
type Input struct {
	Filepath string
	Type     Kind
	Body     string
	Timeslot string
	Person   string
	Email    string
}

// Writable are the form field names a client may set.
var Writable = []string{"type", "body", "timeslot", "person", "email"}

// InputFromFields builds an Input from parsed form fields. Names outside
// Writable are returned as ignored.
func InputFromFields(fields map[string]string, filepath string) (Input, []string) {
	in := Input{
		Filepath: filepath,
		Type:     Kind(fields["type"]),
		Body:     fields["body"],
		Timeslot: fields["timeslot"],
		Person:   fields["person"],
		Email:    fields["email"],
	}
	var ignored []string
	for name := range fields {
		if !isWritable(name) {
			ignored = append(ignored, name)
		}
	}
	return in, ignored
}

func isWritable(name string) bool {
	for _, w := range Writable {
		if name == w {
			return true
		}
	}
	return false
}

// Store persists submissions.
type Store interface {
	Create(ctx context.Context, in Input) (*Submission, error)
	All(ctx context.Context) ([]Submission, error)
}

const (
	RuleRequired = "required"
	RuleIsIn     = "isIn"
	RuleIsEmail  = "isEmail"
)

// emailRe accepts letters and digits from any script, so internationalised
// local parts and domains such as ada@例え.jp pass.
var emailRe = regexp.MustCompile(`^[\p{L}\p{N}._%+\-']+@(?:[\p{L}\p{N}](?:[\p{L}\p{N}\-]*[\p{L}\p{N}])?\.)+\p{L}{2,}$`)

// FieldError is one violated rule on one field.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return "Validation error: " + strings.Join(msgs, ",\n")
}

// Has reports whether field failed rule.
func (e *ValidationError) Has(field, rule string) bool {
	for _, f := range e.Fields {
		if f.Field == field && f.Rule == rule {
			return true
		}
	}
	return false
}

// Validate checks every field and returns a *ValidationError naming all
// failures, or nil. Type is optional and only checked against Kinds when
// set. A required field that is empty or only whitespace is reported as
// missing, which is stricter than a plain not-null check: "" and "  " are
// rejected. A missing value only reports the required rule.
func (in Input) Validate() error {
	var errs []FieldError
	required := func(field, value string) bool {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, FieldError{
				Field:   field,
				Rule:    RuleRequired,
				Message: fmt.Sprintf("%s is required", field),
			})
			return false
		}
		return true
	}

	required("filepath", in.Filepath)
	if in.Type != "" && !in.Type.Valid() {
		errs = append(errs, FieldError{
			Field:   "type",
			Rule:    RuleIsIn,
			Message: fmt.Sprintf("type must be one of %s", kindList()),
		})
	}
	required("body", in.Body)
	required("timeslot", in.Timeslot)
	required("person", in.Person)
	if required("email", in.Email) && !emailRe.MatchString(in.Email) {
		errs = append(errs, FieldError{
			Field:   "email",
			Rule:    RuleIsEmail,
			Message: "email must be a valid email address",
		})
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func kindList() string {
	s := make([]string, len(Kinds))
	for i, k := range Kinds {
		s[i] = string(k)
	}
	return strings.Join(s, ", ")
}
