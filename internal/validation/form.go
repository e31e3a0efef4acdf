package validation

import (
	"net/url"
	"slices"
	"strings"
)

// FieldType hints how a field is rendered; it does not affect validation.
type FieldType string

// Field types.
const (
	TypeText     FieldType = "text"
	TypeEmail    FieldType = "email"
	TypeTel      FieldType = "tel"
	TypePassword FieldType = "password"
	TypeSelect   FieldType = "select"
)

// FieldSpec declares the checks for one form field.
type FieldSpec struct {
	Name     string
	Label    string
	Required bool
	Type     FieldType
	Rules    []Rule
}

// FormSpec is an ordered list of field specs. It is immutable once built
// and safe to share between goroutines.
type FormSpec struct {
	fields []FieldSpec
}

// NewFormSpec builds a form from fields in declaration order.
func NewFormSpec(fields ...FieldSpec) FormSpec {
	out := make([]FieldSpec, len(fields))
	for i, f := range fields {
		f.Rules = slices.Clone(f.Rules)
		out[i] = f
	}
	return FormSpec{fields: out}
}

// Fields returns a copy of the form's field specs.
func (f FormSpec) Fields() []FieldSpec {
	return slices.Clone(f.fields)
}

// Values maps field names to raw submitted values. A missing key is an
// absent value.
type Values map[string]string

// ValuesFromForm takes the first value of every key in form.
func ValuesFromForm(form url.Values) Values {
	out := make(Values, len(form))
	for k, v := range form {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

// Result is the outcome of validating one submission.
type Result struct {
	Valid  bool         `json:"isValid"`
	Errors []FieldError `json:"errors"`
}

// Validate checks every field in declaration order and collects all
// errors. A required field that is empty yields exactly one error and
// its other rules are skipped. An empty optional field yields none.
func (f FormSpec) Validate(values Values) Result {
	var errs []FieldError
	for _, field := range f.fields {
		value, ok := values[field.Name]
		if field.Required {
			if err := (Required{}).Check(field.Name, field.Label, value); err != nil {
				errs = append(errs, *err)
				continue
			}
		}
		if !ok || value == "" {
			continue
		}
		for _, r := range field.Rules {
			if err := r.Check(field.Name, field.Label, value); err != nil {
				errs = append(errs, *err)
			}
		}
	}
	return Result{Valid: len(errs) == 0, Errors: errs}
}

// FieldMessages returns the messages recorded for field, in order.
func FieldMessages(errs []FieldError, field string) []string {
	var out []string
	for _, e := range errs {
		if e.Field == field {
			out = append(out, e.Message)
		}
	}
	return out
}

// ErrorMap maps each field to its first message. Later messages for the
// same field are dropped so forms can render one line per field.
func ErrorMap(errs []FieldError) map[string]string {
	out := make(map[string]string, len(errs))
	for _, e := range errs {
		if _, seen := out[e.Field]; !seen {
			out[e.Field] = e.Message
		}
	}
	return out
}

// Sanitize returns a copy of values with surrounding whitespace trimmed.
func Sanitize(values Values) Values {
	out := make(Values, len(values))
	for k, v := range values {
		out[k] = strings.TrimSpace(v)
	}
	return out
}
