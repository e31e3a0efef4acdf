// Package validation implements declarative form validation: forms are
// ordered field specs, each field an ordered list of rules drawn from a
// closed set of rule kinds.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^1[3-9]\d{9}$`)
)

// FieldError is a single failed check on a named field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Rule is one check applied to a present field value. The set of rule
// kinds is closed: Required, Email, MinLength, MaxLength, Phone, Pattern
// and Custom.
type Rule interface {
	// Check returns nil when value passes. label is the human name used
	// in generated messages.
	Check(field, label, value string) *FieldError

	rule()
}

// Required fails when the value is empty after trimming.
type Required struct{}

// Email fails unless the value looks like local@domain.tld.
type Email struct{}

// MinLength fails when the trimmed value has fewer than N characters.
type MinLength struct{ N int }

// MaxLength fails when the trimmed value has more than N characters.
type MaxLength struct{ N int }

// Phone fails unless the value is an 11-digit mainland mobile number.
type Phone struct{}

// Pattern fails when Expr does not match; Message is reported verbatim.
type Pattern struct {
	Expr    *regexp.Regexp
	Message string
}

// Custom fails when Func returns false; Message is reported verbatim.
type Custom struct {
	Func    func(value string) bool
	Message string
}

func (Required) rule()  {}
func (Email) rule()     {}
func (MinLength) rule() {}
func (MaxLength) rule() {}
func (Phone) rule()     {}
func (Pattern) rule()   {}
func (Custom) rule()    {}

// Check implements Rule.
func (Required) Check(field, label, value string) *FieldError {
	if strings.TrimSpace(value) == "" {
		return &FieldError{Field: field, Message: fmt.Sprintf("%s不能为空", label)}
	}
	return nil
}

// Check implements Rule.
func (Email) Check(field, _, value string) *FieldError {
	if !emailPattern.MatchString(value) {
		return &FieldError{Field: field, Message: "请输入有效的邮箱地址"}
	}
	return nil
}

// Check implements Rule.
func (r MinLength) Check(field, label, value string) *FieldError {
	if charCount(value) < r.N {
		return &FieldError{Field: field, Message: fmt.Sprintf("%s至少需要%d个字符", label, r.N)}
	}
	return nil
}

// Check implements Rule.
func (r MaxLength) Check(field, label, value string) *FieldError {
	if charCount(value) > r.N {
		return &FieldError{Field: field, Message: fmt.Sprintf("%s不能超过%d个字符", label, r.N)}
	}
	return nil
}

// Check implements Rule.
func (Phone) Check(field, _, value string) *FieldError {
	if !phonePattern.MatchString(value) {
		return &FieldError{Field: field, Message: "请输入有效的手机号码"}
	}
	return nil
}

// Check implements Rule.
func (r Pattern) Check(field, _, value string) *FieldError {
	if r.Expr == nil || !r.Expr.MatchString(value) {
		return &FieldError{Field: field, Message: r.Message}
	}
	return nil
}

// Check implements Rule.
func (r Custom) Check(field, _, value string) *FieldError {
	if r.Func == nil || !r.Func(value) {
		return &FieldError{Field: field, Message: r.Message}
	}
	return nil
}

func charCount(s string) int {
	return utf8.RuneCountInString(strings.TrimSpace(s))
}
