package validation

import (
	"strings"
	"unicode/utf8"
)

// Single-field checks for callers that validate one input at a time.
// Each returns the message to show, or "" when the value is acceptable.

// CheckEmail requires a well-formed email address.
func CheckEmail(email string) string {
	if strings.TrimSpace(email) == "" {
		return "邮箱不能为空"
	}
	if !emailPattern.MatchString(email) {
		return "请输入有效的邮箱地址"
	}
	return ""
}

// CheckPassword requires at least six characters.
func CheckPassword(password string) string {
	if strings.TrimSpace(password) == "" {
		return "密码不能为空"
	}
	if utf8.RuneCountInString(password) < 6 {
		return "密码至少需要6个字符"
	}
	return ""
}

// CheckName requires a name of 2 to 50 characters.
func CheckName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "姓名不能为空"
	}
	if n := charCount(name); n < 2 {
		return "姓名至少需要2个字符"
	} else if n > 50 {
		return "姓名不能超过50个字符"
	}
	return ""
}

// CheckPhone accepts an empty value; anything else must be a mobile number.
func CheckPhone(phone string) string {
	if strings.TrimSpace(phone) == "" {
		return ""
	}
	if !phonePattern.MatchString(phone) {
		return "请输入有效的手机号码"
	}
	return ""
}

// CheckRequired requires a non-blank value, naming it by label.
func CheckRequired(value, label string) string {
	if err := (Required{}).Check("", label, value); err != nil {
		return err.Message
	}
	return ""
}
