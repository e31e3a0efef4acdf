package validation

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signupSpec() FormSpec {
	return NewFormSpec(
		FieldSpec{Name: "name", Label: "姓名", Required: true, Rules: []Rule{MinLength{N: 2}, MaxLength{N: 50}}},
		FieldSpec{Name: "email", Label: "邮箱地址", Required: true, Rules: []Rule{Email{}}},
		FieldSpec{Name: "phone", Label: "手机号码", Required: true, Rules: []Rule{Phone{}}},
	)
}

func TestValidate_CollectsErrorsInDeclarationOrder(t *testing.T) {
	res := signupSpec().Validate(Values{"name": "A", "email": "bad", "phone": "123"})

	require.False(t, res.Valid)
	require.Len(t, res.Errors, 3)
	assert.Equal(t, []FieldError{
		{Field: "name", Message: "姓名至少需要2个字符"},
		{Field: "email", Message: "请输入有效的邮箱地址"},
		{Field: "phone", Message: "请输入有效的手机号码"},
	}, res.Errors)
}

func TestValidate_Deterministic(t *testing.T) {
	spec := RegistrationForm()
	in := Values{"name": "x1", "email": "nope", "phone": "", "selectedCourse": "abc"}

	first := spec.Validate(in)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, spec.Validate(in))
	}
}

func TestValidate_RequiredEmptyYieldsOneError(t *testing.T) {
	spec := NewFormSpec(FieldSpec{
		Name:     "email",
		Label:    "邮箱地址",
		Required: true,
		Rules:    []Rule{Email{}, MinLength{N: 5}, Custom{Func: func(string) bool { return false }, Message: "never"}},
	})

	for _, v := range []Values{{}, {"email": ""}, {"email": "   \t"}} {
		res := spec.Validate(v)
		require.Len(t, res.Errors, 1)
		assert.Equal(t, FieldError{Field: "email", Message: "邮箱地址不能为空"}, res.Errors[0])
	}
}

func TestValidate_OptionalAbsentYieldsNothing(t *testing.T) {
	spec := NewFormSpec(FieldSpec{
		Name:  "email",
		Label: "邮箱地址",
		Rules: []Rule{Email{}, Custom{Func: func(string) bool { return false }, Message: "never"}},
	})

	assert.True(t, spec.Validate(Values{}).Valid)
	assert.True(t, spec.Validate(Values{"email": ""}).Valid)
}

func TestValidate_FieldAccumulatesErrors(t *testing.T) {
	spec := NewFormSpec(FieldSpec{
		Name:  "code",
		Label: "代码",
		Rules: []Rule{
			MinLength{N: 5},
			Pattern{Expr: regexp.MustCompile(`^\d+$`), Message: "只能是数字"},
		},
	})

	res := spec.Validate(Values{"code": "ab"})
	assert.Equal(t, []string{"代码至少需要5个字符", "只能是数字"}, FieldMessages(res.Errors, "code"))
	assert.Empty(t, FieldMessages(res.Errors, "other"))
}

func TestErrorMap_KeepsFirstMessagePerField(t *testing.T) {
	errs := []FieldError{
		{Field: "name", Message: "first"},
		{Field: "email", Message: "email"},
		{Field: "name", Message: "second"},
	}
	assert.Equal(t, map[string]string{"name": "first", "email": "email"}, ErrorMap(errs))
}

func TestEmailRule(t *testing.T) {
	tests := []struct {
		in   string
		pass bool
	}{
		{"a@b.co", true},
		{"first.last@example.com.cn", true},
		{"a@b", false},
		{"a b@c.de", false},
		{"a@@b.co", false},
		{"@b.co", false},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			err := Email{}.Check("email", "邮箱", tc.in)
			assert.Equal(t, tc.pass, err == nil)
		})
	}
}

func TestPhoneRule(t *testing.T) {
	tests := []struct {
		in   string
		pass bool
	}{
		{"13800138000", true},
		{"19912345678", true},
		{"12345678901", false},
		{"1380013800", false},
		{"138001380001", false},
		{"2380013800a", false},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			err := Phone{}.Check("phone", "手机", tc.in)
			assert.Equal(t, tc.pass, err == nil)
		})
	}
}

func TestLengthRulesTrimAndCountCharacters(t *testing.T) {
	assert.Nil(t, MinLength{N: 2}.Check("name", "姓名", "张三"))
	assert.NotNil(t, MinLength{N: 2}.Check("name", "姓名", "  张 "))
	assert.Nil(t, MaxLength{N: 3}.Check("name", "姓名", "  abc  "))
	assert.NotNil(t, MaxLength{N: 3}.Check("name", "姓名", "abcd"))
}

func TestRegistrationForm(t *testing.T) {
	res := RegistrationForm().Validate(Values{
		"name":           "李雷 Lee",
		"email":          "lilei@example.com",
		"phone":          "13912345678",
		"selectedCourse": "3",
	})
	assert.True(t, res.Valid, "%v", res.Errors)

	res = RegistrationForm().Validate(Values{
		"name":           "R2-D2",
		"email":          "lilei@example.com",
		"phone":          "13912345678",
		"selectedCourse": "three",
	})
	assert.Equal(t, map[string]string{
		"name":           "姓名只能包含中文、英文和空格",
		"selectedCourse": "请选择有效的课程",
	}, ErrorMap(res.Errors))
}

func TestCourseForm(t *testing.T) {
	full := CourseForm(false).Validate(Values{"title": "AI 实战", "price": "-1", "level": "专家"})
	errs := ErrorMap(full.Errors)
	assert.Equal(t, "课程描述不能为空", errs["description"])
	assert.Equal(t, "价格必须是非负数", errs["price"])
	assert.Equal(t, "课程级别必须是：初级、中级、高级", errs["level"])

	partial := CourseForm(true).Validate(Values{"price": "199"})
	assert.True(t, partial.Valid)
}

func TestValuesFromFormAndSanitize(t *testing.T) {
	v := ValuesFromForm(url.Values{"name": {" 韩梅梅 ", "ignored"}, "empty": {}})
	assert.Equal(t, Values{"name": " 韩梅梅 "}, v)
	assert.Equal(t, Values{"name": "韩梅梅"}, Sanitize(v))
}

func TestSingleFieldChecks(t *testing.T) {
	assert.Equal(t, "邮箱不能为空", CheckEmail(" "))
	assert.Empty(t, CheckEmail("a@b.co"))
	assert.Equal(t, "密码至少需要6个字符", CheckPassword("12345"))
	assert.Empty(t, CheckPassword("123456"))
	// Length is counted in characters, not bytes.
	assert.Equal(t, "密码至少需要6个字符", CheckPassword("密码"))
	assert.Empty(t, CheckPassword("密码密码密码"))
	assert.Equal(t, "姓名不能超过50个字符", CheckName(strings.Repeat("a", 51)))
	assert.Empty(t, CheckPhone(""))
	assert.Equal(t, "请输入有效的手机号码", CheckPhone("123"))
	assert.Equal(t, "课程不能为空", CheckRequired("", "课程"))
}

func TestLocalizeAuthError(t *testing.T) {
	assert.Empty(t, LocalizeAuthError(nil))
	assert.Equal(t, "邮箱或密码错误", LocalizeAuthError(errors.New("Invalid login credentials")))
	assert.Equal(t, "请先验证您的邮箱", LocalizeAuthError(errors.New("Email not confirmed")))
	assert.Equal(t, MsgUserAlreadyExists, LocalizeAuthError(errors.New("user already registered")))
	assert.Equal(t, MsgGeneric, LocalizeAuthError(errors.New("boom")))
}
