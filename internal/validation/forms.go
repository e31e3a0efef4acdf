package validation

import (
	"regexp"
	"strconv"

	"bootcamp/internal/domain"
)

var (
	namePattern   = regexp.MustCompile(`^[\p{Han}a-zA-Z\s]+$`)
	digitsPattern = regexp.MustCompile(`^\d+$`)
)

func nameField() FieldSpec {
	return FieldSpec{
		Name:     "name",
		Label:    "姓名",
		Required: true,
		Type:     TypeText,
		Rules: []Rule{
			MinLength{N: 2},
			MaxLength{N: 50},
			Pattern{Expr: namePattern, Message: "姓名只能包含中文、英文和空格"},
		},
	}
}

func emailField(extra ...Rule) FieldSpec {
	return FieldSpec{
		Name:     "email",
		Label:    "邮箱地址",
		Required: true,
		Type:     TypeEmail,
		Rules:    append([]Rule{Email{}}, extra...),
	}
}

func phoneField(required bool) FieldSpec {
	return FieldSpec{
		Name:     "phone",
		Label:    "手机号码",
		Required: required,
		Type:     TypeTel,
		Rules:    []Rule{Phone{}},
	}
}

// RegistrationForm validates the public sign-up form.
func RegistrationForm() FormSpec {
	return NewFormSpec(
		nameField(),
		emailField(MaxLength{N: 100}),
		phoneField(true),
		FieldSpec{
			Name:     "selectedCourse",
			Label:    "选择课程",
			Required: true,
			Type:     TypeSelect,
			Rules: []Rule{
				Custom{Func: digitsPattern.MatchString, Message: "请选择有效的课程"},
			},
		},
	)
}

// LoginForm validates the sign-in form.
func LoginForm() FormSpec {
	return NewFormSpec(
		emailField(),
		FieldSpec{
			Name:     "password",
			Label:    "密码",
			Required: true,
			Type:     TypePassword,
			Rules:    []Rule{MinLength{N: 6}},
		},
	)
}

// EnrollmentForm validates the course enrollment form.
func EnrollmentForm() FormSpec {
	return NewFormSpec(nameField(), emailField(), phoneField(true))
}

// ProfileForm validates admin edits of a user record. Phone is optional.
func ProfileForm() FormSpec {
	return NewFormSpec(
		nameField(),
		emailField(MaxLength{N: 100}),
		phoneField(false),
		FieldSpec{
			Name:  "role",
			Label: "角色",
			Type:  TypeSelect,
			Rules: []Rule{Custom{Func: domain.ValidRole, Message: "角色必须是：student、instructor、admin"}},
		},
	)
}

// CourseForm validates course creation. With partial set every field is
// optional, as for updates that only send changed fields.
func CourseForm(partial bool) FormSpec {
	req := !partial
	return NewFormSpec(
		FieldSpec{Name: "title", Label: "课程标题", Required: req, Rules: []Rule{MaxLength{N: 100}}},
		FieldSpec{Name: "description", Label: "课程描述", Required: req},
		FieldSpec{Name: "duration", Label: "课程时长", Required: req},
		FieldSpec{
			Name:     "level",
			Label:    "课程级别",
			Required: req,
			Type:     TypeSelect,
			Rules:    []Rule{Custom{Func: domain.ValidLevel, Message: "课程级别必须是：初级、中级、高级"}},
		},
		FieldSpec{
			Name:     "price",
			Label:    "价格",
			Required: req,
			Rules:    []Rule{Custom{Func: nonNegativeNumber, Message: "价格必须是非负数"}},
		},
	)
}

func nonNegativeNumber(v string) bool {
	f, err := strconv.ParseFloat(v, 64)
	return err == nil && f >= 0
}
