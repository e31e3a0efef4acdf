package validation

import "strings"

// Success messages shown after a form is accepted.
const (
	MsgUserRegistered = "注册成功！欢迎加入爱学AI创富实训营！"
	MsgUserLoggedIn   = "登录成功！欢迎回来！"
	MsgCourseEnrolled = "报名成功！我们将在24小时内与您联系。"
	MsgFormSubmitted  = "表单提交成功！"
	MsgDataUpdated    = "数据更新成功！"
	MsgDataSaved      = "数据保存成功！"
)

// Error messages shown when a request fails.
const (
	MsgNetworkError      = "网络错误，请检查您的网络连接后重试"
	MsgServerError       = "服务器错误，请稍后再试"
	MsgValidationFailed  = "表单验证失败，请检查输入信息"
	MsgUserNotFound      = "用户不存在，请先注册"
	MsgUserAlreadyExists = "用户已存在，请直接登录"
	MsgCourseNotFound    = "课程不存在"
	MsgAlreadyEnrolled   = "您已经报名过这个课程了"
	MsgUnauthorized      = "未授权访问，请先登录"
	MsgForbidden         = "权限不足，无法执行此操作"
	MsgGeneric           = "操作失败，请稍后再试"
)

var authErrorMessages = []struct {
	substr string
	msg    string
}{
	{"invalid login credentials", "邮箱或密码错误"},
	{"invalid credentials", "邮箱或密码错误"},
	{"email not confirmed", "请先验证您的邮箱"},
	{"already registered", MsgUserAlreadyExists},
	{"password", "密码至少需要6个字符"},
	{"rate limit", "请求过于频繁，请稍后再试"},
}

// LocalizeAuthError turns an identity-provider error into text for the
// user by matching known message fragments. nil yields "".
func LocalizeAuthError(err error) string {
	if err == nil {
		return ""
	}
	s := strings.ToLower(err.Error())
	for _, m := range authErrorMessages {
		if strings.Contains(s, m.substr) {
			return m.msg
		}
	}
	return MsgGeneric
}
