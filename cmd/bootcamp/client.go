package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"bootcamp/internal/adapter/identity"
	"bootcamp/internal/domain"
	"bootcamp/internal/session"
	"bootcamp/internal/validation"
)

var (
	emailFlag    string
	passwordFlag string
	nameFlag     string
	phoneFlag    string
	levelFlag    string
	watchFlag    bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the session",
	Args:  cobra.NoArgs,
	RunE:  runLogin,
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account and sign in",
	Args:  cobra.NoArgs,
	RunE:  runSignUp,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and remove the stored session",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Long: `Show the signed-in user, profile role and permissions.

With --watch the command keeps running and prints every session change,
including a sign-out caused by another process removing the credentials.`,
	Args: cobra.NoArgs,
	RunE: runWhoami,
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the course catalog",
	Args:  cobra.NoArgs,
	RunE:  runCatalog,
}

var enrollCmd = &cobra.Command{
	Use:   "enroll <course-id>",
	Short: "Enroll in a course",
	Args:  cobra.ExactArgs(1),
	RunE:  runEnroll,
}

var enrollmentsCmd = &cobra.Command{
	Use:   "enrollments",
	Short: "List your own enrollments",
	Args:  cobra.NoArgs,
	RunE:  runMyEnrollments,
}

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Back office commands (administrators only)",
}

var adminUsersCmd = &cobra.Command{
	Use:   "users",
	Short: "List users",
	Args:  cobra.NoArgs,
	RunE:  adminList("/api/admin/users", printUsers),
}

var adminCoursesCmd = &cobra.Command{
	Use:   "courses",
	Short: "List courses",
	Args:  cobra.NoArgs,
	RunE:  adminList("/api/admin/courses", printCourses),
}

var adminEnrollmentsCmd = &cobra.Command{
	Use:   "enrollments",
	Short: "List enrollments",
	Args:  cobra.NoArgs,
	RunE:  adminList("/api/admin/enrollments", printEnrollments),
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, signupCmd, enrollCmd} {
		c.Flags().StringVar(&emailFlag, "email", "", "email address")
	}
	for _, c := range []*cobra.Command{loginCmd, signupCmd} {
		c.Flags().StringVar(&passwordFlag, "password", "", "password (default $BOOTCAMP_PASSWORD)")
	}
	for _, c := range []*cobra.Command{signupCmd, enrollCmd} {
		c.Flags().StringVar(&nameFlag, "name", "", "full name")
		c.Flags().StringVar(&phoneFlag, "phone", "", "mobile number")
	}
	catalogCmd.Flags().StringVar(&levelFlag, "level", "", "only courses of this level")
	whoamiCmd.Flags().BoolVar(&watchFlag, "watch", false, "keep running and print session changes")

	adminCmd.AddCommand(adminUsersCmd, adminCoursesCmd, adminEnrollmentsCmd)
}

// clientSession is the client side of one CLI invocation: one identity
// client and the session context built on it.
type clientSession struct {
	client  *identity.Client
	session *session.Context
}

func openSession(ctx context.Context) *clientSession {
	store := identity.NewCredentialStore(cfg.Client.CredentialsPath)
	client := identity.NewClient(cfg.Client.ServerURL, store, &http.Client{Timeout: cfg.GetClientTimeout()}, logger)
	sc := session.New(client, client, logger)
	sc.Init(ctx)
	return &clientSession{client: client, session: sc}
}

func (c *clientSession) close() {
	c.session.Close()
}

func password() string {
	if passwordFlag != "" {
		return passwordFlag
	}
	return env("BOOTCAMP_PASSWORD", "")
}

// formError renders field errors in form order.
func formError(spec validation.FormSpec, fields map[string]string) error {
	var b strings.Builder
	b.WriteString(validation.MsgValidationFailed)
	for _, f := range spec.Fields() {
		if msg, ok := fields[f.Name]; ok {
			fmt.Fprintf(&b, "\n  %s: %s", f.Label, msg)
		}
	}
	return errors.New(b.String())
}

func checkForm(spec validation.FormSpec, values validation.Values) error {
	res := spec.Validate(values)
	if res.Valid {
		return nil
	}
	return formError(spec, validation.ErrorMap(res.Errors))
}

// authError turns a failed sign-in or sign-up into text for the user.
func authError(err error) error {
	var apiErr *identity.APIError
	if errors.As(err, &apiErr) && len(apiErr.Fields) > 0 {
		return formError(validation.LoginForm(), apiErr.Fields)
	}
	if errors.As(err, &apiErr) {
		return errors.New(validation.LocalizeAuthError(err))
	}
	return fmt.Errorf("%s: %w", validation.MsgNetworkError, err)
}

func runLogin(cmd *cobra.Command, args []string) error {
	values := validation.Sanitize(validation.Values{"email": emailFlag, "password": password()})
	if err := checkForm(validation.LoginForm(), values); err != nil {
		return err
	}

	cs := openSession(cmd.Context())
	defer cs.close()
	if err := cs.session.SignIn(cmd.Context(), values["email"], values["password"]); err != nil {
		return authError(err)
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), validation.MsgUserLoggedIn)
	return nil
}

func runSignUp(cmd *cobra.Command, args []string) error {
	values := validation.Sanitize(validation.Values{"email": emailFlag, "password": password()})
	if err := checkForm(validation.LoginForm(), values); err != nil {
		return err
	}

	var opts session.SignUpOptions
	if name := strings.TrimSpace(nameFlag); name != "" {
		if msg := validation.CheckName(name); msg != "" {
			return errors.New(msg)
		}
		opts.Name = &name
	}
	if phone := strings.TrimSpace(phoneFlag); phone != "" {
		if msg := validation.CheckPhone(phone); msg != "" {
			return errors.New(msg)
		}
		opts.Phone = &phone
	}

	cs := openSession(cmd.Context())
	defer cs.close()
	if err := cs.session.SignUp(cmd.Context(), values["email"], values["password"], opts); err != nil {
		return authError(err)
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), validation.MsgUserRegistered)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	cs := openSession(cmd.Context())
	defer cs.close()

	if cs.session.Snapshot().Identity == nil {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "not signed in")
		return nil
	}
	if err := cs.session.SignOut(cmd.Context()); err != nil {
		return fmt.Errorf("%s: %w", validation.MsgNetworkError, err)
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "signed out")
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cs := openSession(ctx)
	defer cs.close()

	out := cmd.OutOrStdout()
	printSnapshot(out, cs.session.Snapshot())
	if !watchFlag {
		return nil
	}

	unsubscribe := cs.session.Subscribe(func(s session.Snapshot) {
		if !s.Loading {
			printSnapshot(out, s)
		}
	})
	defer unsubscribe()

	if err := cs.client.Watch(ctx); err != nil {
		return err
	}
	return nil
}

func printSnapshot(w io.Writer, s session.Snapshot) {
	if s.Identity == nil {
		_, _ = fmt.Fprintln(w, "not signed in")
		return
	}
	_, _ = fmt.Fprintf(w, "email:       %s\n", s.Identity.Email)
	if s.Profile != nil {
		_, _ = fmt.Fprintf(w, "name:        %s\n", s.Profile.Name)
		_, _ = fmt.Fprintf(w, "role:        %s\n", s.Profile.Role)
	}
	perms := "-"
	if len(s.Permissions) > 0 {
		perms = strings.Join(s.Permissions, ", ")
	}
	_, _ = fmt.Fprintf(w, "permissions: %s\n", perms)
}

func runCatalog(cmd *cobra.Command, args []string) error {
	cs := openSession(cmd.Context())
	defer cs.close()

	path := "/api/catalog"
	if levelFlag != "" {
		path += "?level=" + url.QueryEscape(levelFlag)
	}
	var resp struct {
		Data []domain.Course `json:"data"`
	}
	if err := cs.client.Public(cmd.Context(), http.MethodGet, path, nil, &resp); err != nil {
		return err
	}
	printCourses(cmd.OutOrStdout(), resp.Data)
	return nil
}

func runEnroll(cmd *cobra.Command, args []string) error {
	courseID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || courseID <= 0 {
		return fmt.Errorf("invalid course id %q", args[0])
	}

	cs := openSession(cmd.Context())
	defer cs.close()

	// Signed-in users enroll with their profile details unless overridden.
	values := validation.Values{"name": nameFlag, "email": emailFlag, "phone": phoneFlag}
	if p := cs.session.Snapshot().Profile; p != nil {
		for k, v := range map[string]string{"name": p.Name, "email": p.Email, "phone": p.Phone} {
			if values[k] == "" {
				values[k] = v
			}
		}
	}
	values = validation.Sanitize(values)

	form := validation.EnrollmentForm()
	if err := checkForm(form, values); err != nil {
		return err
	}

	err = cs.client.Public(cmd.Context(), http.MethodPost, fmt.Sprintf("/api/courses/%d/enroll", courseID), values, nil)
	var apiErr *identity.APIError
	switch {
	case errors.As(err, &apiErr) && len(apiErr.Fields) > 0:
		return formError(form, apiErr.Fields)
	case errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound:
		return errors.New(validation.MsgCourseNotFound)
	case errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict:
		return errors.New(validation.MsgAlreadyEnrolled)
	case err != nil:
		return fmt.Errorf("%s: %w", validation.MsgNetworkError, err)
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), validation.MsgCourseEnrolled)
	return nil
}

var (
	errSignInRequired = errors.New(validation.MsgUnauthorized)
	errForbidden      = errors.New(validation.MsgForbidden)
	errStillLoading   = errors.New("session is still loading")
)

func runMyEnrollments(cmd *cobra.Command, args []string) error {
	cs := openSession(cmd.Context())
	defer cs.close()

	if err := session.Render[error](session.Guard{}, cs.session.Snapshot(), nil, session.Views[error]{
		Loading: errStillLoading,
		SignIn:  errSignInRequired,
	}); err != nil {
		return err
	}

	var resp struct {
		Data   []domain.Enrollment `json:"data"`
		Counts map[string]int      `json:"counts"`
	}
	err := cs.client.Request(cmd.Context(), http.MethodGet, "/api/me/enrollments", nil, &resp)
	var apiErr *identity.APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized:
		return errSignInRequired
	case err != nil:
		return err
	}

	out := cmd.OutOrStdout()
	printEnrollments(out, resp.Data)
	printStatusCounts(out, resp.Counts)
	return nil
}

// adminList fetches one page of an admin listing after checking locally
// that the signed-in user is an administrator.
func adminList[T any](path string, show func(io.Writer, []T)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cs := openSession(cmd.Context())
		defer cs.close()

		if err := session.Render[error](session.Guard{AdminOnly: true}, cs.session.Snapshot(), nil, session.Views[error]{
			Loading:   errStillLoading,
			SignIn:    errSignInRequired,
			Forbidden: errForbidden,
		}); err != nil {
			return err
		}

		var resp struct {
			Data       []T               `json:"data"`
			Pagination domain.Pagination `json:"pagination"`
		}
		err := cs.client.Request(cmd.Context(), http.MethodGet, path, nil, &resp)
		var apiErr *identity.APIError
		switch {
		case errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized:
			return errSignInRequired
		case errors.As(err, &apiErr) && apiErr.Status == http.StatusForbidden:
			return errForbidden
		case err != nil:
			return err
		}

		out := cmd.OutOrStdout()
		show(out, resp.Data)
		_, _ = fmt.Fprintf(out, "\npage %d of %d (%d total)\n", resp.Pagination.Page, resp.Pagination.TotalPages, resp.Pagination.Total)
		return nil
	}
}

func printUsers(w io.Writer, users []domain.Profile) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tPHONE\tROLE")
	for _, u := range users {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, u.Phone, u.Role)
	}
	_ = tw.Flush()
}

func printCourses(w io.Writer, courses []domain.Course) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tTITLE\tLEVEL\tDURATION\tPRICE")
	for _, c := range courses {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.2f\n", c.ID, c.Title, c.Level, c.Duration, c.Price)
	}
	_ = tw.Flush()
}

func printEnrollments(w io.Writer, items []domain.Enrollment) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tUSER\tCOURSE\tSTATUS\tENROLLED")
	for _, e := range items {
		user, course := strconv.FormatInt(e.UserID, 10), strconv.FormatInt(e.CourseID, 10)
		if e.User != nil {
			user = e.User.Email
		}
		if e.Course != nil {
			course = e.Course.Title
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", e.ID, user, course, e.Status, e.CreatedAt.Format("2006-01-02"))
	}
	_ = tw.Flush()
}

func printStatusCounts(w io.Writer, counts map[string]int) {
	parts := make([]string, 0, len(domain.EnrollmentStatuses))
	for _, st := range domain.EnrollmentStatuses {
		parts = append(parts, fmt.Sprintf("%s %d", st, counts[st]))
	}
	_, _ = fmt.Fprintf(w, "\n%s\n", strings.Join(parts, ", "))
}
