package app

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"bootcamp/internal/domain"
)

// ErrUnknownReport is returned for an analytics report type that does not exist.
var ErrUnknownReport = errors.New("invalid analytics type")

const popularCourseLimit = 10

// AnalyticsService aggregates back-office statistics.
type AnalyticsService struct {
	users       domain.UserRepository
	courses     domain.CourseRepository
	enrollments domain.EnrollmentRepository
}

// NewAnalyticsService creates an AnalyticsService backed by the given repositories.
func NewAnalyticsService(users domain.UserRepository, courses domain.CourseRepository, enrollments domain.EnrollmentRepository) *AnalyticsService {
	return &AnalyticsService{users: users, courses: courses, enrollments: enrollments}
}

// Totals are the headline counters of the overview report.
type Totals struct {
	TotalUsers       int     `json:"totalUsers"`
	TotalCourses     int     `json:"totalCourses"`
	TotalEnrollments int     `json:"totalEnrollments"`
	TotalRevenue     float64 `json:"totalRevenue"`
}

// Overview is the "overview" report.
type Overview struct {
	Overview            Totals         `json:"overview"`
	EnrollmentsByStatus map[string]int `json:"enrollmentsByStatus"`
	UsersByRole         map[string]int `json:"usersByRole"`
}

// CourseRevenue is the revenue earned by one course.
type CourseRevenue struct {
	Title   string  `json:"title"`
	Revenue float64 `json:"revenue"`
	Count   int     `json:"count"`
}

// RevenueReport is the "revenue" report. Only active enrollments count.
type RevenueReport struct {
	MonthlyRevenue map[string]float64 `json:"monthlyRevenue"`
	CourseRevenue  []CourseRevenue    `json:"courseRevenue"`
}

// EnrollmentTrends is the "enrollments" report.
type EnrollmentTrends struct {
	DailyEnrollments  map[string]int `json:"dailyEnrollments"`
	LevelDistribution map[string]int `json:"levelDistribution"`
}

// UserGrowth is the "users" report.
type UserGrowth struct {
	DailyNewUsers   map[string]int `json:"dailyNewUsers"`
	CumulativeUsers map[string]int `json:"cumulativeUsers"`
}

// PopularCourse is a course with its enrollment count.
type PopularCourse struct {
	domain.Course
	EnrollmentCount int `json:"enrollmentCount"`
}

// Range bounds a report by creation time. Zero bounds are open.
type Range struct {
	From time.Time
	To   time.Time
}

func (r Range) contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// Report builds the named report.
func (s *AnalyticsService) Report(ctx context.Context, kind string, r Range) (any, error) {
	switch kind {
	case "", "overview":
		return s.Overview(ctx)
	case "revenue":
		return s.Revenue(ctx, r)
	case "enrollments":
		return s.EnrollmentTrends(ctx, r)
	case "users":
		return s.UserGrowth(ctx, r)
	case "popular_courses":
		return s.PopularCourses(ctx)
	}
	return nil, ErrUnknownReport
}

// Overview returns headline counts, revenue from active enrollments, and
// enrollment and user breakdowns.
func (s *AnalyticsService) Overview(ctx context.Context) (*Overview, error) {
	var (
		users       []domain.Profile
		courseTotal int
		enrollments []domain.Enrollment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, _, err = s.users.ListUsers(gctx, domain.UserFilter{})
		return err
	})
	g.Go(func() error {
		var err error
		_, courseTotal, err = s.courses.ListCourses(gctx, domain.CourseFilter{})
		return err
	})
	g.Go(func() error {
		var err error
		enrollments, _, err = s.enrollments.ListEnrollments(gctx, domain.EnrollmentFilter{})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Overview{
		Overview: Totals{
			TotalUsers:       len(users),
			TotalCourses:     courseTotal,
			TotalEnrollments: len(enrollments),
		},
		EnrollmentsByStatus: map[string]int{},
		UsersByRole:         map[string]int{domain.RoleStudent: 0, domain.RoleInstructor: 0, domain.RoleAdmin: 0},
	}
	for _, st := range domain.EnrollmentStatuses {
		out.EnrollmentsByStatus[st] = 0
	}
	for _, e := range enrollments {
		status := cmp.Or(e.Status, domain.StatusPending)
		if _, ok := out.EnrollmentsByStatus[status]; ok {
			out.EnrollmentsByStatus[status]++
		}
		if status == domain.StatusActive && e.Course != nil {
			out.Overview.TotalRevenue += e.Course.Price
		}
	}
	for _, u := range users {
		role := cmp.Or(u.Role, domain.RoleStudent)
		if _, ok := out.UsersByRole[role]; ok {
			out.UsersByRole[role]++
		}
	}
	return out, nil
}

// Revenue groups active-enrollment revenue by month and by course.
func (s *AnalyticsService) Revenue(ctx context.Context, r Range) (*RevenueReport, error) {
	items, _, err := s.enrollments.ListEnrollments(ctx, domain.EnrollmentFilter{
		Status: domain.StatusActive,
		From:   r.From,
		To:     r.To,
	})
	if err != nil {
		return nil, err
	}

	out := &RevenueReport{MonthlyRevenue: map[string]float64{}, CourseRevenue: []CourseRevenue{}}
	byCourse := map[string]*CourseRevenue{}
	for _, e := range items {
		if !r.contains(e.CreatedAt) {
			continue
		}
		price, title := 0.0, "Unknown"
		if e.Course != nil {
			price, title = e.Course.Price, e.Course.Title
		}
		out.MonthlyRevenue[e.CreatedAt.UTC().Format("2006-01")] += price

		cr, ok := byCourse[title]
		if !ok {
			cr = &CourseRevenue{Title: title}
			byCourse[title] = cr
		}
		cr.Revenue += price
		cr.Count++
	}
	for _, cr := range byCourse {
		out.CourseRevenue = append(out.CourseRevenue, *cr)
	}
	slices.SortFunc(out.CourseRevenue, func(a, b CourseRevenue) int {
		if c := cmp.Compare(b.Revenue, a.Revenue); c != 0 {
			return c
		}
		return cmp.Compare(a.Title, b.Title)
	})
	return out, nil
}

// EnrollmentTrends counts enrollments per day and per course level.
func (s *AnalyticsService) EnrollmentTrends(ctx context.Context, r Range) (*EnrollmentTrends, error) {
	items, _, err := s.enrollments.ListEnrollments(ctx, domain.EnrollmentFilter{From: r.From, To: r.To})
	if err != nil {
		return nil, err
	}

	out := &EnrollmentTrends{DailyEnrollments: map[string]int{}, LevelDistribution: map[string]int{}}
	for _, e := range items {
		if !r.contains(e.CreatedAt) {
			continue
		}
		out.DailyEnrollments[e.CreatedAt.UTC().Format("2006-01-02")]++
		level := "Unknown"
		if e.Course != nil && e.Course.Level != "" {
			level = e.Course.Level
		}
		out.LevelDistribution[level]++
	}
	return out, nil
}

// UserGrowth counts new users per day and the running total at each day.
func (s *AnalyticsService) UserGrowth(ctx context.Context, r Range) (*UserGrowth, error) {
	users, _, err := s.users.ListUsers(ctx, domain.UserFilter{})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(users, func(a, b domain.Profile) int { return a.CreatedAt.Compare(b.CreatedAt) })

	out := &UserGrowth{DailyNewUsers: map[string]int{}, CumulativeUsers: map[string]int{}}
	total := 0
	for _, u := range users {
		if !r.contains(u.CreatedAt) {
			continue
		}
		day := u.CreatedAt.UTC().Format("2006-01-02")
		out.DailyNewUsers[day]++
		total++
		out.CumulativeUsers[day] = total
	}
	return out, nil
}

// PopularCourses returns the most enrolled courses, most popular first.
func (s *AnalyticsService) PopularCourses(ctx context.Context) ([]PopularCourse, error) {
	courses, _, err := s.courses.ListCourses(ctx, domain.CourseFilter{})
	if err != nil {
		return nil, err
	}

	out := make([]PopularCourse, len(courses))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, c := range courses {
		g.Go(func() error {
			n, err := s.enrollments.CountEnrollmentsForCourse(gctx, c.ID)
			if err != nil {
				return err
			}
			out[i] = PopularCourse{Course: c, EnrollmentCount: n}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slices.SortStableFunc(out, func(a, b PopularCourse) int {
		return cmp.Compare(b.EnrollmentCount, a.EnrollmentCount)
	})
	if len(out) > popularCourseLimit {
		out = out[:popularCourseLimit]
	}
	return out, nil
}
