// Package dashboard aggregates cylinder and test figures for the landing page.
package dashboard

import (
	"context"
	"sort"
	"time"

	"cylinder-backend/internal/apperr"
	"cylinder-backend/internal/auth"
	"cylinder-backend/internal/models"

	"gorm.io/gorm"
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

type Count struct {
	Name  string `json:"name" gorm:"column:name"`
	Count int64  `json:"count" gorm:"column:count"`
}

type Summary struct {
	Scope         auth.Scope `json:"scope"`
	AsOf          string     `json:"as_of"`
	WindowDays    int        `json:"window_days"`
	TotalActive   int64      `json:"total_active"`
	ByStatus      []Count    `json:"by_status"`
	ByOwnerType   []Count    `json:"by_owner_type"`
	Overdue       int64      `json:"overdue"`
	DueInWindow   int64      `json:"due_in_window"`
	NeverTested   int64      `json:"never_tested"`
	ActiveParties int64      `json:"active_parties"`
}

func (s *Service) activeCylinders(ctx context.Context, scope auth.Scope) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.Cylinder{}).
		Where("company_id = ? AND branch_id = ? AND is_active = ?", scope.CompanyID, scope.BranchID, true)
}

func (s *Service) group(ctx context.Context, scope auth.Scope, column string) ([]Count, error) {
	var out []Count
	err := s.activeCylinders(ctx, scope).
		Select(column + " AS name, COUNT(*) AS count").
		Group(column).
		Order(column).
		Scan(&out).Error
	return out, err
}

// Summary counts active cylinders of the scope. Overdue means next_test_date
// before today; due in window means today through today+windowDays.
func (s *Service) Summary(ctx context.Context, scope auth.Scope, windowDays int, today models.Date) (*Summary, error) {
	if windowDays < 0 {
		return nil, apperr.Validation("days must not be negative")
	}
	out := &Summary{Scope: scope, AsOf: today.String(), WindowDays: windowDays}

	var err error
	if out.ByStatus, err = s.group(ctx, scope, "status"); err != nil {
		return nil, apperr.Wrap(err, "Dashboard could not be loaded")
	}
	if out.ByOwnerType, err = s.group(ctx, scope, "owner_type"); err != nil {
		return nil, apperr.Wrap(err, "Dashboard could not be loaded")
	}
	counts := []struct {
		dst   *int64
		query func(*gorm.DB) *gorm.DB
	}{
		{&out.TotalActive, func(q *gorm.DB) *gorm.DB { return q }},
		{&out.Overdue, func(q *gorm.DB) *gorm.DB { return q.Where("next_test_date < ?", today) }},
		{&out.DueInWindow, func(q *gorm.DB) *gorm.DB {
			return q.Where("next_test_date >= ? AND next_test_date <= ?", today, today.AddDays(windowDays))
		}},
		{&out.NeverTested, func(q *gorm.DB) *gorm.DB { return q.Where("last_test_date IS NULL") }},
	}
	for _, c := range counts {
		if err := c.query(s.activeCylinders(ctx, scope)).Count(c.dst).Error; err != nil {
			return nil, apperr.Wrap(err, "Dashboard could not be loaded")
		}
	}
	if err := s.db.WithContext(ctx).Model(&models.Party{}).
		Where("company_id = ? AND branch_id = ? AND is_active = ?", scope.CompanyID, scope.BranchID, true).
		Count(&out.ActiveParties).Error; err != nil {
		return nil, apperr.Wrap(err, "Dashboard could not be loaded")
	}
	return out, nil
}

// -------------------------
// Test activity chart
// -------------------------

const (
	PeriodDaily   = "daily"
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"
)

type ChartPoint struct {
	Label       string `json:"label"`
	Pass        int    `json:"pass"`
	Fail        int    `json:"fail"`
	Conditional int    `json:"conditional"`
	Total       int    `json:"total"`
}

type Chart struct {
	Period string       `json:"period"`
	From   string       `json:"from"`
	To     string       `json:"to"`
	Points []ChartPoint `json:"points"`
	Totals ChartPoint   `json:"totals"`
}

// chartWindow returns the first and last day covered by count buckets of
// period ending at today. Weeks start on Monday.
func chartWindow(period string, count int, today models.Date) (string, models.Date, models.Date) {
	switch period {
	case PeriodWeekly:
		start := bucketStart(PeriodWeekly, today).AddDays(-7 * (count - 1))
		return PeriodWeekly, start, today
	case PeriodMonthly:
		first := bucketStart(PeriodMonthly, today)
		return PeriodMonthly, models.DateOf(first.AddDate(0, -(count - 1), 0)), today
	default:
		return PeriodDaily, today.AddDays(-(count - 1)), today
	}
}

func bucketStart(period string, d models.Date) models.Date {
	switch period {
	case PeriodWeekly:
		offset := (int(d.Weekday()) + 6) % 7
		return d.AddDays(-offset)
	case PeriodMonthly:
		return models.NewDate(d.Year(), d.Month(), 1)
	default:
		return d
	}
}

func defaultCount(period string) int {
	switch period {
	case PeriodWeekly:
		return 8
	case PeriodMonthly:
		return 12
	default:
		return 7
	}
}

// TestChart buckets the scope's test records by test_date and result.
// Empty buckets are returned with zero counts.
func (s *Service) TestChart(ctx context.Context, scope auth.Scope, period string, count int, today models.Date) (*Chart, error) {
	if count <= 0 {
		count = defaultCount(period)
	}
	if count > 366 {
		return nil, apperr.Validation("count must not exceed 366")
	}
	period, from, to := chartWindow(period, count, today)

	var tests []models.CylinderTest
	err := s.db.WithContext(ctx).
		Select("test_date", "test_result").
		Where("company_id = ? AND branch_id = ? AND test_date >= ? AND test_date <= ?",
			scope.CompanyID, scope.BranchID, from, to).
		Find(&tests).Error
	if err != nil {
		return nil, apperr.Wrap(err, "Test chart could not be loaded")
	}

	buckets := map[time.Time]*ChartPoint{}
	for d := from; !d.After(to.Time); {
		start := bucketStart(period, d)
		buckets[start.Time] = &ChartPoint{Label: start.String()}
		switch period {
		case PeriodWeekly:
			d = d.AddDays(7)
		case PeriodMonthly:
			d = models.DateOf(start.AddDate(0, 1, 0))
		default:
			d = d.AddDays(1)
		}
	}

	chart := &Chart{Period: period, From: from.String(), To: to.String()}
	for _, t := range tests {
		p, ok := buckets[bucketStart(period, t.TestDate).Time]
		if !ok {
			continue
		}
		for _, dst := range []*ChartPoint{p, &chart.Totals} {
			switch t.TestResult {
			case models.TestResultPass:
				dst.Pass++
			case models.TestResultFail:
				dst.Fail++
			case models.TestResultConditional:
				dst.Conditional++
			}
			dst.Total++
		}
	}

	chart.Points = make([]ChartPoint, 0, len(buckets))
	for _, p := range buckets {
		chart.Points = append(chart.Points, *p)
	}
	sort.Slice(chart.Points, func(i, j int) bool { return chart.Points[i].Label < chart.Points[j].Label })
	return chart, nil
}
