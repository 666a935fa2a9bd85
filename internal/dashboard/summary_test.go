package dashboard

import (
	"context"
	"testing"

	"cylinder-backend/internal/models"
	"cylinder-backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) models.Date {
	d, err := models.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func dayPtr(s string) *models.Date {
	d := day(s)
	return &d
}

func TestSummary(t *testing.T) {
	db := testutil.NewDB(t)
	tn := testutil.SeedTenant(t, db, "ACME", models.PermissionUser)
	scope := tn.Scope()
	party := testutil.SeedParty(t, db, scope, "P-1")

	cyl := func(code, status string, owner models.OwnerType, last, next *models.Date, active bool) {
		c := models.Cylinder{
			CompanyID:          scope.CompanyID,
			BranchID:           scope.BranchID,
			CylinderCode:       code,
			CylinderFamilyCode: "B-47L",
			Status:             status,
			OwnerType:          owner,
			LastTestDate:       last,
			NextTestDate:       next,
			IsActive:           true,
		}
		if owner == models.OwnerParty {
			c.OwnerPartyID = &party.ID
		}
		require.NoError(t, db.Create(&c).Error)
		if !active {
			require.NoError(t, db.Model(&c).Update("is_active", false).Error)
		}
	}
	cyl("C-1", "available", models.OwnerSelf, dayPtr("2020-01-01"), dayPtr("2025-01-05"), true)
	cyl("C-2", "available", models.OwnerSelf, dayPtr("2020-01-01"), dayPtr("2025-01-20"), true)
	cyl("C-3", "filled", models.OwnerParty, dayPtr("2020-01-01"), dayPtr("2025-06-01"), true)
	cyl("C-4", "filled", models.OwnerSelf, nil, nil, true)
	cyl("C-5", "filled", models.OwnerSelf, dayPtr("2020-01-01"), dayPtr("2025-01-01"), false)

	svc := NewService(db)
	got, err := svc.Summary(context.Background(), scope, 30, day("2025-01-10"))
	require.NoError(t, err)

	assert.Equal(t, int64(4), got.TotalActive)
	assert.Equal(t, []Count{{Name: "available", Count: 2}, {Name: "filled", Count: 2}}, got.ByStatus)
	assert.Equal(t, []Count{{Name: "PARTY", Count: 1}, {Name: "SELF", Count: 3}}, got.ByOwnerType)
	assert.Equal(t, int64(1), got.Overdue)
	assert.Equal(t, int64(1), got.DueInWindow)
	assert.Equal(t, int64(1), got.NeverTested)
	assert.Equal(t, int64(1), got.ActiveParties)

	_, err = svc.Summary(context.Background(), scope, -1, day("2025-01-10"))
	assert.Error(t, err)
}

func TestTestChart_WeeklyBuckets(t *testing.T) {
	db := testutil.NewDB(t)
	tn := testutil.SeedTenant(t, db, "ACME", models.PermissionUser)
	scope := tn.Scope()

	c := models.Cylinder{
		CompanyID: scope.CompanyID, BranchID: scope.BranchID,
		CylinderCode: "C-1", CylinderFamilyCode: "B-47L",
		Status: "available", OwnerType: models.OwnerSelf, IsActive: true,
	}
	require.NoError(t, db.Create(&c).Error)
	for _, tc := range []struct {
		date   string
		result models.TestResult
	}{
		{"2025-01-06", models.TestResultPass}, // Monday of the current week
		{"2025-01-08", models.TestResultFail},
		{"2024-12-31", models.TestResultConditional},
		{"2024-11-01", models.TestResultPass}, // outside the window
	} {
		require.NoError(t, db.Create(&models.CylinderTest{
			CompanyID: scope.CompanyID, BranchID: scope.BranchID, CylinderID: c.ID,
			TestDate: day(tc.date), TestType: "Hydrostatic", TestResult: tc.result,
		}).Error)
	}

	chart, err := NewService(db).TestChart(context.Background(), scope, PeriodWeekly, 3, day("2025-01-10"))
	require.NoError(t, err)
	assert.Equal(t, "2024-12-23", chart.From)
	require.Len(t, chart.Points, 3)
	assert.Equal(t, ChartPoint{Label: "2024-12-23"}, chart.Points[0])
	assert.Equal(t, ChartPoint{Label: "2024-12-30", Conditional: 1, Total: 1}, chart.Points[1])
	assert.Equal(t, ChartPoint{Label: "2025-01-06", Pass: 1, Fail: 1, Total: 2}, chart.Points[2])
	assert.Equal(t, 3, chart.Totals.Total)
}

func TestBucketStart(t *testing.T) {
	assert.Equal(t, "2025-01-06", bucketStart(PeriodWeekly, day("2025-01-12")).String())
	assert.Equal(t, "2025-01-01", bucketStart(PeriodMonthly, day("2025-01-31")).String())
	assert.Equal(t, "2025-01-31", bucketStart(PeriodDaily, day("2025-01-31")).String())
}
