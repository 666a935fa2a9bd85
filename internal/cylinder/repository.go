package cylinder

import (
	"errors"
	"strings"

	"cylinder-backend/internal/apperr"
	"cylinder-backend/internal/auth"
	"cylinder-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	msgCylinderNotInScope = "Cylinder not found for this company-branch"
	msgTestNotInScope     = "Test record not found for this company-branch"
	msgCylinderNotFound   = "Cylinder not found"
)

// latestTestOrder picks the test that defines a cylinder's cached dates.
// id breaks ties between rows written within the same clock tick.
const latestTestOrder = "test_date DESC, created_at DESC, id DESC"

// TestInput holds every writable column of a test record.
type TestInput struct {
	TestDate             models.Date
	TestType             string
	TestPressure         *decimal.Decimal
	TestResult           models.TestResult
	InspectorName        *string
	Notes                *string
	NextTestDate         *models.Date
	TestedBy             *uint
	TareWeight           *decimal.Decimal
	ReferenceNumber      *string
	PermissionNumber     *string
	PermissionDate       *models.Date
	WaterFillingCapacity *decimal.Decimal
	Remarks              *string
}

func (in TestInput) withDefaults() TestInput {
	if strings.TrimSpace(in.TestType) == "" {
		in.TestType = models.DefaultTestType
	}
	if strings.TrimSpace(string(in.TestResult)) == "" {
		in.TestResult = models.TestResultPass
	}
	return in
}

func (in TestInput) columns() map[string]any {
	return map[string]any{
		"test_date":              in.TestDate,
		"test_type":              in.TestType,
		"test_pressure":          in.TestPressure,
		"test_result":            in.TestResult,
		"inspector_name":         in.InspectorName,
		"notes":                  in.Notes,
		"next_test_date":         in.NextTestDate,
		"tested_by":              in.TestedBy,
		"tare_weight":            in.TareWeight,
		"reference_number":       in.ReferenceNumber,
		"permission_number":      in.PermissionNumber,
		"permission_date":        in.PermissionDate,
		"water_filling_capacity": in.WaterFillingCapacity,
		"remarks":                in.Remarks,
	}
}

type TestFilter struct {
	CompanyID  uint
	BranchID   *uint
	CylinderID *uint
	TestType   string
}

// TestView is a test record with the identifying cylinder columns.
type TestView struct {
	models.CylinderTest
	CylinderCode string  `json:"cylinder_code"`
	SerialNumber *string `json:"serial_number"`
	TestedByName *string `json:"tested_by_name"`
}

type ListFilter struct {
	Scope    auth.Scope
	Search   string
	Status   string
	IsActive *bool
	Offset   int
	Limit    int
}

type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// Repository holds the gorm queries of the cylinder aggregate. Methods that
// take a tx run inside the caller's transaction.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
	}
	return tx
}

func scoped(q *gorm.DB, s auth.Scope) *gorm.DB {
	return q.Where("company_id = ? AND branch_id = ?", s.CompanyID, s.BranchID)
}

// LockCylinder loads the cylinder in scope and row-locks it for the rest of tx.
func (r *Repository) LockCylinder(tx *gorm.DB, id uint, s auth.Scope) (*models.Cylinder, error) {
	var c models.Cylinder
	err := scoped(forUpdate(tx), s).Where("id = ?", id).First(&c).Error
	if err != nil {
		return nil, apperr.FromDB(err, msgCylinderNotInScope)
	}
	return &c, nil
}

// CreateTest inserts a test for a cylinder of the scope. The cylinder check
// and the insert share tx.
func (r *Repository) CreateTest(tx *gorm.DB, s auth.Scope, cylinderID uint, in TestInput) (*models.CylinderTest, error) {
	if _, err := r.LockCylinder(tx, cylinderID, s); err != nil {
		return nil, err
	}
	in = in.withDefaults()
	t := models.CylinderTest{
		CompanyID:            s.CompanyID,
		BranchID:             s.BranchID,
		CylinderID:           cylinderID,
		TestDate:             in.TestDate,
		TestType:             in.TestType,
		TestPressure:         in.TestPressure,
		TestResult:           in.TestResult,
		InspectorName:        in.InspectorName,
		Notes:                in.Notes,
		NextTestDate:         in.NextTestDate,
		TestedBy:             in.TestedBy,
		TareWeight:           in.TareWeight,
		ReferenceNumber:      in.ReferenceNumber,
		PermissionNumber:     in.PermissionNumber,
		PermissionDate:       in.PermissionDate,
		WaterFillingCapacity: in.WaterFillingCapacity,
		Remarks:              in.Remarks,
	}
	if err := tx.Create(&t).Error; err != nil {
		return nil, apperr.FromDB(err, msgCylinderNotInScope)
	}
	return &t, nil
}

// FindTest returns the test of the scope and locks its cylinder.
func (r *Repository) FindTest(tx *gorm.DB, testID uint, s auth.Scope) (*models.CylinderTest, error) {
	var t models.CylinderTest
	if err := scoped(tx, s).Where("id = ?", testID).First(&t).Error; err != nil {
		return nil, apperr.FromDB(err, msgTestNotInScope)
	}
	if _, err := r.LockCylinder(tx, t.CylinderID, s); err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTest overwrites every writable column of the test.
func (r *Repository) UpdateTest(tx *gorm.DB, testID uint, s auth.Scope, in TestInput) (*models.CylinderTest, error) {
	before, err := r.FindTest(tx, testID, s)
	if err != nil {
		return nil, err
	}
	if in.TestType == "" {
		in.TestType = models.DefaultTestType
	}
	if err := tx.Model(&models.CylinderTest{}).Where("id = ?", testID).Updates(in.columns()).Error; err != nil {
		return nil, apperr.FromDB(err, msgTestNotInScope)
	}
	return before, nil
}

// DeleteTest hard deletes the test and returns the removed row.
func (r *Repository) DeleteTest(tx *gorm.DB, testID uint, s auth.Scope) (*models.CylinderTest, error) {
	before, err := r.FindTest(tx, testID, s)
	if err != nil {
		return nil, err
	}
	if err := tx.Delete(&models.CylinderTest{}, testID).Error; err != nil {
		return nil, apperr.FromDB(err, msgTestNotInScope)
	}
	return before, nil
}

func (r *Repository) ListTests(db *gorm.DB, f TestFilter) ([]TestView, error) {
	q := db.Table("cylinder_tests AS ct").
		Select(`ct.*, cy.cylinder_code, cy.serial_number,
			TRIM(u.first_name || ' ' || COALESCE(u.last_name, '')) AS tested_by_name`).
		Joins("JOIN cylinders cy ON cy.id = ct.cylinder_id").
		Joins("LEFT JOIN users u ON u.id = ct.tested_by").
		Where("ct.company_id = ?", f.CompanyID)
	if f.BranchID != nil {
		q = q.Where("ct.branch_id = ?", *f.BranchID)
	}
	if f.CylinderID != nil {
		q = q.Where("ct.cylinder_id = ?", *f.CylinderID)
	}
	if f.TestType != "" {
		q = q.Where("ct.test_type = ?", f.TestType)
	}

	var out []TestView
	if err := q.Order("ct.test_date DESC, ct.created_at DESC, ct.id DESC").Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// LatestTest returns the newest test of a cylinder or nil.
func (r *Repository) LatestTest(db *gorm.DB, cylinderID uint) (*models.CylinderTest, error) {
	var tests []models.CylinderTest
	if err := db.Where("cylinder_id = ?", cylinderID).Order(latestTestOrder).Limit(1).Find(&tests).Error; err != nil {
		return nil, err
	}
	if len(tests) == 0 {
		return nil, nil
	}
	return &tests[0], nil
}

// RecalculateDates copies the latest test's dates into the cylinder, or
// clears them when no test is left. It is the only writer of those columns.
func (r *Repository) RecalculateDates(tx *gorm.DB, cylinderID uint) error {
	latest, err := r.LatestTest(tx, cylinderID)
	if err != nil {
		return err
	}
	updates := map[string]any{"last_test_date": nil, "next_test_date": nil}
	if latest != nil {
		updates["last_test_date"] = latest.TestDate
		updates["next_test_date"] = latest.NextTestDate
	}
	return tx.Model(&models.Cylinder{}).Where("id = ?", cylinderID).Updates(updates).Error
}

func (r *Repository) Get(db *gorm.DB, id uint, s auth.Scope) (*models.Cylinder, error) {
	var c models.Cylinder
	if err := scoped(db, s).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, apperr.FromDB(err, msgCylinderNotFound)
	}
	return &c, nil
}

func (r *Repository) GetBy(db *gorm.DB, column, value string, s auth.Scope) (*models.Cylinder, error) {
	var c models.Cylinder
	err := scoped(db, s).Where(clause.Eq{Column: clause.Column{Name: column}, Value: value}).
		Order("is_active DESC, id DESC").First(&c).Error
	if err != nil {
		return nil, apperr.FromDB(err, msgCylinderNotFound)
	}
	return &c, nil
}

func (r *Repository) CodeTaken(tx *gorm.DB, code string, s auth.Scope, exceptID uint) (bool, error) {
	var n int64
	q := scoped(tx.Model(&models.Cylinder{}), s).Where("cylinder_code = ?", code)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// PartyInCompany reports whether an active party with id exists in the company.
func (r *Repository) PartyInCompany(tx *gorm.DB, companyID, partyID uint) (bool, error) {
	var n int64
	err := tx.Model(&models.Party{}).
		Where("id = ? AND company_id = ? AND is_active = ?", partyID, companyID, true).
		Count(&n).Error
	return n > 0, err
}

func (r *Repository) List(db *gorm.DB, f ListFilter) ([]models.Cylinder, int64, error) {
	q := scoped(db.Model(&models.Cylinder{}), f.Scope)
	if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" {
		like := "%" + term + "%"
		q = q.Where("LOWER(cylinder_code) LIKE ? OR LOWER(serial_number) LIKE ? OR LOWER(barcode_number) LIKE ?", like, like, like)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.IsActive != nil {
		q = q.Where("is_active = ?", *f.IsActive)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []models.Cylinder
	if err := q.Order("created_at DESC, id DESC").Offset(f.Offset).Limit(f.Limit).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *Repository) CountByStatus(db *gorm.DB, s auth.Scope) ([]StatusCount, error) {
	var out []StatusCount
	err := scoped(db.Model(&models.Cylinder{}), s).
		Select("status, COUNT(*) AS count").
		Where("is_active = ?", true).
		Group("status").
		Order("status").
		Scan(&out).Error
	return out, err
}

// DueBy returns active cylinders whose next test falls on or before until,
// overdue ones included, soonest first.
func (r *Repository) DueBy(db *gorm.DB, s auth.Scope, until models.Date) ([]models.Cylinder, error) {
	var out []models.Cylinder
	err := scoped(db, s).
		Where("is_active = ? AND next_test_date IS NOT NULL AND next_test_date <= ?", true, until).
		Order("next_test_date ASC, cylinder_code ASC").
		Find(&out).Error
	return out, err
}

type barcodeRow struct {
	models.Cylinder
	CompanyName *string
	BranchName  *string
}

func (r *Repository) FindActiveByBarcode(db *gorm.DB, barcode string) (*barcodeRow, error) {
	var rows []barcodeRow
	err := db.Table("cylinders AS c").
		Select("c.*, comp.company_name, b.branch_name").
		Joins("LEFT JOIN companies comp ON comp.id = c.company_id").
		Joins("LEFT JOIN branches b ON b.id = c.branch_id").
		Where("c.barcode_number = ? AND c.is_active = ?", barcode, true).
		Order("c.id DESC").
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperr.FromDB(gorm.ErrRecordNotFound, "Cylinder not found with this barcode")
	}
	return &rows[0], nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound) || apperr.Is(err, apperr.CodeNotFound)
}
