package cylinder

import (
	"fmt"
	"strconv"
	"strings"

	"cylinder-backend/internal/apperr"
	"cylinder-backend/internal/audit"
	"cylinder-backend/internal/auth"
	"cylinder-backend/internal/httpx"
	"cylinder-backend/internal/models"
	"cylinder-backend/internal/sheet"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// -------------------------
// Request types
// -------------------------

// TestFields are the test columns accepted on cylinder create and on the
// test endpoints. Each aliased pair takes the first non-empty value.
type TestFields struct {
	TestDate             *models.Date     `json:"test_date"`
	TestType             string           `json:"test_type"`
	TestPressure         *decimal.Decimal `json:"test_pressure"`
	TestResult           string           `json:"test_result"`
	TestStatus           string           `json:"test_status"`
	InspectorName        *string          `json:"inspector_name"`
	TesterName           *string          `json:"tester_name"`
	Notes                *string          `json:"notes"`
	TestNotes            *string          `json:"test_notes"`
	NextTestDate         *models.Date     `json:"next_test_date"`
	TareWeight           *decimal.Decimal `json:"tare_weight"`
	ReferenceNumber      *string          `json:"reference_number"`
	PermissionNumber     *string          `json:"permission_number"`
	PermissionDate       *models.Date     `json:"permission_date"`
	WaterFillingCapacity *decimal.Decimal `json:"water_filling_capacity"`
	Remarks              *string          `json:"remarks"`
}

func firstText(values ...*string) *string {
	for _, v := range values {
		if v != nil && strings.TrimSpace(*v) != "" {
			t := strings.TrimSpace(*v)
			return &t
		}
	}
	return nil
}

func presentDate(d *models.Date) *models.Date {
	if d == nil {
		return nil
	}
	return models.DatePtr(*d)
}

// result returns the normalized test result, test_status winning over test_result.
func (f TestFields) result() *models.TestResult {
	if r := NormalizeTestResult(f.TestStatus); r != nil {
		return r
	}
	return NormalizeTestResult(f.TestResult)
}

func (f TestFields) input(testedBy *uint) TestInput {
	in := TestInput{
		TestType:             strings.TrimSpace(f.TestType),
		TestPressure:         f.TestPressure,
		InspectorName:        firstText(f.TesterName, f.InspectorName),
		Notes:                firstText(f.Notes, f.TestNotes),
		NextTestDate:         presentDate(f.NextTestDate),
		TestedBy:             testedBy,
		TareWeight:           f.TareWeight,
		ReferenceNumber:      firstText(f.ReferenceNumber),
		PermissionNumber:     firstText(f.PermissionNumber),
		PermissionDate:       presentDate(f.PermissionDate),
		WaterFillingCapacity: f.WaterFillingCapacity,
		Remarks:              firstText(f.Remarks),
	}
	if d := presentDate(f.TestDate); d != nil {
		in.TestDate = *d
	}
	if r := f.result(); r != nil {
		in.TestResult = *r
	}
	return in
}

type CreateCylinderRequest struct {
	CompanyID            *uint            `json:"company_id"`
	BranchID             *uint            `json:"branch_id"`
	CylinderCode         string           `json:"cylinder_code" validate:"max=50"`
	SerialNumber         *string          `json:"serial_number" validate:"omitempty,max=100"`
	BarcodeNumber        *string          `json:"barcode_number" validate:"omitempty,max=100"`
	CylinderType         *string          `json:"cylinder_type" validate:"omitempty,max=50"`
	CylinderFamilyCode   string           `json:"cylinder_family_code" validate:"max=50"`
	GasContent           *string          `json:"gas_content"`
	ManufactureNo        *string          `json:"manufacture_no"`
	ChallanNo            *string          `json:"challan_no"`
	Capacity             *decimal.Decimal `json:"capacity"`
	CapacityUnit         *string          `json:"capacity_unit"`
	Manufacturer         *string          `json:"manufacturer"`
	ManufactureDate      *models.Date     `json:"manufacture_date"`
	Status               string           `json:"status"`
	OwnerType            string           `json:"owner_type"`
	OwnerPartyID         *uint            `json:"owner_party_id"`
	CurrentHolderPartyID *uint            `json:"current_holder_party_id"`
	OwnershipRemarks     *string          `json:"ownership_remarks"`
	TestFields
}

// -------------------------
// Cylinders
// -------------------------

// POST /api/v1/cylinders
func CreateCylinderHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateCylinderRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		p, scope, err := auth.BodyScope(c, body.CompanyID, body.BranchID)
		if err != nil {
			return err
		}

		res, err := svc.Create(c.UserContext(), audit.ActorFrom(p), CreateInput{
			Scope:                scope,
			CreatedBy:            &p.UserID,
			CylinderCode:         body.CylinderCode,
			SerialNumber:         firstText(body.SerialNumber),
			BarcodeNumber:        firstText(body.BarcodeNumber),
			CylinderType:         firstText(body.CylinderType),
			CylinderFamilyCode:   body.CylinderFamilyCode,
			GasContent:           firstText(body.GasContent),
			ManufactureNo:        firstText(body.ManufactureNo),
			ChallanNo:            firstText(body.ChallanNo),
			Capacity:             body.Capacity,
			CapacityUnit:         firstText(body.CapacityUnit),
			Manufacturer:         firstText(body.Manufacturer),
			ManufactureDate:      presentDate(body.ManufactureDate),
			Status:               body.Status,
			OwnerType:            body.OwnerType,
			OwnerPartyID:         body.OwnerPartyID,
			CurrentHolderPartyID: body.CurrentHolderPartyID,
			OwnershipRemarks:     firstText(body.OwnershipRemarks),
			FirstTest: FirstTestFrom(presentDate(body.TestDate), body.TestType, body.result(),
				body.TestFields.input(&p.UserID)),
		})
		if err != nil {
			return err
		}
		return httpx.Created(c, "Cylinder created successfully", res)
	}
}

// GET /api/v1/cylinders?search=&status=&is_active=&page=&limit=
func ListCylindersHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		_, scope, err := auth.QueryScope(c)
		if err != nil {
			return err
		}
		paging := httpx.ResolvePaging(c, 20, 200)
		rows, total, err := svc.List(c.UserContext(), ListFilter{
			Scope:    scope,
			Search:   c.Query("search"),
			Status:   strings.ToLower(strings.TrimSpace(c.Query("status"))),
			IsActive: httpx.QueryBool(c, "is_active"),
			Offset:   paging.Offset,
			Limit:    paging.Limit,
		})
		if err != nil {
			return err
		}
		return httpx.Page(c, rows, paging, total)
	}
}

// GET /api/v1/cylinders/:id
func GetCylinderHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		_, scope, err := auth.QueryScope(c)
		if err != nil {
			return err
		}
		cyl, err := svc.Get(c.UserContext(), id, scope)
		if err != nil {
			return err
		}
		return httpx.Success(c, "", cyl)
	}
}

// GET /api/v1/cylinders/code/:code
func GetCylinderByCodeHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		_, scope, err := auth.QueryScope(c)
		if err != nil {
			return err
		}
		cyl, err := svc.GetByCode(c.UserContext(), c.Params("code"), scope)
		if err != nil {
			return err
		}
		return httpx.Success(c, "", cyl)
	}
}

// GET /api/v1/cylinders/serial/:serial
func GetCylinderBySerialHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		_, scope, err := auth.QueryScope(c)
		if err != nil {
			return err
		}
		cyl, err := svc.GetBySerial(c.UserContext(), c.Params("serial"), scope)
		if err != nil {
			return err
		}
		return httpx.Success(c, "", cyl)
	}
}

// PUT /api/v1/cylinders/:id?company_id=&branch_id=
func UpdateCylinderHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		p, scope, err := auth.QueryScope(c)
		if err != nil {
			return err
		}
		var body UpdateInput
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("Invalid request body: " + err.Error())
		}
		cyl, err := svc.Update(c.UserContext(), audit.ActorFrom(p), id, scope, body)
		if err != nil {
			return err
		}
		return httpx.Success(c, "Cylinder updated successfully", cyl)
	}
}

// DELETE /api/v1/cylinders/:id?company_id=&branch_id=
func DeleteCylinderHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		p, scope, err := auth.QueryScope(c)
		if err != nil {
			return err
		}
		if err := svc.Delete(c.UserContext(), audit.ActorFrom(p), id, scope); err != nil {
			return err
		}
		return httpx.Success(c, "Cylinder deleted successfully", nil)
	}
}

// GET /api/v1/cylinders/stats
func CylinderStatsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		_, scope, err := auth.QueryScope(c)
		if err != nil {
			return err
		}
		stats, err := svc.Stats(c.UserContext(), scope)
		if err != nil {
			return err
		}
		return httpx.Success(c, "", stats)
	}
}

func queryDays(c *fiber.Ctx, def int) (int, error) {
	raw := strings.TrimSpace(c.Query("days"))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperr.Validation("days must be a non-negative integer")
	}
	return n, nil
}

// GET /api/v1/cylinders/due-for-test?days=30
func DueForTestHandler(svc *Service, defaultDays int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		_, scope, err := auth.QueryScope(c)
		if err != nil {
			return err
		}
		days, err := queryDays(c, defaultDays)
		if err != nil {
			return err
		}
		due, err := svc.DueForTest(c.UserContext(), scope, days)
		if err != nil {
			return err
		}
		return httpx.Success(c, fmt.Sprintf("%d cylinder(s) due for test within %d days", len(due), days), due)
	}
}

// GET /api/v1/cylinders/due-for-test/export?days=30
func ExportDueForTestHandler(svc *Service, defaultDays int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		_, scope, err := auth.QueryScope(c)
		if err != nil {
			return err
		}
		days, err := queryDays(c, defaultDays)
		if err != nil {
			return err
		}
		data, err := svc.ExportDueForTest(c.UserContext(), scope, days)
		if err != nil {
			return err
		}
		filename := fmt.Sprintf("cylinders_due_%s.xlsx", models.Today())
		c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
		return c.Send(data)
	}
}

// POST /api/v1/cylinders/upload (multipart: file, company_id, branch_id)
func UploadCylindersHandler(svc *Service, maxRows int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return apperr.Validation("No file uploaded. Please upload a CSV file.")
		}
		p, scope, err := auth.BodyScope(c,
			httpx.ParseUint(c.FormValue("company_id")),
			httpx.ParseUint(c.FormValue("branch_id")))
		if err != nil {
			return err
		}

		f, err := fh.Open()
		if err != nil {
			return apperr.Wrap(err, "Uploaded file could not be read")
		}
		defer f.Close()

		rows, err := sheet.Read(fh.Filename, f, maxRows)
		if err != nil {
			return apperr.Validation(err.Error())
		}
		res, err := svc.BulkUpload(c.UserContext(), audit.ActorFrom(p), scope, &p.UserID, rows)
		if err != nil {
			return err
		}
		return httpx.Success(c,
			fmt.Sprintf("Upload complete. %d cylinder(s) inserted successfully, %d failed.", res.Inserted, res.Failed),
			res)
	}
}

// GET /api/v1/public/cylinder/:barcode
func PublicBarcodeHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		card, err := svc.LookupByBarcode(c.UserContext(), c.Params("barcode"))
		if err != nil {
			return err
		}
		return httpx.Success(c, "", card)
	}
}

// -------------------------
// Test records
// -------------------------

type TestRequest struct {
	CompanyID *uint `json:"company_id"`
	BranchID  *uint `json:"branch_id"`
	TestFields
}

// GET /api/v1/cylinders/:id/tests?test_type=
func ListCylinderTestsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		_, scope, err := auth.QueryScope(c)
		if err != nil {
			return err
		}
		tests, err := svc.ListTests(c.UserContext(), TestFilter{
			CompanyID:  scope.CompanyID,
			BranchID:   &scope.BranchID,
			CylinderID: &id,
			TestType:   strings.TrimSpace(c.Query("test_type")),
		})
		if err != nil {
			return err
		}
		return httpx.Success(c, "", tests)
	}
}

// POST /api/v1/cylinders/:id/tests
func AddCylinderTestHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body TestRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		p, scope, err := auth.BodyScope(c, body.CompanyID, body.BranchID)
		if err != nil {
			return err
		}
		t, err := svc.AddTest(c.UserContext(), audit.ActorFrom(p), scope, id, body.input(&p.UserID))
		if err != nil {
			return err
		}
		return httpx.Created(c, "Cylinder test added successfully", t)
	}
}

// PUT /api/v1/cylinder-tests/:testId
func UpdateCylinderTestHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		testID, err := httpx.ParamID(c, "testId")
		if err != nil {
			return err
		}
		var body TestRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		p, scope, err := auth.BodyScope(c, body.CompanyID, body.BranchID)
		if err != nil {
			return err
		}
		if err := svc.UpdateTest(c.UserContext(), audit.ActorFrom(p), scope, testID, body.input(&p.UserID)); err != nil {
			return err
		}
		return httpx.Success(c, "Cylinder test updated successfully", nil)
	}
}

// DELETE /api/v1/cylinder-tests/:testId?company_id=&branch_id=
func DeleteCylinderTestHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		testID, err := httpx.ParamID(c, "testId")
		if err != nil {
			return err
		}
		p, scope, err := auth.QueryScope(c)
		if err != nil {
			return err
		}
		if err := svc.DeleteTest(c.UserContext(), audit.ActorFrom(p), scope, testID); err != nil {
			return err
		}
		return httpx.Success(c, "Cylinder test deleted successfully", nil)
	}
}
