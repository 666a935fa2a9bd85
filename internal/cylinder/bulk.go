package cylinder

import (
	"context"
	"errors"
	"fmt"

	"cylinder-backend/internal/apperr"
	"cylinder-backend/internal/audit"
	"cylinder-backend/internal/auth"
	"cylinder-backend/internal/httpx"
	"cylinder-backend/internal/metrics"
	"cylinder-backend/internal/models"
	"cylinder-backend/internal/sheet"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxReportedRowErrors = 10

type RowError struct {
	Row          int    `json:"row"`
	CylinderCode string `json:"cylinder_code"`
	Error        string `json:"error"`
}

type InsertedRow struct {
	CylinderID   uint   `json:"cylinder_id"`
	CylinderCode string `json:"cylinder_code"`
	TestID       *uint  `json:"test_id"`
}

type BulkResult struct {
	Total           int           `json:"total"`
	Inserted        int           `json:"inserted"`
	Failed          int           `json:"failed"`
	Errors          []RowError    `json:"errors"`
	InsertedRecords []InsertedRow `json:"insertedRecords"`
}

func optionalDecimal(raw *string, field string) (*decimal.Decimal, error) {
	if raw == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q", field, *raw)
	}
	return &d, nil
}

func optionalDate(raw *string, field string) (*models.Date, error) {
	if raw == nil {
		return nil, nil
	}
	d, err := models.ParseDate(*raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q", field, *raw)
	}
	return &d, nil
}

// rowInput maps an upload row onto a create request. last_test_date in the
// sheet is the date of the first test.
func rowInput(r sheet.Row, scope auth.Scope, createdBy *uint) (CreateInput, error) {
	in := CreateInput{
		Scope:              scope,
		CreatedBy:          createdBy,
		CylinderCode:       r.Get("cylinder_code"),
		SerialNumber:       r.Ptr("serial_number"),
		BarcodeNumber:      r.Ptr("barcode_number"),
		CylinderType:       r.Ptr("cylinder_type"),
		CylinderFamilyCode: r.Get("cylinder_family_code"),
		GasContent:         r.Ptr("gas_content"),
		ManufactureNo:      r.Ptr("manufacture_no"),
		ChallanNo:          r.Ptr("challan_no"),
		CapacityUnit:       r.Ptr("capacity_unit"),
		Manufacturer:       r.Ptr("manufacturer"),
		Status:             r.Get("status"),
		OwnerType:          r.Get("owner_type"),
		OwnershipRemarks:   r.Ptr("ownership_remarks"),
	}
	if in.CylinderCode == "" || in.CylinderFamilyCode == "" {
		return in, apperr.Validation("cylinder_code and cylinder_family_code are required")
	}

	var err error
	if in.Capacity, err = optionalDecimal(r.Ptr("capacity"), "capacity"); err != nil {
		return in, apperr.Validation(err.Error())
	}
	if in.ManufactureDate, err = optionalDate(r.Ptr("manufacture_date"), "manufacture_date"); err != nil {
		return in, apperr.Validation(err.Error())
	}
	if raw := r.Get("owner_party_id"); raw != "" {
		if in.OwnerPartyID = httpx.ParseUint(raw); in.OwnerPartyID == nil {
			return in, apperr.Validation(fmt.Sprintf("invalid owner_party_id %q", raw))
		}
	}
	if raw := r.Get("current_holder_party_id"); raw != "" {
		if in.CurrentHolderPartyID = httpx.ParseUint(raw); in.CurrentHolderPartyID == nil {
			return in, apperr.Validation(fmt.Sprintf("invalid current_holder_party_id %q", raw))
		}
	}

	testDate, err := optionalDate(r.Ptr("last_test_date", "test_date"), "last_test_date")
	if err != nil {
		return in, apperr.Validation(err.Error())
	}
	pressure, err := optionalDecimal(r.Ptr("test_pressure"), "test_pressure")
	if err != nil {
		return in, apperr.Validation(err.Error())
	}
	nextTest, err := optionalDate(r.Ptr("next_test_date"), "next_test_date")
	if err != nil {
		return in, apperr.Validation(err.Error())
	}
	in.FirstTest = FirstTestFrom(testDate, r.Get("test_type"), NormalizeTestResult(r.Get("test_result", "test_status")), TestInput{
		TestPressure:  pressure,
		InspectorName: r.Ptr("inspector_name", "tester_name"),
		Notes:         r.Ptr("test_remarks", "test_notes", "notes"),
		NextTestDate:  nextTest,
		TestedBy:      createdBy,
	})
	return in, nil
}

// BulkUpload creates one cylinder per row, each in its own transaction.
// Failed rows are counted and do not stop the upload.
func (s *Service) BulkUpload(ctx context.Context, actor audit.Actor, scope auth.Scope, createdBy *uint, rows []sheet.Row) (*BulkResult, error) {
	if len(rows) == 0 {
		return nil, apperr.Validation("No data found in the uploaded file")
	}
	res := &BulkResult{Errors: []RowError{}, InsertedRecords: []InsertedRow{}}

	for i, r := range rows {
		rowNumber := i + 2
		if r.Get("cylinder_code") == "" && r.Get("cylinder_family_code") == "" {
			continue
		}
		res.Total++

		in, err := rowInput(r, scope, createdBy)
		var created *CreateResult
		if err == nil {
			created, err = s.Create(ctx, actor, in)
		}
		if err != nil {
			res.Failed++
			metrics.ImportRows.WithLabelValues(entityCylinder, "failed").Inc()
			s.log.Warn("cylinder upload row failed",
				zap.Int("row", rowNumber),
				zap.String("cylinder_code", r.Get("cylinder_code")),
				zap.Error(err))
			if len(res.Errors) < maxReportedRowErrors {
				code := r.Get("cylinder_code")
				if code == "" {
					code = "N/A"
				}
				res.Errors = append(res.Errors, RowError{Row: rowNumber, CylinderCode: code, Error: errorMessage(err)})
			}
			continue
		}

		res.Inserted++
		metrics.ImportRows.WithLabelValues(entityCylinder, "inserted").Inc()
		res.InsertedRecords = append(res.InsertedRecords, InsertedRow{
			CylinderID:   created.CylinderID,
			CylinderCode: in.CylinderCode,
			TestID:       created.TestID,
		})
	}
	return res, nil
}

func errorMessage(err error) string {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return err.Error()
}
