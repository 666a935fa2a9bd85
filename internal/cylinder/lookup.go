package cylinder

import (
	"context"
	"strings"

	"cylinder-backend/internal/apperr"
	"cylinder-backend/internal/models"
)

// BarcodeCard is the public view of a cylinder shown when its QR code is scanned.
type BarcodeCard struct {
	ManufactureDetails ManufactureDetails `json:"manufacture_details"`
	CylinderDetails    CylinderDetails    `json:"cylinder_details"`
	TestingDetails     TestingDetails     `json:"testing_details"`
	Meta               CardMeta           `json:"meta"`
}

type ManufactureDetails struct {
	ManufactureDate    *models.Date `json:"manufacture_date"`
	ManufacturerName   *string      `json:"manufacturer_name"`
	ManufacturerNumber *string      `json:"manufacturer_number"`
}

type CylinderDetails struct {
	QRCode         *string `json:"qr_code"`
	CylinderNumber string  `json:"cylinder_number"`
	PesoNumber     *string `json:"peso_number"`
	Category       *string `json:"category"`
	Ownership      *string `json:"ownership"`
	GasContent     *string `json:"gas_content"`
}

type TestingDetails struct {
	TestStatus           string       `json:"test_status"`
	LastTestDate         *models.Date `json:"last_test_date"`
	TestName             *string      `json:"test_name"`
	TareWeight           *string      `json:"tare_weight"`
	PermissionDate       *models.Date `json:"permission_date"`
	WorkingPressure      *string      `json:"working_pressure"`
	WaterFillingCapacity *string      `json:"water_filling_capacity"`
	ReferenceNumber      *string      `json:"reference_number"`
	NextTestDate         *models.Date `json:"next_test_date"`
	InspectorName        *string      `json:"inspector_name"`
	TestNotes            *string      `json:"test_notes"`
}

type CardMeta struct {
	CylinderID   uint        `json:"cylinder_id"`
	Barcode      *string     `json:"barcode"`
	Company      *string     `json:"company"`
	Branch       *string     `json:"branch"`
	IsActive     bool        `json:"is_active"`
	RegisteredOn models.Date `json:"registered_on"`
}

func strPtr(s string) *string { return &s }

// LookupByBarcode finds an active cylinder by barcode across all tenants.
func (s *Service) LookupByBarcode(ctx context.Context, barcode string) (*BarcodeCard, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, apperr.Validation("Barcode is required")
	}
	db := s.db.WithContext(ctx)
	row, err := s.repo.FindActiveByBarcode(db, barcode)
	if err != nil {
		return nil, apperr.Wrap(err, "Failed to retrieve cylinder details")
	}
	latest, err := s.repo.LatestTest(db, row.ID)
	if err != nil {
		return nil, apperr.Wrap(err, "Failed to retrieve cylinder details")
	}

	c := row.Cylinder
	card := &BarcodeCard{
		ManufactureDetails: ManufactureDetails{
			ManufactureDate:    c.ManufactureDate,
			ManufacturerName:   c.Manufacturer,
			ManufacturerNumber: c.ManufactureNo,
		},
		CylinderDetails: CylinderDetails{
			QRCode:         c.BarcodeNumber,
			CylinderNumber: c.CylinderCode,
			PesoNumber:     c.SerialNumber,
			Category:       c.CylinderType,
			Ownership:      row.CompanyName,
			GasContent:     c.GasContent,
		},
		TestingDetails: TestingDetails{
			TestStatus:   c.Status,
			LastTestDate: c.LastTestDate,
			NextTestDate: c.NextTestDate,
		},
		Meta: CardMeta{
			CylinderID:   c.ID,
			Barcode:      c.BarcodeNumber,
			Company:      row.CompanyName,
			Branch:       row.BranchName,
			IsActive:     c.IsActive,
			RegisteredOn: models.DateOf(c.CreatedAt),
		},
	}
	if c.Capacity != nil {
		unit := "Liters"
		if c.CapacityUnit != nil && *c.CapacityUnit != "" {
			unit = *c.CapacityUnit
		}
		card.TestingDetails.WaterFillingCapacity = strPtr(c.Capacity.String() + " " + unit)
	}

	if latest != nil {
		t := &card.TestingDetails
		t.TestStatus = string(latest.TestResult)
		t.TestName = strPtr(latest.TestType)
		t.InspectorName = latest.InspectorName
		t.TestNotes = latest.Notes
		t.PermissionDate = latest.PermissionDate
		t.ReferenceNumber = latest.ReferenceNumber
		if latest.TestPressure != nil {
			t.WorkingPressure = strPtr(latest.TestPressure.String() + " bar")
		}
		if latest.TareWeight != nil {
			t.TareWeight = strPtr(latest.TareWeight.String() + " kg")
		}
		if latest.WaterFillingCapacity != nil {
			t.WaterFillingCapacity = strPtr(latest.WaterFillingCapacity.String() + " Liters")
		}
	}
	return card, nil
}
