package party

import (
	"context"
	"fmt"

	"cylinder-backend/internal/apperr"
	"cylinder-backend/internal/audit"
	"cylinder-backend/internal/auth"
	"cylinder-backend/internal/metrics"
	"cylinder-backend/internal/models"
	"cylinder-backend/internal/sheet"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxReportedRateErrors = 10

type GasRateImportError struct {
	Row                int     `json:"row"`
	PartyCode          *string `json:"party_code"`
	GasCode            *string `json:"gas_code"`
	CylinderFamilyCode *string `json:"cylinder_family_code"`
	UOMCode            *string `json:"uom_code"`
	Error              string  `json:"error"`
}

type ImportedGasRate struct {
	PartyGasRateID     uint         `json:"party_gas_rate_id"`
	PartyCode          *string      `json:"party_code"`
	GasCode            string       `json:"gas_code"`
	CylinderFamilyCode *string      `json:"cylinder_family_code"`
	UOMCode            string       `json:"uom_code"`
	OwnershipType      string       `json:"ownership_type"`
	EffectiveFrom      models.Date  `json:"effective_from"`
	EffectiveTo        *models.Date `json:"effective_to"`
}

type GasRateImportResult struct {
	Total           int                  `json:"total"`
	Inserted        int                  `json:"inserted"`
	Failed          int                  `json:"failed"`
	Errors          []GasRateImportError `json:"errors"`
	InsertedRecords []ImportedGasRate    `json:"insertedRecords"`
}

// codeLookup resolves sheet codes to ids once per upload. Misses are cached
// as zero.
type codeLookup struct {
	db    *gorm.DB
	scope auth.Scope
	cache map[string]uint
}

func (l *codeLookup) find(model any, column, code string, branchScoped bool) (uint, error) {
	key := fmt.Sprintf("%T:%s", model, code)
	if id, ok := l.cache[key]; ok {
		return id, nil
	}
	q := l.db.Model(model).
		Where("company_id = ? AND is_active = ?", l.scope.CompanyID, true).
		Where("UPPER("+column+") = UPPER(?)", code)
	if branchScoped {
		q = q.Where("branch_id = ?", l.scope.BranchID)
	}
	var ids []uint
	if err := q.Order("id DESC").Limit(1).Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	var id uint
	if len(ids) > 0 {
		id = ids[0]
	}
	l.cache[key] = id
	return id, nil
}

func (l *codeLookup) must(model any, column, code, field string, branchScoped bool) (uint, error) {
	id, err := l.find(model, column, code, branchScoped)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, apperr.Validation(fmt.Sprintf("Invalid %s: %s", field, code))
	}
	return id, nil
}

type rateRow struct {
	partyCode  *string
	gasCode    string
	familyCode *string
	uomCode    string
	input      GasRateInput
}

func parseRateRow(r sheet.Row, l *codeLookup) (*rateRow, error) {
	row := &rateRow{
		partyCode:  r.Ptr("party_code", "cust_code", "partycode", "custcode"),
		gasCode:    r.Get("gas_code", "gascode"),
		familyCode: r.Ptr("cylinder_family_code", "cylinderfamilycode"),
		uomCode:    r.Get("uom_code", "uomcode"),
	}
	ownership := r.Get("ownership_type", "ownershiptype")
	rate := r.Get("rate")
	from := r.Get("effective_from", "effectivefrom")
	if row.gasCode == "" || row.uomCode == "" || ownership == "" || rate == "" || from == "" {
		return row, apperr.Validation("gas_code, uom_code, ownership_type, rate, effective_from are required")
	}

	in := &row.input
	in.OwnershipType = ownership
	in.Currency = r.Get("currency")
	d, err := decimal.NewFromString(rate)
	if err != nil {
		return row, apperr.Validation("rate must be a valid number")
	}
	in.Rate = &d
	if in.EffectiveFrom, err = models.ParseDate(from); err != nil {
		return row, apperr.Validation("effective_from must be a valid date (YYYY-MM-DD recommended)")
	}
	if raw := r.Get("effective_to", "effectiveto"); raw != "" {
		to, err := models.ParseDate(raw)
		if err != nil {
			return row, apperr.Validation("effective_to must be a valid date")
		}
		in.EffectiveTo = &to
	}
	if _, err := normalizeOwnership(in.OwnershipType); err != nil {
		return row, err
	}
	if err := checkRange(in.EffectiveFrom, in.EffectiveTo); err != nil {
		return row, err
	}

	if in.GasTypeID, err = l.must(&models.GasType{}, "gas_code", row.gasCode, "gas_code", false); err != nil {
		return row, err
	}
	if in.UnitOfMeasureID, err = l.must(&models.UnitOfMeasure{}, "uom_code", row.uomCode, "uom_code", false); err != nil {
		return row, err
	}
	if row.familyCode != nil {
		id, err := l.must(&models.CylinderFamily{}, "family_code", *row.familyCode, "cylinder_family_code", false)
		if err != nil {
			return row, err
		}
		in.CylinderFamilyID = &id
	}
	if row.partyCode != nil {
		id, err := l.must(&models.Party{}, "party_code", *row.partyCode, "party_code", true)
		if err != nil {
			return row, err
		}
		in.PartyID = &id
	}
	return row, nil
}

func isBlankRateRow(r sheet.Row) bool {
	return r.Get("party_code", "cust_code") == "" && r.Get("gas_code") == "" &&
		r.Get("cylinder_family_code") == "" && r.Get("uom_code") == "" &&
		r.Get("ownership_type") == "" && r.Get("rate") == "" && r.Get("effective_from") == ""
}

// ImportGasRates creates one rate per row. Party codes resolve inside the
// scope's branch; gas, family and unit codes inside its company. Rows fail
// independently and only the first few errors are reported.
func (s *Service) ImportGasRates(ctx context.Context, p *auth.Principal, scope auth.Scope, rows []sheet.Row) (*GasRateImportResult, error) {
	if len(rows) == 0 {
		return nil, apperr.Validation("No data found in the uploaded file")
	}
	res := &GasRateImportResult{Errors: []GasRateImportError{}, InsertedRecords: []ImportedGasRate{}}
	actor := audit.ActorFrom(p)
	lookup := &codeLookup{db: s.db.WithContext(ctx), scope: scope, cache: map[string]uint{}}

	for i, r := range rows {
		rowNumber := i + 2
		if isBlankRateRow(r) {
			continue
		}
		res.Total++

		row, err := parseRateRow(r, lookup)
		var rate *models.PartyGasRate
		if err == nil {
			rate, err = s.createGasRate(ctx, actor, scope.CompanyID, &p.UserID, row.input, models.AuditActionImport)
		}
		if err != nil {
			res.Failed++
			metrics.ImportRows.WithLabelValues(entityGasRate, "failed").Inc()
			s.log.Warn("gas rate import row failed", zap.Int("row", rowNumber), zap.Error(err))
			if len(res.Errors) < maxReportedRateErrors {
				res.Errors = append(res.Errors, GasRateImportError{
					Row:                rowNumber,
					PartyCode:          row.partyCode,
					GasCode:            r.Ptr("gas_code"),
					CylinderFamilyCode: row.familyCode,
					UOMCode:            r.Ptr("uom_code"),
					Error:              errorMessage(err),
				})
			}
			continue
		}

		res.Inserted++
		metrics.ImportRows.WithLabelValues(entityGasRate, "inserted").Inc()
		res.InsertedRecords = append(res.InsertedRecords, ImportedGasRate{
			PartyGasRateID:     rate.ID,
			PartyCode:          row.partyCode,
			GasCode:            row.gasCode,
			CylinderFamilyCode: row.familyCode,
			UOMCode:            row.uomCode,
			OwnershipType:      rate.OwnershipType,
			EffectiveFrom:      rate.EffectiveFrom,
			EffectiveTo:        rate.EffectiveTo,
		})
	}
	return res, nil
}
