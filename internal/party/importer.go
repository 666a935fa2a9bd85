package party

import (
	"context"
	"errors"
	"strings"

	"cylinder-backend/internal/apperr"
	"cylinder-backend/internal/audit"
	"cylinder-backend/internal/auth"
	"cylinder-backend/internal/httpx"
	"cylinder-backend/internal/metrics"
	"cylinder-backend/internal/models"
	"cylinder-backend/internal/sheet"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	ActionInsert = "INSERT"
	ActionUpdate = "UPDATE"
)

type ImportError struct {
	Row       int     `json:"row"`
	CompanyID uint    `json:"company_id"`
	BranchID  uint    `json:"branch_id"`
	PartyCode *string `json:"party_code"`
	Error     string  `json:"error"`
}

type UpsertedParty struct {
	PartyID   uint   `json:"party_id"`
	CompanyID uint   `json:"company_id"`
	BranchID  uint   `json:"branch_id"`
	PartyCode string `json:"party_code"`
	PartyName string `json:"party_name"`
	Action    string `json:"action"`
}

type ImportResult struct {
	Total           int             `json:"total"`
	Inserted        int             `json:"inserted"`
	Updated         int             `json:"updated"`
	Failed          int             `json:"failed"`
	Errors          []ImportError   `json:"errors"`
	UpsertedRecords []UpsertedParty `json:"upserted_records"`
}

// importRow is one parsed upload row. Nil fields leave stored values alone
// on update.
type importRow struct {
	scope   auth.Scope
	code    string
	name    string
	columns map[string]any
	active  *bool

	address *AddressInput
	contact *ContactInput
	// explicit is_default / is_primary values; nil keeps the stored flag
	isDefault *bool
	isPrimary *bool
	contactOn *bool
}

func parseRow(r sheet.Row, p *auth.Principal) (*importRow, error) {
	row := &importRow{
		scope: auth.Scope{CompanyID: p.CompanyID, BranchID: p.BranchID},
		code:  r.Get("party_code", "cust_code", "partycode", "custcode"),
		name:  r.Get("party_name", "cust_name", "partyname", "custname"),
	}
	if id := httpx.ParseUint(r.Get("company_id", "companyid")); id != nil {
		row.scope.CompanyID = *id
	}
	if id := httpx.ParseUint(r.Get("branch_id", "branchid")); id != nil {
		row.scope.BranchID = *id
	}
	if err := p.EnforceScope(row.scope.CompanyID, row.scope.BranchID); err != nil {
		return row, err
	}
	if row.scope.CompanyID == 0 || row.scope.BranchID == 0 || row.code == "" || row.name == "" {
		return row, apperr.Validation("company_id, branch_id, party_code and party_name are required")
	}

	row.columns = map[string]any{}
	for column, keys := range map[string][]string{
		"gst_num":        {"gst_num", "gstnum"},
		"pan_no":         {"pan_no", "panno"},
		"cin_no":         {"cin_no", "cinno"},
		"company_type":   {"company_type", "companytype"},
		"msme_no":        {"msme_no", "msmeno"},
		"msme_type":      {"msme_type", "msmetype"},
		"udyam_no":       {"udyam_no", "udyamno"},
		"phone":          {"party_phone", "partyphone"},
		"email":          {"party_email", "partyemail"},
		"contact_person": {"contact_person", "contactperson"},
	} {
		if v := r.Ptr(keys...); v != nil {
			row.columns[column] = *v
		}
	}
	if id := httpx.ParseUint(r.Get("party_type_id", "partytypeid")); id != nil {
		row.columns["party_type_id"] = *id
	}
	if id := httpx.ParseUint(r.Get("party_category_id", "partycategoryid")); id != nil {
		row.columns["party_category_id"] = *id
	}
	row.active = httpx.ParseBool(r.Get("is_active", "isactive"))

	addrType := r.Get("address_type", "addresstype")
	address1 := r.Get("address1", "address_1", "address")
	row.isDefault = httpx.ParseBool(r.Get("is_default", "isdefault"))
	cityID := httpx.ParseUint(r.Get("city_id", "cityid"))
	stateID := httpx.ParseUint(r.Get("state_id", "stateid"))
	countryID := httpx.ParseUint(r.Get("country_id", "countryid"))
	pincode := r.Ptr("pincode", "pin_code")
	address2 := r.Ptr("address2", "address_2")
	address3 := r.Ptr("address3", "address_3")
	if addrType != "" || address1 != "" || address2 != nil || address3 != nil ||
		cityID != nil || stateID != nil || countryID != nil || pincode != nil || row.isDefault != nil {
		if addrType == "" || address1 == "" {
			return row, apperr.Validation("address_type and address1 are required when address columns are provided")
		}
		t, err := NormalizeAddressType(addrType)
		if err != nil {
			return row, err
		}
		row.address = &AddressInput{
			AddressType: t, Address1: address1, Address2: address2, Address3: address3,
			CityID: cityID, StateID: stateID, CountryID: countryID, Pincode: pincode,
		}
	}

	first := r.Get("contact_first_name", "first_name", "firstname")
	last := r.Ptr("contact_last_name", "last_name", "lastname")
	email := r.Ptr("contact_email", "email")
	mobile := r.Ptr("contact_mobile_no", "mobile_no", "mobile")
	phone := r.Ptr("contact_phone_no", "phone_no", "phone")
	row.isPrimary = httpx.ParseBool(r.Get("is_primary", "isprimary"))
	row.contactOn = httpx.ParseBool(r.Get("contact_is_active", "contactisactive"))
	if first != "" || last != nil || email != nil || mobile != nil || phone != nil || row.isPrimary != nil || row.contactOn != nil {
		if first == "" {
			return row, apperr.Validation("contact_first_name is required when contact columns are provided")
		}
		row.contact = &ContactInput{
			FirstName: first, LastName: last, Email: email, MobileNo: mobile, PhoneNo: phone,
			ContactPerson: r.Ptr("contact_person_name", "contact_contact_person"),
		}
	}
	return row, nil
}

// isHeaderRepeat reports a header line repeated inside the data, which
// some exports produce.
func isHeaderRepeat(r sheet.Row) bool {
	return strings.EqualFold(r.Get("party_code", "cust_code"), "party_code") ||
		strings.EqualFold(r.Get("party_name", "cust_name"), "party_name")
}

// Import upserts parties by (company, branch, party_code). Each row runs in
// its own transaction; failing rows are reported and skipped.
func (s *Service) Import(ctx context.Context, p *auth.Principal, rows []sheet.Row) (*ImportResult, error) {
	if len(rows) == 0 {
		return nil, apperr.Validation("No data found in the uploaded file")
	}
	res := &ImportResult{Errors: []ImportError{}, UpsertedRecords: []UpsertedParty{}}
	actor := audit.ActorFrom(p)

	for i, r := range rows {
		rowNumber := i + 2
		if r.Empty() || isHeaderRepeat(r) {
			continue
		}
		res.Total++

		row, err := parseRow(r, p)
		var up *UpsertedParty
		if err == nil {
			up, err = s.upsertRow(ctx, actor, &p.UserID, row)
		}
		if err != nil {
			res.Failed++
			metrics.ImportRows.WithLabelValues(entityParty, "failed").Inc()
			s.log.Warn("party import row failed", zap.Int("row", rowNumber), zap.Error(err))
			res.Errors = append(res.Errors, ImportError{
				Row:       rowNumber,
				CompanyID: row.scope.CompanyID,
				BranchID:  row.scope.BranchID,
				PartyCode: r.Ptr("party_code", "cust_code"),
				Error:     errorMessage(err),
			})
			continue
		}

		if up.Action == ActionInsert {
			res.Inserted++
		} else {
			res.Updated++
		}
		metrics.ImportRows.WithLabelValues(entityParty, strings.ToLower(up.Action)).Inc()
		res.UpsertedRecords = append(res.UpsertedRecords, *up)
	}
	return res, nil
}

func (s *Service) upsertRow(ctx context.Context, actor audit.Actor, userID *uint, row *importRow) (*UpsertedParty, error) {
	up := &UpsertedParty{
		CompanyID: row.scope.CompanyID,
		BranchID:  row.scope.BranchID,
		PartyCode: row.code,
		PartyName: row.name,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Party
		err := scoped(tx, row.scope).Where("party_code = ?", row.code).First(&existing).Error
		switch {
		case err == nil:
			updates := map[string]any{"party_name": row.name, "modified_by": userID}
			for k, v := range row.columns {
				updates[k] = v
			}
			if row.active != nil {
				updates["is_active"] = *row.active
			}
			if err := tx.Model(&models.Party{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
				return err
			}
			up.PartyID = existing.ID
			up.Action = ActionUpdate
		case errors.Is(err, gorm.ErrRecordNotFound):
			p := models.Party{
				CompanyID: row.scope.CompanyID,
				BranchID:  row.scope.BranchID,
				PartyCode: row.code,
				PartyName: row.name,
				IsActive:  row.active == nil || *row.active,
				CreatedBy: userID,
			}
			if err := tx.Create(&p).Error; err != nil {
				return err
			}
			if len(row.columns) > 0 {
				if err := tx.Model(&models.Party{}).Where("id = ?", p.ID).Updates(row.columns).Error; err != nil {
					return err
				}
			}
			up.PartyID = p.ID
			up.Action = ActionInsert
		default:
			return err
		}

		if row.address != nil {
			if err := upsertAddress(tx, up.PartyID, row.address, row.isDefault); err != nil {
				return err
			}
		}
		if row.contact != nil {
			if err := upsertContact(tx, up.PartyID, row.contact, row.isPrimary, row.contactOn); err != nil {
				return err
			}
		}

		action := models.AuditActionImport
		return audit.WriteLog(tx, audit.LogOptions{
			CompanyID:   row.scope.CompanyID,
			BranchID:    &row.scope.BranchID,
			Actor:       actor,
			EntityType:  entityParty,
			EntityID:    up.PartyID,
			Action:      action,
			Description: "Party " + row.code + " imported (" + up.Action + ")",
			After:       up,
		})
	})
	if err != nil {
		return nil, err
	}
	return up, nil
}

// upsertAddress matches on (address_type, address1, pincode).
func upsertAddress(tx *gorm.DB, partyID uint, in *AddressInput, isDefault *bool) error {
	q := tx.Where("party_id = ? AND address_type = ? AND address1 = ?", partyID, in.AddressType, in.Address1)
	if in.Pincode == nil {
		q = q.Where("(pincode IS NULL OR pincode = '')")
	} else {
		q = q.Where("pincode = ?", *in.Pincode)
	}
	var existing []models.PartyAddress
	if err := q.Order("id").Limit(1).Find(&existing).Error; err != nil {
		return err
	}

	if len(existing) == 0 {
		in.IsDefault = isDefault != nil && *isDefault
		_, err := saveAddress(tx, partyID, *in)
		return err
	}

	a := existing[0]
	updates := map[string]any{"is_active": true}
	for column, v := range map[string]any{
		"address2": in.Address2, "address3": in.Address3,
		"city_id": in.CityID, "state_id": in.StateID, "country_id": in.CountryID,
	} {
		if !isNilPtr(v) {
			updates[column] = v
		}
	}
	if isDefault != nil {
		updates["is_default"] = *isDefault
	}
	if err := tx.Model(&models.PartyAddress{}).Where("id = ?", a.ID).Updates(updates).Error; err != nil {
		return err
	}
	if isDefault != nil && *isDefault {
		return makeDefault(tx, &a)
	}
	return nil
}

// upsertContact matches on email, then mobile, then phone, then name.
func upsertContact(tx *gorm.DB, partyID uint, in *ContactInput, isPrimary, isActive *bool) error {
	q := tx.Where("party_id = ?", partyID)
	switch {
	case in.Email != nil:
		q = q.Where("email = ?", *in.Email)
	case in.MobileNo != nil:
		q = q.Where("mobile_no = ?", *in.MobileNo)
	case in.PhoneNo != nil:
		q = q.Where("phone_no = ?", *in.PhoneNo)
	case in.LastName != nil:
		q = q.Where("first_name = ? AND last_name = ?", in.FirstName, *in.LastName)
	default:
		q = q.Where("first_name = ? AND (last_name IS NULL OR last_name = '')", in.FirstName)
	}
	var existing []models.PartyContact
	if err := q.Order("id").Limit(1).Find(&existing).Error; err != nil {
		return err
	}

	if len(existing) == 0 {
		in.IsPrimary = isPrimary != nil && *isPrimary
		c, err := saveContact(tx, partyID, *in)
		if err != nil {
			return err
		}
		if isActive != nil && !*isActive {
			return tx.Model(c).Update("is_active", false).Error
		}
		return nil
	}

	c := existing[0]
	updates := map[string]any{}
	for column, v := range map[string]any{
		"last_name": in.LastName, "contact_person": in.ContactPerson,
		"email": in.Email, "mobile_no": in.MobileNo, "phone_no": in.PhoneNo,
	} {
		if !isNilPtr(v) {
			updates[column] = v
		}
	}
	if isPrimary != nil {
		updates["is_primary"] = *isPrimary
	}
	if isActive != nil {
		updates["is_active"] = *isActive
	}
	if len(updates) > 0 {
		if err := tx.Model(&models.PartyContact{}).Where("id = ?", c.ID).Updates(updates).Error; err != nil {
			return err
		}
	}
	if isPrimary != nil && *isPrimary {
		return makePrimary(tx, &c)
	}
	return nil
}

func isNilPtr(v any) bool {
	switch p := v.(type) {
	case *string:
		return p == nil
	case *uint:
		return p == nil
	default:
		return v == nil
	}
}

func errorMessage(err error) string {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return err.Error()
}
