package admin

import (
	"strings"

	"cylinder-backend/internal/apperr"
	"cylinder-backend/internal/httpx"
	"cylinder-backend/internal/models"
	"cylinder-backend/internal/nullable"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type CreateCompanyRequest struct {
	CompanyCode string  `json:"company_code" validate:"required,max=20"`
	CompanyName string  `json:"company_name" validate:"required,max=200"`
	GSTNum      *string `json:"gst_num" validate:"omitempty,max=25"`
	Address     *string `json:"address" validate:"omitempty,max=255"`
	Phone       *string `json:"phone" validate:"omitempty,max=20"`
	Email       *string `json:"email" validate:"omitempty,email"`
}

type UpdateCompanyRequest struct {
	CompanyName nullable.Field[string] `json:"company_name"`
	GSTNum      nullable.Field[string] `json:"gst_num"`
	Address     nullable.Field[string] `json:"address"`
	Phone       nullable.Field[string] `json:"phone"`
	Email       nullable.Field[string] `json:"email"`
	IsActive    nullable.Field[bool]   `json:"is_active"`
}

func (r UpdateCompanyRequest) columns() (map[string]any, error) {
	updates := map[string]any{}
	if r.CompanyName.Set {
		name := strings.TrimSpace(r.CompanyName.Value)
		if r.CompanyName.Null || name == "" {
			return nil, apperr.Validation("company_name cannot be empty")
		}
		updates["company_name"] = name
	}
	if r.IsActive.Set {
		if r.IsActive.Null {
			return nil, apperr.Validation("is_active cannot be null")
		}
		updates["is_active"] = r.IsActive.Value
	}
	r.GSTNum.Apply(updates, "gst_num")
	r.Address.Apply(updates, "address")
	r.Phone.Apply(updates, "phone")
	r.Email.Apply(updates, "email")
	return updates, nil
}

// -------------------------
// Companies
// -------------------------

// POST /api/v1/companies
func CreateCompanyHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateCompanyRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		company := models.Company{
			CompanyCode: strings.ToUpper(strings.TrimSpace(body.CompanyCode)),
			CompanyName: strings.TrimSpace(body.CompanyName),
			GSTNum:      body.GSTNum,
			Address:     body.Address,
			Phone:       body.Phone,
			Email:       body.Email,
			IsActive:    true,
		}

		var n int64
		db := db.WithContext(c.UserContext())
		if err := db.Model(&models.Company{}).Where("company_code = ?", company.CompanyCode).Count(&n).Error; err != nil {
			return apperr.Wrap(err, "Company could not be created")
		}
		if n > 0 {
			return apperr.Conflict("Company code " + company.CompanyCode + " already exists")
		}
		if err := db.Create(&company).Error; err != nil {
			return apperr.FromDB(err, "Company could not be created")
		}
		return httpx.Created(c, "Company created successfully", company)
	}
}

// GET /api/v1/companies?search=&is_active=
func ListCompaniesHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := db.WithContext(c.UserContext()).Model(&models.Company{})
		if term := strings.ToLower(strings.TrimSpace(c.Query("search"))); term != "" {
			like := "%" + term + "%"
			q = q.Where("LOWER(company_code) LIKE ? OR LOWER(company_name) LIKE ?", like, like)
		}
		if active := httpx.QueryBool(c, "is_active"); active != nil {
			q = q.Where("is_active = ?", *active)
		}

		var companies []models.Company
		if err := q.Order("company_name, id").Find(&companies).Error; err != nil {
			return apperr.Wrap(err, "Companies could not be listed")
		}
		return httpx.Success(c, "", companies)
	}
}

// PUT /api/v1/companies/:id
func UpdateCompanyHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body UpdateCompanyRequest
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("Invalid request body: " + err.Error())
		}
		updates, err := body.columns()
		if err != nil {
			return err
		}

		db := db.WithContext(c.UserContext())
		var company models.Company
		if err := db.First(&company, id).Error; err != nil {
			return apperr.FromDB(err, "Company not found")
		}
		if len(updates) > 0 {
			if err := db.Model(&company).Updates(updates).Error; err != nil {
				return apperr.FromDB(err, "Company not found")
			}
		}
		if err := db.First(&company, id).Error; err != nil {
			return apperr.FromDB(err, "Company not found")
		}
		return httpx.Success(c, "Company updated successfully", company)
	}
}
