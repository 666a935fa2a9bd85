package admin

import (
	"strings"

	"cylinder-backend/internal/apperr"
	"cylinder-backend/internal/httpx"
	"cylinder-backend/internal/models"
	"cylinder-backend/internal/nullable"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type CreateBranchRequest struct {
	BranchCode string  `json:"branch_code" validate:"required,max=20"`
	BranchName string  `json:"branch_name" validate:"required,max=200"`
	Address    *string `json:"address" validate:"omitempty,max=255"`
	Phone      *string `json:"phone" validate:"omitempty,max=20"`
}

type UpdateBranchRequest struct {
	BranchName nullable.Field[string] `json:"branch_name"`
	Address    nullable.Field[string] `json:"address"`
	Phone      nullable.Field[string] `json:"phone"`
	IsActive   nullable.Field[bool]   `json:"is_active"`
}

type CreateBranchAdminRequest struct {
	FirstName string  `json:"first_name" validate:"required,max=100"`
	LastName  *string `json:"last_name" validate:"omitempty,max=100"`
	Email     string  `json:"email" validate:"required,email,max=150"`
	Password  string  `json:"password" validate:"required,min=8,max=72"`
}

func findBranch(db *gorm.DB, id uint) (*models.Branch, error) {
	var branch models.Branch
	if err := db.First(&branch, id).Error; err != nil {
		return nil, apperr.FromDB(err, "Branch not found")
	}
	return &branch, nil
}

// -------------------------
// Branch CRUD
// -------------------------

// POST /api/v1/companies/:id/branches
func CreateBranchHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		companyID, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body CreateBranchRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}

		db := db.WithContext(c.UserContext())
		var company models.Company
		if err := db.First(&company, companyID).Error; err != nil {
			return apperr.FromDB(err, "Company not found")
		}

		branch := models.Branch{
			CompanyID:  company.ID,
			BranchCode: strings.ToUpper(strings.TrimSpace(body.BranchCode)),
			BranchName: strings.TrimSpace(body.BranchName),
			Address:    body.Address,
			Phone:      body.Phone,
			IsActive:   true,
		}
		var n int64
		if err := db.Model(&models.Branch{}).
			Where("company_id = ? AND branch_code = ?", company.ID, branch.BranchCode).
			Count(&n).Error; err != nil {
			return apperr.Wrap(err, "Branch could not be created")
		}
		if n > 0 {
			return apperr.Conflict("Branch code " + branch.BranchCode + " already exists in this company")
		}
		if err := db.Create(&branch).Error; err != nil {
			return apperr.FromDB(err, "Branch could not be created")
		}
		return httpx.Created(c, "Branch created successfully", branch)
	}
}

// GET /api/v1/companies/:id/branches
func ListBranchesHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		companyID, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		q := db.WithContext(c.UserContext()).Where("company_id = ?", companyID)
		if active := httpx.QueryBool(c, "is_active"); active != nil {
			q = q.Where("is_active = ?", *active)
		}
		var branches []models.Branch
		if err := q.Order("branch_code, id").Find(&branches).Error; err != nil {
			return apperr.Wrap(err, "Branches could not be listed")
		}
		return httpx.Success(c, "", branches)
	}
}

// PUT /api/v1/branches/:id
func UpdateBranchHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body UpdateBranchRequest
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("Invalid request body: " + err.Error())
		}

		updates := map[string]any{}
		if body.BranchName.Set {
			name := strings.TrimSpace(body.BranchName.Value)
			if body.BranchName.Null || name == "" {
				return apperr.Validation("branch_name cannot be empty")
			}
			updates["branch_name"] = name
		}
		if body.IsActive.Set {
			if body.IsActive.Null {
				return apperr.Validation("is_active cannot be null")
			}
			updates["is_active"] = body.IsActive.Value
		}
		body.Address.Apply(updates, "address")
		body.Phone.Apply(updates, "phone")

		db := db.WithContext(c.UserContext())
		branch, err := findBranch(db, id)
		if err != nil {
			return err
		}
		if len(updates) > 0 {
			if err := db.Model(branch).Updates(updates).Error; err != nil {
				return apperr.FromDB(err, "Branch not found")
			}
		}
		branch, err = findBranch(db, id)
		if err != nil {
			return err
		}
		return httpx.Success(c, "Branch updated successfully", branch)
	}
}

// DELETE /api/v1/branches/:id
// Branches are deactivated, never removed; cylinders and tests keep their scope.
func DeleteBranchHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		db := db.WithContext(c.UserContext())
		branch, err := findBranch(db, id)
		if err != nil {
			return err
		}
		if err := db.Model(branch).Update("is_active", false).Error; err != nil {
			return apperr.Wrap(err, "Branch could not be deactivated")
		}
		return httpx.Success(c, "Branch deactivated successfully", nil)
	}
}

// -------------------------
// Branch users
// -------------------------

// POST /api/v1/branches/:id/admins
func CreateBranchAdminHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body CreateBranchAdminRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}

		db := db.WithContext(c.UserContext())
		branch, err := findBranch(db, id)
		if err != nil {
			return err
		}

		email := strings.ToLower(strings.TrimSpace(body.Email))
		var n int64
		if err := db.Model(&models.User{}).Where("email = ?", email).Count(&n).Error; err != nil {
			return apperr.Wrap(err, "Branch admin could not be created")
		}
		if n > 0 {
			return apperr.Conflict("User with this email already exists")
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
		if err != nil {
			return apperr.Wrap(err, "Password could not be hashed")
		}
		user := models.User{
			CompanyID:       branch.CompanyID,
			BranchID:        branch.ID,
			FirstName:       strings.TrimSpace(body.FirstName),
			LastName:        body.LastName,
			Email:           email,
			PasswordHash:    string(hash),
			RoleName:        "Branch Admin",
			PermissionLevel: models.PermissionCompanyAdmin,
			IsActive:        true,
		}
		if err := db.Create(&user).Error; err != nil {
			return apperr.FromDB(err, "Branch admin could not be created")
		}
		return httpx.Created(c, "Branch admin created successfully", user)
	}
}

// GET /api/v1/branches/:id/users
func ListBranchUsersHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		db := db.WithContext(c.UserContext())
		if _, err := findBranch(db, id); err != nil {
			return err
		}
		var users []models.User
		if err := db.Where("branch_id = ?", id).
			Order("permission_level DESC, created_at DESC").
			Find(&users).Error; err != nil {
			return apperr.Wrap(err, "Users could not be listed")
		}
		return httpx.Success(c, "", users)
	}
}
