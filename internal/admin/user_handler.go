package admin

import (
	"strings"

	"cylinder-backend/internal/apperr"
	"cylinder-backend/internal/auth"
	"cylinder-backend/internal/httpx"
	"cylinder-backend/internal/models"
	"cylinder-backend/internal/nullable"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const msgUserNotFound = "User not found"

type CreateUserRequest struct {
	CompanyID *uint   `json:"company_id"`
	BranchID  uint    `json:"branch_id" validate:"required"`
	RoleID    uint    `json:"role_id" validate:"required"`
	FirstName string  `json:"first_name" validate:"required,max=100"`
	LastName  *string `json:"last_name" validate:"omitempty,max=100"`
	Email     string  `json:"email" validate:"required,email,max=150"`
	Password  string  `json:"password" validate:"required,min=6,max=72"`
}

// UpdateUserRequest never carries a password.
type UpdateUserRequest struct {
	FirstName nullable.Field[string] `json:"first_name"`
	LastName  nullable.Field[string] `json:"last_name"`
	BranchID  nullable.Field[uint]   `json:"branch_id"`
	RoleID    nullable.Field[uint]   `json:"role_id"`
	IsActive  nullable.Field[bool]   `json:"is_active"`
}

// assignableRole loads an active role the caller may hand out. Nobody can
// grant a level above their own.
func assignableRole(db *gorm.DB, p *auth.Principal, id uint) (*models.Role, error) {
	var role models.Role
	if err := db.Where("id = ? AND is_active = ?", id, true).First(&role).Error; err != nil {
		return nil, apperr.FromDB(err, "Invalid role_id")
	}
	if role.PermissionLevel > p.PermissionLevel {
		return nil, apperr.Forbidden("Cannot assign a role above your own permission level")
	}
	return &role, nil
}

func activeBranch(db *gorm.DB, companyID, branchID uint) error {
	var n int64
	if err := db.Model(&models.Branch{}).
		Where("id = ? AND company_id = ? AND is_active = ?", branchID, companyID, true).
		Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return apperr.Validation("Invalid branch_id for this company")
	}
	return nil
}

// scopedUser loads a user the caller is allowed to manage.
func scopedUser(db *gorm.DB, p *auth.Principal, id uint) (*models.User, error) {
	var u models.User
	if err := db.First(&u, id).Error; err != nil {
		return nil, apperr.FromDB(err, msgUserNotFound)
	}
	if err := p.EnforceScope(u.CompanyID, u.BranchID); err != nil {
		return nil, err
	}
	return &u, nil
}

// -------------------------
// Users
// -------------------------

// GET /api/v1/users?company_id=&branch_id=&is_active=
func ListUsersHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.MustPrincipal(c)
		if err != nil {
			return err
		}
		companyID := p.CompanyID
		if id := httpx.QueryUint(c, "company_id"); id != nil {
			companyID = *id
		}
		branchID := httpx.QueryUint(c, "branch_id")
		if branchID == nil && p.PermissionLevel < models.PermissionCompanyAdmin {
			branchID = &p.BranchID
		}
		var b uint
		if branchID != nil {
			b = *branchID
		}
		if err := p.EnforceScope(companyID, b); err != nil {
			return err
		}

		q := db.WithContext(c.UserContext()).Where("company_id = ?", companyID)
		if branchID != nil {
			q = q.Where("branch_id = ?", *branchID)
		}
		if active := httpx.QueryBool(c, "is_active"); active != nil {
			q = q.Where("is_active = ?", *active)
		}
		var users []models.User
		if err := q.Order("permission_level DESC, first_name, id").Find(&users).Error; err != nil {
			return apperr.Wrap(err, "Users could not be listed")
		}
		return httpx.Success(c, "", users)
	}
}

// GET /api/v1/users/:id
func GetUserHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		p, err := auth.MustPrincipal(c)
		if err != nil {
			return err
		}
		u, err := scopedUser(db.WithContext(c.UserContext()), p, id)
		if err != nil {
			return err
		}
		return httpx.Success(c, "", u)
	}
}

// POST /api/v1/users
func CreateUserHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.MustPrincipal(c)
		if err != nil {
			return err
		}
		var body CreateUserRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		companyID := p.CompanyID
		if body.CompanyID != nil {
			companyID = *body.CompanyID
		}
		if err := p.EnforceScope(companyID, body.BranchID); err != nil {
			return err
		}

		db := db.WithContext(c.UserContext())
		if err := activeBranch(db, companyID, body.BranchID); err != nil {
			return apperr.Wrap(err, "User could not be created")
		}
		role, err := assignableRole(db, p, body.RoleID)
		if err != nil {
			return err
		}

		email := strings.ToLower(strings.TrimSpace(body.Email))
		var n int64
		if err := db.Model(&models.User{}).Where("email = ?", email).Count(&n).Error; err != nil {
			return apperr.Wrap(err, "User could not be created")
		}
		if n > 0 {
			return apperr.Conflict("User with this email already exists")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
		if err != nil {
			return apperr.Wrap(err, "Password could not be hashed")
		}
		user := models.User{
			CompanyID:       companyID,
			BranchID:        body.BranchID,
			FirstName:       strings.TrimSpace(body.FirstName),
			LastName:        body.LastName,
			Email:           email,
			PasswordHash:    string(hash),
			RoleName:        role.RoleName,
			PermissionLevel: role.PermissionLevel,
			IsActive:        true,
		}
		if err := db.Create(&user).Error; err != nil {
			return apperr.FromDB(err, "User could not be created")
		}
		return httpx.Created(c, "User created successfully", user)
	}
}

// PUT /api/v1/users/:id
// A role change copies the role's name and level onto the user.
func UpdateUserHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		p, err := auth.MustPrincipal(c)
		if err != nil {
			return err
		}
		var body UpdateUserRequest
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("Invalid request body: " + err.Error())
		}

		db := db.WithContext(c.UserContext())
		u, err := scopedUser(db, p, id)
		if err != nil {
			return err
		}

		updates := map[string]any{}
		if body.FirstName.Set {
			name := strings.TrimSpace(body.FirstName.Value)
			if body.FirstName.Null || name == "" {
				return apperr.Validation("first_name cannot be empty")
			}
			updates["first_name"] = name
		}
		body.LastName.Apply(updates, "last_name")
		if body.BranchID.Set {
			if !body.BranchID.HasValue() {
				return apperr.Validation("branch_id cannot be null")
			}
			if err := p.EnforceScope(u.CompanyID, body.BranchID.Value); err != nil {
				return err
			}
			if err := activeBranch(db, u.CompanyID, body.BranchID.Value); err != nil {
				return apperr.Wrap(err, "User could not be updated")
			}
			updates["branch_id"] = body.BranchID.Value
		}
		if body.RoleID.Set {
			if !body.RoleID.HasValue() {
				return apperr.Validation("role_id cannot be null")
			}
			role, err := assignableRole(db, p, body.RoleID.Value)
			if err != nil {
				return err
			}
			updates["role_name"] = role.RoleName
			updates["permission_level"] = role.PermissionLevel
		}
		if body.IsActive.Set {
			if body.IsActive.Null {
				return apperr.Validation("is_active cannot be null")
			}
			if !body.IsActive.Value && u.ID == p.UserID {
				return apperr.Validation("You cannot deactivate your own account")
			}
			updates["is_active"] = body.IsActive.Value
		}

		if len(updates) > 0 {
			if err := db.Model(u).Updates(updates).Error; err != nil {
				return apperr.FromDB(err, msgUserNotFound)
			}
		}
		if u, err = scopedUser(db, p, id); err != nil {
			return err
		}
		return httpx.Success(c, "User updated successfully", u)
	}
}

// DELETE /api/v1/users/:id
func DeleteUserHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		p, err := auth.MustPrincipal(c)
		if err != nil {
			return err
		}
		if id == p.UserID {
			return apperr.Validation("You cannot deactivate your own account")
		}
		db := db.WithContext(c.UserContext())
		u, err := scopedUser(db, p, id)
		if err != nil {
			return err
		}
		if err := db.Model(u).Update("is_active", false).Error; err != nil {
			return apperr.Wrap(err, "User could not be deactivated")
		}
		return httpx.Success(c, "User deactivated successfully", nil)
	}
}

// -------------------------
// Roles
// -------------------------

// GET /api/v1/roles
func ListRolesHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var roles []models.Role
		if err := db.WithContext(c.UserContext()).
			Where("is_active = ?", true).
			Order("permission_level, role_name").
			Find(&roles).Error; err != nil {
			return apperr.Wrap(err, "Roles could not be listed")
		}
		return httpx.Success(c, "", roles)
	}
}
