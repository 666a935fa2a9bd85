package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"cylinder-backend/internal/apperr"
	"cylinder-backend/internal/models"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Service struct {
	db     *gorm.DB
	secret string
	ttl    time.Duration
	log    *zap.Logger
}

func NewService(db *gorm.DB, secret string, ttl time.Duration, log *zap.Logger) *Service {
	return &Service{db: db, secret: secret, ttl: ttl, log: log}
}

type RegisterInput struct {
	CompanyID   *uint   `json:"company_id"`
	BranchID    *uint   `json:"branch_id"`
	CompanyName string  `json:"company_name"`
	BranchName  string  `json:"branch_name"`
	FirstName   string  `json:"first_name" validate:"required,max=100"`
	LastName    *string `json:"last_name" validate:"omitempty,max=100"`
	Email       string  `json:"email" validate:"required,email,max=150"`
	Password    string  `json:"password" validate:"required,min=8,max=72"`
}

type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Register creates the first user of a company. The company and branch must
// already exist; they are given either by id or by name. Later users are
// added by an administrator.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	hasIDs := in.CompanyID != nil && in.BranchID != nil
	hasNames := strings.TrimSpace(in.CompanyName) != "" && strings.TrimSpace(in.BranchName) != ""
	if !hasIDs && !hasNames {
		return nil, apperr.Validation("Either (company_id & branch_id) OR (company_name & branch_name) are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Wrap(err, "Password could not be hashed")
	}

	user := models.User{
		FirstName:       strings.TrimSpace(in.FirstName),
		LastName:        in.LastName,
		Email:           email,
		PasswordHash:    string(hash),
		RoleName:        "Company Admin",
		PermissionLevel: models.PermissionCompanyAdmin,
		IsActive:        true,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var branch models.Branch
		q := tx.Model(&models.Branch{}).Where("branches.is_active = ?", true)
		if hasIDs {
			q = q.Where("branches.id = ? AND branches.company_id = ?", *in.BranchID, *in.CompanyID)
		} else {
			q = q.Joins("JOIN companies ON companies.id = branches.company_id").
				Where("companies.company_name = ? AND branches.branch_name = ? AND companies.is_active = ?",
					strings.TrimSpace(in.CompanyName), strings.TrimSpace(in.BranchName), true)
		}
		if err := q.First(&branch).Error; err != nil {
			return apperr.FromDB(err, "Company or branch not found")
		}

		var registered int64
		if err := tx.Model(&models.User{}).Where("company_id = ?", branch.CompanyID).Count(&registered).Error; err != nil {
			return err
		}
		if registered > 0 {
			return apperr.Validation("This company is already registered. Please contact the company administrator for access.")
		}

		var existing int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return apperr.Conflict("User with this email already exists")
		}

		user.CompanyID = branch.CompanyID
		user.BranchID = branch.ID
		return tx.Create(&user).Error
	})
	if err != nil {
		return nil, apperr.FromDB(err, "Company or branch not found")
	}

	token, err := GenerateToken(s.secret, s.ttl, &user)
	if err != nil {
		return nil, apperr.Wrap(err, "Token could not be created")
	}
	s.log.Info("user registered", zap.Uint("user_id", user.ID), zap.Uint("company_id", user.CompanyID))
	return &AuthResult{Token: token, User: &user}, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperr.Validation("Email and password are required")
	}

	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Unauthorized("Invalid email or password")
		}
		return nil, apperr.FromDB(err, "")
	}
	if !user.IsActive {
		return nil, apperr.Unauthorized("Account is disabled")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperr.Unauthorized("Invalid email or password")
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&user).UpdateColumn("last_login_at", now).Error; err != nil {
		s.log.Warn("last login not recorded", zap.Uint("user_id", user.ID), zap.Error(err))
	}
	user.LastLoginAt = &now

	token, err := GenerateToken(s.secret, s.ttl, &user)
	if err != nil {
		return nil, apperr.Wrap(err, "Token could not be created")
	}
	return &AuthResult{Token: token, User: &user}, nil
}

type MeResult struct {
	User    *models.User    `json:"user"`
	Company *models.Company `json:"company"`
	Branch  *models.Branch  `json:"branch"`
}

func (s *Service) Me(ctx context.Context, userID uint) (*MeResult, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, apperr.FromDB(err, "User not found")
	}
	res := &MeResult{User: &user}

	var company models.Company
	if err := s.db.WithContext(ctx).First(&company, user.CompanyID).Error; err == nil {
		res.Company = &company
	}
	var branch models.Branch
	if err := s.db.WithContext(ctx).First(&branch, user.BranchID).Error; err == nil {
		res.Branch = &branch
	}
	return res, nil
}

type BootstrapInput struct {
	CompanyCode string
	CompanyName string
	BranchCode  string
	BranchName  string
	FirstName   string
	Email       string
	Password    string
}

// Bootstrap creates a company, its first branch and a super admin in one
// transaction. Used by the CLI on an empty database.
func (s *Service) Bootstrap(ctx context.Context, in BootstrapInput) (*models.User, error) {
	if in.CompanyCode == "" || in.CompanyName == "" || in.BranchCode == "" || in.BranchName == "" {
		return nil, apperr.Validation("company and branch code and name are required")
	}
	if in.Email == "" || len(in.Password) < 8 {
		return nil, apperr.Validation("email and a password of at least 8 characters are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Wrap(err, "Password could not be hashed")
	}

	var user models.User
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		company := models.Company{CompanyCode: in.CompanyCode, CompanyName: in.CompanyName, IsActive: true}
		if err := tx.Create(&company).Error; err != nil {
			return err
		}
		branch := models.Branch{CompanyID: company.ID, BranchCode: in.BranchCode, BranchName: in.BranchName, IsActive: true}
		if err := tx.Create(&branch).Error; err != nil {
			return err
		}
		user = models.User{
			CompanyID:       company.ID,
			BranchID:        branch.ID,
			FirstName:       in.FirstName,
			Email:           strings.ToLower(strings.TrimSpace(in.Email)),
			PasswordHash:    string(hash),
			RoleName:        "Super Admin",
			PermissionLevel: models.PermissionSuperAdmin,
			IsActive:        true,
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		return nil, apperr.FromDB(err, "")
	}
	return &user, nil
}
