package database

import (
	"fmt"
	"time"

	"cylinder-backend/internal/config"
	"cylinder-backend/internal/models"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Init opens the configured database and migrates it.
func Init(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	db, err := Open(cfg, log)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Info("database ready", zap.String("driver", cfg.DBDriver))
	return db, nil
}

func Open(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.DatabaseDSN)
	default:
		dialector = postgres.Open(cfg.DatabaseDSN)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         NewGormLogger(log, 200*time.Millisecond),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	if cfg.DBDriver == config.DriverSQLite {
		// sqlite allows one writer; serialize to avoid SQLITE_BUSY inside transactions
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	return db, nil
}

// OpenMemory returns a migrated private in-memory sqlite database.
func OpenMemory(name string) (*gorm.DB, error) {
	cfg := &config.Config{
		DBDriver:    config.DriverSQLite,
		DatabaseDSN: fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
	}
	db, err := Open(cfg, zap.NewNop())
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Company{},
		&models.Branch{},
		&models.User{},
		&models.Role{},
		&models.PartyType{},
		&models.Party{},
		&models.PartyAddress{},
		&models.PartyContact{},
		&models.GasType{},
		&models.CylinderFamily{},
		&models.GasTypeCylinderFamily{},
		&models.UnitOfMeasure{},
		&models.Country{},
		&models.State{},
		&models.City{},
		&models.GasCategory{},
		&models.PartyGasRate{},
		&models.Cylinder{},
		&models.CylinderTest{},
		&models.UserPreference{},
		&models.RolePreference{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return seedRoles(db)
}

func seedRoles(db *gorm.DB) error {
	for _, r := range models.DefaultRoles {
		role := models.Role{RoleName: r.RoleName, PermissionLevel: r.PermissionLevel, IsActive: true}
		if err := db.Where("role_name = ?", r.RoleName).FirstOrCreate(&role).Error; err != nil {
			return fmt.Errorf("seed role %s: %w", r.RoleName, err)
		}
	}
	return nil
}
