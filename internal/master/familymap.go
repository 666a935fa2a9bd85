package master

import (
	"context"

	"cylinder-backend/internal/apperr"
	"cylinder-backend/internal/models"

	"gorm.io/gorm"
)

// GasTypeFamilies lists the cylinder families mapped to a gas type.
func (s *Service) GasTypeFamilies(ctx context.Context, companyID, gasTypeID uint) ([]models.GasTypeCylinderFamily, error) {
	db := s.db.WithContext(ctx)
	if _, err := load(db, GasTypes, companyID, gasTypeID); err != nil {
		return nil, err
	}
	var out []models.GasTypeCylinderFamily
	err := db.Preload("CylinderFamily").
		Where("company_id = ? AND gas_type_id = ?", companyID, gasTypeID).
		Order("id").Find(&out).Error
	if err != nil {
		return nil, apperr.Wrap(err, "Gas type families could not be listed")
	}
	return out, nil
}

// MapFamily links a cylinder family to a gas type of the same company.
func (s *Service) MapFamily(ctx context.Context, companyID, gasTypeID, familyID uint) (*models.GasTypeCylinderFamily, error) {
	link := models.GasTypeCylinderFamily{
		CompanyID:        companyID,
		GasTypeID:        gasTypeID,
		CylinderFamilyID: familyID,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := load(tx, GasTypes, companyID, gasTypeID); err != nil {
			return err
		}
		family, err := load(tx, CylinderFamilies, companyID, familyID)
		if err != nil {
			return apperr.Validation("cylinder_family_id does not reference a family of this company")
		}
		var n int64
		if err := tx.Model(&models.GasTypeCylinderFamily{}).
			Where("gas_type_id = ? AND cylinder_family_id = ?", gasTypeID, familyID).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return apperr.Conflict("Cylinder family " + family.FamilyCode + " is already mapped to this gas type")
		}
		if err := tx.Create(&link).Error; err != nil {
			return err
		}
		link.CylinderFamily = family
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(err, "Cylinder family could not be mapped")
	}
	return &link, nil
}

func (s *Service) UnmapFamily(ctx context.Context, companyID, gasTypeID, familyID uint) error {
	res := s.db.WithContext(ctx).
		Where("company_id = ? AND gas_type_id = ? AND cylinder_family_id = ?", companyID, gasTypeID, familyID).
		Delete(&models.GasTypeCylinderFamily{})
	if res.Error != nil {
		return apperr.Wrap(res.Error, "Cylinder family could not be unmapped")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("Mapping not found")
	}
	return nil
}
