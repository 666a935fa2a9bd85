package party

import (
	"context"

	"cylinder-backend/internal/apperr"
	"cylinder-backend/internal/auth"
	"cylinder-backend/internal/models"

	"gorm.io/gorm"
)

func (s *Service) ListAddresses(ctx context.Context, partyID uint, scope auth.Scope) ([]models.PartyAddress, error) {
	db := s.db.WithContext(ctx)
	if _, err := loadParty(db, partyID, scope); err != nil {
		return nil, err
	}
	var out []models.PartyAddress
	err := db.Where("party_id = ? AND is_active = ?", partyID, true).
		Order("address_type, is_default DESC, id").Find(&out).Error
	if err != nil {
		return nil, apperr.Wrap(err, "Addresses could not be listed")
	}
	return out, nil
}

func (s *Service) AddAddress(ctx context.Context, partyID uint, scope auth.Scope, in AddressInput) (*models.PartyAddress, error) {
	in.ID = nil
	var out *models.PartyAddress
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadParty(tx, partyID, scope); err != nil {
			return err
		}
		a, err := saveAddress(tx, partyID, in)
		out = a
		return err
	})
	if err != nil {
		return nil, apperr.Wrap(err, "Address could not be added")
	}
	return out, nil
}

// findAddress resolves an address through its party so the scope applies.
func findAddress(tx *gorm.DB, addressID uint, scope auth.Scope) (*models.PartyAddress, error) {
	var a models.PartyAddress
	err := tx.Joins("JOIN parties p ON p.id = party_addresses.party_id").
		Where("party_addresses.id = ? AND party_addresses.is_active = ? AND p.company_id = ? AND p.branch_id = ?",
			addressID, true, scope.CompanyID, scope.BranchID).
		First(&a).Error
	if err != nil {
		return nil, apperr.FromDB(err, "Address not found")
	}
	return &a, nil
}

func (s *Service) UpdateAddress(ctx context.Context, addressID uint, scope auth.Scope, in AddressInput) (*models.PartyAddress, error) {
	var out *models.PartyAddress
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := findAddress(tx, addressID, scope)
		if err != nil {
			return err
		}
		in.ID = &existing.ID
		a, err := saveAddress(tx, existing.PartyID, in)
		out = a
		return err
	})
	if err != nil {
		return nil, apperr.Wrap(err, "Address could not be updated")
	}
	return out, nil
}

func (s *Service) DeleteAddress(ctx context.Context, addressID uint, scope auth.Scope) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := findAddress(tx, addressID, scope)
		if err != nil {
			return err
		}
		return tx.Model(&models.PartyAddress{}).Where("id = ?", a.ID).
			Updates(map[string]any{"is_active": false, "is_default": false}).Error
	})
	return apperr.Wrap(err, "Address could not be deleted")
}
