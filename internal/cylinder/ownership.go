package cylinder

import (
	"strings"

	"cylinder-backend/internal/apperr"
	"cylinder-backend/internal/models"
	"cylinder-backend/internal/nullable"
)

// Ownership is the owner/holder triple of a cylinder.
// SELF carries no party links; PARTY always has an owner party.
type Ownership struct {
	Type          models.OwnerType
	OwnerPartyID  *uint
	HolderPartyID *uint
}

// OwnershipPatch is the ownership part of an update request.
type OwnershipPatch struct {
	OwnerType     nullable.Field[string]
	OwnerPartyID  nullable.Field[uint]
	HolderPartyID nullable.Field[uint]
}

// ParseOwnerType trims and uppercases raw. Empty input yields "".
func ParseOwnerType(raw string) (models.OwnerType, error) {
	v := strings.ToUpper(strings.TrimSpace(raw))
	switch models.OwnerType(v) {
	case "":
		return "", apperr.Validation("owner_type is required (SELF or PARTY)")
	case models.OwnerSelf, models.OwnerParty:
		return models.OwnerType(v), nil
	default:
		return "", apperr.Validation("Invalid owner_type. Allowed values: 'SELF', 'PARTY'")
	}
}

func positive(id *uint) *uint {
	if id == nil || *id == 0 {
		return nil
	}
	v := *id
	return &v
}

// ValidateForCreate normalizes the ownership of a new cylinder.
func ValidateForCreate(ownerType string, ownerPartyID, holderPartyID *uint) (Ownership, error) {
	t, err := ParseOwnerType(ownerType)
	if err != nil {
		return Ownership{}, err
	}
	owner := positive(ownerPartyID)
	if t == models.OwnerParty && owner == nil {
		return Ownership{}, apperr.Validation("owner_party_id is required when owner_type is PARTY")
	}
	if t == models.OwnerSelf {
		return Ownership{Type: t}, nil
	}
	return Ownership{Type: t, OwnerPartyID: owner, HolderPartyID: positive(holderPartyID)}, nil
}

// ValidateForUpdate merges patch into existing. Fields absent from the patch
// keep their stored value; the merged result must satisfy the same rules as
// a create, and a SELF result drops both party links.
func ValidateForUpdate(existing Ownership, patch OwnershipPatch) (Ownership, error) {
	final := existing

	if patch.OwnerType.Set {
		t, err := ParseOwnerType(patch.OwnerType.Value)
		if err != nil {
			return Ownership{}, err
		}
		final.Type = t
	} else if _, err := ParseOwnerType(string(existing.Type)); err != nil {
		return Ownership{}, err
	}

	if patch.OwnerPartyID.Set {
		final.OwnerPartyID = positive(patch.OwnerPartyID.Ptr())
	}
	if patch.HolderPartyID.Set {
		final.HolderPartyID = positive(patch.HolderPartyID.Ptr())
	}

	switch final.Type {
	case models.OwnerSelf:
		final.OwnerPartyID = nil
		final.HolderPartyID = nil
	case models.OwnerParty:
		if final.OwnerPartyID == nil {
			return Ownership{}, apperr.Validation("owner_party_id is required when owner_type is PARTY")
		}
	}
	return final, nil
}

func ownershipOf(c *models.Cylinder) Ownership {
	return Ownership{Type: c.OwnerType, OwnerPartyID: c.OwnerPartyID, HolderPartyID: c.CurrentHolderPartyID}
}
