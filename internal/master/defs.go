package master

import (
	"strings"

	"cylinder-backend/internal/apperr"
	"cylinder-backend/internal/models"
	"cylinder-backend/internal/nullable"

	"github.com/shopspring/decimal"
)

var GasTypes = &Def[models.GasType]{
	Name:      "Gas type",
	Scoped:    true,
	KeyColumn: "gas_code",
	Search:    []string{"gas_code", "gas_name", "chemical_formula"},
	Order:     "gas_name, id",
	Key:       func(g *models.GasType) string { return g.GasCode },
	ID:        func(g *models.GasType) uint { return g.ID },
	Option: func(g *models.GasType) Option {
		return Option{Label: g.GasCode + " - " + g.GasName, Value: g.ID}
	},
	Prepare: func(g *models.GasType, companyID uint) {
		g.ID = 0
		g.CompanyID = companyID
		g.GasCode = strings.ToUpper(strings.TrimSpace(g.GasCode))
		g.GasName = strings.TrimSpace(g.GasName)
		g.IsActive = true
	},
}

var CylinderFamilies = &Def[models.CylinderFamily]{
	Name:      "Cylinder family",
	Scoped:    true,
	KeyColumn: "family_code",
	Search:    []string{"family_code", "family_name"},
	Order:     "family_code, id",
	Key:       func(f *models.CylinderFamily) string { return f.FamilyCode },
	ID:        func(f *models.CylinderFamily) uint { return f.ID },
	Option: func(f *models.CylinderFamily) Option {
		return Option{Label: f.FamilyCode + " - " + f.FamilyName, Value: f.ID}
	},
	Prepare: func(f *models.CylinderFamily, companyID uint) {
		f.ID = 0
		f.CompanyID = companyID
		f.FamilyCode = strings.TrimSpace(f.FamilyCode)
		f.FamilyName = strings.TrimSpace(f.FamilyName)
		f.IsActive = true
	},
}

var UnitsOfMeasure = &Def[models.UnitOfMeasure]{
	Name:      "Unit of measure",
	Scoped:    true,
	KeyColumn: "uom_code",
	Search:    []string{"uom_code", "uom_name"},
	Order:     "uom_code, id",
	Key:       func(u *models.UnitOfMeasure) string { return u.UOMCode },
	ID:        func(u *models.UnitOfMeasure) uint { return u.ID },
	Option: func(u *models.UnitOfMeasure) Option {
		return Option{Label: u.UOMName, Value: u.ID}
	},
	Prepare: func(u *models.UnitOfMeasure, companyID uint) {
		u.ID = 0
		u.CompanyID = companyID
		u.UOMCode = strings.ToUpper(strings.TrimSpace(u.UOMCode))
		u.UOMName = strings.TrimSpace(u.UOMName)
		u.IsActive = true
	},
}

var Countries = &Def[models.Country]{
	Name:      "Country",
	KeyColumn: "country_code",
	Search:    []string{"country_code", "country_name"},
	Order:     "country_name, id",
	Key:       func(c *models.Country) string { return c.CountryCode },
	ID:        func(c *models.Country) uint { return c.ID },
	Option: func(c *models.Country) Option {
		return Option{Label: c.CountryName, Value: c.ID}
	},
	Prepare: func(c *models.Country, _ uint) {
		c.ID = 0
		c.CountryCode = strings.ToUpper(strings.TrimSpace(c.CountryCode))
		c.CountryName = strings.TrimSpace(c.CountryName)
		c.IsActive = true
	},
}

// State codes repeat across countries; (country_id, state_code) is left to
// the unique index, which surfaces as CONFLICT.
var States = &Def[models.State]{
	Name:         "State",
	Search:       []string{"state_code", "state_name"},
	Order:        "state_name, id",
	ParentColumn: "country_id",
	Key:          func(s *models.State) string { return s.StateCode },
	ID:           func(s *models.State) uint { return s.ID },
	Option: func(s *models.State) Option {
		return Option{Label: s.StateName, Value: s.ID}
	},
	Prepare: func(s *models.State, _ uint) {
		s.ID = 0
		s.StateCode = strings.ToUpper(strings.TrimSpace(s.StateCode))
		s.StateName = strings.TrimSpace(s.StateName)
		s.IsActive = true
	},
}

var Cities = &Def[models.City]{
	Name:         "City",
	Search:       []string{"city_name"},
	Order:        "city_name, id",
	ParentColumn: "state_id",
	Key:          func(c *models.City) string { return c.CityName },
	ID:           func(c *models.City) uint { return c.ID },
	Option: func(c *models.City) Option {
		return Option{Label: c.CityName, Value: c.ID}
	},
	Prepare: func(c *models.City, _ uint) {
		c.ID = 0
		c.CityName = strings.TrimSpace(c.CityName)
		c.IsActive = true
	},
}

var GasCategories = &Def[models.GasCategory]{
	Name:      "Gas category",
	KeyColumn: "gas_category_code",
	Search:    []string{"gas_category_code", "gas_category_name"},
	Order:     "gas_category_name, id",
	Key:       func(g *models.GasCategory) string { return g.GasCategoryCode },
	ID:        func(g *models.GasCategory) uint { return g.ID },
	Option: func(g *models.GasCategory) Option {
		return Option{Label: g.GasCategoryName, Value: g.ID}
	},
	Prepare: func(g *models.GasCategory, _ uint) {
		g.ID = 0
		g.GasCategoryCode = strings.ToUpper(strings.TrimSpace(g.GasCategoryCode))
		g.GasCategoryName = strings.TrimSpace(g.GasCategoryName)
		g.IsActive = true
	},
}

// -------------------------
// Patches
// -------------------------

// Patch turns a decoded update body into column updates.
type Patch interface {
	Columns() (map[string]any, error)
}

// required copies a NOT NULL text column, rejecting null and blank values.
func required(updates map[string]any, f nullable.Field[string], column string, upper bool) error {
	if !f.Set {
		return nil
	}
	v := strings.TrimSpace(f.Value)
	if f.Null || v == "" {
		return apperr.Validation(column + " cannot be empty")
	}
	if upper {
		v = strings.ToUpper(v)
	}
	updates[column] = v
	return nil
}

func active(updates map[string]any, f nullable.Field[bool]) error {
	if !f.Set {
		return nil
	}
	if f.Null {
		return apperr.Validation("is_active cannot be null")
	}
	updates["is_active"] = f.Value
	return nil
}

func requiredID(updates map[string]any, f nullable.Field[uint], column string) error {
	if !f.Set {
		return nil
	}
	if f.Null || f.Value == 0 {
		return apperr.Validation(column + " cannot be empty")
	}
	updates[column] = f.Value
	return nil
}

type GasTypePatch struct {
	GasCode         nullable.Field[string] `json:"gas_code"`
	GasName         nullable.Field[string] `json:"gas_name"`
	Category        nullable.Field[string] `json:"category"`
	ChemicalFormula nullable.Field[string] `json:"chemical_formula"`
	CASNumber       nullable.Field[string] `json:"cas_number"`
	UNNumber        nullable.Field[string] `json:"un_number"`
	GasState        nullable.Field[string] `json:"gas_state"`
	Description     nullable.Field[string] `json:"description"`
	IsActive        nullable.Field[bool]   `json:"is_active"`
}

func (p GasTypePatch) Columns() (map[string]any, error) {
	updates := map[string]any{}
	if err := required(updates, p.GasCode, "gas_code", true); err != nil {
		return nil, err
	}
	if err := required(updates, p.GasName, "gas_name", false); err != nil {
		return nil, err
	}
	if err := active(updates, p.IsActive); err != nil {
		return nil, err
	}
	p.Category.Apply(updates, "category")
	p.ChemicalFormula.Apply(updates, "chemical_formula")
	p.CASNumber.Apply(updates, "cas_number")
	p.UNNumber.Apply(updates, "un_number")
	p.GasState.Apply(updates, "gas_state")
	p.Description.Apply(updates, "description")
	return updates, nil
}

type CylinderFamilyPatch struct {
	FamilyCode   nullable.Field[string]          `json:"family_code"`
	FamilyName   nullable.Field[string]          `json:"family_name"`
	Capacity     nullable.Field[decimal.Decimal] `json:"capacity"`
	CapacityUnit nullable.Field[string]          `json:"capacity_unit"`
	Description  nullable.Field[string]          `json:"description"`
	IsActive     nullable.Field[bool]            `json:"is_active"`
}

func (p CylinderFamilyPatch) Columns() (map[string]any, error) {
	updates := map[string]any{}
	if err := required(updates, p.FamilyCode, "family_code", false); err != nil {
		return nil, err
	}
	if err := required(updates, p.FamilyName, "family_name", false); err != nil {
		return nil, err
	}
	if err := active(updates, p.IsActive); err != nil {
		return nil, err
	}
	p.Capacity.Apply(updates, "capacity")
	p.CapacityUnit.Apply(updates, "capacity_unit")
	p.Description.Apply(updates, "description")
	return updates, nil
}

type UnitOfMeasurePatch struct {
	UOMCode  nullable.Field[string] `json:"uom_code"`
	UOMName  nullable.Field[string] `json:"uom_name"`
	UOMType  nullable.Field[string] `json:"uom_type"`
	IsActive nullable.Field[bool]   `json:"is_active"`
}

func (p UnitOfMeasurePatch) Columns() (map[string]any, error) {
	updates := map[string]any{}
	if err := required(updates, p.UOMCode, "uom_code", true); err != nil {
		return nil, err
	}
	if err := required(updates, p.UOMName, "uom_name", false); err != nil {
		return nil, err
	}
	if err := active(updates, p.IsActive); err != nil {
		return nil, err
	}
	p.UOMType.Apply(updates, "uom_type")
	return updates, nil
}

type CountryPatch struct {
	CountryCode nullable.Field[string] `json:"country_code"`
	CountryName nullable.Field[string] `json:"country_name"`
	IsActive    nullable.Field[bool]   `json:"is_active"`
}

func (p CountryPatch) Columns() (map[string]any, error) {
	updates := map[string]any{}
	if err := required(updates, p.CountryCode, "country_code", true); err != nil {
		return nil, err
	}
	if err := required(updates, p.CountryName, "country_name", false); err != nil {
		return nil, err
	}
	if err := active(updates, p.IsActive); err != nil {
		return nil, err
	}
	return updates, nil
}

type StatePatch struct {
	CountryID nullable.Field[uint]   `json:"country_id"`
	StateCode nullable.Field[string] `json:"state_code"`
	StateName nullable.Field[string] `json:"state_name"`
	IsActive  nullable.Field[bool]   `json:"is_active"`
}

func (p StatePatch) Columns() (map[string]any, error) {
	updates := map[string]any{}
	if err := requiredID(updates, p.CountryID, "country_id"); err != nil {
		return nil, err
	}
	if err := required(updates, p.StateCode, "state_code", true); err != nil {
		return nil, err
	}
	if err := required(updates, p.StateName, "state_name", false); err != nil {
		return nil, err
	}
	if err := active(updates, p.IsActive); err != nil {
		return nil, err
	}
	return updates, nil
}

type CityPatch struct {
	StateID  nullable.Field[uint]   `json:"state_id"`
	CityName nullable.Field[string] `json:"city_name"`
	IsActive nullable.Field[bool]   `json:"is_active"`
}

func (p CityPatch) Columns() (map[string]any, error) {
	updates := map[string]any{}
	if err := requiredID(updates, p.StateID, "state_id"); err != nil {
		return nil, err
	}
	if err := required(updates, p.CityName, "city_name", false); err != nil {
		return nil, err
	}
	if err := active(updates, p.IsActive); err != nil {
		return nil, err
	}
	return updates, nil
}

type GasCategoryPatch struct {
	GasCategoryCode nullable.Field[string] `json:"gas_category_code"`
	GasCategoryName nullable.Field[string] `json:"gas_category_name"`
	Description     nullable.Field[string] `json:"description"`
	IsActive        nullable.Field[bool]   `json:"is_active"`
}

func (p GasCategoryPatch) Columns() (map[string]any, error) {
	updates := map[string]any{}
	if err := required(updates, p.GasCategoryCode, "gas_category_code", true); err != nil {
		return nil, err
	}
	if err := required(updates, p.GasCategoryName, "gas_category_name", false); err != nil {
		return nil, err
	}
	if err := active(updates, p.IsActive); err != nil {
		return nil, err
	}
	p.Description.Apply(updates, "description")
	return updates, nil
}
