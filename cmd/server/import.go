package main

import (
	"fmt"
	"os"
	"strings"

	"cylinder-backend/internal/audit"
	"cylinder-backend/internal/auth"
	"cylinder-backend/internal/cylinder"
	"cylinder-backend/internal/models"
	"cylinder-backend/internal/party"
	"cylinder-backend/internal/sheet"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// importFlags are shared by the import commands.
type importFlags struct {
	file      string
	userEmail string
	companyID uint
	branchID  uint
}

func (f *importFlags) bind(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.file, "file", "", "CSV or XLSX file to import")
	fs.StringVar(&f.userEmail, "user", "", "email of the user the rows are imported as")
	fs.UintVar(&f.companyID, "company", 0, "target company id (default: the user's company)")
	fs.UintVar(&f.branchID, "branch", 0, "target branch id (default: the user's branch)")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("user")
}

func optional(v uint) *uint {
	if v == 0 {
		return nil
	}
	return &v
}

// principal loads the importing user and narrows it to the requested scope
// under the same rules the API applies to explicit company_id/branch_id.
func (f *importFlags) principal(db *gorm.DB) (*auth.Principal, auth.Scope, error) {
	var user models.User
	err := db.Where("email = ? AND is_active = ?", strings.ToLower(strings.TrimSpace(f.userEmail)), true).
		First(&user).Error
	if err != nil {
		return nil, auth.Scope{}, fmt.Errorf("user %s: %w", f.userEmail, err)
	}
	p := &auth.Principal{
		UserID:          user.ID,
		CompanyID:       user.CompanyID,
		BranchID:        user.BranchID,
		Email:           user.Email,
		RoleName:        user.RoleName,
		PermissionLevel: user.PermissionLevel,
	}
	scope, err := p.Resolve(optional(f.companyID), optional(f.branchID))
	if err != nil {
		return nil, auth.Scope{}, err
	}
	p.CompanyID, p.BranchID = scope.CompanyID, scope.BranchID
	return p, scope, nil
}

func (f *importFlags) rows() ([]sheet.Row, error) {
	file, err := os.Open(f.file)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return sheet.Read(f.file, file, cfg.ImportMaxRows)
}

var partyImport importFlags

var importPartiesCmd = &cobra.Command{
	Use:   "import-parties",
	Short: "Insert or update parties from a CSV/XLSX file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		p, _, err := partyImport.principal(db)
		if err != nil {
			return err
		}
		rows, err := partyImport.rows()
		if err != nil {
			return err
		}
		res, err := party.NewService(db, log).Import(cmd.Context(), p, rows)
		if err != nil {
			return err
		}
		for _, e := range res.Errors {
			log.Warn("row rejected", zap.Int("row", e.Row), zap.String("error", e.Error))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d rows: %d inserted, %d updated, %d failed\n",
			res.Total, res.Inserted, res.Updated, res.Failed)
		return nil
	},
}

var cylinderImport importFlags

var importCylindersCmd = &cobra.Command{
	Use:   "import-cylinders",
	Short: "Create cylinders from a CSV/XLSX file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		p, scope, err := cylinderImport.principal(db)
		if err != nil {
			return err
		}
		rows, err := cylinderImport.rows()
		if err != nil {
			return err
		}
		res, err := cylinder.NewService(db, log).BulkUpload(cmd.Context(), audit.ActorFrom(p), scope, &p.UserID, rows)
		if err != nil {
			return err
		}
		for _, e := range res.Errors {
			log.Warn("row rejected", zap.Int("row", e.Row), zap.String("error", e.Error))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d rows: %d inserted, %d failed\n", res.Total, res.Inserted, res.Failed)
		return nil
	},
}

func init() {
	partyImport.bind(importPartiesCmd)
	cylinderImport.bind(importCylindersCmd)
}
