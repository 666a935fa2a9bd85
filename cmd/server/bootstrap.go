package main

import (
	"fmt"

	"cylinder-backend/internal/auth"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var bootstrapInput auth.BootstrapInput

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Create the first company, branch and super admin",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		svc := auth.NewService(db, cfg.JWTSecret, cfg.JWTTTL, log)
		user, err := svc.Bootstrap(cmd.Context(), bootstrapInput)
		if err != nil {
			return err
		}
		log.Info("bootstrap complete",
			zap.Uint("company_id", user.CompanyID),
			zap.Uint("branch_id", user.BranchID),
			zap.String("email", user.Email))
		fmt.Fprintf(cmd.OutOrStdout(), "super admin %s created (company %d, branch %d)\n", user.Email, user.CompanyID, user.BranchID)
		return nil
	},
}

func init() {
	f := bootstrapCmd.Flags()
	f.StringVar(&bootstrapInput.CompanyCode, "company-code", "", "company code")
	f.StringVar(&bootstrapInput.CompanyName, "company-name", "", "company name")
	f.StringVar(&bootstrapInput.BranchCode, "branch-code", "HQ", "first branch code")
	f.StringVar(&bootstrapInput.BranchName, "branch-name", "Head Office", "first branch name")
	f.StringVar(&bootstrapInput.FirstName, "first-name", "Admin", "super admin first name")
	f.StringVar(&bootstrapInput.Email, "email", "", "super admin email")
	f.StringVar(&bootstrapInput.Password, "password", "", "super admin password (min 8 chars)")
	_ = bootstrapCmd.MarkFlagRequired("company-code")
	_ = bootstrapCmd.MarkFlagRequired("company-name")
	_ = bootstrapCmd.MarkFlagRequired("email")
	_ = bootstrapCmd.MarkFlagRequired("password")
}
