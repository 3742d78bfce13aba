package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/TheBase/TheBase/internal/config"
	"github.com/TheBase/TheBase/internal/session"
	"github.com/TheBase/TheBase/internal/store"
)

var (
	userEmail    string
	userPassword string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage dashboard accounts",
}

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a dashboard account",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(cfg *config.Config, st *store.Store) error {
			m := session.NewManager(st, time.Duration(cfg.Gateway.SessionHours)*time.Hour)
			sess, err := m.SignUp(cmd.Context(), userEmail, userPassword)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s)\n", sess.Email, sess.UserID)
			return nil
		})
	},
}

func init() {
	userAddCmd.Flags().StringVar(&userEmail, "email", "", "Account email")
	userAddCmd.Flags().StringVar(&userPassword, "password", "", "Account password (at least 6 characters)")
	_ = userAddCmd.MarkFlagRequired("email")
	_ = userAddCmd.MarkFlagRequired("password")
	userCmd.AddCommand(userAddCmd)
	rootCmd.AddCommand(userCmd)
}
