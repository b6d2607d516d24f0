package main

import (
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/agentpost/agentpost/internal/config"
	"github.com/agentpost/agentpost/internal/db"
	"github.com/agentpost/agentpost/internal/models"
	"github.com/agentpost/agentpost/internal/repository"
	"github.com/agentpost/agentpost/internal/web/auth"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Admin account management",
}

var adminSetPasswordCmd = &cobra.Command{
	Use:   "set-password",
	Short: "Set the admin console password",
	RunE:  runAdminSetPassword,
}

var adminPassword string

func init() {
	adminSetPasswordCmd.Flags().StringVar(&adminPassword, "password", "", "New password (will prompt if not provided)")
	adminSetPasswordCmd.Flags().StringVarP(&configFile, "config", "c", "agentpost.yaml", "Path to configuration file")
	adminCmd.AddCommand(adminSetPasswordCmd)
}

func runAdminSetPassword(cmd *cobra.Command, args []string) error {
	password := adminPassword
	if password == "" {
		fmt.Fprint(os.Stderr, "New password: ")
		b, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = string(b)
	}
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	settings := repository.NewSettingsRepository(database.DB)
	if err := settings.SetSetting(models.SettingAdminPasswordHash, hash); err != nil {
		return fmt.Errorf("failed to store password: %w", err)
	}

	fmt.Println("Admin password updated")
	return nil
}
