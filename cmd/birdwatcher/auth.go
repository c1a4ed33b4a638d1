package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"birdwatcher/pkg/auth"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the browser session credentials",
	Long: `Manage the browser session state used for crawling.

The session file holds the cookies of a logged-in browser session. Export
it from your browser (or a browser-automation storage state dump) and
point the auth.session_file config at it. A bare cookie array is accepted
and normalized into the full session-state shape on first use.

Never share your session file!`,
}

// authInspectCmd represents the auth inspect command
var authInspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Validate and normalize the session file",
	Long: `Load the session file, normalizing a bare cookie array in place,
and report what it contains.`,
	RunE: runAuthInspect,
}

// authBackupCmd represents the auth backup command
var authBackupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Back up the session state to the system keychain",
	RunE:  runAuthBackup,
}

// authRestoreCmd represents the auth restore command
var authRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore the session file from the system keychain",
	RunE:  runAuthRestore,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authInspectCmd)
	authCmd.AddCommand(authBackupCmd)
	authCmd.AddCommand(authRestoreCmd)
}

func runAuthInspect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	creds := auth.NewFileStore(cfg.Auth.SessionFile)
	state, err := creds.Load()
	if errors.Is(err, auth.ErrSessionFileMissing) {
		return fmt.Errorf("no session file at %s: export one from a logged-in browser first", creds.Path())
	}
	if errors.Is(err, auth.ErrSessionMalformed) {
		return fmt.Errorf("session file %s is malformed: %w", creds.Path(), err)
	}
	if err != nil {
		return err
	}

	fmt.Printf("session file: %s\n", creds.Path())
	fmt.Printf("cookies:      %d\n", len(state.Cookies))
	fmt.Printf("origins:      %d\n", len(state.Origins))
	return nil
}

func runAuthBackup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	creds := auth.NewFileStore(cfg.Auth.SessionFile)
	state, err := creds.Load()
	if err != nil {
		return fmt.Errorf("failed to load session file: %w", err)
	}

	keyring, err := auth.NewKeyringStore(cfg.Auth.KeyringService)
	if err != nil {
		return fmt.Errorf("system keychain unavailable: %w", err)
	}
	if err := keyring.Backup(state); err != nil {
		return fmt.Errorf("failed to back up session state: %w", err)
	}

	fmt.Printf("backed up %d cookie(s) to the system keychain\n", len(state.Cookies))
	return nil
}

func runAuthRestore(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	keyring, err := auth.NewKeyringStore(cfg.Auth.KeyringService)
	if err != nil {
		return fmt.Errorf("system keychain unavailable: %w", err)
	}
	state, err := keyring.Restore()
	if err != nil {
		return fmt.Errorf("failed to restore session state: %w", err)
	}

	creds := auth.NewFileStore(cfg.Auth.SessionFile)
	if err := creds.Save(state); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}

	fmt.Printf("restored %d cookie(s) to %s\n", len(state.Cookies), creds.Path())
	return nil
}
