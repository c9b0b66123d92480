package main

import (
	"github.com/spf13/cobra"

	"github.com/TheMichaelB/vaultctl/internal/container"
	"github.com/TheMichaelB/vaultctl/internal/crypto"
	"github.com/TheMichaelB/vaultctl/internal/keyring"
)

var keyringCmd = &cobra.Command{
	Use:   "keyring",
	Short: "Manage container passwords in the OS keyring",
	Long: `Stored passwords are used by show when keyring.enabled is set in the
configuration. Entries are keyed by the absolute container path.`,
}

var keyringSetCmd = &cobra.Command{
	Use:   "set <file>",
	Short: "Verify and store the password for a container",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeyringSet,
}

var keyringDeleteCmd = &cobra.Command{
	Use:   "delete <file>",
	Short: "Remove the stored password for a container",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeyringDelete,
}

var keyringStatusCmd = &cobra.Command{
	Use:   "status <file>",
	Short: "Report whether a password is stored for a container",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeyringStatus,
}

var keyringPassword string

func init() {
	rootCmd.AddCommand(keyringCmd)
	keyringCmd.AddCommand(keyringSetCmd, keyringDeleteCmd, keyringStatusCmd)

	keyringSetCmd.Flags().StringVarP(&keyringPassword, "password", "p", "",
		"Container password (will prompt if not provided)")
}

func runKeyringSet(cmd *cobra.Command, args []string) error {
	path := args[0]

	pw, _, err := newPasswordSource(keyringPassword, false).resolve(path)
	if err != nil {
		return err
	}
	defer crypto.ClearBytes(pw)

	ctx, cancel := commandContext()
	defer cancel()

	// Only store passwords that open the container.
	if _, err := container.NewLoader(cfg.Load, logger).Load(ctx, path, crypto.NewPasswordCredentials(pw)); err != nil {
		return err
	}

	store := keyring.New(cfg.Keyring.Service)
	if err := store.SavePassword(path, string(pw)); err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"success": true, "container": path, "stored": true})
	} else {
		printSuccess("Password saved to keyring")
		if !cfg.Keyring.Enabled {
			printInfo("Set keyring.enabled to use it automatically")
		}
	}
	return nil
}

func runKeyringDelete(cmd *cobra.Command, args []string) error {
	store := keyring.New(cfg.Keyring.Service)

	err := store.DeletePassword(args[0])
	if err != nil && !keyring.IsNotFound(err) {
		return err
	}
	removed := err == nil

	if jsonOutput {
		printJSON(map[string]interface{}{"success": true, "container": args[0], "removed": removed})
	} else if removed {
		printSuccess("Password removed from keyring")
	} else {
		printInfo("No password stored in keyring")
	}
	return nil
}

func runKeyringStatus(cmd *cobra.Command, args []string) error {
	stored := keyring.New(cfg.Keyring.Service).HasPassword(args[0])

	if jsonOutput {
		printJSON(map[string]interface{}{"container": args[0], "stored": stored})
		return nil
	}

	if stored {
		printField("Password", "stored in keyring")
	} else {
		printField("Password", "not stored")
	}
	return nil
}
