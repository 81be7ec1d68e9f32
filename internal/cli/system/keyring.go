package system

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/habitenforcer/internal/cli"
	"github.com/julianstephens/habitenforcer/internal/constants"
	"github.com/julianstephens/habitenforcer/internal/keyring"
	"github.com/julianstephens/habitenforcer/internal/storage/postgres"
)

type KeyringCmd struct {
	Set    KeyringSetCmd    `cmd:"" help:"Store a secret in the OS keyring."`
	Get    KeyringGetCmd    `cmd:"" help:"Show a stored secret, masked."`
	Delete KeyringDeleteCmd `cmd:"" help:"Remove a secret from the OS keyring."`
	Status KeyringStatusCmd `cmd:"" help:"Check keyring availability and stored secrets." default:"1"`
}

// KeyringSetCmd stores a secret in the OS keyring
type KeyringSetCmd struct {
	Secret string `arg:"" help:"Secret name: database-connection, gemini-api-key, twilio-auth-token or wallet-private-key."`
	Value  string `arg:"" optional:"" help:"Secret value. Prompted for when omitted."`
}

// promptSecret is swapped in tests.
var promptSecret = func(s keyring.Secret) (string, error) {
	var v string
	err := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title(fmt.Sprintf("Value for %s", s)).
			EchoMode(huh.EchoModePassword).
			Validate(func(v string) error {
				if strings.TrimSpace(v) == "" {
					return errors.New("value cannot be empty")
				}
				return nil
			}).
			Value(&v),
	)).Run()
	return strings.TrimSpace(v), err
}

func (cmd *KeyringSetCmd) Run(ctx *cli.Context) error {
	secret, err := keyring.ParseSecret(cmd.Secret)
	if err != nil {
		return err
	}
	value := cmd.Value
	if value == "" {
		if value, err = promptSecret(secret); err != nil {
			return fmt.Errorf("failed to read secret: %w", err)
		}
	}

	if secret == keyring.DatabaseConnection {
		if err := checkConnString(value); err != nil {
			return err
		}
	}

	if err := keyring.Set(secret, value); err != nil {
		return err
	}
	fmt.Printf("✓ %s stored successfully in OS keyring\n", secret)
	return nil
}

func checkConnString(value string) error {
	if !postgres.IsConnString(value) {
		return errors.New("connection string must be a valid PostgreSQL connection string")
	}
	if err := postgres.ValidateConnString(value); err != nil {
		if !errors.Is(err, postgres.ErrEmbeddedCredentials) {
			return fmt.Errorf("invalid connection string: %w", err)
		}
		// The keyring is encrypted, so embedded credentials are allowed here.
		fmt.Println("⚠️  Warning: Connection string contains embedded credentials.")
		fmt.Println("   It will be stored as-is in the encrypted OS keyring.")
	}
	fmt.Printf("  %s will use it when --db is empty\n", constants.AppName)
	return nil
}

// KeyringGetCmd shows a stored secret with its sensitive part masked
type KeyringGetCmd struct {
	Secret string `arg:"" help:"Secret name."`
}

func (cmd *KeyringGetCmd) Run(ctx *cli.Context) error {
	secret, err := keyring.ParseSecret(cmd.Secret)
	if err != nil {
		return err
	}
	v, err := keyring.Get(secret)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("no %s found in keyring. Use '%s keyring set %s' to store one", secret, constants.AppName, secret)
		}
		return fmt.Errorf("failed to retrieve %s from keyring: %w", secret, err)
	}
	fmt.Printf("%s: %s\n", secret, maskSecret(secret, v))
	return nil
}

// KeyringDeleteCmd removes a secret from the OS keyring
type KeyringDeleteCmd struct {
	Secret string `arg:"" help:"Secret name."`
}

func (cmd *KeyringDeleteCmd) Run(ctx *cli.Context) error {
	secret, err := keyring.ParseSecret(cmd.Secret)
	if err != nil {
		return err
	}
	if err := keyring.Delete(secret); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("no %s found in keyring", secret)
		}
		return err
	}
	fmt.Printf("✓ %s deleted from OS keyring\n", secret)
	return nil
}

// KeyringStatusCmd checks the availability of the OS keyring
type KeyringStatusCmd struct{}

func (cmd *KeyringStatusCmd) Run(ctx *cli.Context) error {
	if !keyring.IsAvailable() {
		fmt.Println("❌ OS keyring is not available on this system")
		return errors.New("keyring unavailable")
	}
	fmt.Println("✓ OS keyring is available")
	for _, s := range keyring.Secrets() {
		_, err := keyring.Get(s)
		switch {
		case err == nil:
			fmt.Printf("✓ %s is stored\n", s)
		case errors.Is(err, keyring.ErrNotFound):
			fmt.Printf("ℹ %s is not stored\n", s)
		default:
			fmt.Printf("❌ %s: %v\n", s, err)
		}
	}
	return nil
}

func maskSecret(s keyring.Secret, v string) string {
	if s == keyring.DatabaseConnection {
		return maskPassword(v)
	}
	return cli.Mask(v)
}

// maskPassword masks passwords in connection strings for display
func maskPassword(connStr string) string {
	if strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://") {
		idx := strings.Index(connStr, "://")
		remaining := connStr[idx+3:]
		// The last @ separates user info from host.
		if at := strings.LastIndex(remaining, "@"); at != -1 {
			userInfo := remaining[:at]
			if colon := strings.Index(userInfo, ":"); colon != -1 {
				return connStr[:idx+3] + userInfo[:colon] + ":****" + connStr[idx+3+at:]
			}
		}
		return connStr
	}

	if strings.Contains(connStr, "password=") {
		parts := strings.Fields(connStr)
		for i, part := range parts {
			if strings.HasPrefix(part, "password=") {
				parts[i] = "password=****"
			}
		}
		return strings.Join(parts, " ")
	}
	return connStr
}
