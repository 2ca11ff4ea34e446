package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"mstock-trader/internal/security"
)

// addAuthCommands adds the authentication command group.
func addAuthCommands(rootCmd *cobra.Command, app *App) {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage broker credentials and sessions",
	}
	authCmd.AddCommand(newAuthSetupCmd(app))
	authCmd.AddCommand(newAuthLoginCmd(app))
	authCmd.AddCommand(newAuthTokenCmd(app))
	authCmd.AddCommand(newAuthStatusCmd(app))
	rootCmd.AddCommand(authCmd)
}

func newAuthSetupCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Store broker credentials in the encrypted store",
		Long: `Prompt for the mStock API key, API secret, client code, password and
TOTP secret, and store them encrypted on disk. Values left blank keep
their stored value.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			reader := bufio.NewReader(os.Stdin)

			apiKey, err := promptLine(reader, "API key: ")
			if err != nil {
				return err
			}
			apiSecret, err := promptSecret("API secret: ")
			if err != nil {
				return err
			}
			clientCode, err := promptLine(reader, "Client code: ")
			if err != nil {
				return err
			}
			password, err := promptSecret("Password: ")
			if err != nil {
				return err
			}
			totpSecret, err := promptSecret("TOTP secret: ")
			if err != nil {
				return err
			}

			if totpSecret != "" {
				if err := security.ValidateTOTPSecret(totpSecret); err != nil {
					output.Error("TOTP secret rejected: %v", err)
					return err
				}
			}

			err = app.Store.Update(func(c *security.Credentials) {
				setIfPresent(&c.APIKey, apiKey)
				setIfPresent(&c.APISecret, apiSecret)
				setIfPresent(&c.ClientCode, clientCode)
				setIfPresent(&c.Password, password)
				setIfPresent(&c.TOTPSecret, totpSecret)
			})
			if err != nil {
				return err
			}
			output.Success("Credentials stored")
			return nil
		},
	}
}

func newAuthLoginCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Obtain a fresh session via TOTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Broker.RefreshSession(cmd.Context()); err != nil {
				output.Error("Login failed: %v", err)
				return err
			}
			output.Success("Session established")
			return nil
		},
	}
}

func newAuthTokenCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "token <request_token>",
		Short: "Complete the request-token login flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Broker.GenerateSession(cmd.Context(), args[0]); err != nil {
				output.Error("Session exchange failed: %v", err)
				return err
			}
			output.Success("Session established")
			return nil
		},
	}
}

func newAuthStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authentication status",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			creds, err := app.Store.Credentials()
			if err != nil {
				return err
			}

			status := map[string]bool{
				"api_key":      creds.APIKey != "",
				"api_secret":   creds.APISecret != "",
				"client_code":  creds.ClientCode != "",
				"password":     creds.Password != "",
				"totp_secret":  creds.TOTPSecret != "",
				"access_token": creds.AccessToken != "",
			}
			if output.IsJSON() {
				return output.JSON(status)
			}
			for _, name := range []string{"api_key", "api_secret", "client_code", "password", "totp_secret", "access_token"} {
				if status[name] {
					output.Success("%-12s set", name)
				} else {
					output.Warning("%-12s missing", name)
				}
			}
			if status["access_token"] {
				output.Dim("token %s", security.Mask(creds.AccessToken))
			}
			return nil
		},
	}
}

func promptLine(reader *bufio.Reader, prompt string) (string, error) {
	fmt.Print(prompt)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func promptSecret(prompt string) (string, error) {
	fmt.Print(prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

func setIfPresent(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}
