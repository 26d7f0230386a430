package cli

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tansuo/paperchat/internal/protocol"
	"github.com/tansuo/paperchat/internal/store"
)

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage stored client settings",
	}

	cmd.AddCommand(newSettingsShowCmd())
	cmd.AddCommand(newSettingsNotionCmd())
	cmd.AddCommand(newSettingsLogoutCmd())
	return cmd
}

func newSettingsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the stored settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			username, _, _ := app.db.GetValue(store.KeyUsername)
			if username == "" {
				username = "(not logged in)"
			}
			fmt.Printf("server:   %s\n", app.cfg.Server.URL)
			fmt.Printf("account:  %s\n", username)
			fmt.Printf("notion:   secret=%s database=%s\n",
				redact(settingOr(app, store.KeyNotionSecret, app.cfg.Notion.IntegrationSecret)),
				settingOr(app, store.KeyNotionDatabase, app.cfg.Notion.DatabaseID))
			return nil
		},
	}
}

func newSettingsNotionCmd() *cobra.Command {
	var secret, database string

	cmd := &cobra.Command{
		Use:   "notion",
		Short: "Store Notion credentials and verify them with the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			if secret != "" {
				if err := app.db.SetValue(store.KeyNotionSecret, secret); err != nil {
					return err
				}
			}
			if database != "" {
				if err := app.db.SetValue(store.KeyNotionDatabase, database); err != nil {
					return err
				}
			}

			req := protocol.NotionTestRequest{
				NotionIntegrationSecret: settingOr(app, store.KeyNotionSecret, app.cfg.Notion.IntegrationSecret),
				NotionDatabaseID:        settingOr(app, store.KeyNotionDatabase, app.cfg.Notion.DatabaseID),
			}
			if req.NotionIntegrationSecret == "" || req.NotionDatabaseID == "" {
				return errors.New("notion secret and database id are both required (set with --secret/--database)")
			}

			resp, err := app.gateway.TestNotion(cmd.Context(), req)
			if err != nil {
				return err
			}
			if !resp.Success {
				color.Red("notion connection failed: %s", firstNonEmpty(resp.Error, resp.Message))
				return nil
			}
			color.Green("notion connection ok: %s", firstNonEmpty(resp.DatabaseTitle, resp.Message))
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "Notion integration secret")
	cmd.Flags().StringVar(&database, "database", "", "Notion database id")
	return cmd
}

func newSettingsLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored auth token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.db.DeleteValue(store.KeyToken); err != nil {
				return err
			}
			if err := app.db.DeleteValue(store.KeyUsername); err != nil {
				return err
			}
			fmt.Println("logged out")
			return nil
		},
	}
}

// settingOr reads a stored setting, falling back to the config file value.
func settingOr(app *app, key, fallback string) string {
	value, ok, err := app.db.GetValue(key)
	if err != nil || !ok || value == "" {
		return fallback
	}
	return value
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func redact(s string) string {
	if s == "" {
		return "(unset)"
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}
