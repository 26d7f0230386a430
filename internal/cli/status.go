package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tansuo/paperchat/internal/store"
	"github.com/tansuo/paperchat/internal/version"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show client configuration and server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("Paperchat %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Printf("Config:  %s\n", paths.Config)
			fmt.Printf("Data:    %s\n", paths.Data)
			fmt.Println()

			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			fmt.Printf("Server:  %s\n", app.cfg.Server.URL)
			fmt.Printf("Storage: driver=%s path=%s\n", app.cfg.Storage.Driver, paths.DatabasePath(app.cfg))

			sessions, err := app.db.ListSessions()
			if err == nil {
				fmt.Printf("Local:   %d conversation(s)\n", len(sessions))
			}
			username, _, _ := app.db.GetValue(store.KeyUsername)
			if username != "" {
				fmt.Printf("Account: %s\n", username)
			}
			fmt.Println()

			health, err := app.gateway.Health(cmd.Context())
			if err != nil {
				color.Red("Health:  UNREACHABLE (%v)", err)
				return nil
			}
			color.Green("Health:  %s", health.Status)
			fmt.Printf("Model:   %s\n", health.ModelProvider)
			fmt.Printf("Clients: %d connected\n", health.Connections)
			return nil
		},
	}
}
