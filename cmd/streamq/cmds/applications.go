package cmds

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-go-golems/streamq/pkg/chat"
)

func (a *App) newListApplicationsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list-applications",
		Short: "List the application ids visible to the current credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.newClient(cmd.Context(), a.Settings.AWS)
			if err != nil {
				return err
			}
			apps, err := client.ListApplications(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, app := range chat.KnownApplications(apps) {
				if _, err := fmt.Fprintf(w, "%s\t%s\n", *app.ID, app.DisplayName); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
