package cmds

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/streamq/pkg/persistence/transcript"
)

func (a *App) newTranscriptCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcript",
		Short: "Inspect recorded chat outputs",
	}
	cmd.AddCommand(a.newTranscriptListCommand())
	return cmd
}

func (a *App) newTranscriptListCommand() *cobra.Command {
	var q transcript.Query
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded outputs, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.Settings.Transcript.DSN == "" {
				return errors.New("transcript.dsn is not set")
			}
			store, err := transcript.NewSQLiteStore(a.Settings.Transcript.DSN)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			records, err := store.List(cmd.Context(), q)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, r := range records {
				body := r.Content
				if r.Kind == "metadata" {
					body = fmt.Sprintf("usr=%s sys=%s", r.UserMessageID, r.SystemMessageID)
				}
				if _, err := fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", r.RequestID, r.Seq, r.ConversationID, r.Kind, body); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&q.RequestID, "request-id", "", "Only outputs of this request")
	cmd.Flags().StringVar(&q.ConversationID, "conversation-id", "", "Only outputs of this conversation")
	cmd.Flags().IntVar(&q.Limit, "limit", 100, "Maximum number of rows (0 for all)")
	return cmd
}
