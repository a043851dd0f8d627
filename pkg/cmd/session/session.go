package session

import (
	"github.com/spf13/cobra"

	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/cmd/util"
)

func NewSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "commands around recorded sessions",
	}

	cmd.AddCommand(newInvalidateCmd())
	return cmd
}

func newInvalidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate sessionId",
		Short: "drop all cached lap metrics of a session",
		Long: `drop all cached lap metrics of a session

Use this after re-recording a session's telemetry. Metrics are
recomputed on next access.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return invalidate(cmd, args[0])
		},
	}
}

func invalidate(cmd *cobra.Command, sessionID string) error {
	util.SetupLogger()
	srv, closer, err := util.SetupService()
	if err != nil {
		return err
	}
	defer closer()

	return srv.InvalidateSession(cmd.Context(), sessionID)
}
