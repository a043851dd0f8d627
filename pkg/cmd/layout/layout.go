package layout

import (
	"github.com/spf13/cobra"

	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/cmd/util"
)

var referenceLap int

func NewLayoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "commands around track layouts",
	}

	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newRegenerateCmd())
	return cmd
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show sessionId",
		Short: "show the track layout for a session's track (building it if needed)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return showLayout(cmd, args[0])
		},
	}
}

func newRegenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "regenerate sessionId",
		Short: "rebuild the track layout, bumping its version",
		Long: `rebuild the track layout from the session's telemetry

The new layout gets a higher version so previously computed lap metrics
become stale and are recomputed on next access.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return regenerateLayout(cmd, args[0])
		},
	}
	cmd.Flags().IntVar(&referenceLap, "reference-lap", 0,
		"force this lap as reference instead of automatic selection")
	return cmd
}

func showLayout(cmd *cobra.Command, sessionID string) error {
	util.SetupLogger()
	srv, closer, err := util.SetupService()
	if err != nil {
		return err
	}
	defer closer()

	layout, err := srv.GetLayout(cmd.Context(), sessionID)
	if err != nil {
		return err
	}
	return util.Output(layout)
}

func regenerateLayout(cmd *cobra.Command, sessionID string) error {
	util.SetupLogger()
	srv, closer, err := util.SetupService()
	if err != nil {
		return err
	}
	defer closer()

	layout, err := srv.RegenerateLayout(cmd.Context(), sessionID, referenceLap)
	if err != nil {
		return err
	}
	return util.Output(layout)
}
