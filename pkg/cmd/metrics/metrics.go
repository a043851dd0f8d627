package metrics

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/cmd/util"
)

func NewMetricsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics sessionId lapNo",
		Short: "compute (or fetch cached) segment metrics for a lap",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lapNo, err := strconv.Atoi(args[1])
			if err != nil {
				return err
			}
			return showMetrics(cmd, args[0], lapNo)
		},
	}
	return cmd
}

func showMetrics(cmd *cobra.Command, sessionID string, lapNo int) error {
	util.SetupLogger()
	srv, closer, err := util.SetupService()
	if err != nil {
		return err
	}
	defer closer()

	m, err := srv.GetLapMetrics(cmd.Context(), sessionID, lapNo)
	if err != nil {
		return err
	}
	return util.Output(m)
}
