package compare

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/cmd/util"
)

var (
	referenceLap int
	segmentIDs   []string
)

func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare sessionId targetLap",
		Short: "compare a lap against a reference lap segment by segment",
		Long: `compare a lap against a reference lap segment by segment

Without --reference-lap the layout's reference lap is used. The output
lists per-segment time and speed deltas plus the segments with the
largest time losses and gains.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			targetLap, err := strconv.Atoi(args[1])
			if err != nil {
				return err
			}
			return compareLaps(cmd, args[0], targetLap)
		},
	}
	cmd.Flags().IntVar(&referenceLap, "reference-lap", 0,
		"lap to compare against (default: the layout's reference lap)")
	cmd.Flags().StringSliceVar(&segmentIDs, "segments", nil,
		"restrict the comparison to these segment ids (e.g. T1,S2)")
	return cmd
}

func compareLaps(cmd *cobra.Command, sessionID string, targetLap int) error {
	util.SetupLogger()
	srv, closer, err := util.SetupService()
	if err != nil {
		return err
	}
	defer closer()

	comparison, err := srv.CompareSegments(cmd.Context(), sessionID, targetLap, referenceLap, segmentIDs)
	if err != nil {
		return err
	}
	return util.Output(comparison)
}
