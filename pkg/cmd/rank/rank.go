package rank

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aarondl/opt/null"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/mpapenbr/fpv-racedash/pkg/bracket"
	"github.com/mpapenbr/fpv-racedash/pkg/calc"
	"github.com/mpapenbr/fpv-racedash/pkg/cmd/common"
	"github.com/mpapenbr/fpv-racedash/pkg/config"
	"github.com/mpapenbr/fpv-racedash/pkg/engine"
	"github.com/mpapenbr/fpv-racedash/pkg/finals"
	"github.com/mpapenbr/fpv-racedash/pkg/leaderboard"
	"github.com/mpapenbr/fpv-racedash/pkg/model"
	"github.com/mpapenbr/fpv-racedash/pkg/ranking"
	"github.com/mpapenbr/fpv-racedash/pkg/store/memory"
)

var (
	raceIDs     []string
	bracketName string
)

func NewRankCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "prints leaderboard, race rankings and finals of a snapshot file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := common.SetupLoggers(); err != nil {
				return err
			}
			return rank(cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&config.SnapshotFile, "snapshot", "",
		"JSON file with the records of an event")
	cmd.Flags().StringSliceVar(&raceIDs, "race", nil,
		"also print the ranking of these races")
	cmd.Flags().StringVar(&bracketName, "bracket", "",
		"bracket format file or builtin name (empty: default format, none: no bracket)")
	cmd.Flags().StringVar(&config.LogLevel, "log-level", "warn",
		"controls the log level (debug, info, warn, error, fatal)")
	_ = cmd.MarkFlagRequired("snapshot")
	return cmd
}

func rank(out io.Writer) error {
	r, err := memory.LoadFile(config.SnapshotFile)
	if err != nil {
		return err
	}
	var f *bracket.Format
	if bracketName != "none" {
		if f, err = bracket.LoadOrBuiltin(bracketName); err != nil {
			return err
		}
	}
	st := engine.Compute(model.NewSnapshot(r), f, config.DefaultEngineConfig().Settings())

	fmt.Fprintf(out, "Leaderboard (race %s, round %s)\n",
		orDash(st.Leaderboard.CurrentRaceID), orDash(st.Leaderboard.RoundID))
	fmt.Fprintln(out, RenderLeaderboard(st.Leaderboard))
	if nr := st.Leaderboard.NextRace; nr != nil {
		fmt.Fprintf(out, "Next: %s\n", nr.Label)
	}
	for _, id := range raceIDs {
		if _, ok := st.Snapshot().Race(id); !ok {
			return fmt.Errorf("unknown race %q", id)
		}
		fmt.Fprintf(out, "\nRace %s\n", id)
		fmt.Fprintln(out, RenderRace(ranking.RaceResult(st.Calculator(), id)))
	}
	fmt.Fprintf(out, "\nFinals: %s\n", st.Finals.Message)
	if st.Finals.Enabled {
		fmt.Fprintln(out, RenderFinals(st.Finals))
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func seconds(v null.Val[float64]) string {
	if f, ok := v.Get(); ok {
		return strconv.FormatFloat(f, 'f', 3, 64)
	}
	return "-"
}

func count(v null.Val[float64]) string {
	if f, ok := v.Get(); ok {
		return strconv.Itoa(int(f))
	}
	return "-"
}

func RenderLeaderboard(lb *leaderboard.Leaderboard) string {
	rows := lo.Map(lb.Entries, func(e leaderboard.Entry, _ int) []string {
		prev := ""
		if e.PrevRank != nil {
			prev = strconv.Itoa(*e.PrevRank)
		}
		flags := []string{}
		if e.Locked {
			flags = append(flags, "locked")
		}
		if e.BelowCut {
			flags = append(flags, "cut")
		}
		return []string{
			strconv.Itoa(e.Position),
			e.Name,
			e.Group,
			count(e.Metrics[calc.MetricCompletedLaps.String()]),
			seconds(e.Metrics[calc.MetricBestLap.String()]),
			seconds(e.Metrics[calc.MetricConsecutive.String()]),
			seconds(e.Metrics[calc.MetricTotalTime.String()]),
			prev,
			strings.Join(flags, ","),
		}
	})
	return common.RenderTable(
		[]string{"Pos", "Pilot", "Group", "Laps", "Best", "Consecutive", "Total", "Prev", "Flags"},
		rows,
		[]common.ColumnAlignment{
			common.AlignRight, common.AlignLeft, common.AlignLeft,
			common.AlignRight, common.AlignRight, common.AlignRight, common.AlignRight,
			common.AlignRight, common.AlignLeft,
		})
}

func RenderRace(entries []ranking.Entry) string {
	rows := lo.Map(entries, func(e ranking.Entry, _ int) []string {
		return []string{
			strconv.Itoa(e.Position),
			e.PilotID,
			e.Group,
			strconv.Itoa(e.Metrics.CompletedLaps),
			seconds(e.Metrics.BestLap),
			seconds(e.Metrics.FinishElapsed),
			seconds(e.Metrics.TotalTime),
		}
	})
	return common.RenderTable(
		[]string{"Pos", "Pilot", "Group", "Laps", "Best", "Finish", "Total"},
		rows,
		[]common.ColumnAlignment{
			common.AlignRight, common.AlignLeft, common.AlignLeft,
			common.AlignRight, common.AlignRight, common.AlignRight, common.AlignRight,
		})
}

func RenderFinals(s *finals.State) string {
	rows := lo.Map(s.Participants, func(p finals.Participant, _ int) []string {
		champion := ""
		if p.Champion {
			champion = "*"
		}
		return []string{
			strconv.Itoa(p.Position),
			p.Name,
			strconv.Itoa(p.Wins),
			strconv.Itoa(p.TotalPoints),
			strconv.Itoa(p.BestOfScore),
			strings.Join(lo.Map(p.HeatPoints, func(v, _ int) string { return strconv.Itoa(v) }), " "),
			champion,
		}
	})
	return common.RenderTable(
		[]string{"Pos", "Pilot", "Wins", "Points", "Best of", "Heats", "Champion"},
		rows,
		[]common.ColumnAlignment{
			common.AlignRight, common.AlignLeft, common.AlignRight, common.AlignRight,
			common.AlignRight, common.AlignLeft, common.AlignLeft,
		})
}
