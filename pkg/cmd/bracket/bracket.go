package bracket

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/mpapenbr/fpv-racedash/pkg/bracket"
	"github.com/mpapenbr/fpv-racedash/pkg/cmd/common"
)

func NewBracketCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bracket",
		Short: "bracket format related commands",
	}
	cmd.AddCommand(newValidateCmd(), newListCmd(), newShowCmd())
	return cmd
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate file...",
		Short: "validates bracket format files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return validate(cmd.OutOrStdout(), args)
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "lists the builtin bracket formats",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range bracket.BuiltinNames() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [file|name]",
		Short: "prints the nodes of a bracket format",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := bracket.LoadOrBuiltin(lo.FirstOr(args, ""))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), RenderFormat(f))
			return nil
		},
	}
}

// validate checks every file and reports all problems before failing.
func validate(out io.Writer, files []string) error {
	var errs []error
	for _, file := range files {
		f, err := bracket.Load(file)
		if err != nil {
			fmt.Fprintf(out, "%s: invalid\n", file)
			var verr *bracket.ValidationError
			if errors.As(err, &verr) {
				for _, e := range verr.Errs {
					fmt.Fprintf(out, "  - %v\n", e)
				}
			} else {
				fmt.Fprintf(out, "  - %v\n", err)
			}
			errs = append(errs, fmt.Errorf("%s: %w", file, err))
			continue
		}
		fmt.Fprintf(out, "%s: ok (%s, %d nodes)\n", file, f.Name, len(f.Nodes))
	}
	return errors.Join(errs...)
}

func RenderFormat(f *bracket.Format) string {
	seq := f.Sequence()
	rows := lo.Map(f.Nodes, func(n bracket.Node, _ int) []string {
		rules := lo.Map(n.Rules, func(r bracket.Rule, _ int) string {
			return fmt.Sprintf("%d→%s", r.Position, r.To)
		})
		return []string{
			strconv.Itoa(n.Order),
			n.Code,
			n.Label,
			n.Round,
			string(n.Stage),
			strconv.Itoa(lo.IndexOf(seq, n.Order) + 1),
			strings.Join(rules, " "),
		}
	})
	return common.RenderTable(
		[]string{"Order", "Code", "Label", "Round", "Stage", "Run", "Rules"},
		rows,
		[]common.ColumnAlignment{common.AlignRight, common.AlignLeft, common.AlignLeft,
			common.AlignLeft, common.AlignLeft, common.AlignRight, common.AlignLeft})
}
