package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/darkforest-tools/sophon/evaluator"
	"github.com/darkforest-tools/sophon/monitor"
)

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command) error {
	ctx := rootCtx
	out := cmd.OutOrStdout()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	events, ledger, err := openSources()
	if err != nil {
		return err
	}

	ms := store.Load(ctx)
	fmt.Fprintf(out, "State: %d pending alerts\n", ms.QueueLen())

	ev, err := events.FetchEvents(ctx, ms.AchievementRank, ms.ArtifactTier)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Event log: block %d, %d pending transfers, indexing errors: %v\n",
		ev.Block.Number, len(ev.Transfers), ev.HasIndexingErrors)
	evRes, err := evaluator.EvaluateEvents(ev, ms.Marks)
	if err != nil {
		fmt.Fprintf(out, "  not evaluated: %v\n", err)
	}
	printAlerts(cmd, evRes)

	l, err := ledger.FetchMetrics(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Ledger: world radius %d, %d players\n", l.WorldRadius, l.PlayerCount)
	printAlerts(cmd, evaluator.EvaluateLedger(l, ms.Marks))
	return nil
}

func printAlerts(cmd *cobra.Command, res evaluator.Result) {
	out := cmd.OutOrStdout()
	if len(res.Alerts) == 0 {
		fmt.Fprintln(out, "  no alerts")
		return
	}
	for _, a := range res.Alerts {
		fmt.Fprintf(out, "  would alert [%s]: %s\n", a.Rule, monitor.Decorate(conf.Delivery, a.Text))
	}
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Fetch both sources once and show the alerts that would fire",
	Long: `Fetch both sources once and show the alerts that would fire against
the persisted state. Nothing is enqueued or persisted.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCheck(cmd)
	},
}
