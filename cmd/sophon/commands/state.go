package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/darkforest-tools/sophon/monitor"
)

var enqueueRaw bool

func init() {
	rootCmd.AddCommand(stateCmd)
	stateCmd.AddCommand(stateShowCmd)
	stateCmd.AddCommand(stateEnqueueCmd)
	stateEnqueueCmd.Flags().BoolVar(&enqueueRaw, "raw", false, "Do not add the configured prefix and suffix")
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect and modify the persisted state",
	Long: `Inspect and modify the persisted state.

Modifications must not be made while the monitor is running, because the
running monitor overwrites the state on its next change.`,
}

var stateShowCmd = &cobra.Command{
	Use:          "show",
	Short:        "Print the persisted state as JSON",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(rootCtx)
		if err != nil {
			return err
		}
		ms := store.Load(rootCtx)
		if ms.PendingAlerts == nil {
			ms.PendingAlerts = []string{}
		}
		data, err := json.MarshalIndent(ms, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	},
}

var stateEnqueueCmd = &cobra.Command{
	Use:          "enqueue <text>...",
	Short:        "Append an alert to the queue",
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(rootCtx)
		if err != nil {
			return err
		}
		m := monitor.New(conf, monitor.Options{
			Store:  store,
			Logger: logrus.StandardLogger(),
		})
		m.Load(rootCtx)

		text := strings.Join(args, " ")
		if !enqueueRaw {
			text = m.Decorate(text)
		}
		if err := m.Enqueue(rootCtx, text); err != nil {
			return err
		}
		logrus.WithFields(logrus.Fields{
			"alert":     text,
			"queue_len": m.QueueLen(),
		}).Info("Alert enqueued")
		return nil
	},
}
