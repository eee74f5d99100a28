package commands

import (
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/darkforest-tools/sophon/monitor"
)

var deliverRaw bool

func init() {
	rootCmd.AddCommand(deliverTestCmd)
	deliverTestCmd.Flags().BoolVar(&deliverRaw, "raw", false, "Do not add the configured prefix and suffix")
}

var deliverTestCmd = &cobra.Command{
	Use:   "deliver-test <text>...",
	Short: "Deliver a single message through the configured delivery backend",
	Long: `Deliver a single message through the configured delivery backend,
bypassing the queue. Useful to verify delivery credentials.`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		dl, err := openDelivery()
		if err != nil {
			return err
		}
		defer closeDelivery(dl)

		text := strings.Join(args, " ")
		if !deliverRaw {
			text = monitor.Decorate(conf.Delivery, text)
		}
		if err := dl.Deliver(rootCtx, text); err != nil {
			return err
		}
		logrus.WithField("delivery_type", dl.Name()).Info("Message delivered")
		return nil
	},
}
