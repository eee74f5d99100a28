package commands

import (
	"context"
	"errors"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/wojas/go-healthz"

	"github.com/darkforest-tools/sophon/monitor"
	"github.com/darkforest-tools/sophon/status"
	"github.com/darkforest-tools/sophon/status/healthtracker"
	"github.com/darkforest-tools/sophon/status/starttracker"
)

var onlyOnce bool

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&onlyOnce, "only-once", false, "Poll every source once, deliver the queue and exit")
}

func runMonitor() error {
	ctx := rootCtx

	if onlyOnce {
		conf.OnlyOnce = true
	}

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	events, ledger, err := openSources()
	if err != nil {
		return err
	}
	dl, err := openDelivery()
	if err != nil {
		return err
	}
	defer closeDelivery(dl)
	logrus.WithFields(logrus.Fields{
		"storage_type":  conf.Storage.Type,
		"delivery_type": dl.Name(),
	}).Info("Backends initialised")

	healthz.AddBuildInfo()
	if hostname, err := os.Hostname(); err == nil {
		healthz.SetMeta("hostname", hostname)
	}
	healthz.SetMeta("version", version)

	m := monitor.New(conf, monitor.Options{
		Events:   events,
		Ledger:   ledger,
		Store:    store,
		Delivery: dl,
		FetchHealth: map[string]*healthtracker.HealthTracker{
			monitor.TaskEvents: healthtracker.New(conf.Health.Fetch, "eventlog_fetch", "fetch events"),
			monitor.TaskLedger: healthtracker.New(conf.Health.Fetch, "ledger_fetch", "fetch ledger metrics"),
		},
		DeliveryHealth: healthtracker.New(conf.Health.Delivery, "delivery", "deliver alerts"),
		Startup: starttracker.New(conf.Health.Startup, "sophon",
			monitor.PhaseLoad, monitor.TaskEvents, monitor.TaskLedger),
		Logger: logrus.StandardLogger(),
	})
	m.Load(ctx)

	if !conf.OnlyOnce {
		status.StartHTTPServer(conf, m)
	} else {
		logrus.Info("Not starting the HTTP server, because OnlyOnce is set")
	}

	err = m.Run(ctx)
	if errors.Is(err, context.Canceled) && timeout <= 0 {
		logrus.Info("Shutdown requested, exiting")
		return nil
	}
	return err
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the monitor until interrupted",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runMonitor(); err != nil {
			logrus.WithError(err).Fatal("Error")
		}
	},
}
