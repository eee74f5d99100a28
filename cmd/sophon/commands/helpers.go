package commands

import (
	"context"

	"github.com/PowerDNS/simpleblob"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/darkforest-tools/sophon/delivery"
	"github.com/darkforest-tools/sophon/sources/eventlog"
	"github.com/darkforest-tools/sophon/sources/ledger"
	"github.com/darkforest-tools/sophon/state"
)

// openStore returns the state store configured in conf
func openStore(ctx context.Context) (*state.Store, error) {
	st, err := simpleblob.GetBackend(ctx, conf.Storage.Type, conf.Storage.Options)
	if err != nil {
		return nil, errors.Wrap(err, "storage backend")
	}
	logrus.WithField("storage_type", conf.Storage.Type).Debug("Storage backend initialised")
	return state.NewStore(st, conf.State.BlobName, logrus.StandardLogger()), nil
}

// openSources returns the clients for both snapshot sources
func openSources() (*eventlog.Client, *ledger.Client, error) {
	l := logrus.StandardLogger()
	ec := eventlog.New(conf.Sources.EventLog.URL, conf.Sources.EventLog.Timeout, l)
	lc, err := ledger.New(conf.Sources.Ledger, l)
	if err != nil {
		return nil, nil, errors.Wrap(err, "ledger source")
	}
	return ec, lc, nil
}

// openDelivery returns the configured delivery backend
func openDelivery() (*delivery.Backend, error) {
	d, err := delivery.GetBackend(conf.Delivery, logrus.StandardLogger())
	if err != nil {
		return nil, err
	}
	logrus.WithField("delivery_type", d.Name()).Debug("Delivery backend initialised")
	return d, nil
}

func closeDelivery(d *delivery.Backend) {
	if err := d.Close(); err != nil {
		logrus.WithError(err).Warn("Delivery backend close failed")
	}
}
