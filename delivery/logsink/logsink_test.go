package logsink

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliver(t *testing.T) {
	l, hook := test.NewNullLogger()
	b := New(l)

	err := b.Deliver(context.Background(), "Sophon TX: hello #darkforest")
	require.NoError(t, err)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "Sophon TX: hello #darkforest", entry.Data["text"])
}

func TestDeliverCanceled(t *testing.T) {
	l, hook := test.NewNullLogger()
	b := New(l)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, b.Deliver(ctx, "x"), context.Canceled)
	assert.Empty(t, hook.AllEntries())
}
