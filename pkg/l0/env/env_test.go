package env

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewConfigCopiesLinks(t *testing.T) {
	conf := NewConfig()
	require.Len(t, conf.Links, 3)
	conf.Links[0].Device = "ws://elsewhere/"
	require.Equal(t, "sim://", Default().Links[0].Device)
	require.NotZero(t, SenderIDFromMachine())
}

func TestLinkConfigBackoff(t *testing.T) {
	conf := NewConfig()
	conf.SenderID = 9
	lc := conf.Links[1]
	lc.Link.Interval = 10 * time.Millisecond
	lc.Link.MaxAttempts = 3

	lconf, err := conf.LinkConfig(&lc)
	require.NoError(t, err)
	require.Equal(t, byte(9), lconf.SenderID)
	require.Equal(t, 40*time.Millisecond, lconf.Backoff(3))

	lc.Backoff = BackoffShift
	lconf, err = conf.LinkConfig(&lc)
	require.NoError(t, err)
	require.Equal(t, 80*time.Millisecond, lconf.Backoff(3))

	lc.Backoff, lc.RetryBudget = BackoffFixed, 90*time.Millisecond
	lconf, err = conf.LinkConfig(&lc)
	require.NoError(t, err)
	require.Equal(t, 30*time.Millisecond, lconf.Backoff(1))
	require.Equal(t, 30*time.Millisecond, lconf.Backoff(3))

	lc.Backoff = "linear"
	_, err = conf.LinkConfig(&lc)
	require.Error(t, err)

	conf.SenderID = 300
	lc.Backoff = BackoffExp
	_, err = conf.LinkConfig(&lc)
	require.Error(t, err)
}

func TestOpenLineRejectsUnknownScheme(t *testing.T) {
	lc := defaultLink("x")
	lc.Device = "tcp://host:1"
	_, _, err := OpenLine(&lc)
	require.Error(t, err)
}

func TestSimEnvDelivers(t *testing.T) {
	conf := NewConfig()
	conf.MQTTBrokerURL = ""
	env, err := conf.NewEnv()
	require.NoError(t, err)
	require.Equal(t, []string{"console", "host", "sampler"}, env.Links.Names())
	require.Nil(t, env.Bridge)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go env.Run(ctx)
	sampler := env.Links.Get("sampler")
	require.NoError(t, sampler.SendWait(ctx, 0x21, []byte{1, 2, 3}))
	require.Equal(t, uint64(1), sampler.Stats().Delivered)
}
