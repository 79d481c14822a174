package limit

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/nettest"

	testlog "github.com/hearthlab/hearthd/internal/pkg/testing/log"
)

// With a cap of one, the first connection holds the slot and the second one
// is accepted but force-closed by the listener.
func TestLimitListener(t *testing.T) {
	logger := testlog.SetLogger(t)
	ll, err := nettest.NewLocalListener("tcp")
	require.NoError(t, err)
	defer ll.Close()
	l := Listener(ll, 1, &logger)

	serverClosed := make(chan struct{})
	clientDone := make(chan struct{})

	t.Log("First connection takes the only slot")
	go func() {
		_, err := net.Dial("tcp", l.Addr().String())
		require.NoError(t, err)
	}()
	held, err := l.Accept()
	require.NoError(t, err, "the first connection should be let through")

	t.Log("Second connection gets bounced")
	go func() {
		defer close(clientDone)
		conn, err := net.Dial("tcp", l.Addr().String())
		require.NoError(t, err)

		select {
		case <-serverClosed:
		case <-time.After(time.Second):
			require.Fail(t, "timed out waiting for the listener to close the overflow connection")
		}

		// The far end is gone; reads see nothing.
		var p []byte
		n, err := conn.Read(p)
		assert.NoError(t, err)
		assert.Equal(t, 0, n)
		require.NoError(t, conn.Close())
	}()

	bounced, err := l.Accept()
	require.NoError(t, err)
	n, err := bounced.Write([]byte(`anyone home?`))
	close(serverClosed)
	assert.Error(t, err, "writing on the bounced connection should fail")
	assert.Equal(t, 0, n)

	require.NoError(t, held.Close())
	require.NoError(t, l.Close())
	<-clientDone
}
