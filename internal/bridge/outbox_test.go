package bridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutbox_DeliversInOrderWithoutDropping(t *testing.T) {
	o := newOutbox()
	defer o.close()

	// Far more than any channel buffer, sent before anyone reads.
	for i := range 1000 {
		o.send(StatusEvent{Text: string(rune('a' + i%26))})
	}

	for i := range 1000 {
		select {
		case e := <-o.out:
			require.Equal(t, StatusEvent{Text: string(rune('a' + i%26))}, e, "event %d", i)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out at event %d", i)
		}
	}
}

func TestOutbox_CloseClosesChannel(t *testing.T) {
	o := newOutbox()
	o.send(ServerStoppedEvent{})
	o.close()
	o.close()
	o.send(ServerStoppedEvent{})

	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-o.out:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("output channel not closed")
		}
	}
}

func TestLevel_String(t *testing.T) {
	assert.Equal(t, "INFO", LevelInfo.String())
	assert.Equal(t, "WARNING", LevelWarning.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "SUCCESS", LevelSuccess.String())
	assert.Equal(t, "SERVER", LevelServer.String())
	assert.Equal(t, "RPC", LevelRPC.String())
	assert.Equal(t, "RECV", LevelRecv.String())
	assert.Equal(t, "UNKNOWN", Level(99).String())
}
