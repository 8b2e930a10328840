//go:build linux

package notify

import (
	"errors"
	"os"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/rpcbridge/internal/track"
)

type busCall struct {
	method string
	args   []any
}

// fakeBus answers Notify like a notification server: a non-zero
// replaces_id is echoed back, otherwise a new ID is handed out.
type fakeBus struct {
	calls  []busCall
	nextID uint32
	err    error
}

func (f *fakeBus) Call(method string, _ dbus.Flags, args ...any) *dbus.Call {
	f.calls = append(f.calls, busCall{method: method, args: args})
	if f.err != nil {
		return &dbus.Call{Err: f.err}
	}
	if method != methodNotify {
		return &dbus.Call{}
	}
	if replaces := args[1].(uint32); replaces != 0 {
		return &dbus.Call{Body: []any{replaces}}
	}
	f.nextID++
	return &dbus.Call{Body: []any{f.nextID}}
}

func TestDBusNotifier_ShowSendsNotify(t *testing.T) {
	bus := &fakeBus{}
	n := &dbusNotifier{obj: bus}

	id, err := n.Show(Popup{Title: "T", Body: "A - L", Icon: "icon", Timeout: 3000})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), id)

	require.Len(t, bus.calls, 1)
	c := bus.calls[0]
	assert.Equal(t, "org.freedesktop.Notifications.Notify", c.method)
	require.Len(t, c.args, 8)
	assert.Equal(t, "RPC Bridge", c.args[0])
	assert.Equal(t, uint32(0), c.args[1])
	assert.Equal(t, "icon", c.args[2])
	assert.Equal(t, "T", c.args[3])
	assert.Equal(t, "A - L", c.args[4])
	assert.Equal(t, int32(3000), c.args[7])

	hints := c.args[6].(map[string]dbus.Variant)
	assert.Equal(t, byte(0), hints["urgency"].Value())
	assert.Equal(t, "rpcbridge", hints["desktop-entry"].Value())
	assert.Equal(t, true, hints["transient"].Value())
}

func TestDBusNotifier_TrackerReplacesThenDismisses(t *testing.T) {
	bus := &fakeBus{}
	tr := NewTracker(&dbusNotifier{obj: bus}, 0)

	require.NoError(t, tr.TrackChanged(&track.State{Artist: "A", Title: "T"}))
	require.NoError(t, tr.TrackChanged(&track.State{Artist: "B", Title: "U"}))
	require.NoError(t, tr.SetEnabled(false))

	require.Len(t, bus.calls, 3)
	assert.Equal(t, uint32(0), bus.calls[0].args[1], "first popup is new")
	assert.Equal(t, uint32(1), bus.calls[1].args[1], "second popup replaces the first")
	assert.Equal(t, int32(-1), bus.calls[1].args[7])
	assert.Equal(t, "org.freedesktop.Notifications.CloseNotification", bus.calls[2].method)
	assert.Equal(t, []any{uint32(1)}, bus.calls[2].args)
}

func TestDBusNotifier_CallError(t *testing.T) {
	bus := &fakeBus{err: errors.New("service unknown")}
	n := &dbusNotifier{obj: bus}

	_, err := n.Show(Popup{Title: "T"})
	require.Error(t, err)
	assert.Error(t, n.Dismiss(4))
}

func TestNew_SessionBus(t *testing.T) {
	// Skip if no D-Bus session (CI environment)
	if os.Getenv("DBUS_SESSION_BUS_ADDRESS") == "" {
		t.Skip("no D-Bus session available")
	}

	n, err := New()
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	id, err := n.Show(Popup{Title: "RPC Bridge Test", Body: "Test popup", Timeout: 1000})
	if err != nil {
		t.Fatalf("Show() error: %v", err)
	}
	if id == 0 {
		t.Error("Show() returned id=0, expected non-zero")
	}
	if err := n.Dismiss(id); err != nil {
		t.Errorf("Dismiss() error: %v", err)
	}
}
