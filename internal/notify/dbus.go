//go:build linux

package notify

import (
	"github.com/godbus/dbus/v5"
)

const (
	busName      = "org.freedesktop.Notifications"
	busPath      = "/org/freedesktop/Notifications"
	methodNotify = busName + ".Notify"
	methodClose  = busName + ".CloseNotification"

	appName      = "RPC Bridge"
	desktopEntry = "rpcbridge"
	category     = "x-rpcbridge.track"
	urgencyLow   = byte(0)
)

// caller is the part of dbus.BusObject the notifier needs.
type caller interface {
	Call(method string, flags dbus.Flags, args ...any) *dbus.Call
}

// dbusNotifier talks to the freedesktop notification server.
type dbusNotifier struct {
	obj caller
}

// New connects to the session bus. Without one, popups are silently skipped.
func New() (Notifier, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nopNotifier{}, nil //nolint:nilerr // no session bus, no popups
	}
	return &dbusNotifier{obj: conn.Object(busName, busPath)}, nil
}

func (n *dbusNotifier) Show(p Popup) (uint32, error) {
	hints := map[string]dbus.Variant{
		"urgency":       dbus.MakeVariant(urgencyLow),
		"desktop-entry": dbus.MakeVariant(desktopEntry),
		"category":      dbus.MakeVariant(category),
		"transient":     dbus.MakeVariant(true),
	}

	// Notify(app_name, replaces_id, app_icon, summary, body, actions, hints, expire_timeout) -> id
	call := n.obj.Call(methodNotify, 0,
		appName, p.ReplacesID, p.Icon, p.Title, p.Body, []string{}, hints, p.Timeout)
	if call.Err != nil {
		return 0, call.Err
	}
	var id uint32
	if err := call.Store(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (n *dbusNotifier) Dismiss(id uint32) error {
	return n.obj.Call(methodClose, 0, id).Err
}
