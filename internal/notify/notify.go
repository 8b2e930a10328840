// Package notify shows a desktop popup when the bridged track changes.
package notify

// Popup is one desktop notification.
type Popup struct {
	Title string
	// Body may contain the basic markup understood by notification servers.
	Body       string
	Icon       string // icon name or image path
	Timeout    int32  // ms, -1 = server default
	ReplacesID uint32 // 0 opens a new popup
}

// Notifier shows and dismisses popups.
type Notifier interface {
	// Show displays p and returns its ID. Without a notification server it
	// returns 0 and no error.
	Show(p Popup) (uint32, error)
	// Dismiss closes the popup with the given ID.
	Dismiss(id uint32) error
}

// nopNotifier is used when no notification server is reachable.
type nopNotifier struct{}

func (nopNotifier) Show(Popup) (uint32, error) { return 0, nil }
func (nopNotifier) Dismiss(uint32) error       { return nil }
