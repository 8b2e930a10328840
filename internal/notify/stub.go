//go:build !linux

package notify

// New returns a Notifier that shows nothing; popups need a D-Bus session.
func New() (Notifier, error) {
	return nopNotifier{}, nil
}
