package notifier

// Notifier is a concurrency primitive for informing worker routines about the
// arrival of new work units. It has the following properties:
//   - Notifier is non-blocking: the sender is never delayed by a slow
//     receiver.
//   - Notifications are merged: if multiple notifications arrive before the
//     receiver checks, it receives only one.
type Notifier struct {
	notifier chan struct{}
}

func NewNotifier() Notifier {
	return Notifier{notifier: make(chan struct{}, 1)}
}

// Notify sends a notification.
func (n Notifier) Notify() {
	select {
	case n.notifier <- struct{}{}:
	default:
	}
}

// Channel returns a channel for receiving notifications.
func (n Notifier) Channel() <-chan struct{} {
	return n.notifier
}
