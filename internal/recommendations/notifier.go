package recommendations

import "context"

// Notifier surfaces generation outcomes to the user. Calls are fire-and-forget: an
// implementation must not block for long and reports its own failures.
type Notifier interface {
	Succeeded(ctx context.Context, key Key, count int)
	Failed(ctx context.Context, key Key, err error)
}

type nopNotifier struct{}

func (nopNotifier) Succeeded(context.Context, Key, int) {}
func (nopNotifier) Failed(context.Context, Key, error)  {}
