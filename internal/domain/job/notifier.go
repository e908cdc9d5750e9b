package job

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrWaiterRequired indicates a notifier cannot be constructed without a waiter.
var ErrWaiterRequired = errors.New("notifier waiter is required")

// Waiter waits for job availability notifications on a queue.
type Waiter interface {
	WaitForNotification(ctx context.Context, queueName string) error
}

// Notifier manages subscriptions for job availability notifications.
type Notifier interface {
	Subscribe(queueName string) (func(), <-chan struct{})
	StopAll()
}

// NotifierOptions configure the behaviour of the default notifier implementation.
type NotifierOptions struct {
	Waiter     Waiter
	WaitWindow time.Duration
	Backoff    time.Duration
}

// DefaultNotifier is the default implementation of Notifier. One listen loop
// runs per subscribed queue; subscriber channels receive best-effort wakeups
// so a slow subscriber misses a signal instead of blocking the loop.
type DefaultNotifier struct {
	waiter     Waiter
	waitWindow time.Duration
	backoff    time.Duration

	mu        sync.Mutex
	subs      map[string]map[chan struct{}]struct{}
	listeners map[string]context.CancelFunc
}

// NewNotifier constructs the default notifier implementation.
func NewNotifier(opts NotifierOptions) (*DefaultNotifier, error) {
	if opts.Waiter == nil {
		return nil, ErrWaiterRequired
	}

	waitWindow := opts.WaitWindow
	if waitWindow <= 0 {
		waitWindow = time.Minute
	}

	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = 250 * time.Millisecond
	}

	notifier := &DefaultNotifier{
		waiter:     opts.Waiter,
		waitWindow: waitWindow,
		backoff:    backoff,
		subs:       make(map[string]map[chan struct{}]struct{}),
		listeners:  make(map[string]context.CancelFunc),
	}
	return notifier, nil
}

// Subscribe registers interest in wakeups for the given queue. It returns an
// unsubscribe function and the signal channel. The first subscriber for a
// queue starts its listen loop; the last one leaving stops it.
func (n *DefaultNotifier) Subscribe(queueName string) (func(), <-chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.listeners[queueName]; !ok {
		ctx, cancel := context.WithCancel(context.Background())
		n.listeners[queueName] = cancel
		go n.listenLoop(ctx, queueName)
	}

	ch := make(chan struct{}, 1)
	if n.subs[queueName] == nil {
		n.subs[queueName] = make(map[chan struct{}]struct{})
	}
	n.subs[queueName][ch] = struct{}{}

	unsub := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		subscribers := n.subs[queueName]
		if subscribers == nil {
			return
		}

		if _, ok := subscribers[ch]; !ok {
			return
		}
		delete(subscribers, ch)
		drainAndClose(ch)
		if len(subscribers) == 0 {
			n.stopListener(queueName)
			delete(n.subs, queueName)
		}
	}

	return unsub, ch
}

// StopAll cancels all listen loops and closes all subscriber channels.
func (n *DefaultNotifier) StopAll() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for queueName, cancel := range n.listeners {
		cancel()
		delete(n.listeners, queueName)
	}
	for queueName, subscribers := range n.subs {
		for ch := range subscribers {
			drainAndClose(ch)
		}
		delete(n.subs, queueName)
	}
}

func (n *DefaultNotifier) stopListener(queueName string) {
	cancel, ok := n.listeners[queueName]
	if !ok {
		return
	}
	cancel()
	delete(n.listeners, queueName)
}

func (n *DefaultNotifier) listenLoop(ctx context.Context, queueName string) {
	for ctx.Err() == nil {
		waitCtx, cancel := context.WithTimeout(ctx, n.waitWindow)
		err := n.waiter.WaitForNotification(waitCtx, queueName)
		cancel()

		// Broadcast even when the wait errored: waking subscribers into a
		// spurious poll is cheaper than a missed job.
		n.broadcast(queueName)

		if err != nil && ctx.Err() == nil {
			timer := time.NewTimer(n.backoff)
			select {
			case <-ctx.Done():
				if !timer.Stop() {
					<-timer.C
				}
				return
			case <-timer.C:
			}
		}
	}
}

func (n *DefaultNotifier) broadcast(queueName string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	subscribers := n.subs[queueName]
	for ch := range subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func drainAndClose(ch chan struct{}) {
	select {
	case <-ch:
	default:
	}
	close(ch)
}
