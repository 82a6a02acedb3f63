// Package event provides synchronous, single-threaded notification signals
// with explicit subscription handles.
//
// A Signal delivers to its subscribers in subscription order. Subscribers
// added while a delivery is in progress are not called until the next Emit,
// and a subscription cancelled mid-delivery is never called again, even if it
// was part of the delivery snapshot.
package event

// Subscription is a handle to a registered handler.
type Subscription interface {
	// Cancel removes the handler. Calling Cancel more than once is a no-op.
	Cancel()
}

// Signal is a notification source with zero or more subscribers.
// The zero value is ready to use. A Signal is not safe for concurrent use.
type Signal struct {
	subs []*subscription
}

type subscription struct {
	signal *Signal
	fn     func()
	active bool
}

// Subscribe registers fn and returns its handle.
func (s *Signal) Subscribe(fn func()) Subscription {
	sub := &subscription{signal: s, fn: fn, active: true}
	s.subs = append(s.subs, sub)
	return sub
}

// Emit calls every active subscriber in subscription order.
func (s *Signal) Emit() {
	if len(s.subs) == 0 {
		return
	}

	snapshot := make([]*subscription, len(s.subs))
	copy(snapshot, s.subs)

	for _, sub := range snapshot {
		if sub.active {
			sub.fn()
		}
	}
}

// Len returns the number of active subscribers.
func (s *Signal) Len() int {
	return len(s.subs)
}

func (s *Signal) remove(target *subscription) {
	for i, sub := range s.subs {
		if sub == target {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return
		}
	}
}

func (sub *subscription) Cancel() {
	if !sub.active {
		return
	}
	sub.active = false
	sub.signal.remove(sub)
}

// Group collects subscriptions so they can be cancelled together.
type Group struct {
	subs []Subscription
}

// Add records sub in the group.
func (g *Group) Add(sub Subscription) {
	g.subs = append(g.subs, sub)
}

// Len returns the number of subscriptions held.
func (g *Group) Len() int {
	return len(g.subs)
}

// CancelAll cancels every subscription in the group and empties it.
func (g *Group) CancelAll() {
	for _, sub := range g.subs {
		sub.Cancel()
	}
	g.subs = nil
}
