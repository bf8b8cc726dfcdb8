package async

import "sync"

// Mailbox tracks a set of in-flight async calls and their callbacks,
// invoking each callback once its Pending has been completed. A Mailbox
// is not a concurrent structure itself — Pending.SetValue is the only
// method safe to call from another goroutine; everything else must run
// from the single goroutine that owns the Mailbox.
type Mailbox struct {
	msgs []message
}

// AsyncErrorResponseHandler is invoked once a Pending call completes.
type AsyncErrorResponseHandler func(error)

type message struct {
	pending  *Pending
	callback AsyncErrorResponseHandler
}

// NewMailbox returns an empty Mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{}
}

// Count reports how many calls are still outstanding.
func (bx *Mailbox) Count() int {
	return len(bx.msgs)
}

// NewPending registers cb against a freshly created Pending and returns it
// for the caller's goroutine to complete via SetValue.
func (bx *Mailbox) NewPending(cb AsyncErrorResponseHandler) *Pending {
	p := &Pending{}
	bx.msgs = append(bx.msgs, message{pending: p, callback: cb})
	return p
}

// ProcessMessages invokes the callback of every completed Pending and
// drops it from the mailbox; everything still outstanding is kept for the
// next call.
func (bx *Mailbox) ProcessMessages() {
	var remaining []message
	for _, m := range bx.msgs {
		if ok, err := m.pending.tryGetValue(); ok {
			m.callback(err)
		} else {
			remaining = append(remaining, m)
		}
	}
	bx.msgs = remaining
}

// Pending represents the eventual result of one async call. SetValue may
// be called from any goroutine exactly once.
type Pending struct {
	mu   sync.Mutex
	done bool
	err  error
}

// SetValue completes the Pending with err. Only the first call has any
// effect.
func (p *Pending) SetValue(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return
	}
	p.done = true
	p.err = err
}

func (p *Pending) tryGetValue() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done, p.err
}
