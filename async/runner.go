// Package async provides a small helper for firing off goroutines and
// collecting their results back on the calling goroutine, adapted from
// the teacher's async package. The fairness controller uses it to submit
// a tick's priority revision to the policy server without ever blocking
// the next tick on that write.
package async

// Runner spawns goroutines to run functions and invokes their callbacks
// from ProcessMessages, which runs synchronously on the calling goroutine.
// A Runner is not itself concurrency-safe; it is only ever driven from the
// fairness controller's single loop goroutine.
type Runner struct {
	bx *Mailbox
}

// NewRunner returns an empty Runner.
func NewRunner() Runner {
	return Runner{bx: NewMailbox()}
}

// NumRunning reports how many async calls are still outstanding.
func (r *Runner) NumRunning() int {
	return r.bx.Count()
}

// RunAsync runs f on a new goroutine; once it returns, cb is invoked with
// its error on the next call to ProcessMessages.
func (r *Runner) RunAsync(f func() error, cb AsyncErrorResponseHandler) {
	pending := r.bx.NewPending(cb)
	go func(p *Pending) {
		p.SetValue(f())
	}(pending)
}

// ProcessMessages invokes the callbacks of every async call that has
// completed since the last call, synchronously on the caller's goroutine.
func (r *Runner) ProcessMessages() {
	r.bx.ProcessMessages()
}
