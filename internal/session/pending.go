package session

import "context"

// Pending tracks an asynchronous image decode.
type Pending struct {
	done chan struct{}
	err  error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

// completed returns a Pending that has already finished with err.
func completed(err error) *Pending {
	p := newPending()
	p.finish(err)
	return p
}

func (p *Pending) finish(err error) {
	p.err = err
	close(p.done)
}

// Done is closed when the decode has been committed, dropped or failed.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Err returns the outcome. It is only meaningful after Done is closed.
func (p *Pending) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Wait blocks until the decode finishes or ctx is canceled. Canceling ctx
// does not cancel the decode itself.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
