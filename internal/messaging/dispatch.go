package messaging

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultHandlerTimeout = 30 * time.Second

// dispatcher runs a handler per message with bounded concurrency.
type dispatcher struct {
	subject string
	handle  Handler
	timeout time.Duration
	group   errgroup.Group
}

func newDispatcher(subject string, handle Handler, concurrency int, timeout time.Duration) *dispatcher {
	if timeout <= 0 {
		timeout = defaultHandlerTimeout
	}

	d := &dispatcher{
		subject: subject,
		handle:  handle,
		timeout: timeout,
	}
	if concurrency > 0 {
		d.group.SetLimit(concurrency)
	}
	return d
}

// dispatch blocks while the concurrency limit is reached.
func (d *dispatcher) dispatch(payload []byte) {
	d.group.Go(func() error {
		// Use the handler timeout as the context deadline.
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				log.Printf("[%s] handler panic: %v", d.subject, r)
			}
		}()

		if err := d.handle(ctx, payload); err != nil {
			log.Printf("[%s] handler error: %v", d.subject, err)
		}

		// Errors stay with the message.
		return nil
	})
}

func (d *dispatcher) wait() {
	_ = d.group.Wait()
}
