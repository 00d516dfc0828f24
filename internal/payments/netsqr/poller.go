package netsqr

import (
	"context"
	"time"
)

// EventKind classifies poller events.
type EventKind string

const (
	// EventProgress is emitted after each completed poll, including the
	// one that settles the payment.
	EventProgress EventKind = "progress"
	// EventSuccess means the payment settled.
	EventSuccess EventKind = "success"
	// EventFailed means NETS rejected the payment, or a transport error
	// made the outcome unknowable.
	EventFailed EventKind = "failed"
	// EventTimedOut means the poll budget ran out with no terminal answer.
	EventTimedOut EventKind = "timed_out"
)

// Event is one observation of a pending QR payment.
type Event struct {
	Kind  EventKind `json:"kind"`
	Polls int       `json:"polls"`
	Err   string    `json:"error,omitempty"`
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool {
	return e.Kind != EventProgress
}

type statusQuerier interface {
	QueryStatus(ctx context.Context, retrievalRef string) (*StatusResponse, error)
}

// Poller watches a pending QR payment at a fixed interval until it settles,
// fails, or exhausts the poll budget. Results stream on the returned channel;
// the channel closes after the terminal event.
type Poller struct {
	client   statusQuerier
	interval time.Duration
	maxPolls int
}

// NewPoller builds a poller over the given client.
func NewPoller(client statusQuerier, interval time.Duration, maxPolls int) *Poller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if maxPolls <= 0 {
		maxPolls = 60
	}
	return &Poller{client: client, interval: interval, maxPolls: maxPolls}
}

// Watch polls the retrieval reference until a terminal state. Every completed
// poll emits a progress event so the caller can keep an SSE stream alive; the
// poll that settles the payment emits its progress event first, then the
// terminal one. Cancelling ctx stops the poller without a terminal event.
func (p *Poller) Watch(ctx context.Context, retrievalRef string) <-chan Event {
	events := make(chan Event, p.maxPolls+1)

	go func() {
		defer close(events)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for polls := 1; polls <= p.maxPolls; polls++ {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			status, err := p.client.QueryStatus(ctx, retrievalRef)
			if err != nil {
				// The outcome is unknowable from here; surface the failure
				// rather than silently retrying against a dead endpoint.
				p.send(ctx, events, Event{Kind: EventFailed, Polls: polls, Err: err.Error()})
				return
			}

			if !p.send(ctx, events, Event{Kind: EventProgress, Polls: polls}) {
				return
			}

			switch {
			case status.Paid():
				p.send(ctx, events, Event{Kind: EventSuccess, Polls: polls})
				return
			case status.Failed():
				p.send(ctx, events, Event{Kind: EventFailed, Polls: polls})
				return
			}
		}

		p.send(ctx, events, Event{Kind: EventTimedOut, Polls: p.maxPolls})
	}()

	return events
}

func (p *Poller) send(ctx context.Context, events chan<- Event, event Event) bool {
	select {
	case events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}
