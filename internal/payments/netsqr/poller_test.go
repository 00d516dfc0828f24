package netsqr

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedQuerier struct {
	mu        sync.Mutex
	responses []*StatusResponse
	errs      []error
	calls     int
}

func (q *scriptedQuerier) QueryStatus(ctx context.Context, retrievalRef string) (*StatusResponse, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	idx := q.calls
	q.calls++
	if idx < len(q.errs) && q.errs[idx] != nil {
		return nil, q.errs[idx]
	}
	if idx < len(q.responses) {
		return q.responses[idx], nil
	}
	// Keep answering pending if the script runs out.
	return &StatusResponse{}, nil
}

func pendingStatus() *StatusResponse {
	return &StatusResponse{}
}

func paidStatus() *StatusResponse {
	return &StatusResponse{ResponseCode: "00", TxnStatus: 1}
}

func failedStatus() *StatusResponse {
	return &StatusResponse{TxnStatus: 2}
}

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	deadline := time.After(5 * time.Second)
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, event)
		case <-deadline:
			t.Fatal("poller did not terminate")
		}
	}
}

func TestWatchEmitsProgressThenSuccess(t *testing.T) {
	t.Parallel()

	querier := &scriptedQuerier{
		responses: []*StatusResponse{pendingStatus(), pendingStatus(), paidStatus()},
	}
	poller := NewPoller(querier, time.Millisecond, 10)

	events := collect(t, poller.Watch(context.Background(), "ref-1"))

	// Three completed polls mean three progress events, even though the third
	// poll is the one that settles the payment.
	require.Len(t, events, 4)
	assert.Equal(t, Event{Kind: EventProgress, Polls: 1}, events[0])
	assert.Equal(t, Event{Kind: EventProgress, Polls: 2}, events[1])
	assert.Equal(t, Event{Kind: EventProgress, Polls: 3}, events[2])
	assert.Equal(t, Event{Kind: EventSuccess, Polls: 3}, events[3])
}

func TestWatchEmitsFailureOnRejectedPayment(t *testing.T) {
	t.Parallel()

	querier := &scriptedQuerier{
		responses: []*StatusResponse{pendingStatus(), failedStatus()},
	}
	poller := NewPoller(querier, time.Millisecond, 10)

	events := collect(t, poller.Watch(context.Background(), "ref-2"))

	require.Len(t, events, 3)
	assert.Equal(t, Event{Kind: EventProgress, Polls: 1}, events[0])
	assert.Equal(t, Event{Kind: EventProgress, Polls: 2}, events[1])
	assert.Equal(t, Event{Kind: EventFailed, Polls: 2}, events[2])
	assert.Empty(t, events[2].Err)
}

func TestWatchTimesOutAfterPollBudget(t *testing.T) {
	t.Parallel()

	querier := &scriptedQuerier{}
	poller := NewPoller(querier, time.Millisecond, 3)

	events := collect(t, poller.Watch(context.Background(), "ref-3"))

	require.Len(t, events, 4)
	for i := 0; i < 3; i++ {
		assert.Equal(t, EventProgress, events[i].Kind)
		assert.Equal(t, i+1, events[i].Polls)
	}
	assert.Equal(t, Event{Kind: EventTimedOut, Polls: 3}, events[3])
}

func TestWatchSurfacesTransportError(t *testing.T) {
	t.Parallel()

	querier := &scriptedQuerier{
		errs: []error{errors.New("connection refused")},
	}
	poller := NewPoller(querier, time.Millisecond, 10)

	events := collect(t, poller.Watch(context.Background(), "ref-4"))

	require.Len(t, events, 1)
	assert.Equal(t, EventFailed, events[0].Kind)
	assert.Equal(t, 1, events[0].Polls)
	assert.Equal(t, "connection refused", events[0].Err)
}

func TestWatchStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	querier := &scriptedQuerier{}
	poller := NewPoller(querier, time.Hour, 10)

	events := poller.Watch(ctx, "ref-5")
	cancel()

	select {
	case _, ok := <-events:
		assert.False(t, ok, "expected the channel to close without events")
	case <-time.After(5 * time.Second):
		t.Fatal("poller did not stop after cancel")
	}
}

func TestStatusResponseClassification(t *testing.T) {
	t.Parallel()

	assert.True(t, paidStatus().Paid())
	assert.False(t, paidStatus().Failed())
	assert.True(t, failedStatus().Failed())
	assert.False(t, pendingStatus().Paid())
	assert.False(t, pendingStatus().Failed())
}
