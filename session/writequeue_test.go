package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aronia-net/aronia/identity"
	"github.com/aronia-net/aronia/internal/aerrors"
)

// fakeStream is a minimal transport.Stream double that lets a test control
// exactly when Write reports backpressure and when Drain fires; neither
// memswarm nor wsswarm ever reports ready=false, so the writeQueue's
// park/drain/timeout paths need a double to exercise them at all.
type fakeStream struct {
	mu       sync.Mutex
	writes   [][]byte
	readyFor func(call int) bool

	drain  chan struct{}
	closed chan struct{}
	frames chan []byte
}

func newFakeStream(readyFor func(call int) bool) *fakeStream {
	return &fakeStream{
		readyFor: readyFor,
		drain:    make(chan struct{}),
		closed:   make(chan struct{}),
		frames:   make(chan []byte),
	}
}

func (f *fakeStream) RemoteStaticPublicKey() identity.PublicKey { return identity.PublicKey{} }

func (f *fakeStream) Write(p []byte) (bool, error) {
	f.mu.Lock()
	call := len(f.writes)
	f.writes = append(f.writes, append([]byte(nil), p...))
	f.mu.Unlock()
	return f.readyFor(call), nil
}

func (f *fakeStream) Drain() <-chan struct{} { return f.drain }

func (f *fakeStream) Frames() <-chan []byte { return f.frames }

func (f *fakeStream) Closed() <-chan struct{} { return f.closed }

func (f *fakeStream) Close() error {
	select {
	case <-f.closed:
	default:
		close(f.closed)
	}
	return nil
}

func (f *fakeStream) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

// TestWriteQueueParksAndResolvesOnDrain drives the park -> drain -> resolve
// path: the first write reports backpressure, so the writer goroutine
// parks the next enqueued frame until the stream signals Drain, then sends
// it and resolves the caller.
func TestWriteQueueParksAndResolvesOnDrain(t *testing.T) {
	stream := newFakeStream(func(call int) bool { return call != 0 })
	q := newWriteQueue(stream, time.Second)
	t.Cleanup(q.stop)

	require.NoError(t, q.enqueue([]byte("first")))

	second := make(chan error, 1)
	go func() { second <- q.enqueue([]byte("second")) }()

	// The writer goroutine should now be parked waiting on Drain, so the
	// second write must not resolve yet.
	time.Sleep(50 * time.Millisecond)
	select {
	case err := <-second:
		t.Fatalf("second write resolved before drain fired: %v", err)
	default:
	}

	close(stream.drain)

	select {
	case err := <-second:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("second write never resolved after drain")
	}
	assert.Equal(t, 2, stream.writeCount())
}

// TestWriteQueueBackpressureTimeout drives the park -> timeout ->
// Backpressure path: the stream never drains, so a write queued behind a
// backpressured one fails once it has waited longer than the queue's
// configured timeout.
func TestWriteQueueBackpressureTimeout(t *testing.T) {
	stream := newFakeStream(func(call int) bool { return false })
	q := newWriteQueue(stream, 50*time.Millisecond)
	t.Cleanup(q.stop)

	require.NoError(t, q.enqueue([]byte("first")))

	err := q.enqueue([]byte("second"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, aerrors.Of(aerrors.KindBackpressure)))
}
