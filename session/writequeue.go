// ARONIA - Realtime Peer-to-Peer Agent Communication Fabric
// Copyright (C) 2025 ARONIA-project
//
// This file is part of ARONIA.
//
// ARONIA is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// ARONIA is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with ARONIA. If not, see <https://www.gnu.org/licenses/>.

package session

import (
	"sync"
	"time"

	"github.com/aronia-net/aronia/internal/aerrors"
	"github.com/aronia-net/aronia/transport"
)

// writeQueue serializes every outbound frame write onto a transport.Stream
// through a single dedicated writer goroutine, keeping the write path
// single-producer structurally rather than by a lock callers must remember
// to hold around their own write. The stream's Write reports a "can
// continue" flag; when it reports backpressure, the writer goroutine parks
// on the stream's Drain channel before pulling the next queued frame,
// never busy-waiting. A caller whose write waits longer than
// timeout to be picked up fails with a Backpressure error; the frame
// itself is still delivered once the writer gets to it, since pulling a
// frame back out of an ordered queue mid-flight would break ordering for
// everything already enqueued behind it.
type writeQueue struct {
	stream  transport.Stream
	timeout time.Duration

	mu      sync.Mutex
	cond    *sync.Cond
	pending []*parkedWrite
	stopped bool
	stopCh  chan struct{}
}

type parkedWrite struct {
	data []byte
	done chan error
}

func newWriteQueue(stream transport.Stream, timeout time.Duration) *writeQueue {
	q := &writeQueue{stream: stream, timeout: timeout, stopCh: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	go q.writerLoop()
	return q
}

// enqueue appends data to the write queue and waits up to timeout for the
// writer goroutine to send it.
func (q *writeQueue) enqueue(data []byte) error {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return aerrors.Of(aerrors.KindPeerOffline)
	}
	pw := &parkedWrite{data: data, done: make(chan error, 1)}
	q.pending = append(q.pending, pw)
	q.cond.Signal()
	q.mu.Unlock()

	timer := time.NewTimer(q.timeout)
	defer timer.Stop()

	select {
	case err := <-pw.done:
		return err
	case <-timer.C:
		return aerrors.Of(aerrors.KindBackpressure)
	case <-q.stopCh:
		return aerrors.Of(aerrors.KindPeerOffline)
	}
}

// writerLoop is the queue's single writer: it is the only goroutine that
// ever calls q.stream.Write, so two frames can never race onto the wire
// out of order. It pulls one pending frame at a time, writes it, and, if
// the stream reports backpressure, waits for Drain before pulling the
// next one.
func (q *writeQueue) writerLoop() {
	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.stopped {
			q.cond.Wait()
		}
		if q.stopped {
			q.mu.Unlock()
			return
		}
		pw := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		ready, err := q.stream.Write(pw.data)
		pw.done <- err

		if err == nil && !ready {
			select {
			case <-q.stream.Drain():
			case <-q.stopCh:
				return
			}
		}
	}
}

// stop halts the writer goroutine and fails every caller still waiting on
// enqueue. Idempotent.
func (q *writeQueue) stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	q.mu.Unlock()
	close(q.stopCh)
	q.cond.Broadcast()
}
