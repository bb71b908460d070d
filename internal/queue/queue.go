// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of uf-ulog-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package queue provides the bounded, single-reader, multi-writer
// queue the producer/exporter pipeline needs: non-blocking try_send
// from any number of producer goroutines, and either a non-blocking
// try_recv or a blocking/cancelable recv from the single exporter
// owner.
package queue

import (
	"context"
	"sync"
)

// Queue is a bounded MPSC queue. The zero value is not usable; use New.
type Queue[T any] struct {
	mu     sync.RWMutex
	ch     chan T
	closed bool
}

// New creates a Queue with the given buffer capacity.
func New[T any](capacity int) *Queue[T] {
	return &Queue[T]{ch: make(chan T, capacity)}
}

// TrySend attempts a non-blocking enqueue. It returns false if the
// queue is full or has been closed -- callers (ulogproducer.Producer)
// treat false as a drop. Holding the read lock for the whole
// check-then-send keeps TrySend and Close mutually exclusive, so a
// concurrent Close can never close the channel out from under a
// send in progress.
func (q *Queue[T]) TrySend(v T) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}
	select {
	case q.ch <- v:
		return true
	default:
		return false
	}
}

// TryRecv attempts a non-blocking dequeue. The second return value is
// false when the queue is currently empty, or permanently false (with
// the zero value) once the queue is closed and drained.
func (q *Queue[T]) TryRecv() (T, bool) {
	select {
	case v, ok := <-q.ch:
		if !ok {
			var zero T
			return zero, false
		}
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// Recv blocks until a value is available, ctx is cancelled, or the
// queue is closed and drained. The second return value is false in
// the latter two cases.
func (q *Queue[T]) Recv(ctx context.Context) (T, bool) {
	select {
	case v, ok := <-q.ch:
		if !ok {
			var zero T
			return zero, false
		}
		return v, true
	case <-ctx.Done():
		var zero T
		return zero, false
	}
}

// Close marks the queue closed; subsequent TrySend calls fail and,
// once drained, TryRecv/Recv report no more values. Safe to call more
// than once.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}
