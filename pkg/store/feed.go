/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package store

import (
	"context"
	"sync"
)

// DefaultFeedBuffer is the number of snapshots a subscriber may lag behind before the
// oldest pending snapshot is dropped.
const DefaultFeedBuffer = 8

// Feed publishes snapshots of a query collection to subscribers. A slow subscriber never
// blocks the writer: when its buffer is full the oldest pending snapshot is discarded.
type Feed[T any] struct {
	mu     sync.Mutex
	subs   map[uint64]chan []T
	nextID uint64
	buffer int
	query  func() ([]T, error)
}

// NewFeed returns a feed whose snapshots come from query.
func NewFeed[T any](buffer int, query func() ([]T, error)) *Feed[T] {
	if buffer < 1 {
		buffer = 1
	}

	return &Feed[T]{
		subs:   make(map[uint64]chan []T),
		buffer: buffer,
		query:  query,
	}
}

// Subscribe returns a channel that receives the current snapshot and then a new snapshot
// after every change. The channel is closed once ctx is done.
func (f *Feed[T]) Subscribe(ctx context.Context) <-chan []T {
	ch := make(chan []T, f.buffer)

	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = ch

	if snapshot, err := f.query(); err != nil {
		logger.Warnf("initial feed snapshot: %s", err)
	} else {
		ch <- snapshot
	}
	f.mu.Unlock()

	go func() {
		<-ctx.Done()

		f.mu.Lock()
		defer f.mu.Unlock()

		delete(f.subs, id)
		close(ch)
	}()

	return ch
}

// Subscribers returns the number of live subscriptions.
func (f *Feed[T]) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.subs)
}

// Notify queries a fresh snapshot and hands it to every subscriber.
func (f *Feed[T]) Notify() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.subs) == 0 {
		return
	}

	snapshot, err := f.query()
	if err != nil {
		logger.Warnf("feed snapshot: %s", err)

		return
	}

	for _, ch := range f.subs {
		publish(ch, snapshot)
	}
}

func publish[T any](ch chan []T, snapshot []T) {
	for {
		select {
		case ch <- snapshot:
			return
		default:
		}

		select {
		case <-ch:
		default:
		}
	}
}
