// Copyright (c) 2025 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package store

import (
	"slices"
	"sync"

	"go.mau.fi/util/exslices"
)

// EventDispatcher holds a value and notifies listeners whenever a new value is emitted.
type EventDispatcher[T any] struct {
	lock      sync.RWMutex
	value     T
	listeners []*func(T)
}

func NewEventDispatcherWithValue[T any](val T) *EventDispatcher[T] {
	return &EventDispatcher[T]{value: val}
}

// Emit stores the value and calls all listeners. Listeners are called without
// the lock held, so they may call Current.
func (ed *EventDispatcher[T]) Emit(val T) {
	ed.lock.Lock()
	ed.value = val
	listeners := slices.Clone(ed.listeners)
	ed.lock.Unlock()
	for _, listener := range listeners {
		(*listener)(val)
	}
}

func (ed *EventDispatcher[T]) Current() T {
	ed.lock.RLock()
	defer ed.lock.RUnlock()
	return ed.value
}

func (ed *EventDispatcher[T]) Listen(listener func(T)) func() {
	ed.lock.Lock()
	defer ed.lock.Unlock()
	listenerPtr := &listener
	ed.listeners = append(ed.listeners, listenerPtr)
	return func() {
		ed.lock.Lock()
		defer ed.lock.Unlock()
		ed.listeners = exslices.FastDeleteItem(ed.listeners, listenerPtr)
	}
}
