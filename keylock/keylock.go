// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package keylock serializes work per key without a global lock.
//
// Keys are hashed onto a fixed set of mutexes, so two keys may share a
// stripe but a single key always maps to the same one. Callers must not
// hold two locks from the same Striped at once.
package keylock

import (
	"hash/fnv"
	"sync"
)

const DefaultStripes = 64

type Striped struct {
	stripes []sync.Mutex
}

func New(stripes int) *Striped {
	if stripes <= 0 {
		stripes = DefaultStripes
	}
	return &Striped{stripes: make([]sync.Mutex, stripes)}
}

// Lock acquires the stripe for key and returns its unlock function
func (s *Striped) Lock(key string) func() {
	m := &s.stripes[s.index(key)]
	m.Lock()
	return m.Unlock
}

func (s *Striped) index(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(s.stripes)))
}
