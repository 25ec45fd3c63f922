// Package session keeps per-conversation message histories in memory.
package session

import (
	"errors"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"
)

const (
	DefaultShards            = 32
	DefaultMaxMessages       = 20
	DefaultEvictionThreshold = 100
	DefaultMaxIdle           = 24 * time.Hour
	DefaultIdleAfter         = 30 * time.Minute
)

// ErrClosed is returned by writes after Drain.
var ErrClosed = errors.New("session store closed")

// Options tunes a Store. Zero values fall back to the defaults above.
type Options struct {
	Shards      int
	MaxMessages int
	// EvictionThreshold is the session count above which an insertion
	// triggers a sweep. It is not a capacity limit.
	EvictionThreshold int
	MaxIdle           time.Duration
	IdleAfter         time.Duration
	Now               func() time.Time
}

func (o *Options) applyDefaults() {
	if o.Shards <= 0 {
		o.Shards = DefaultShards
	}
	if o.MaxMessages <= 0 {
		o.MaxMessages = DefaultMaxMessages
	}
	if o.EvictionThreshold <= 0 {
		o.EvictionThreshold = DefaultEvictionThreshold
	}
	if o.MaxIdle <= 0 {
		o.MaxIdle = DefaultMaxIdle
	}
	if o.IdleAfter <= 0 {
		o.IdleAfter = DefaultIdleAfter
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

type shard struct {
	mu       sync.RWMutex
	sessions map[string]*Context
}

// Store maps session ids to conversation contexts. Lookups lock a single
// shard; appends lock a single session.
type Store struct {
	opts     Options
	shards   []*shard
	count    atomic.Int64
	sweeping atomic.Bool
	closed   atomic.Bool
}

func NewStore(opts Options) *Store {
	opts.applyDefaults()
	s := &Store{opts: opts, shards: make([]*shard, opts.Shards)}
	for i := range s.shards {
		s.shards[i] = &shard{sessions: make(map[string]*Context)}
	}
	return s
}

func (s *Store) shardFor(id string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// AddUserMessage appends content to the user history of id, creating the
// session on first use.
func (s *Store) AddUserMessage(id, content string) error {
	return s.add(id, content, true)
}

// AddBotMessage appends content to the bot history of id, creating the
// session on first use.
func (s *Store) AddBotMessage(id, content string) error {
	return s.add(id, content, false)
}

func (s *Store) add(id, content string, user bool) error {
	for {
		if s.closed.Load() {
			return ErrClosed
		}
		c := s.getOrCreate(id)
		if c == nil {
			return ErrClosed
		}
		// A sweep may have removed c between lookup and lock; retry on a fresh entry.
		if c.append(content, user, s.opts.MaxMessages, s.opts.Now()) {
			return nil
		}
	}
}

func (s *Store) getOrCreate(id string) *Context {
	sh := s.shardFor(id)
	sh.mu.RLock()
	c, ok := sh.sessions[id]
	sh.mu.RUnlock()
	if ok {
		return c
	}

	sh.mu.Lock()
	if c, ok = sh.sessions[id]; ok {
		sh.mu.Unlock()
		return c
	}
	// Drain sets closed before taking shard locks, so this sees it.
	if s.closed.Load() {
		sh.mu.Unlock()
		return nil
	}
	now := s.opts.Now()
	c = &Context{id: id, createdAt: now, lastActivity: now}
	sh.sessions[id] = c
	sh.mu.Unlock()

	if s.count.Add(1) > int64(s.opts.EvictionThreshold) {
		s.sweep()
	}
	return c
}

// sweep removes sessions idle longer than MaxIdle. At most one sweep runs
// at a time and it holds one shard lock at a time.
func (s *Store) sweep() int {
	if !s.sweeping.CompareAndSwap(false, true) {
		return 0
	}
	defer s.sweeping.Store(false)

	now := s.opts.Now()
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for id, c := range sh.sessions {
			c.mu.Lock()
			if now.Sub(c.lastActivity) > s.opts.MaxIdle {
				c.removed = true
				delete(sh.sessions, id)
				removed++
			}
			c.mu.Unlock()
		}
		sh.mu.Unlock()
	}
	s.count.Add(int64(-removed))
	return removed
}

// Get returns a copy of the session state.
func (s *Store) Get(id string) (Snapshot, bool) {
	sh := s.shardFor(id)
	sh.mu.RLock()
	c, ok := sh.sessions[id]
	sh.mu.RUnlock()
	if !ok {
		return Snapshot{}, false
	}
	return c.snapshot(), true
}

// Len returns the number of live sessions.
func (s *Store) Len() int { return int(s.count.Load()) }

// Stats counts sessions by activity at now.
type Stats struct {
	Total  int `json:"total"`
	Active int `json:"active"`
	Idle   int `json:"idle"`
}

func (s *Store) Stats(now time.Time) Stats {
	var st Stats
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, c := range sh.sessions {
			c.mu.Lock()
			last := c.lastActivity
			c.mu.Unlock()
			st.Total++
			if now.Sub(last) > s.opts.IdleAfter {
				st.Idle++
			} else {
				st.Active++
			}
		}
		sh.mu.RUnlock()
	}
	return st
}

// IdleAfter reports the inactivity span after which a session counts as idle.
func (s *Store) IdleAfter() time.Duration { return s.opts.IdleAfter }

// Drain removes every session and makes later writes fail with ErrClosed.
// It returns the number of sessions removed.
func (s *Store) Drain() int {
	s.closed.Store(true)
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for id, c := range sh.sessions {
			c.mu.Lock()
			c.removed = true
			c.mu.Unlock()
			delete(sh.sessions, id)
			removed++
		}
		sh.mu.Unlock()
	}
	s.count.Add(int64(-removed))
	return removed
}
