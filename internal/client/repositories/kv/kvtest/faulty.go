// Package kvtest holds test helpers for kv.Store: a fault-injecting wrapper
// and a behavioural contract every backend must satisfy.
package kvtest

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/dmitrijs2005/growthfarm/internal/client/repositories/kv"
)

// ErrInjected is the default error returned by failing operations.
var ErrInjected = errors.New("injected store failure")

// Op names a kv.Store method.
type Op string

const (
	OpGet       Op = "get"
	OpSet       Op = "set"
	OpRemove    Op = "remove"
	OpRemoveAll Op = "removeAll"
	OpUpdate    Op = "update"
	OpList      Op = "list"
	OpClear     Op = "clear"
)

// Call records one store invocation that reached the wrapper.
type Call struct {
	Op   Op
	Keys []string
}

// Faulty wraps a kv.Store and can fail, hang, or run a hook per operation.
// Failed and hung calls never reach the wrapped store.
type Faulty struct {
	inner kv.Store

	mu    sync.Mutex
	fail  map[Op]error
	hang  map[Op]bool
	late  map[Op]bool
	after map[Op]func()
	calls []Call
}

func NewFaulty(inner kv.Store) *Faulty {
	return &Faulty{
		inner: inner,
		fail:  make(map[Op]error),
		hang:  make(map[Op]bool),
		late:  make(map[Op]bool),
		after: make(map[Op]func()),
	}
}

// Inner returns the wrapped store.
func (f *Faulty) Inner() kv.Store { return f.inner }

// FailOn makes op return err (ErrInjected when err is nil).
func (f *Faulty) FailOn(op Op, err error) {
	if err == nil {
		err = ErrInjected
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[op] = err
}

// HangOn makes op block until its context is done.
func (f *Faulty) HangOn(op Op) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hang[op] = true
}

// LateReply lets op reach the wrapped store and then withholds the reply
// until the context is done, like a commit whose acknowledgement arrives
// after the deadline.
func (f *Faulty) LateReply(op Op) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.late[op] = true
}

// After runs hook once op has completed successfully on the inner store.
func (f *Faulty) After(op Op, hook func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.after[op] = hook
}

// Heal clears every injected behaviour.
func (f *Faulty) Heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	clear(f.fail)
	clear(f.hang)
	clear(f.late)
	clear(f.after)
}

// Calls returns a copy of the recorded call log.
func (f *Faulty) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// Ops returns just the operation names of the call log.
func (f *Faulty) Ops() []Op {
	calls := f.Calls()
	ops := make([]Op, len(calls))
	for i, c := range calls {
		ops[i] = c.Op
	}
	return ops
}

func (f *Faulty) enter(ctx context.Context, op Op, keys ...string) error {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Op: op, Keys: keys})
	err := f.fail[op]
	hang := f.hang[op]
	f.mu.Unlock()

	if hang {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (f *Faulty) leave(ctx context.Context, op Op) error {
	f.mu.Lock()
	hook := f.after[op]
	late := f.late[op]
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	if late {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (f *Faulty) Get(ctx context.Context, key string) (string, bool, error) {
	if err := f.enter(ctx, OpGet, key); err != nil {
		return "", false, err
	}
	v, ok, err := f.inner.Get(ctx, key)
	if err == nil {
		err = f.leave(ctx, OpGet)
	}
	return v, ok, err
}

func (f *Faulty) Set(ctx context.Context, key, value string) error {
	if err := f.enter(ctx, OpSet, key); err != nil {
		return err
	}
	err := f.inner.Set(ctx, key, value)
	if err == nil {
		err = f.leave(ctx, OpSet)
	}
	return err
}

func (f *Faulty) Remove(ctx context.Context, key string) error {
	if err := f.enter(ctx, OpRemove, key); err != nil {
		return err
	}
	err := f.inner.Remove(ctx, key)
	if err == nil {
		err = f.leave(ctx, OpRemove)
	}
	return err
}

func (f *Faulty) RemoveAll(ctx context.Context, keys []string) error {
	if err := f.enter(ctx, OpRemoveAll, keys...); err != nil {
		return err
	}
	err := f.inner.RemoveAll(ctx, keys)
	if err == nil {
		err = f.leave(ctx, OpRemoveAll)
	}
	return err
}

func (f *Faulty) Update(ctx context.Context, set map[string]string, remove []string) error {
	keys := slices.Clone(remove)
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	if err := f.enter(ctx, OpUpdate, keys...); err != nil {
		return err
	}
	err := f.inner.Update(ctx, set, remove)
	if err == nil {
		err = f.leave(ctx, OpUpdate)
	}
	return err
}

func (f *Faulty) List(ctx context.Context) (map[string]string, error) {
	if err := f.enter(ctx, OpList); err != nil {
		return nil, err
	}
	m, err := f.inner.List(ctx)
	if err == nil {
		err = f.leave(ctx, OpList)
	}
	return m, err
}

func (f *Faulty) Clear(ctx context.Context) error {
	if err := f.enter(ctx, OpClear); err != nil {
		return err
	}
	err := f.inner.Clear(ctx)
	if err == nil {
		err = f.leave(ctx, OpClear)
	}
	return err
}

func (f *Faulty) Close() error {
	return f.inner.Close()
}
