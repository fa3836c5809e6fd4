// Package storetest provides a Backend wrapper that injects failures, for
// exercising the I/O error paths of the stores and the layers above them.
package storetest

import (
	"context"
	"errors"
	"sync"

	"github.com/iamCapel/mopc-reportes/internal/store"
)

// ErrInjected is returned by operations configured to fail.
var ErrInjected = errors.New("fallo de red simulado")

// Op names a Backend operation.
type Op string

const (
	OpGet    Op = "get"
	OpPut    Op = "put"
	OpDelete Op = "delete"
	OpQuery  Op = "query"
	OpAll    Op = "all"
	OpPing   Op = "ping"
)

// FailingBackend delegates to an inner backend unless the operation on the
// collection has been told to fail.
type FailingBackend struct {
	store.Backend

	mu    sync.Mutex
	fails map[Op]map[string]bool
	calls map[Op]int
}

func NewFailingBackend(inner store.Backend) *FailingBackend {
	return &FailingBackend{
		Backend: inner,
		fails:   make(map[Op]map[string]bool),
		calls:   make(map[Op]int),
	}
}

// FailOn makes op fail for the given collection. An empty collection matches all.
func (f *FailingBackend) FailOn(op Op, collection string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails[op] == nil {
		f.fails[op] = make(map[string]bool)
	}
	f.fails[op][collection] = true
}

// Heal clears every injected failure.
func (f *FailingBackend) Heal() {
	f.mu.Lock()
	f.fails = make(map[Op]map[string]bool)
	f.mu.Unlock()
}

// Calls returns how many times op was invoked, failed or not.
func (f *FailingBackend) Calls(op Op) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *FailingBackend) check(op Op, collection string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	if f.fails[op][collection] || f.fails[op][""] {
		return ErrInjected
	}
	return nil
}

func (f *FailingBackend) Get(ctx context.Context, collection, id string, out any) (bool, error) {
	if err := f.check(OpGet, collection); err != nil {
		return false, err
	}
	return f.Backend.Get(ctx, collection, id, out)
}

func (f *FailingBackend) Put(ctx context.Context, collection, id string, doc any) error {
	if err := f.check(OpPut, collection); err != nil {
		return err
	}
	return f.Backend.Put(ctx, collection, id, doc)
}

func (f *FailingBackend) Delete(ctx context.Context, collection, id string) error {
	if err := f.check(OpDelete, collection); err != nil {
		return err
	}
	return f.Backend.Delete(ctx, collection, id)
}

func (f *FailingBackend) Query(ctx context.Context, collection, field, value string, out any) error {
	if err := f.check(OpQuery, collection); err != nil {
		return err
	}
	return f.Backend.Query(ctx, collection, field, value, out)
}

func (f *FailingBackend) All(ctx context.Context, collection string, out any) error {
	if err := f.check(OpAll, collection); err != nil {
		return err
	}
	return f.Backend.All(ctx, collection, out)
}

func (f *FailingBackend) Ping(ctx context.Context) error {
	if err := f.check(OpPing, ""); err != nil {
		return err
	}
	return f.Backend.Ping(ctx)
}
