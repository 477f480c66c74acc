// Package integrity keeps references between collections consistent.
//
// The storage layer has no foreign keys. Instead every collection that may be
// pointed at registers an existence check, and every collection that points
// at another registers a dependent lookup. Writers call CheckReference before
// storing a foreign key; deleters call CheckDelete before removing a record.
//
// Check and act are separate steps and are not run in one transaction: a
// reference written between a successful CheckDelete and the delete itself
// is left dangling. Callers accept that window.
package integrity

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/xid"

	"github.com/sakif/agromarket/internal/apperror"
	"github.com/sakif/agromarket/internal/model"
)

// ExistsFunc reports whether a record with id exists in a collection.
type ExistsFunc func(ctx context.Context, id xid.ID) (bool, error)

// ReferencedFunc reports whether any record of a dependent collection still
// points at id.
type ReferencedFunc func(ctx context.Context, id xid.ID) (bool, error)

// Dependent is one foreign-key edge: Collection.Field points at the parent.
type Dependent struct {
	Collection model.Collection
	Field      string
	Referenced ReferencedFunc
}

// Enforcer holds the dependency graph. Registration happens at wiring time;
// checks may run concurrently afterwards.
type Enforcer struct {
	mu         sync.RWMutex
	targets    map[model.Collection]ExistsFunc
	dependents map[model.Collection][]Dependent
}

func NewEnforcer() *Enforcer {
	return &Enforcer{
		targets:    make(map[model.Collection]ExistsFunc),
		dependents: make(map[model.Collection][]Dependent),
	}
}

// RegisterTarget makes collection addressable by CheckReference.
func (e *Enforcer) RegisterTarget(collection model.Collection, exists ExistsFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.targets[collection] = exists
}

// RegisterDependent records that dep points at parent. Dependents are checked
// in registration order.
func (e *Enforcer) RegisterDependent(parent model.Collection, dep Dependent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dependents[parent] = append(e.dependents[parent], dep)
}

// CheckDelete fails with a reference conflict naming collection when any
// registered dependent still points at id.
func (e *Enforcer) CheckDelete(ctx context.Context, collection model.Collection, id xid.ID) error {
	e.mu.RLock()
	deps := e.dependents[collection]
	e.mu.RUnlock()

	for _, dep := range deps {
		found, err := dep.Referenced(ctx, id)
		if err != nil {
			return fmt.Errorf("integrity: checking %s.%s: %w", dep.Collection, dep.Field, err)
		}
		if found {
			return apperror.ReferenceConflict(string(collection))
		}
	}
	return nil
}

// CheckReference fails with a dangling reference error when id does not
// exist in collection. field names the referencing field in the error.
func (e *Enforcer) CheckReference(ctx context.Context, field string, collection model.Collection, id xid.ID) error {
	e.mu.RLock()
	exists, ok := e.targets[collection]
	e.mu.RUnlock()
	if !ok {
		return fmt.Errorf("integrity: collection %s is not registered", collection)
	}

	found, err := exists(ctx, id)
	if err != nil {
		return fmt.Errorf("integrity: looking up %s in %s: %w", id, collection, err)
	}
	if !found {
		return apperror.DanglingReference(field, string(collection))
	}
	return nil
}

