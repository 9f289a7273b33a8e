package sessiontx

import "strconv"

// Operation is the cache operation a task (or a merged update) implies.
type Operation uint8

const (
	OpNone Operation = iota
	OpAdd
	OpAddIfAbsent
	OpReplace
	OpRemove
)

func (o Operation) String() string {
	switch o {
	case OpNone:
		return "none"
	case OpAdd:
		return "add"
	case OpAddIfAbsent:
		return "add_if_absent"
	case OpReplace:
		return "replace"
	case OpRemove:
		return "remove"
	default:
		return "operation(" + strconv.Itoa(int(o)) + ")"
	}
}

// Task is one unit of intent against a single key.
//
// RunUpdate mutates the live entity in place. Operation is evaluated over the
// final entity state after every task for the key has run; it must not have
// side effects.
type Task[V any] interface {
	RunUpdate(entity V)
	Operation(entity V) Operation
}

// TaskFunc is a Task built from plain functions. Exactly one of Op or Decide
// is used: Decide wins when set.
type TaskFunc[V any] struct {
	Apply  func(V)
	Op     Operation
	Decide func(V) Operation
}

var _ Task[struct{}] = TaskFunc[struct{}]{}

func (t TaskFunc[V]) RunUpdate(entity V) {
	if t.Apply != nil {
		t.Apply(entity)
	}
}

func (t TaskFunc[V]) Operation(entity V) Operation {
	if t.Decide != nil {
		return t.Decide(entity)
	}
	return t.Op
}

// Update replaces the stored entity after applying fn.
func Update[V any](fn func(V)) TaskFunc[V] { return TaskFunc[V]{Apply: fn, Op: OpReplace} }

// Create writes a fresh key unconditionally.
func Create[V any](fn func(V)) TaskFunc[V] { return TaskFunc[V]{Apply: fn, Op: OpAdd} }

// CreateIfAbsent writes a fresh key unless another writer created it first.
func CreateIfAbsent[V any](fn func(V)) TaskFunc[V] {
	return TaskFunc[V]{Apply: fn, Op: OpAddIfAbsent}
}

// Remove deletes the key.
func Remove[V any]() TaskFunc[V] { return TaskFunc[V]{Op: OpRemove} }

// Read registers no cache-visible effect.
func Read[V any](fn func(V)) TaskFunc[V] { return TaskFunc[V]{Apply: fn, Op: OpNone} }

// Decide applies fn and picks the operation from the final entity state.
func Decide[V any](fn func(V), decide func(V) Operation) TaskFunc[V] {
	return TaskFunc[V]{Apply: fn, Decide: decide}
}
