// Package event implements a small synchronous observer registry.
//
// Handlers are registered per event name and fired in registration order on
// the caller's goroutine. Fire iterates over a snapshot of the handler list,
// so a handler may register or unregister handlers (including itself) while
// an event is being delivered.
//
// A Registry is not safe for concurrent use; a simulation drives all of its
// components from one goroutine.
package event

// Name identifies an event kind, e.g. "finished".
type Name string

// Handle identifies one registration. It is returned by On and passed to Off.
type Handle uint64

type entry[T any] struct {
	id Handle
	fn func(T)
}

// Registry maps event names to ordered handler lists.
// The zero value is ready to use.
type Registry[T any] struct {
	next     Handle
	handlers map[Name][]entry[T]
}

// On registers fn for name and returns a handle for Off.
func (r *Registry[T]) On(name Name, fn func(T)) Handle {
	if r.handlers == nil {
		r.handlers = make(map[Name][]entry[T])
	}
	r.next++
	r.handlers[name] = append(r.handlers[name], entry[T]{id: r.next, fn: fn})
	return r.next
}

// Off removes the registration h for name. Unknown handles are ignored.
func (r *Registry[T]) Off(name Name, h Handle) {
	list := r.handlers[name]
	for i, e := range list {
		if e.id != h {
			continue
		}
		// Copy instead of shifting in place: a Fire in progress holds the old slice.
		out := make([]entry[T], 0, len(list)-1)
		out = append(out, list[:i]...)
		out = append(out, list[i+1:]...)
		if len(out) == 0 {
			delete(r.handlers, name)
		} else {
			r.handlers[name] = out
		}
		return
	}
}

// Fire calls every handler registered for name, in order, with v.
func (r *Registry[T]) Fire(name Name, v T) {
	snapshot := r.handlers[name]
	for _, e := range snapshot {
		e.fn(v)
	}
}

// Count returns the number of handlers registered for name.
func (r *Registry[T]) Count(name Name) int {
	return len(r.handlers[name])
}
