package queryir

import (
	"fmt"
	"slices"
)

// Collection is an ordered, mutable list owned by a model or clause.
//
// It may be modified while it is being iterated: every live Iterate call
// registers a Cursor, and Insert/RemoveAt shift registered cursors so that
// no element is visited twice or skipped. Removing the element currently
// being visited makes the element now at that position the next one
// visited.
//
// T must be a pointer or interface-over-pointer type; elements are found
// by identity.
type Collection[T comparable] struct {
	items   []T
	cursors []*Cursor
}

// Cursor is the live position of one Iterate call.
type Cursor struct {
	cur  int // index of the element under visit, -1 outside a visit
	next int // index of the next element to visit
}

// Index reports the position of the element under visit. ok is false when
// the cursor is nil or no element is being visited.
func (c *Cursor) Index() (idx int, ok bool) {
	if c == nil || c.cur < 0 {
		return -1, false
	}
	return c.cur, true
}

// NewCollection returns a collection holding items in order.
func NewCollection[T comparable](items ...T) *Collection[T] {
	return &Collection[T]{items: slices.Clone(items)}
}

// Len returns the number of elements.
func (c *Collection[T]) Len() int {
	return len(c.items)
}

// At returns the element at i. It panics if i is out of range, like a
// slice index.
func (c *Collection[T]) At(i int) T {
	return c.items[i]
}

// Items returns a copy of the elements.
func (c *Collection[T]) Items() []T {
	return slices.Clone(c.items)
}

// IndexOf returns the position of v, or -1.
func (c *Collection[T]) IndexOf(v T) int {
	return slices.Index(c.items, v)
}

// Contains reports whether v is an element.
func (c *Collection[T]) Contains(v T) bool {
	return c.IndexOf(v) >= 0
}

// Last returns the final element and true, or the zero value and false.
func (c *Collection[T]) Last() (T, bool) {
	var zero T
	if len(c.items) == 0 {
		return zero, false
	}
	return c.items[len(c.items)-1], true
}

// Append adds v at the end.
func (c *Collection[T]) Append(v T) {
	c.items = append(c.items, v)
}

// Insert places v at position i, 0 <= i <= Len().
func (c *Collection[T]) Insert(i int, v T) error {
	if i < 0 || i > len(c.items) {
		return &UsageError{Op: "Insert", Message: fmt.Sprintf("index %d out of range [0,%d]", i, len(c.items))}
	}
	c.items = slices.Insert(c.items, i, v)
	for _, cur := range c.cursors {
		if i < cur.next {
			cur.next++
		}
		if cur.cur >= 0 && i <= cur.cur {
			cur.cur++
		}
	}
	return nil
}

// RemoveAt deletes the element at position i.
func (c *Collection[T]) RemoveAt(i int) error {
	if i < 0 || i >= len(c.items) {
		return &UsageError{Op: "RemoveAt", Message: fmt.Sprintf("index %d out of range [0,%d)", i, len(c.items))}
	}
	c.items = slices.Delete(c.items, i, i+1)
	for _, cur := range c.cursors {
		if i < cur.next {
			cur.next--
		}
		if i < cur.cur {
			cur.cur--
		}
	}
	return nil
}

// Remove deletes v and reports whether it was present.
func (c *Collection[T]) Remove(v T) bool {
	i := c.IndexOf(v)
	if i < 0 {
		return false
	}
	_ = c.RemoveAt(i)
	return true
}

// Iterate calls fn for every element by stored position and stops at the
// first error. The cursor passed to fn is valid only during that call; it
// is invalidated on every exit path, including errors and panics.
func (c *Collection[T]) Iterate(fn func(cur *Cursor, v T) error) error {
	cur := &Cursor{cur: -1}
	c.cursors = append(c.cursors, cur)
	defer c.release(cur)

	for cur.next < len(c.items) {
		cur.cur = cur.next
		cur.next++
		if err := fn(cur, c.items[cur.cur]); err != nil {
			return err
		}
		cur.cur = -1
	}
	return nil
}

func (c *Collection[T]) release(cur *Cursor) {
	cur.cur = -1
	if i := slices.Index(c.cursors, cur); i >= 0 {
		c.cursors = slices.Delete(c.cursors, i, i+1)
	}
}
