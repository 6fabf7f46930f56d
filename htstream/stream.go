// Package htstream is a single-writer, many-reader event list.
package htstream

// Stream is a linked list of values published over time.
// One goroutine publishes; any number of readers wait on Ready
// and then follow Next at their own pace.
//
// A reader that stops consuming pins every node after the one it holds.
type Stream[T any] struct {
	Ready chan struct{}
	Next  *Stream[T]
	Val   T
}

// New returns an unpublished stream node.
func New[T any]() *Stream[T] {
	return &Stream[T]{
		Ready: make(chan struct{}),
	}
}

// Publish sets s.Val, allocates s.Next, and closes s.Ready.
// It returns s.Next, the node for the following value.
//
// Publishing the same node twice panics.
func (s *Stream[T]) Publish(v T) *Stream[T] {
	s.Val = v
	s.Next = New[T]()
	close(s.Ready)
	return s.Next
}

// Published reports whether s.Val is available,
// without blocking.
func (s *Stream[T]) Published() bool {
	select {
	case <-s.Ready:
		return true
	default:
		return false
	}
}
