package domain

// Feed is a bounded FIFO log. Appending past the limit drops the oldest
// entries.
type Feed[T any] struct {
	list  []T
	limit int
}

func NewFeed[T any](limit int) *Feed[T] {
	if limit < 1 {
		limit = 1
	}

	return &Feed[T]{
		list:  make([]T, 0, min(limit, 64)),
		limit: limit,
	}
}

func (f Feed[T]) Length() int {
	return len(f.list)
}

func (f Feed[T]) Limit() int {
	return f.limit
}

func (f Feed[T]) AsList() []T {
	list := make([]T, len(f.list))
	copy(list, f.list)
	return list
}

func (f *Feed[T]) Add(item T) {
	f.list = append(f.list, item)
	if overflow := len(f.list) - f.limit; overflow > 0 {
		clear(f.list[:overflow])
		f.list = append(f.list[:0], f.list[overflow:]...)
	}
}
