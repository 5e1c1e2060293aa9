package storekit

import "context"

// DefaultBatchSize caps the number of objects per bulk backend call.
// Object-store batch endpoints reject requests much above this.
const DefaultBatchSize = 900

// Batcher accumulates items and flushes them in provider-bounded batches.
// Add flushes automatically when the batch fills; Flush drains the
// remainder. Both return the number of items processed by the flushes
// they triggered.
type Batcher[T any] struct {
	limit int
	buf   []T
	flush func(ctx context.Context, batch []T) (int, error)
}

// NewBatcher creates a Batcher with the given batch limit
// (DefaultBatchSize when limit <= 0) and flush function.
func NewBatcher[T any](limit int, flush func(ctx context.Context, batch []T) (int, error)) *Batcher[T] {
	if limit <= 0 {
		limit = DefaultBatchSize
	}
	return &Batcher[T]{
		limit: limit,
		buf:   make([]T, 0, limit),
		flush: flush,
	}
}

// Add appends an item, flushing a full batch first.
func (b *Batcher[T]) Add(ctx context.Context, item T) (int, error) {
	var processed int
	if len(b.buf) >= b.limit {
		n, err := b.Flush(ctx)
		processed += n
		if err != nil {
			return processed, err
		}
	}
	b.buf = append(b.buf, item)
	return processed, nil
}

// Flush sends any buffered items in a single batch.
func (b *Batcher[T]) Flush(ctx context.Context) (int, error) {
	if len(b.buf) == 0 {
		return 0, nil
	}
	batch := b.buf
	b.buf = make([]T, 0, b.limit)
	return b.flush(ctx, batch)
}
