package storekit

import (
	"context"
	"errors"
	"testing"
)

func TestBatcherFlushesFullBatches(t *testing.T) {
	ctx := context.Background()
	var batches [][]int
	b := NewBatcher(3, func(ctx context.Context, batch []int) (int, error) {
		batches = append(batches, append([]int(nil), batch...))
		return len(batch), nil
	})

	var processed int
	for i := 0; i < 7; i++ {
		n, err := b.Add(ctx, i)
		if err != nil {
			t.Fatalf("Add(%d): %v", i, err)
		}
		processed += n
	}
	n, err := b.Flush(ctx)
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	processed += n

	if processed != 7 {
		t.Errorf("processed = %d, want 7", processed)
	}
	wantSizes := []int{3, 3, 1}
	if len(batches) != len(wantSizes) {
		t.Fatalf("got %d batches, want %d", len(batches), len(wantSizes))
	}
	for i, want := range wantSizes {
		if len(batches[i]) != want {
			t.Errorf("batch %d size = %d, want %d", i, len(batches[i]), want)
		}
	}
}

func TestBatcherEmptyFlush(t *testing.T) {
	b := NewBatcher(3, func(ctx context.Context, batch []int) (int, error) {
		t.Fatal("flush called for empty batch")
		return 0, nil
	})
	n, err := b.Flush(context.Background())
	if n != 0 || err != nil {
		t.Fatalf("Flush = %d, %v", n, err)
	}
}

func TestBatcherFlushError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	b := NewBatcher(2, func(ctx context.Context, batch []int) (int, error) {
		return 1, boom
	})

	b.Add(ctx, 1)
	b.Add(ctx, 2)
	// The third Add triggers the failing flush; its partial count comes
	// back with the error.
	n, err := b.Add(ctx, 3)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if n != 1 {
		t.Fatalf("processed = %d, want 1", n)
	}
}

func TestBatcherDefaultLimit(t *testing.T) {
	b := NewBatcher[string](0, func(ctx context.Context, batch []string) (int, error) {
		return len(batch), nil
	})
	if b.limit != DefaultBatchSize {
		t.Fatalf("limit = %d, want %d", b.limit, DefaultBatchSize)
	}
}
