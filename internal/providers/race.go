package providers

import "context"

// Task is one fallible unit of work raced by FirstSuccess.
type Task[T any] func(ctx context.Context) (T, error)

// FirstSuccess runs every task concurrently and returns the index and value of
// the first one to succeed. The context handed to the tasks is canceled as soon
// as a winner is known; results that arrive afterwards are discarded.
//
// If every task fails, index is -1 and errs holds each task's error in task order.
func FirstSuccess[T any](ctx context.Context, tasks []Task[T]) (index int, value T, errs []error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		idx int
		val T
		err error
	}

	// Buffered so goroutines of losing tasks never block after we return.
	results := make(chan outcome, len(tasks))
	for i, task := range tasks {
		go func() {
			v, err := task(ctx)
			results <- outcome{idx: i, val: v, err: err}
		}()
	}

	errs = make([]error, len(tasks))
	for range tasks {
		o := <-results
		if o.err == nil {
			return o.idx, o.val, nil
		}
		errs[o.idx] = o.err
	}

	var zero T
	return -1, zero, errs
}
