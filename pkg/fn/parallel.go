package fn

import (
	"context"
	"sync"
)

// ParMapResult runs f over items on at most workers goroutines and returns
// the Results in input order. Once ctx is done no further item is started;
// every item not started gets Err(ctx.Err()).
func ParMapResult[T, U any](ctx context.Context, items []T, workers int, f func(context.Context, T) Result[U]) []Result[U] {
	out := make([]Result[U], len(items))
	if len(items) == 0 {
		return out
	}
	if workers <= 0 || workers > len(items) {
		workers = len(items)
	}

	next := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			for i := range next {
				out[i] = f(ctx, items[i])
			}
		}()
	}

	i := 0
feed:
	for ; i < len(items); i++ {
		if ctx.Err() != nil {
			break
		}
		select {
		case next <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(next)
	wg.Wait()

	for ; i < len(items); i++ {
		out[i] = Err[U](ctx.Err())
	}
	return out
}
