package retrieval

import "golang.org/x/sync/errgroup"

// forEach runs fn for every index in [0,n). With workers > 1 the calls run
// concurrently; fn must only write to its own slot.
func forEach(n, workers int, fn func(i int)) {
	if workers <= 1 || n < 2 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			fn(i)
			return nil
		})
	}
	_ = g.Wait()
}
