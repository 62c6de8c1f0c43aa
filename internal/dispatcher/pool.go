package dispatcher

import (
	"context"
	"sync"

	"github.com/unclebandit/bulksms-campaigns/internal/model"
)

// DispatchAll sends message to every number and returns one outcome per
// number in input order. With concurrency <= 1 the sends run sequentially;
// otherwise a fixed pool of workers drains a job channel of indexes.
func DispatchAll(ctx context.Context, d Dispatcher, numbers []string, message string, concurrency int) []model.RecipientOutcome {
	results := make([]model.RecipientOutcome, len(numbers))
	if concurrency <= 1 || len(numbers) <= 1 {
		for i, n := range numbers {
			results[i] = d.Dispatch(ctx, n, message)
		}
		return results
	}

	if concurrency > len(numbers) {
		concurrency = len(numbers)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = d.Dispatch(ctx, numbers[i], message)
			}
		}()
	}

	for i := range numbers {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}
