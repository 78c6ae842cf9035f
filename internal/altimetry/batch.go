package altimetry

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// Loader parses one granule file into a dataset. The batch aggregator
// treats loader failures as per-file conditions, never batch aborts.
type Loader func(path string) (*Dataset, error)

// ProgressFunc receives batch progress after each completed dataset: done
// counts monotonically up to total regardless of worker scheduling, and
// file names the granule just finished.
type ProgressFunc func(done, total int, file string)

// BatchResult is the merged outcome of one batch run. Merged concatenates
// every surviving per-file sub-sequence in input-file order. A batch with
// Total == 0 had no usable input; Total > 0 with Kept == 0 means every
// point was rejected. The two are reported distinctly.
type BatchResult struct {
	Merged  *Dataset
	Total   int
	Kept    int
	Files   int // granules attempted
	Skipped int // granules skipped: load failure, empty table, schema mismatch
}

// RetentionRate returns Kept/Total as a percentage, zero for an empty batch.
func (r BatchResult) RetentionRate() float64 {
	if r.Total == 0 {
		return 0
	}
	return 100 * float64(r.Kept) / float64(r.Total)
}

// Aggregator applies one filter strategy across many independent granules
// and merges the survivors. Each granule is attempted exactly once; bad
// files are logged and skipped so a single malformed granule never sinks
// the batch.
type Aggregator struct {
	Filter   Filter
	Load     Loader
	Progress ProgressFunc // optional
	Workers  int          // <= 1 means sequential
}

// fileOutcome is the per-granule result before merging.
type fileOutcome struct {
	result  FilterResult
	skipped bool
}

// Run processes the granules in order and merges the survivors. Filtering
// of each granule is a pure function of its own rows, so with Workers > 1
// granules are processed concurrently; completion order never leaks into
// the merge, which always re-establishes input-file order. Cancellation is
// cooperative between granules: a cancelled context stops scheduling new
// granules and returns the context error.
func (a *Aggregator) Run(ctx context.Context, files []string) (BatchResult, error) {
	if a.Filter == nil {
		return BatchResult{}, fmt.Errorf("batch: no filter configured")
	}
	if a.Load == nil {
		return BatchResult{}, fmt.Errorf("batch: no loader configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	outcomes := make([]fileOutcome, len(files))
	var runErr error
	if a.Workers > 1 && len(files) > 1 {
		runErr = a.runConcurrent(ctx, files, outcomes)
	} else {
		runErr = a.runSequential(ctx, files, outcomes)
	}

	res := a.merge(files, outcomes)
	return res, runErr
}

func (a *Aggregator) runSequential(ctx context.Context, files []string, outcomes []fileOutcome) error {
	done := 0
	for i, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		outcomes[i] = a.processFile(file)
		done++
		a.reportProgress(done, len(files), file)
	}
	return nil
}

func (a *Aggregator) runConcurrent(ctx context.Context, files []string, outcomes []fileOutcome) error {
	workers := a.Workers
	if workers > len(files) {
		workers = len(files)
	}

	indexes := make(chan int)
	var wg sync.WaitGroup

	var mu sync.Mutex
	done := 0

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				outcomes[i] = a.processFile(files[i])
				mu.Lock()
				done++
				a.reportProgress(done, len(files), files[i])
				mu.Unlock()
			}
		}()
	}

	var cancelled error
feed:
	for i := range files {
		select {
		case <-ctx.Done():
			cancelled = ctx.Err()
			break feed
		case indexes <- i:
		}
	}
	close(indexes)
	wg.Wait()
	return cancelled
}

// processFile attempts one granule. Load failures and empty tables are
// skipped: they contribute nothing to batch totals, only to the Skipped
// count. A granule that loads but retains nothing still reports its total
// so the batch retention rate reflects it.
func (a *Aggregator) processFile(file string) fileOutcome {
	ds, err := a.Load(file)
	if err != nil {
		log.Printf("batch: skipping %s: %v", file, err)
		return fileOutcome{skipped: true}
	}
	if ds.Len() == 0 {
		log.Printf("batch: skipping %s: empty granule", file)
		return fileOutcome{skipped: true}
	}
	return fileOutcome{result: a.Filter.Apply(ds)}
}

// merge folds per-granule outcomes in input-file order. Unscheduled slots
// (possible after cancellation) look like skips with a nil result dataset.
func (a *Aggregator) merge(files []string, outcomes []fileOutcome) BatchResult {
	res := BatchResult{Files: len(files)}
	var parts []*Dataset
	var schema *Dataset

	for i := range outcomes {
		o := &outcomes[i]
		if o.skipped || o.result.Points == nil {
			res.Skipped++
			continue
		}
		if o.result.Kept > 0 {
			if schema != nil && !schema.SameSchema(o.result.Points) {
				log.Printf("batch: skipping %s: column schema differs from %s", files[i], schema.Source)
				res.Skipped++
				continue
			}
			if schema == nil {
				schema = o.result.Points
			}
			parts = append(parts, o.result.Points)
		}
		res.Total += o.result.Total
		res.Kept += o.result.Kept
	}

	merged, err := Concat(parts)
	if err != nil {
		// Schema conflicts are filtered above; Concat cannot fail here,
		// but never return a nil merge.
		log.Printf("batch: merge failed: %v", err)
		merged = &Dataset{}
	}
	res.Merged = merged
	return res
}

func (a *Aggregator) reportProgress(done, total int, file string) {
	if a.Progress != nil {
		a.Progress(done, total, file)
	}
}
