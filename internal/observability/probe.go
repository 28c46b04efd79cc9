package observability

import (
	"context"
	"sync"
	"time"
)

// Probe checks one dependency.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// Status values reported per probe.
const (
	StatusServing    = "SERVING"
	StatusNotServing = "NOT_SERVING"
)

// RunProbes runs every probe concurrently, each bounded by timeout, and
// returns the status per probe name and whether all are serving.
func RunProbes(ctx context.Context, probes []Probe, timeout time.Duration) (map[string]string, bool) {
	statuses := make(map[string]string, len(probes))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	ready := true
	for _, p := range probes {
		wg.Add(1)
		go func(p Probe) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			status := StatusServing
			if err := p.Check(pctx); err != nil {
				status = StatusNotServing
			}
			mu.Lock()
			statuses[p.Name] = status
			if status != StatusServing {
				ready = false
			}
			mu.Unlock()
		}(p)
	}
	wg.Wait()
	return statuses, ready
}
