package facematch

import (
	"cmp"
	"context"
	"log"
	"slices"
	"sync"
)

// ProgressFunc is called after each evaluated candidate.
type ProgressFunc func(done, total int)

// Aggregator evaluates every candidate and ranks the matches.
type Aggregator struct {
	evaluator  *Evaluator
	workers    int
	onProgress ProgressFunc
}

// NewAggregator creates an aggregator running up to workers evaluations at once.
// workers <= 1 evaluates candidates sequentially.
func NewAggregator(evaluator *Evaluator, workers int) *Aggregator {
	return &Aggregator{
		evaluator: evaluator,
		workers:   max(workers, 1),
	}
}

// OnProgress registers a progress callback. Calls are serialized.
func (a *Aggregator) OnProgress(fn ProgressFunc) {
	a.onProgress = fn
}

// evaluation is the per-candidate slot filled by a worker.
type evaluation struct {
	match *MatchResult
	err   error
}

// Aggregate evaluates candidates against query and returns the ranked outcome.
// Candidate failures are recorded in Outcome.Failures; the only returned error is
// the context's when it ends before every candidate was dispatched.
func (a *Aggregator) Aggregate(ctx context.Context, candidates []CandidateSource, query []FaceRecord, threshold float64) (*Outcome, error) {
	evals, complete := a.evaluateAll(ctx, candidates, query, threshold)
	if !complete {
		return nil, ctx.Err()
	}

	outcome := &Outcome{
		Matches:       []MatchResult{},
		DetectedFaces: len(query),
		ComparedFiles: len(candidates),
	}

	// evals is indexed by enumeration order, so the stable sort below
	// keeps that order for equal similarities.
	for i, ev := range evals {
		if ev.err != nil {
			log.Printf("Error processing %s: %v", candidates[i].ID(), ev.err)
			outcome.Failures = append(outcome.Failures, CandidateFailure{
				CandidateID: candidates[i].ID(),
				Err:         ev.err,
			})
			continue
		}
		if ev.match != nil {
			outcome.Matches = append(outcome.Matches, *ev.match)
		}
	}

	slices.SortStableFunc(outcome.Matches, func(x, y MatchResult) int {
		return cmp.Compare(y.Similarity, x.Similarity)
	})
	outcome.SuccessfulComparisons = len(outcome.Matches)

	return outcome, nil
}

// evaluateAll runs the evaluator over a bounded worker pool. complete is false
// when the context ended before every candidate was dispatched.
func (a *Aggregator) evaluateAll(ctx context.Context, candidates []CandidateSource, query []FaceRecord, threshold float64) (evals []evaluation, complete bool) {
	evals = make([]evaluation, len(candidates))
	complete = true
	tasks := make(chan int)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		done int
	)

	for range min(a.workers, max(len(candidates), 1)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range tasks {
				match, err := a.evaluator.Evaluate(ctx, candidates[i], query, threshold)
				evals[i] = evaluation{match: match, err: err}

				if a.onProgress != nil {
					mu.Lock()
					done++
					a.onProgress(done, len(candidates))
					mu.Unlock()
				}
			}
		}()
	}

dispatch:
	for i := range candidates {
		if ctx.Err() != nil {
			complete = false
			break
		}
		select {
		case tasks <- i:
		case <-ctx.Done():
			complete = false
			break dispatch
		}
	}
	close(tasks)
	wg.Wait()

	return evals, complete
}
