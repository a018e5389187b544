package facematch

import (
	"context"
	"errors"
)

// DefaultThreshold is the maximum Euclidean distance (exclusive) for a face pair to match.
const DefaultThreshold = 0.5

// SearchOptions configures a Searcher.
type SearchOptions struct {
	Threshold float64
	Policy    MatchPolicy
	Workers   int
}

// Searcher answers "which corpus images contain a face from this image?".
type Searcher struct {
	source     DescriptorSource
	corpus     Corpus
	aggregator *Aggregator
	threshold  float64
}

// NewSearcher creates a searcher over corpus, extracting faces with source.
func NewSearcher(source DescriptorSource, corpus Corpus, opts SearchOptions) *Searcher {
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Searcher{
		source:     source,
		corpus:     corpus,
		aggregator: NewAggregator(NewEvaluator(source, opts.Policy), opts.Workers),
		threshold:  threshold,
	}
}

// Threshold returns the default distance threshold.
func (s *Searcher) Threshold() float64 {
	return s.threshold
}

// OnProgress registers a per-candidate progress callback.
func (s *Searcher) OnProgress(fn ProgressFunc) {
	s.aggregator.OnProgress(fn)
}

// Search runs a search with the default threshold.
func (s *Searcher) Search(ctx context.Context, queryImage []byte) (*Outcome, error) {
	return s.SearchWithThreshold(ctx, queryImage, s.threshold)
}

// SearchWithThreshold runs a search with an explicit distance threshold.
//
// A query image without faces is a normal outcome with NoFaces set and no
// candidate evaluated. Errors are *QueryError when the query image cannot be
// processed, *CorpusError when candidates cannot be listed, or the context error.
func (s *Searcher) SearchWithThreshold(ctx context.Context, queryImage []byte, threshold float64) (*Outcome, error) {
	query, err := s.source.ExtractFaces(ctx, queryImage)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, ctxErr
		}
		return nil, &QueryError{Err: err}
	}

	if len(query) == 0 {
		return &Outcome{Matches: []MatchResult{}, NoFaces: true}, nil
	}

	candidates, err := s.corpus.ListCandidates(ctx)
	if err != nil {
		return nil, &CorpusError{Err: err}
	}

	return s.aggregator.Aggregate(ctx, candidates, query, threshold)
}
