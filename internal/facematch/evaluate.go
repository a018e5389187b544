package facematch

import (
	"context"
	"fmt"
)

// Evaluator decides whether a single candidate matches the query faces.
// It holds no per-search state and is safe for concurrent use.
type Evaluator struct {
	source DescriptorSource
	policy MatchPolicy
}

// NewEvaluator creates an evaluator extracting candidate faces with source.
func NewEvaluator(source DescriptorSource, policy MatchPolicy) *Evaluator {
	if policy == "" {
		policy = PolicyFirst
	}
	return &Evaluator{source: source, policy: policy}
}

// Evaluate returns the candidate's match, or nil when no face pair is below threshold.
// Any failure is returned as a *CandidateError; callers treat it as "no match".
func (e *Evaluator) Evaluate(ctx context.Context, c CandidateSource, query []FaceRecord, threshold float64) (*MatchResult, error) {
	data, err := c.Load(ctx)
	if err != nil {
		return nil, &CandidateError{CandidateID: c.ID(), Err: fmt.Errorf("reading: %w", err)}
	}

	faces, err := e.source.ExtractFaces(ctx, data)
	if err != nil {
		return nil, &CandidateError{CandidateID: c.ID(), Err: fmt.Errorf("extracting faces: %w", err)}
	}

	distance, ok, err := e.matchFaces(query, faces, threshold)
	if err != nil {
		return nil, &CandidateError{CandidateID: c.ID(), Err: err}
	}
	if !ok {
		return nil, nil
	}

	return &MatchResult{
		CandidateID: c.ID(),
		Similarity:  Similarity(distance),
		Distance:    distance,
		Payload:     data,
	}, nil
}

// matchFaces scans query x candidate pairs and returns the claiming distance.
func (e *Evaluator) matchFaces(query, faces []FaceRecord, threshold float64) (float64, bool, error) {
	best, found := 0.0, false
	for qi := range query {
		for fi := range faces {
			d, err := EuclideanDistance(query[qi].Descriptor, faces[fi].Descriptor)
			if err != nil {
				return 0, false, fmt.Errorf("query face %d vs face %d: %w", qi, fi, err)
			}
			// NaN distances never match.
			if !(d < threshold) {
				continue
			}
			if e.policy == PolicyFirst {
				return d, true, nil
			}
			if !found || d < best {
				best, found = d, true
			}
		}
	}
	return best, found, nil
}
