package facematch

import (
	"errors"
	"fmt"
)

var (
	// ErrDecode is returned by a DescriptorSource for bytes that are not a decodable image.
	ErrDecode = errors.New("image could not be decoded")

	// ErrDimensionMismatch is returned when two descriptors have different lengths.
	ErrDimensionMismatch = errors.New("descriptor dimensions differ")

	// ErrStorage is wrapped by Corpus implementations when the corpus cannot be listed.
	ErrStorage = errors.New("corpus storage unreadable")
)

// NoFacesMessage is reported to clients when the query image has no faces.
// This is a normal empty result, see Outcome.NoFaces.
const NoFacesMessage = "No faces found in uploaded image"

// QueryError means the uploaded image itself could not be processed.
type QueryError struct {
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query image: %v", e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// CorpusError means the candidate list could not be obtained.
type CorpusError struct {
	Err error
}

func (e *CorpusError) Error() string {
	return fmt.Sprintf("listing candidates: %v", e.Err)
}

func (e *CorpusError) Unwrap() error { return e.Err }

// CandidateError means a single candidate could not be evaluated.
// It never aborts a search.
type CandidateError struct {
	CandidateID string
	Err         error
}

func (e *CandidateError) Error() string {
	return fmt.Sprintf("candidate %s: %v", e.CandidateID, e.Err)
}

func (e *CandidateError) Unwrap() error { return e.Err }
