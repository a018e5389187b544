package facematch

import "context"

// FaceRecord is a single face produced by a DescriptorSource.
type FaceRecord struct {
	Descriptor []float32
	Landmarks  any // opaque, passed through from the detector
}

// FaceBox is the landmark payload produced by the HTTP face service.
type FaceBox struct {
	BBox     []float64 `json:"bbox"` // [x1, y1, x2, y2] in pixels
	DetScore float64   `json:"det_score"`
}

// DescriptorSource extracts faces from raw image bytes.
// Implementations wrap ErrDecode when the bytes are not a decodable image.
type DescriptorSource interface {
	ExtractFaces(ctx context.Context, image []byte) ([]FaceRecord, error)
}

// CandidateSource is one stored image whose bytes are read lazily.
type CandidateSource interface {
	ID() string
	Load(ctx context.Context) ([]byte, error)
}

// Corpus enumerates the candidates available for one search.
type Corpus interface {
	ListCandidates(ctx context.Context) ([]CandidateSource, error)
}

// Candidate is an in-memory CandidateSource.
type Candidate struct {
	Name string
	Data []byte
}

// ID returns the candidate identifier.
func (c Candidate) ID() string { return c.Name }

// Load returns the candidate bytes.
func (c Candidate) Load(context.Context) ([]byte, error) { return c.Data, nil }

// MatchResult is the single match a candidate can contribute.
type MatchResult struct {
	CandidateID string
	Similarity  int
	Distance    float64
	Payload     []byte
}

// CandidateFailure records a candidate that was skipped because it could not be evaluated.
type CandidateFailure struct {
	CandidateID string
	Err         error
}

// Outcome is the result of a completed search.
type Outcome struct {
	Matches               []MatchResult
	DetectedFaces         int
	ComparedFiles         int
	SuccessfulComparisons int
	Failures              []CandidateFailure

	// NoFaces is set when the query image contained no faces. No candidate is evaluated then.
	NoFaces bool
}

// MatchPolicy selects which qualifying face pair claims a candidate.
type MatchPolicy string

const (
	// PolicyFirst takes the first pair below the threshold in query/candidate face order.
	PolicyFirst MatchPolicy = "first"
	// PolicyBest takes the lowest-distance pair below the threshold.
	PolicyBest MatchPolicy = "best"
)

// ParseMatchPolicy converts a configuration value to a MatchPolicy.
func ParseMatchPolicy(s string) (MatchPolicy, bool) {
	switch MatchPolicy(s) {
	case PolicyFirst, "":
		return PolicyFirst, true
	case PolicyBest:
		return PolicyBest, true
	}
	return "", false
}
