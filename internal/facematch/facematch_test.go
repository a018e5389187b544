package facematch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"
)

// fakeSource maps image bytes (as string) to the faces it "detects".
type fakeSource struct {
	mu    sync.Mutex
	faces map[string][]FaceRecord
	errs  map[string]error
	calls []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		faces: make(map[string][]FaceRecord),
		errs:  make(map[string]error),
	}
}

func (f *fakeSource) ExtractFaces(_ context.Context, image []byte) ([]FaceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := string(image)
	f.calls = append(f.calls, key)
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	return f.faces[key], nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// face returns a one-dimensional record; distances between such faces are |a-b|.
func face(v ...float32) FaceRecord {
	return FaceRecord{Descriptor: v}
}

type fakeCorpus struct {
	candidates []CandidateSource
	err        error
	listed     bool
}

func (c *fakeCorpus) ListCandidates(context.Context) ([]CandidateSource, error) {
	c.listed = true
	return c.candidates, c.err
}

type failingCandidate struct{ id string }

func (c failingCandidate) ID() string { return c.id }

func (c failingCandidate) Load(context.Context) ([]byte, error) {
	return nil, errors.New("permission denied")
}

// scenarioCorpus builds candidates img1..imgN whose single face sits at the given distance from 0.
func scenarioCorpus(src *fakeSource, distances ...float32) *fakeCorpus {
	corpus := &fakeCorpus{}
	for i, d := range distances {
		name := fmt.Sprintf("img%d.jpg", i+1)
		src.faces[name] = []FaceRecord{face(d)}
		corpus.candidates = append(corpus.candidates, Candidate{Name: name, Data: []byte(name)})
	}
	return corpus
}

func matchIDs(matches []MatchResult) []string {
	ids := make([]string, len(matches))
	for i := range matches {
		ids[i] = matches[i].CandidateID
	}
	return ids
}

func TestEuclideanDistance(t *testing.T) {
	d, err := EuclideanDistance([]float32{0, 0}, []float32{3, 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != 5 {
		t.Errorf("EuclideanDistance = %v, want 5", d)
	}

	_, err = EuclideanDistance([]float32{1, 2, 3}, []float32{1, 2})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		distance float64
		expected int
	}{
		{0, 100},
		{0.3, 70},
		{0.45, 55},
		{0.125, 88},
		{1.0, 0},
		{1.7, 0},
		{-0.2, 100},
		{math.NaN(), 0},
		{math.Inf(1), 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v", tt.distance), func(t *testing.T) {
			if got := Similarity(tt.distance); got != tt.expected {
				t.Errorf("Similarity(%v) = %d, want %d", tt.distance, got, tt.expected)
			}
		})
	}
}

func TestEvaluate_Threshold(t *testing.T) {
	tests := []struct {
		name      string
		distance  float32
		threshold float64
		wantMatch bool
	}{
		{"below threshold", 0.3, 0.5, true},
		{"equal to threshold", 0.5, 0.5, false},
		{"above threshold", 0.6, 0.5, false},
		{"strict threshold", 0.3, 0.25, false},
		{"loose threshold", 0.6, 0.75, true},
		{"NaN descriptor", float32(math.NaN()), 0.5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newFakeSource()
			src.faces["c"] = []FaceRecord{face(tt.distance)}
			ev := NewEvaluator(src, PolicyFirst)

			match, err := ev.Evaluate(context.Background(), Candidate{Name: "c", Data: []byte("c")}, []FaceRecord{face(0)}, tt.threshold)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if (match != nil) != tt.wantMatch {
				t.Fatalf("match = %v, want match=%v", match, tt.wantMatch)
			}
			if match != nil && match.Similarity != Similarity(float64(tt.distance)) {
				t.Errorf("similarity = %d, want %d", match.Similarity, Similarity(float64(tt.distance)))
			}
		})
	}
}

func TestEvaluate_FirstQualifyingPairWins(t *testing.T) {
	src := newFakeSource()
	// Second face is closer, but the first one below threshold claims the candidate.
	src.faces["group"] = []FaceRecord{face(0.9), face(0.4), face(0.1)}
	ev := NewEvaluator(src, PolicyFirst)

	match, err := ev.Evaluate(context.Background(), Candidate{Name: "group", Data: []byte("group")}, []FaceRecord{face(0), face(0.1)}, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if match == nil {
		t.Fatal("expected a match")
	}
	if match.Similarity != 60 {
		t.Errorf("similarity = %d, want 60", match.Similarity)
	}
	if string(match.Payload) != "group" {
		t.Errorf("payload = %q, want candidate bytes", match.Payload)
	}
}

func TestEvaluate_BestPolicy(t *testing.T) {
	src := newFakeSource()
	src.faces["group"] = []FaceRecord{face(0.9), face(0.4), face(0.1)}
	ev := NewEvaluator(src, PolicyBest)

	match, err := ev.Evaluate(context.Background(), Candidate{Name: "group", Data: []byte("group")}, []FaceRecord{face(0)}, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if match == nil || match.Similarity != 90 {
		t.Errorf("expected best pair similarity 90, got %+v", match)
	}
}

func TestEvaluate_Failures(t *testing.T) {
	src := newFakeSource()
	src.errs["corrupt"] = fmt.Errorf("bad bytes: %w", ErrDecode)
	src.faces["wide"] = []FaceRecord{{Descriptor: []float32{0, 0}}}
	ev := NewEvaluator(src, PolicyFirst)
	query := []FaceRecord{face(0)}

	tests := []struct {
		name      string
		candidate CandidateSource
		wantCause error
	}{
		{"decode failure", Candidate{Name: "corrupt", Data: []byte("corrupt")}, ErrDecode},
		{"dimension mismatch", Candidate{Name: "wide", Data: []byte("wide")}, ErrDimensionMismatch},
		{"read failure", failingCandidate{id: "locked"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match, err := ev.Evaluate(context.Background(), tt.candidate, query, 0.5)
			if match != nil {
				t.Errorf("expected no match, got %+v", match)
			}
			var candErr *CandidateError
			if !errors.As(err, &candErr) {
				t.Fatalf("expected *CandidateError, got %v", err)
			}
			if candErr.CandidateID != tt.candidate.ID() {
				t.Errorf("CandidateID = %q, want %q", candErr.CandidateID, tt.candidate.ID())
			}
			if tt.wantCause != nil && !errors.Is(err, tt.wantCause) {
				t.Errorf("expected cause %v, got %v", tt.wantCause, err)
			}
		})
	}
}

func TestSearch_Scenario(t *testing.T) {
	src := newFakeSource()
	src.faces["query"] = []FaceRecord{face(0)}
	corpus := scenarioCorpus(src, 0.3, 0.6, 0.45)

	s := NewSearcher(src, corpus, SearchOptions{})
	outcome, err := s.Search(context.Background(), []byte("query"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(outcome.Matches) != 2 {
		t.Fatalf("expected 2 matches, got %d: %v", len(outcome.Matches), matchIDs(outcome.Matches))
	}
	if outcome.Matches[0].CandidateID != "img1.jpg" || outcome.Matches[0].Similarity != 70 {
		t.Errorf("first match = %s/%d, want img1.jpg/70", outcome.Matches[0].CandidateID, outcome.Matches[0].Similarity)
	}
	if outcome.Matches[1].CandidateID != "img3.jpg" || outcome.Matches[1].Similarity != 55 {
		t.Errorf("second match = %s/%d, want img3.jpg/55", outcome.Matches[1].CandidateID, outcome.Matches[1].Similarity)
	}
	if outcome.DetectedFaces != 1 || outcome.ComparedFiles != 3 || outcome.SuccessfulComparisons != 2 {
		t.Errorf("unexpected counters: %+v", outcome)
	}
	if outcome.NoFaces {
		t.Error("NoFaces should be false")
	}
}

func TestSearch_NoFacesInQuery(t *testing.T) {
	src := newFakeSource()
	corpus := scenarioCorpus(src, 0.1, 0.2)

	s := NewSearcher(src, corpus, SearchOptions{})
	outcome, err := s.Search(context.Background(), []byte("landscape"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.NoFaces {
		t.Error("expected NoFaces outcome")
	}
	if outcome.Matches == nil || len(outcome.Matches) != 0 {
		t.Errorf("expected empty non-nil matches, got %v", outcome.Matches)
	}
	if corpus.listed {
		t.Error("corpus should not be enumerated when the query has no faces")
	}
	if src.callCount() != 1 {
		t.Errorf("expected only the query extraction, got %d calls", src.callCount())
	}
}

func TestSearch_EmptyCorpus(t *testing.T) {
	src := newFakeSource()
	src.faces["query"] = []FaceRecord{face(0), face(1)}

	s := NewSearcher(src, &fakeCorpus{}, SearchOptions{})
	outcome, err := s.Search(context.Background(), []byte("query"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcome.Matches) != 0 || outcome.ComparedFiles != 0 || outcome.SuccessfulComparisons != 0 {
		t.Errorf("unexpected outcome: %+v", outcome)
	}
	if outcome.DetectedFaces != 2 {
		t.Errorf("DetectedFaces = %d, want 2", outcome.DetectedFaces)
	}
}

func TestSearch_CorruptCandidateIsIsolated(t *testing.T) {
	src := newFakeSource()
	src.faces["query"] = []FaceRecord{face(0)}
	corpus := scenarioCorpus(src, 0.2, 0.1, 0.3)
	src.errs["img2.jpg"] = fmt.Errorf("truncated: %w", ErrDecode)

	s := NewSearcher(src, corpus, SearchOptions{})
	outcome, err := s.Search(context.Background(), []byte("query"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ids := matchIDs(outcome.Matches)
	if len(ids) != 2 || ids[0] != "img1.jpg" || ids[1] != "img3.jpg" {
		t.Errorf("matches = %v, want [img1.jpg img3.jpg]", ids)
	}
	if outcome.ComparedFiles != 3 {
		t.Errorf("ComparedFiles = %d, want 3", outcome.ComparedFiles)
	}
	if outcome.SuccessfulComparisons != 2 {
		t.Errorf("SuccessfulComparisons = %d, want 2", outcome.SuccessfulComparisons)
	}
	if len(outcome.Failures) != 1 || outcome.Failures[0].CandidateID != "img2.jpg" {
		t.Errorf("Failures = %+v, want img2.jpg", outcome.Failures)
	}
}

func TestSearch_OneMatchPerCandidate(t *testing.T) {
	src := newFakeSource()
	src.faces["query"] = []FaceRecord{face(0), face(0.05)}
	src.faces["crowd"] = []FaceRecord{face(0.1), face(0.2), face(0.15)}
	corpus := &fakeCorpus{candidates: []CandidateSource{Candidate{Name: "crowd", Data: []byte("crowd")}}}

	outcome, err := NewSearcher(src, corpus, SearchOptions{}).Search(context.Background(), []byte("query"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcome.Matches) != 1 {
		t.Errorf("expected exactly one match for the candidate, got %d", len(outcome.Matches))
	}
}

// slowSource delays extraction per image so early candidates finish last.
type slowSource struct {
	*fakeSource
	delays map[string]time.Duration

	mu       sync.Mutex
	finished []string
}

func (s *slowSource) ExtractFaces(ctx context.Context, image []byte) ([]FaceRecord, error) {
	time.Sleep(s.delays[string(image)])
	faces, err := s.fakeSource.ExtractFaces(ctx, image)
	s.mu.Lock()
	s.finished = append(s.finished, string(image))
	s.mu.Unlock()
	return faces, err
}

func TestSearch_StableTieOrder(t *testing.T) {
	for _, workers := range []int{1, 2, 8} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			fake := newFakeSource()
			fake.faces["query"] = []FaceRecord{face(0)}
			corpus := scenarioCorpus(fake, 0.2, 0.1, 0.2, 0.1, 0.2)
			src := &slowSource{
				fakeSource: fake,
				delays: map[string]time.Duration{
					"img1.jpg": 50 * time.Millisecond,
					"img2.jpg": 40 * time.Millisecond,
					"img3.jpg": 30 * time.Millisecond,
					"img4.jpg": 20 * time.Millisecond,
				},
			}

			s := NewSearcher(src, corpus, SearchOptions{Workers: workers})
			outcome, err := s.Search(context.Background(), []byte("query"))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			want := []string{"img2.jpg", "img4.jpg", "img1.jpg", "img3.jpg", "img5.jpg"}
			got := matchIDs(outcome.Matches)
			if fmt.Sprint(got) != fmt.Sprint(want) {
				t.Errorf("order = %v, want %v", got, want)
			}

			// With every candidate in flight at once, img1 is the last to finish.
			if workers >= len(corpus.candidates) {
				last := src.finished[len(src.finished)-1]
				if last != "img1.jpg" {
					t.Errorf("expected img1.jpg to finish last, finish order = %v", src.finished)
				}
			}
		})
	}
}

func TestSearch_NaNDescriptorNeverMatches(t *testing.T) {
	for _, policy := range []MatchPolicy{PolicyFirst, PolicyBest} {
		t.Run(string(policy), func(t *testing.T) {
			src := newFakeSource()
			src.faces["query"] = []FaceRecord{face(0)}
			src.faces["broken"] = []FaceRecord{face(float32(math.NaN()))}
			src.faces["mixed"] = []FaceRecord{face(float32(math.NaN())), face(0.3)}
			corpus := &fakeCorpus{candidates: []CandidateSource{
				Candidate{Name: "broken", Data: []byte("broken")},
				Candidate{Name: "mixed", Data: []byte("mixed")},
			}}

			outcome, err := NewSearcher(src, corpus, SearchOptions{Policy: policy}).Search(context.Background(), []byte("query"))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(outcome.Matches) != 1 {
				t.Fatalf("expected only the finite pair to match, got %+v", outcome.Matches)
			}
			m := outcome.Matches[0]
			if m.CandidateID != "mixed" || m.Similarity != 70 {
				t.Errorf("unexpected match: %+v", m)
			}
		})
	}
}

func TestSearch_QueryDecodeFailure(t *testing.T) {
	src := newFakeSource()
	src.errs["garbage"] = fmt.Errorf("unknown format: %w", ErrDecode)
	corpus := scenarioCorpus(src, 0.1)

	outcome, err := NewSearcher(src, corpus, SearchOptions{}).Search(context.Background(), []byte("garbage"))
	if outcome != nil {
		t.Errorf("expected no outcome, got %+v", outcome)
	}
	var qErr *QueryError
	if !errors.As(err, &qErr) {
		t.Fatalf("expected *QueryError, got %v", err)
	}
	if !errors.Is(err, ErrDecode) {
		t.Errorf("expected ErrDecode in chain, got %v", err)
	}
	if corpus.listed {
		t.Error("corpus should not be enumerated after a query failure")
	}
}

func TestSearch_CorpusFailure(t *testing.T) {
	src := newFakeSource()
	src.faces["query"] = []FaceRecord{face(0)}
	corpus := &fakeCorpus{err: fmt.Errorf("open /images: %w", ErrStorage)}

	outcome, err := NewSearcher(src, corpus, SearchOptions{}).Search(context.Background(), []byte("query"))
	if outcome != nil {
		t.Errorf("expected no partial outcome, got %+v", outcome)
	}
	var cErr *CorpusError
	if !errors.As(err, &cErr) || !errors.Is(err, ErrStorage) {
		t.Fatalf("expected *CorpusError wrapping ErrStorage, got %v", err)
	}
}

func TestSearch_CustomThreshold(t *testing.T) {
	src := newFakeSource()
	src.faces["query"] = []FaceRecord{face(0)}
	corpus := scenarioCorpus(src, 0.3, 0.6, 0.45)

	s := NewSearcher(src, corpus, SearchOptions{Threshold: 0.5})
	outcome, err := s.SearchWithThreshold(context.Background(), []byte("query"), 0.4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ids := matchIDs(outcome.Matches)
	if len(ids) != 1 || ids[0] != "img1.jpg" {
		t.Errorf("matches = %v, want [img1.jpg]", ids)
	}
	if s.Threshold() != 0.5 {
		t.Errorf("Threshold() = %v, want 0.5", s.Threshold())
	}
}

func TestSearch_Cancelled(t *testing.T) {
	src := newFakeSource()
	src.faces["query"] = []FaceRecord{face(0)}
	corpus := scenarioCorpus(src, 0.1, 0.2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSearcher(src, corpus, SearchOptions{Workers: 2}).Search(ctx, []byte("query"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// cancellingCandidate ends the search context once its bytes are read.
type cancellingCandidate struct {
	Candidate
	cancel context.CancelFunc
}

func (c cancellingCandidate) Load(ctx context.Context) ([]byte, error) {
	c.cancel()
	return c.Candidate.Load(ctx)
}

func TestAggregate_CancelAfterLastDispatchKeepsOutcome(t *testing.T) {
	src := newFakeSource()
	corpus := scenarioCorpus(src, 0.1, 0.2, 0.3)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	last := len(corpus.candidates) - 1
	corpus.candidates[last] = cancellingCandidate{Candidate: corpus.candidates[last].(Candidate), cancel: cancel}

	agg := NewAggregator(NewEvaluator(src, PolicyFirst), 1)
	outcome, err := agg.Aggregate(ctx, corpus.candidates, []FaceRecord{face(0)}, 0.5)
	if err != nil {
		t.Fatalf("every candidate was dispatched, expected an outcome, got %v", err)
	}
	if ctx.Err() == nil {
		t.Fatal("expected the context to be cancelled by the last candidate")
	}
	if len(outcome.Matches) != 3 || outcome.ComparedFiles != 3 {
		t.Errorf("expected the complete outcome, got %+v", outcome)
	}
}

func TestAggregate_Progress(t *testing.T) {
	src := newFakeSource()
	corpus := scenarioCorpus(src, 0.1, 0.2, 0.3, 0.4)

	agg := NewAggregator(NewEvaluator(src, PolicyFirst), 3)
	var calls []int
	agg.OnProgress(func(done, total int) {
		if total != 4 {
			t.Errorf("total = %d, want 4", total)
		}
		calls = append(calls, done)
	})

	if _, err := agg.Aggregate(context.Background(), corpus.candidates, []FaceRecord{face(0)}, 0.5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fmt.Sprint(calls) != "[1 2 3 4]" {
		t.Errorf("progress calls = %v, want [1 2 3 4]", calls)
	}
}

func TestParseMatchPolicy(t *testing.T) {
	tests := []struct {
		input    string
		expected MatchPolicy
		ok       bool
	}{
		{"", PolicyFirst, true},
		{"first", PolicyFirst, true},
		{"best", PolicyBest, true},
		{"nearest", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseMatchPolicy(tt.input)
			if got != tt.expected || ok != tt.ok {
				t.Errorf("ParseMatchPolicy(%q) = %q, %v; want %q, %v", tt.input, got, ok, tt.expected, tt.ok)
			}
		})
	}
}
