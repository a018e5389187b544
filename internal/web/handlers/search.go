package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-search/internal/constants"
	"github.com/kozaktomas/face-search/internal/facematch"
)

// errSearchFailed is the client-facing message for every failed search.
const errSearchFailed = "Face matching failed"

// Searcher runs face searches.
type Searcher interface {
	SearchWithThreshold(ctx context.Context, queryImage []byte, threshold float64) (*facematch.Outcome, error)
	Threshold() float64
}

// SearchHandler handles face search uploads.
type SearchHandler struct {
	searcher Searcher
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(searcher Searcher) *SearchHandler {
	return &SearchHandler{searcher: searcher}
}

// SearchMatch is one matched corpus image.
type SearchMatch struct {
	FileName   string `json:"fileName"`
	Similarity int    `json:"similarity"`
	FileBuffer string `json:"fileBuffer"` // base64 of the stored image
}

// SearchDebug carries diagnostic counters.
type SearchDebug struct {
	SearchID              string `json:"searchId"`
	DetectedFaces         int    `json:"detectedFaces"`
	ComparedFiles         int    `json:"comparedFiles"`
	SuccessfulComparisons int    `json:"successfulComparisons"`
	FailedFiles           int    `json:"failedFiles"`
}

// SearchResponse is the body of a successful search.
type SearchResponse struct {
	Matches []SearchMatch `json:"matches"`
	Debug   *SearchDebug  `json:"debug,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// NewSearchResponse shapes an outcome for clients.
func NewSearchResponse(searchID string, outcome *facematch.Outcome) SearchResponse {
	if outcome.NoFaces {
		return SearchResponse{Matches: []SearchMatch{}, Error: facematch.NoFacesMessage}
	}

	matches := make([]SearchMatch, 0, len(outcome.Matches))
	for i := range outcome.Matches {
		m := &outcome.Matches[i]
		matches = append(matches, SearchMatch{
			FileName:   m.CandidateID,
			Similarity: m.Similarity,
			FileBuffer: base64.StdEncoding.EncodeToString(m.Payload),
		})
	}

	return SearchResponse{
		Matches: matches,
		Debug: &SearchDebug{
			SearchID:              searchID,
			DetectedFaces:         outcome.DetectedFaces,
			ComparedFiles:         outcome.ComparedFiles,
			SuccessfulComparisons: outcome.SuccessfulComparisons,
			FailedFiles:           len(outcome.Failures),
		},
	}
}

// readImage returns the bytes of the "image" multipart field.
func readImage(r *http.Request) ([]byte, error) {
	if err := r.ParseMultipartForm(constants.MaxUploadMemory); err != nil {
		return nil, fmt.Errorf("failed to parse multipart form: %w", err)
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		return nil, errors.New("image file is required")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return data, nil
}

// parseThreshold reads the optional "threshold" form field.
func parseThreshold(r *http.Request, fallback float64) (float64, error) {
	s := r.FormValue("threshold")
	if s == "" {
		return fallback, nil
	}
	t, err := strconv.ParseFloat(s, 64)
	if err != nil || t <= 0 || t > constants.MaxThreshold {
		return 0, fmt.Errorf("threshold must be a number in (0, %v]", constants.MaxThreshold)
	}
	return t, nil
}

// Search handles POST /search with a multipart "image" upload.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)

	image, err := readImage(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	threshold, err := parseThreshold(r, h.searcher.Threshold())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	searchID := uuid.New().String()
	outcome, err := h.searcher.SearchWithThreshold(r.Context(), image, threshold)
	if err != nil {
		log.Printf("Search %s error: %s", searchID, sanitizeForLog(err.Error()))
		status := http.StatusInternalServerError
		if errors.Is(err, facematch.ErrDecode) {
			status = http.StatusUnprocessableEntity
		}
		respondFailure(w, status, errSearchFailed, err.Error())
		return
	}

	if outcome.NoFaces {
		log.Printf("Search %s: no faces in uploaded image", searchID)
	} else {
		log.Printf("Search %s: %d faces, %d/%d files matched, %d failed",
			searchID, outcome.DetectedFaces, outcome.SuccessfulComparisons, outcome.ComparedFiles, len(outcome.Failures))
	}

	respondJSON(w, http.StatusOK, NewSearchResponse(searchID, outcome))
}
