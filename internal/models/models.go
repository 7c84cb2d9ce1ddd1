package models

// Landmark is a single landmark detected in the sampled frames.
type Landmark struct {
	Name string `json:"name"`
	// Confidence is the model's self-reported certainty in [0,1].
	Confidence float64 `json:"confidence"`
	Evidence   string  `json:"evidence,omitempty"`
}

// LocationCandidate is one proposed location for a reel, produced by a
// vision inference call or a geo normalization call.
//
// Confidence and AvgConfidence are zero when the producing stage did not
// report them; a missing confidence counts as 0 everywhere downstream.
type LocationCandidate struct {
	City          string     `json:"city"`
	Country       string     `json:"country"`
	Region        string     `json:"region,omitempty"`
	Landmarks     []Landmark `json:"landmarks"`
	Confidence    float64    `json:"confidence,omitempty"`
	AvgConfidence float64    `json:"avg_confidence,omitempty"`
}

// FrameSet is the ordered list of frame image paths extracted from one video.
// It is built once by the extractor and read-only afterwards; every inference
// worker sees the same frames.
type FrameSet struct {
	VideoName string   `json:"video_name"`
	Paths     []string `json:"paths"`
}

// Len returns the number of frames in the set.
func (f FrameSet) Len() int { return len(f.Paths) }

// Place is one result from the places search collaborator.
type Place struct {
	Name    string   `json:"name"`
	Address string   `json:"address"`
	Rating  float64  `json:"rating,omitempty"`
	Lat     float64  `json:"lat,omitempty"`
	Lng     float64  `json:"lng,omitempty"`
	Types   []string `json:"types,omitempty"`
}

// AnalysisRun is a completed pipeline run, ready for persistence.
type AnalysisRun struct {
	ID         string            `json:"id"`
	VideoName  string            `json:"video_name"`
	Location   LocationCandidate `json:"location"`
	Iterations int               `json:"iterations"`
	FrameCount int               `json:"frame_count"`
	Itinerary  string            `json:"itinerary,omitempty"`
}

// RunSearchResult is a similarity hit from the run store.
type RunSearchResult struct {
	RunID      string  `json:"run_id"`
	City       string  `json:"city"`
	Country    string  `json:"country"`
	Landmark   string  `json:"landmark"`
	Similarity float64 `json:"similarity"`
}
