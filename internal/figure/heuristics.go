package figure

// Heuristics collects every tunable constant used by coordinate repair,
// region filtering and reconciliation. The numbers are calibrated against
// one OCR engine's observed failure modes (top-edge truncation of multi-node
// diagrams, header-row truncation of tables) and are defaults to recalibrate,
// not laws.
type Heuristics struct {
	// Coordinate repair
	SuspiciousMinSize  int     // raw boxes smaller than this are flagged, kept
	NearTopY           int     // below this y only a horizontal margin applies
	MidPageY           int     // mid-page tier boundary
	NearTopMargin      int     // horizontal margin for near-top diagrams
	MidPageUpMargin    int     // upward expansion for mid-page diagrams
	MidPageDownMargin  int     // downward expansion for mid-page diagrams
	AggressiveRatio    float64 // fraction of y recovered for far-down diagrams
	AggressiveBottom   int     // extra bottom margin for far-down diagrams
	TableHeaderY       int     // tables starting below this get header recovery
	TableHeaderMargin  int     // upward expansion recovering a header row
	EdgeValidFraction  float64 // left/top edge within this fraction of the page counts as valid
	// Region detector filters
	MinRegionSide    int     // regions narrower/shorter than this are dropped
	MaxAspectRatio   float64 // regions more elongated than this are dropped
	MinAreaFraction  float64 // regions covering less of the page are dropped
	DetectorDPI      float64 // detector working resolution
	ReferenceDPI     float64 // OCR page-pixel resolution
	// Reconciliation
	MatchThreshold      float64 // minimum matching score for a hybrid pair
	CenterTolerance     float64 // pixel radius for the center-distance score
	CenterWeight        float64
	AreaWeight          float64
	TypeWeight          float64
	OCROnlyConfidence   float64 // confidence for pages the detector missed
	HybridConfidence    float64
	DetectorOnlyFactor  float64 // detector confidence multiplier without OCR metadata
	OCRFallbackEnabled  bool    // re-add unmatched OCR candidates; off: too many spurious figures
	// Extraction
	CropMargin    int     // pixels added around each authoritative box
	UpscaleFactor float64 // page render upscale for crop clarity
	MinCropSide   int     // crops smaller than this are rejected
	// Verification
	VerifyMinConfidence float64 // accept iff is_figure and confidence clears this
	VerifyConcurrency   int     // parallel verification calls per page
}

// DefaultHeuristics returns the calibrated defaults.
func DefaultHeuristics() Heuristics {
	return Heuristics{
		SuspiciousMinSize: 20,
		NearTopY:          50,
		MidPageY:          200,
		NearTopMargin:     10,
		MidPageUpMargin:   50,
		MidPageDownMargin: 30,
		AggressiveRatio:   1.0, // earlier generation used 0.7
		AggressiveBottom:  50,
		TableHeaderY:      300,
		TableHeaderMargin: 60,
		EdgeValidFraction: 0.9,

		MinRegionSide:   30,
		MaxAspectRatio:  8.0,
		MinAreaFraction: 0.01,
		DetectorDPI:     144,
		ReferenceDPI:    144,

		MatchThreshold:     0.3,
		CenterTolerance:    100,
		CenterWeight:       0.5,
		AreaWeight:         0.3,
		TypeWeight:         0.2,
		OCROnlyConfidence:  0.7,
		HybridConfidence:   0.95,
		DetectorOnlyFactor: 0.9,
		OCRFallbackEnabled: false,

		CropMargin:    20,
		UpscaleFactor: 2.0,
		MinCropSide:   10,

		VerifyMinConfidence: 0.5,
		VerifyConcurrency:   2,
	}
}

// DetectorScale returns the factor mapping detector coordinates into the
// reference page-pixel space.
func (h Heuristics) DetectorScale() float64 {
	if h.DetectorDPI <= 0 || h.ReferenceDPI <= 0 {
		return 1.0
	}
	return h.ReferenceDPI / h.DetectorDPI
}
