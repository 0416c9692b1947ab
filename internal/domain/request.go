package domain

// ClassifyRequest asks for the category of one product title
type ClassifyRequest struct {
	Title string `json:"title" binding:"required"`
	Image string `json:"image"`
}

// ClassifyResponse is the classifier verdict
type ClassifyResponse struct {
	Category   Category   `json:"category,omitempty"`
	Label      string     `json:"label,omitempty"`
	Confidence int        `json:"confidence"`
	Ambiguous  bool       `json:"ambiguous"`
	Matched    []Category `json:"matched,omitempty"`
	Source     string     `json:"source"` // "classifier" or "cache"
}

// NormalizeRequest asks for the comparison form of a string
type NormalizeRequest struct {
	Text string `json:"text" binding:"required"`
}

// NormalizeResponse carries both comparison forms
type NormalizeResponse struct {
	Normalized string `json:"normalized"`
	Literal    string `json:"literal"`
	Damaged    bool   `json:"damaged"`
}

// SimilarityRequest compares two strings; both may be empty
type SimilarityRequest struct {
	A string `json:"a"`
	B string `json:"b"`
}

// SimilarityResponse is the normalized edit-distance score
type SimilarityResponse struct {
	Score          float64 `json:"score"`
	NormalizedA    string  `json:"normalizedA"`
	NormalizedB    string  `json:"normalizedB"`
	Threshold      float64 `json:"threshold"`
	AboveThreshold bool    `json:"aboveThreshold"`
}
