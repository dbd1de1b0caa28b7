package recognition

type ProcessImageResponse struct {
	ProcessedImageBase64 string   `json:"processed_image_base64"`
	RecognizedText       []string `json:"recognized_text"`
}

type FailurePolicy string

const (
	// FailurePolicyAbort discards the whole frame on any failure.
	FailurePolicyAbort FailurePolicy = "abort"
	// FailurePolicySkip drops only the plate whose crop or recognition failed.
	FailurePolicySkip FailurePolicy = "skip"
)
