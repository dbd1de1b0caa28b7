package recognition

import (
	"net/http"

	"PlateRecognition/pkg/response"
)

var (
	ErrNoFilePart       = response.NewError(http.StatusBadRequest, "No file part in the request.")
	ErrNoFileSelected   = response.NewError(http.StatusBadRequest, "No file selected for uploading.")
	ErrInvalidImage     = response.NewError(http.StatusBadRequest, "Invalid image file.")
	ErrFileTooLarge     = response.NewError(http.StatusBadRequest, "File exceeds the maximum upload size.")
	ErrProcessingFailed = response.NewError(http.StatusInternalServerError, "An error occurred during image processing.")
)
