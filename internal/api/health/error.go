package health

import (
	"errors"
	"net/http"

	"PlateRecognition/pkg/response"
)

var (
	ErrUnhealthy         = response.NewError(http.StatusServiceUnavailable, "service unhealthy")
	ErrUnknownSupervisor = errors.New("unknown health supervisor")
	ErrNoReferenceImage  = errors.New("health reference image is empty")
)
