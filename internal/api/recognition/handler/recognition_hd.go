package recognitionHandler

import (
	"encoding/base64"
	"errors"
	"mime/multipart"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"golang.org/x/net/context"

	"PlateRecognition/internal/api/recognition"
	"PlateRecognition/internal/entity"
	contextPkg "PlateRecognition/pkg/context"
	"PlateRecognition/pkg/handlerUtil"
	"PlateRecognition/pkg/log"
	"PlateRecognition/pkg/utils"
)

const formField = "file"

func (h *RecognitionHandler) ProcessImage(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), h.requestTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	file, err := h.uploadedFile(ctx)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "read_form_file")
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
		"file_name":  file.Filename,
		"file_size":  file.Size,
	}).Debug("Processing file upload")

	if err := h.utils.ValidateImageFile(file); err != nil {
		return errHandler.Handle(ctx, requestID, uploadError(err), ctx.Path(), "validate_image_file")
	}

	data, err := h.utils.ReadFile(file)
	if err != nil {
		return errHandler.Handle(ctx, requestID, uploadError(err), ctx.Path(), "read_file")
	}

	result, err := h.recognitionService.ProcessImage(c, data)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "process_image")
	}

	h.log.WithFields(log.Fields{
		"request_id":      requestID,
		"path":            ctx.Path(),
		"recognized_text": result.RecognizedText,
	}).Info("Image processed")

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, toResponse(result))
}

// uploadedFile distinguishes a missing "file" part from a part sent without a filename,
// which multipart parsing stores as a plain form value.
func (h *RecognitionHandler) uploadedFile(ctx *fiber.Ctx) (*multipart.FileHeader, error) {
	form, err := ctx.MultipartForm()
	if err != nil {
		return nil, recognition.ErrNoFilePart
	}

	if files := form.File[formField]; len(files) > 0 {
		if files[0].Filename == "" {
			return nil, recognition.ErrNoFileSelected
		}
		return files[0], nil
	}

	if _, ok := form.Value[formField]; ok {
		return nil, recognition.ErrNoFileSelected
	}

	return nil, recognition.ErrNoFilePart
}

func uploadError(err error) error {
	switch {
	case errors.Is(err, utils.ErrFileTooLarge):
		return recognition.ErrFileTooLarge
	case errors.Is(err, utils.ErrEmptyFile):
		return recognition.ErrInvalidImage
	case errors.Is(err, utils.ErrNoFile):
		return recognition.ErrNoFileSelected
	default:
		return err
	}
}

func toResponse(result *entity.PipelineResult) recognition.ProcessImageResponse {
	return recognition.ProcessImageResponse{
		ProcessedImageBase64: base64.StdEncoding.EncodeToString(result.ProcessedImage),
		RecognizedText:       result.RecognizedText,
	}
}

func (h *RecognitionHandler) handleWebSocket(c *websocket.Conn) {
	h.log.Info("Plate recognition WebSocket client connected")
	defer h.log.Info("Plate recognition WebSocket client disconnected")

	c.SetPingHandler(func(data string) error {
		h.log.Debug("Received ping, sending pong")
		if err := c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second)); err != nil {
			h.log.Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	maxReadTimeout := 60 * time.Second

	for {
		if err := c.SetReadDeadline(time.Now().Add(maxReadTimeout)); err != nil {
			h.log.Errorf("Error setting read deadline: %v", err)
			break
		}

		messageType, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Errorf("Plate recognition WebSocket error: %v", err)
			} else {
				h.log.Info("Plate recognition WebSocket connection closed")
			}
			break
		}

		if messageType != websocket.BinaryMessage {
			h.log.Warnf("Received unexpected message type: %d", messageType)
			continue
		}

		var reply interface{}
		result, err := h.processFrame(message)
		if err != nil {
			h.log.Errorf("Error processing frame: %v", err)
			reply = handlerUtil.ErrorResponse{Error: err.Error()}
		} else {
			reply = toResponse(result)
		}

		if err := c.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
			h.log.Errorf("Error setting write deadline: %v", err)
			break
		}

		if err := c.WriteJSON(reply); err != nil {
			h.log.Errorf("Error writing JSON response: %v", err)
			break
		}

		if err := c.SetWriteDeadline(time.Time{}); err != nil {
			h.log.Errorf("Error resetting write deadline: %v", err)
			break
		}
	}
}

func (h *RecognitionHandler) processFrame(frame []byte) (*entity.PipelineResult, error) {
	requestID, err := h.utils.NewULIDFromTimestamp(time.Now())
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(contextPkg.WithRequestID(context.Background(), requestID), h.requestTimeout)
	defer cancel()

	return h.recognitionService.ProcessImage(ctx, frame)
}
