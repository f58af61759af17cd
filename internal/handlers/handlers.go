package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	resp "github.com/Brownie44l1/pneumo-api/internal/lib/api/response"
	"github.com/Brownie44l1/pneumo-api/internal/lib/logger/sl"
	"github.com/Brownie44l1/pneumo-api/internal/model"
	"github.com/Brownie44l1/pneumo-api/internal/validator"
)

const (
	Version    = "1.0.0"
	Disclaimer = "This prediction is for educational/research purposes only. " +
		"Always consult a qualified healthcare professional for medical diagnosis."

	// multipart parts beyond this size are spooled to temporary files
	formMemory = 10 << 20
)

// Options are the request-level settings of the API.
type Options struct {
	MaxContentLength    int64
	AllowedExtensions   []string
	PredictionThreshold float64
	RequireXray         bool
}

type Handler struct {
	log       *slog.Logger
	model     *model.Handle
	screening validator.Thresholds
	opts      Options
}

func NewHandler(log *slog.Logger, modelHandle *model.Handle, screening validator.Thresholds, opts Options) *Handler {
	return &Handler{
		log:       log,
		model:     modelHandle,
		screening: screening,
		opts:      opts,
	}
}

type PredictResponse struct {
	model.Prediction
	Validation validator.Result `json:"validation"`
	Disclaimer string           `json:"disclaimer"`
}

type RejectedResponse struct {
	resp.Response
	Validation validator.Result `json:"validation"`
}

type HealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	ModelPath   string `json:"model_path,omitempty"`
	Error       string `json:"error,omitempty"`
}

type ModelInfoResponse struct {
	ModelType string   `json:"model_type"`
	Framework string   `json:"framework"`
	InputSize [2]int   `json:"input_size"`
	Classes   []string `json:"classes"`
	Accuracy  string   `json:"accuracy"`
	Threshold float64  `json:"threshold"`
}

func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{
		"name":        "PneumoScan API",
		"version":     Version,
		"description": "AI-powered pneumonia detection from chest X-rays",
		"disclaimer":  "For educational and research purposes only. NOT for clinical use.",
		"endpoints": map[string]string{
			"health":     "/health",
			"predict":    "/api/predict (POST)",
			"validate":   "/api/validate (POST)",
			"model_info": "/api/model/info",
		},
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if _, err := h.model.Classifier(); err != nil {
		h.requestLog(r, "handlers.Health").Error("health check failed", sl.Err(err))
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, HealthResponse{Status: "unhealthy", Error: err.Error()})
		return
	}

	render.JSON(w, r, HealthResponse{
		Status:      "healthy",
		ModelLoaded: true,
		ModelPath:   h.model.ModelPath,
	})
}

func (h *Handler) ModelInfo(w http.ResponseWriter, r *http.Request) {
	if _, err := h.model.Classifier(); err != nil {
		h.requestLog(r, "handlers.ModelInfo").Error("error getting model info", sl.Err(err))
		h.writeError(w, r, http.StatusInternalServerError, "Model not loaded", err.Error())
		return
	}

	md := h.model.Metadata
	render.JSON(w, r, ModelInfoResponse{
		ModelType: "CNN (Convolutional Neural Network)",
		Framework: "ONNX Runtime",
		InputSize: [2]int{md.ImageSize, md.ImageSize},
		Classes:   md.Classes,
		Accuracy:  md.Accuracy,
		Threshold: h.opts.PredictionThreshold,
	})
}

func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	log := h.requestLog(r, "handlers.Predict")

	file, filename, done, ok := h.readUpload(w, r, log)
	if !ok {
		return
	}
	defer done()

	classifier, err := h.model.Classifier()
	if err != nil {
		log.Error("model not available", sl.Err(err))
		h.writeError(w, r, http.StatusServiceUnavailable, "Model not loaded",
			"The model is not available. Please try again later.")
		return
	}

	img, format, err := h.screening.Decode(file)
	if err != nil {
		log.Warn("failed to decode upload", slog.String("filename", filename), sl.Err(err))
		h.writeError(w, r, http.StatusBadRequest, "Processing error",
			"Failed to preprocess image: unsupported or corrupt image data")
		return
	}

	log.Info("image decoded",
		slog.String("filename", filename),
		slog.String("format", format),
		slog.Int("width", img.Bounds().Dx()),
		slog.Int("height", img.Bounds().Dy()),
	)

	validation := h.screening.Validate(img)
	if h.opts.RequireXray && !validation.IsLikelyXray {
		log.Info("upload rejected by validation", slog.Int("confidence", validation.Confidence))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, RejectedResponse{
			Response:   resp.Error("Invalid image", validation.Message),
			Validation: validation,
		})
		return
	}

	prediction, err := model.Predict(r.Context(), classifier, img, h.opts.PredictionThreshold)
	if err != nil {
		log.Error("prediction error", sl.Err(err))
		h.writeError(w, r, http.StatusBadRequest, "Processing error",
			"Prediction failed: "+err.Error())
		return
	}

	log.Info("prediction",
		slog.String("label", prediction.Prediction),
		slog.Float64("confidence", prediction.Confidence),
		slog.Float64("raw_score", prediction.RawScore),
	)

	render.JSON(w, r, PredictResponse{
		Prediction: *prediction,
		Validation: validation,
		Disclaimer: Disclaimer,
	})
}

// Validate screens an upload without running the classifier.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	log := h.requestLog(r, "handlers.Validate")

	file, _, done, ok := h.readUpload(w, r, log)
	if !ok {
		return
	}
	defer done()

	render.JSON(w, r, h.screening.ValidateReader(file))
}

func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, r, http.StatusNotFound, "Not found", "The requested endpoint does not exist")
}

func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, r, http.StatusMethodNotAllowed, "Method not allowed",
		fmt.Sprintf("%s is not supported for %s", r.Method, r.URL.Path))
}

// readUpload extracts the "file" part of a multipart request and checks its
// size and extension. On failure it writes the response and returns ok=false.
// done closes the part and removes any temporary files of the form.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request, log *slog.Logger) (file multipart.File, filename string, done func(), ok bool) {
	if r.ContentLength > h.opts.MaxContentLength {
		h.tooLarge(w, r, log)
		return nil, "", nil, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxContentLength)

	if err := r.ParseMultipartForm(formMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.tooLarge(w, r, log)
			return nil, "", nil, false
		}
		log.Warn("no file part in request", sl.Err(err))
		h.writeError(w, r, http.StatusBadRequest, "No file provided", "Please upload an image file")
		return nil, "", nil, false
	}

	cleanup := func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			log.Warn("failed to remove temporary upload files", sl.Err(err))
		}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		cleanup()
		log.Warn("no file part in request", sl.Err(err))
		h.writeError(w, r, http.StatusBadRequest, "No file provided", "Please upload an image file")
		return nil, "", nil, false
	}

	done = func() {
		file.Close()
		cleanup()
	}

	if header.Filename == "" {
		done()
		log.Warn("empty filename")
		h.writeError(w, r, http.StatusBadRequest, "No file selected", "Please select a file to upload")
		return nil, "", nil, false
	}

	if !h.allowedFile(header.Filename) {
		done()
		log.Warn("invalid file type", slog.String("filename", header.Filename))
		h.writeError(w, r, http.StatusBadRequest, "Invalid file type",
			"Allowed types: "+strings.Join(h.opts.AllowedExtensions, ", "))
		return nil, "", nil, false
	}

	log.Info("received file", slog.String("filename", header.Filename), slog.Int64("size", header.Size))
	return file, header.Filename, done, true
}

func (h *Handler) allowedFile(filename string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	return ext != "" && slices.Contains(h.opts.AllowedExtensions, ext)
}

func (h *Handler) tooLarge(w http.ResponseWriter, r *http.Request, log *slog.Logger) {
	log.Warn("upload too large", slog.Int64("content_length", r.ContentLength))
	h.writeError(w, r, http.StatusRequestEntityTooLarge, "File too large",
		fmt.Sprintf("Maximum file size is %.1fMB", float64(h.opts.MaxContentLength)/(1024*1024)))
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, err, message string) {
	render.Status(r, status)
	render.JSON(w, r, resp.Error(err, message))
}

func (h *Handler) requestLog(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}
