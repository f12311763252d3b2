package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"docchat/internal/documents"
	"docchat/internal/intent"
	"docchat/internal/metrics"
	"docchat/internal/models"
	"docchat/internal/service/assistant"
)

// Response texts the front end shows verbatim.
const (
	msgEmptyMessage    = "Message is empty."
	msgChatFailed      = "Something went wrong with chat."
	msgNoFilePart      = "No file part."
	msgNoFileSelected  = "No file selected."
	msgInvalidFilename = "Invalid filename."
	msgFileTooLarge    = "File too large."
	msgSaveFailed      = "Failed to save file."
	msgUploaded        = "✅ File uploaded successfully."
	msgMissingAskInput = "Missing filename or question."
	msgFileNotFound    = "File not found on server."
	msgAskFailed       = "Failed to get answer from AI."
	msgInvalidBody     = "invalid request body"
)

type ChatEngine interface {
	Respond(ctx context.Context, message string) (string, error)
	History() []models.ChatTurn
	Reset()
}

type DocumentAnswerer interface {
	Answer(ctx context.Context, filename, question string) (string, error)
}

type DocumentStore interface {
	Put(ctx context.Context, filename string, data []byte) (*models.Document, error)
	Names() []string
}

type WeatherFetcher interface {
	Fetch(ctx context.Context, city string) string
}

// UploadRecorder audits stored documents; optional.
type UploadRecorder interface {
	RecordUpload(ctx context.Context, doc *models.Document, size int) error
}

// Deps groups what the handlers dispatch to.
type Deps struct {
	Chat           ChatEngine
	Documents      DocumentStore
	Answers        DocumentAnswerer
	Weather        WeatherFetcher
	Uploads        UploadRecorder
	MaxUploadBytes int64
	Logger         *zap.Logger
}

// Handler wires HTTP routes to the conversation and document engines.
type Handler struct {
	chat      ChatEngine
	docs      DocumentStore
	answers   DocumentAnswerer
	weather   WeatherFetcher
	uploads   UploadRecorder
	maxUpload int64
	logger    *zap.Logger
}

// NewHandler constructs a Handler instance.
func NewHandler(deps Deps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxUpload := deps.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &Handler{
		chat:      deps.Chat,
		docs:      deps.Documents,
		answers:   deps.Answers,
		weather:   deps.Weather,
		uploads:   deps.Uploads,
		maxUpload: maxUpload,
		logger:    logger,
	}
}

// RegisterRoutes attaches the chat and document routes to the router.
func (h *Handler) RegisterRoutes(router gin.IRoutes) {
	router.POST("/chat", h.chatMessage)
	router.GET("/chat/history", h.chatHistory)
	router.DELETE("/chat/history", h.resetHistory)
	router.POST("/upload", h.uploadFile)
	router.POST("/ask-file", h.askFile)
	router.GET("/documents", h.listDocuments)
}

type chatRequest struct {
	Message string `json:"message"`
}

func (h *Handler) chatMessage(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidBody})
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgEmptyMessage})
		return
	}

	route := intent.Classify(message)
	metrics.ObserveIntent(string(route.Kind))
	if route.Kind == intent.KindWeather {
		c.JSON(http.StatusOK, gin.H{"response": h.weather.Fetch(c.Request.Context(), route.City)})
		return
	}

	reply, err := h.chat.Respond(c.Request.Context(), message)
	if err != nil {
		if errors.Is(err, assistant.ErrEmptyInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": msgEmptyMessage})
			return
		}
		requestLogger(c, h.logger).Error("chat turn failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgChatFailed})
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": reply})
}

func (h *Handler) chatHistory(c *gin.Context) {
	turns := h.chat.History()
	if turns == nil {
		turns = []models.ChatTurn{}
	}
	c.JSON(http.StatusOK, gin.H{"turns": turns})
}

func (h *Handler) resetHistory(c *gin.Context) {
	h.chat.Reset()
	c.Status(http.StatusNoContent)
}

func (h *Handler) uploadFile(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": msgFileTooLarge})
		case errors.Is(err, http.ErrMissingFile) && hasEmptyFileField(c):
			c.JSON(http.StatusBadRequest, gin.H{"error": msgNoFileSelected})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": msgNoFilePart})
		}
		return
	}
	if file.Filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgNoFileSelected})
		return
	}
	if !documents.ValidName(file.Filename) {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidFilename})
		return
	}

	f, err := file.Open()
	if err != nil {
		requestLogger(c, h.logger).Error("open uploaded file failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgSaveFailed})
		return
	}
	data, err := io.ReadAll(f)
	_ = f.Close()
	if err != nil {
		requestLogger(c, h.logger).Error("read uploaded file failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgSaveFailed})
		return
	}

	doc, err := h.docs.Put(c.Request.Context(), file.Filename, data)
	if err != nil {
		if errors.Is(err, documents.ErrInvalidName) {
			c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidFilename})
			return
		}
		requestLogger(c, h.logger).Error("store uploaded file failed", zap.String("filename", file.Filename), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgSaveFailed})
		return
	}
	if h.uploads != nil {
		if err := h.uploads.RecordUpload(c.Request.Context(), doc, len(data)); err != nil {
			requestLogger(c, h.logger).Warn("record upload failed", zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"response": msgUploaded,
		"filename": doc.Filename,
	})
}

// hasEmptyFileField reports a "file" field sent without a file name, which
// multipart parsing files under plain values.
func hasEmptyFileField(c *gin.Context) bool {
	form := c.Request.MultipartForm
	if form == nil {
		return false
	}
	_, ok := form.Value["file"]
	return ok
}

type askRequest struct {
	Filename string `json:"filename"`
	Question string `json:"question"`
}

func (h *Handler) askFile(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidBody})
		return
	}
	answer, err := h.answers.Answer(c.Request.Context(), req.Filename, req.Question)
	if err != nil {
		switch {
		case errors.Is(err, assistant.ErrMissingInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingAskInput})
		case errors.Is(err, documents.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": msgFileNotFound})
		default:
			requestLogger(c, h.logger).Error("document question failed", zap.String("filename", req.Filename), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": msgAskFailed})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": answer})
}

func (h *Handler) listDocuments(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"documents": h.docs.Names()})
}
