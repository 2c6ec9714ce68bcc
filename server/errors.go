package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/retrieval"
)

// Kinds reported for request problems outside the core taxonomy.
const (
	KindBadRequest      = "BadRequest"
	KindPayloadTooLarge = "PayloadTooLarge"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// StatusFor maps an error kind to an HTTP status code.
func StatusFor(kind string) int {
	switch kind {
	case core.KindUnsupportedFormat, core.KindInvalidChunkConfig, core.KindEmptyInput, KindBadRequest:
		return http.StatusBadRequest
	case core.KindEmptyDocument, core.KindExtraction:
		return http.StatusUnprocessableEntity
	case core.KindDocumentNotFound:
		return http.StatusNotFound
	case core.KindEmbedding, core.KindAnswerGeneration:
		return http.StatusBadGateway
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(c *gin.Context, err error) {
	kind := core.KindOf(err)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		kind = KindPayloadTooLarge
	}
	status := StatusFor(kind)

	attrs := []any{"path", c.Request.URL.Path, "status", status, "kind", kind, "err", err}
	if stage, ok := retrieval.FailedStage(err); ok {
		attrs = append(attrs, "stage", stage)
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", attrs...)
	} else {
		s.logger.Warn("request rejected", attrs...)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Kind: kind, Message: err.Error()})
}

func (s *Server) badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Kind: KindBadRequest, Message: message})
}
