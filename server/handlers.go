package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// WelcomeMessage is returned by GET /.
const WelcomeMessage = "Welcome to the Document Q&A API. Upload a PDF or TXT file and ask questions about it."

// UploadResponse describes a freshly ingested document.
type UploadResponse struct {
	DocumentID    string `json:"document_id"`
	Filename      string `json:"filename"`
	Status        string `json:"status"`
	ChunksCreated int    `json:"chunks_created"`
	UploadedAt    string `json:"uploaded_at"`
}

// DocumentSummary is one entry of GET /api/documents.
type DocumentSummary struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	UploadedAt string `json:"uploaded_at"`
	ChunkCount int    `json:"chunk_count"`
}

// DeleteResponse confirms a deletion.
type DeleteResponse struct {
	Status     string `json:"status"`
	DocumentID string `json:"document_id"`
}

// QueryRequest is the body of POST /api/documents/query.
type QueryRequest struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	TopK     *int   `json:"top_k,omitempty"`
}

// SourceResponse is a retrieved chunk and its distance from the question.
type SourceResponse struct {
	ChunkText      string  `json:"chunk_text"`
	RelevanceScore float32 `json:"relevance_score"`
}

// QueryResponse is the answer to a question.
type QueryResponse struct {
	DocumentID            string           `json:"document_id"`
	Question              string           `json:"question"`
	Answer                string           `json:"answer"`
	Sources               []SourceResponse `json:"sources"`
	ProcessingTimeSeconds float64          `json:"processing_time_seconds"`
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": WelcomeMessage})
}

func (s *Server) handleUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUploadBytes)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(c, err)
			return
		}
		s.badRequest(c, "multipart field \"file\" is required")
		return
	}
	f, err := header.Open()
	if err != nil {
		s.writeError(c, err)
		return
	}
	defer f.Close()

	doc, err := s.svc.Upload(c.Request.Context(), header.Filename, f)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, UploadResponse{
		DocumentID:    doc.ID,
		Filename:      doc.Filename,
		Status:        "processed",
		ChunksCreated: doc.ChunkCount,
		UploadedAt:    formatTime(doc.CreatedAt),
	})
}

func (s *Server) handleList(c *gin.Context) {
	docs, err := s.svc.Documents(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	out := make([]DocumentSummary, 0, len(docs))
	for _, doc := range docs {
		out = append(out, DocumentSummary{
			DocumentID: doc.ID,
			Filename:   doc.Filename,
			UploadedAt: formatTime(doc.CreatedAt),
			ChunkCount: doc.ChunkCount,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleDelete(c *gin.Context) {
	id := c.Param("id")
	if err := s.svc.Delete(c.Request.Context(), id); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, DeleteResponse{Status: "deleted", DocumentID: id})
}

func (s *Server) handleQuery(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.ID == "" {
		s.badRequest(c, "id is required")
		return
	}
	topK := 0
	if req.TopK != nil {
		if *req.TopK < 1 {
			s.badRequest(c, "top_k must be positive")
			return
		}
		topK = *req.TopK
	}

	answer, err := s.svc.Ask(c.Request.Context(), req.ID, req.Question, topK)
	if err != nil {
		s.writeError(c, err)
		return
	}

	sources := make([]SourceResponse, 0, len(answer.Sources))
	for _, src := range answer.Sources {
		sources = append(sources, SourceResponse{ChunkText: src.ChunkText, RelevanceScore: src.Score})
	}
	c.JSON(http.StatusOK, QueryResponse{
		DocumentID:            answer.DocumentID,
		Question:              answer.Question,
		Answer:                answer.Text,
		Sources:               sources,
		ProcessingTimeSeconds: answer.Elapsed.Seconds(),
	})
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
