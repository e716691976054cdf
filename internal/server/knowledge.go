package server

import (
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	knowledgedomain "github.com/velocibid/velocibid/internal/knowledge/domain"
)

// maxUploadBytes caps document uploads. RFPs and knowledge documents are
// text-heavy, not media, so 20 MiB is generous.
const maxUploadBytes = 20 << 20

func (s *Server) UploadKnowledgeDocument(c *gin.Context) {
	filename, contentType, data, err := readUpload(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.knowledgeSvc.Ingest(c.Request.Context(), knowledgedomain.IngestRequest{
		Filename:    filename,
		ContentType: contentType,
		Data:        data,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (s *Server) ListKnowledgeDocuments(c *gin.Context) {
	docs, err := s.knowledgeSvc.ListDocuments(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

func (s *Server) DeleteKnowledgeDocument(c *gin.Context) {
	if err := s.knowledgeSvc.DeleteDocument(c.Request.Context(), c.Param("filename")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// readUpload pulls the "file" part out of a multipart form, enforcing the
// size cap while reading.
func readUpload(c *gin.Context) (string, string, []byte, error) {
	header, err := c.FormFile("file")
	if err != nil {
		return "", "", nil, ErrInvalidRequest
	}
	if header.Size > maxUploadBytes {
		return "", "", nil, ErrInvalidRequest
	}

	file, err := header.Open()
	if err != nil {
		return "", "", nil, ErrInvalidRequest
	}
	defer file.Close()

	data, err := readCapped(file)
	if err != nil {
		return "", "", nil, err
	}

	return filepath.Base(header.Filename), header.Header.Get("Content-Type"), data, nil
}

func readCapped(file multipart.File) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		return nil, ErrInvalidRequest
	}
	if len(data) > maxUploadBytes {
		return nil, ErrInvalidRequest
	}
	return data, nil
}
