package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	projectdomain "github.com/velocibid/velocibid/internal/project/domain"
)

func (s *Server) CreateProject(c *gin.Context) {
	userID, err := callerID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	filename, contentType, data, err := readUpload(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	project, err := s.projectSvc.CreateFromUpload(c.Request.Context(), projectdomain.CreateRequest{
		RFPName:     c.PostForm("rfp_name"),
		Filename:    filename,
		ContentType: contentType,
		UserID:      userID,
		Data:        data,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, project)
}

func (s *Server) ListProjects(c *gin.Context) {
	projects, err := s.projectSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

func (s *Server) GetProject(c *gin.Context) {
	project, err := s.projectSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (s *Server) DeleteProject(c *gin.Context) {
	if err := s.projectSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) ListProjectQuestions(c *gin.Context) {
	questions, err := s.projectSvc.ListQuestions(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": questions})
}

type updateDraftRequest struct {
	DraftAnswer string `json:"draft_answer"`
}

func (s *Server) UpdateQuestionDraft(c *gin.Context) {
	var req updateDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	question, err := s.projectSvc.UpdateDraft(c.Request.Context(), c.Param("id"), req.DraftAnswer)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, question)
}

func (s *Server) GenerateAnswer(c *gin.Context) {
	question, err := s.answerSvc.Generate(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, question)
}

func (s *Server) ExportProject(c *gin.Context) {
	out, err := s.exportSvc.ExportProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	data, err := io.ReadAll(out.Body)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+out.Filename+`"`)
	c.Data(http.StatusOK, out.ContentType, data)
}
