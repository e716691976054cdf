package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	organizationdomain "github.com/velocibid/velocibid/internal/organization/domain"
)

type CreateOrganizationRequest struct {
	Name string `json:"name"`
}

type InviteMembersRequest struct {
	Invites []struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	} `json:"invites"`
}

type AcceptInviteRequest struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

type SwitchOrgRequest struct {
	OrgID string `json:"org_id"`
}

func (s *Server) ListOrganizations(c *gin.Context) {
	userID, err := callerID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	orgs, err := s.organizationSvc.ListOrganizationsByUser(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"organizations": orgs})
}

func (s *Server) CreateOrganization(c *gin.Context) {
	userID, err := callerID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req CreateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	org, err := s.organizationSvc.Create(c.Request.Context(), userID, organizationdomain.CreateOrganizationRequest{
		Name: req.Name,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, org)
}

func (s *Server) InviteMembers(c *gin.Context) {
	userID, err := callerID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req InviteMembersRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Invites) == 0 {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	invites := make([]organizationdomain.InviteRequest, 0, len(req.Invites))
	for _, inv := range req.Invites {
		invites = append(invites, organizationdomain.InviteRequest{
			Email: inv.Email,
			Role:  inv.Role,
		})
	}

	created, err := s.organizationSvc.InviteMembers(c.Request.Context(), userID, c.Param("id"), invites)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"invites": created})
}

func (s *Server) AcceptInvite(c *gin.Context) {
	userID, err := callerID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req AcceptInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.organizationSvc.AcceptInvite(c.Request.Context(), userID, req.Email, req.Token); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

// SwitchOrg pins a different organization on the caller's session. The org
// must be one the caller belongs to.
func (s *Server) SwitchOrg(c *gin.Context) {
	sess := sessionFromContext(c)
	if sess == nil {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req SwitchOrgRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	orgID, err := strconv.ParseInt(strings.TrimSpace(req.OrgID), 10, 64)
	if err != nil || orgID == 0 {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if _, err := s.organizationSvc.MemberRole(c.Request.Context(), snowflake.ID(orgID), sess.UserID); err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.authsvc.SetActiveOrg(c.Request.Context(), sess.ID, orgID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"active_org_id": snowflake.ID(orgID).String()})
}

func callerID(c *gin.Context) (snowflake.ID, error) {
	raw := userIDFromContext(c)
	if raw == "" {
		return 0, ErrUnauthorized
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, ErrUnauthorized
	}
	return id, nil
}
