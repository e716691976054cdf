package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	authdomain "github.com/velocibid/velocibid/internal/auth/domain"
	"github.com/velocibid/velocibid/internal/orgcontext"
	"github.com/velocibid/velocibid/pkg/log/ctxlogger"
	"go.uber.org/zap"
)

const (
	HeaderOrg            = "X-Org-ID"
	HeaderRequestID      = "X-Request-ID"
	contextUserIDKey     = "user_id"
	contextSessionKey    = "session"
	contextMemberRoleKey = "member_role"
)

// RequestLogging tags every request with an id and emits one access log line.
func RequestLogging() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(HeaderRequestID, requestID)

		ctx := ctxlogger.WithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()

		ctxlogger.FromContext(ctx).Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

// AuthRequired resolves the session cookie and stores the caller's identity
// on the gin context.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := s.sessions.ReadToken(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		sess, err := s.authsvc.Authenticate(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextUserIDKey, sess.UserID.String())
		c.Set(contextSessionKey, sess)
		c.Next()
	}
}

// OrgContext resolves the working organization, verifies the caller is a
// member, and injects the org id into the request context. The session's
// active org wins; the X-Org-ID header is a fallback for fresh sessions.
func (s *Server) OrgContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessionFromContext(c)
		if sess == nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		var orgID int64
		if sess.ActiveOrgID != nil {
			orgID = *sess.ActiveOrgID
		} else if header := strings.TrimSpace(c.GetHeader(HeaderOrg)); header != "" {
			parsed, err := strconv.ParseInt(header, 10, 64)
			if err != nil {
				AbortWithError(c, ErrOrgRequired)
				return
			}
			orgID = parsed
		}
		if orgID == 0 {
			AbortWithError(c, ErrOrgRequired)
			return
		}

		role, err := s.organizationSvc.MemberRole(c.Request.Context(), snowflake.ID(orgID), sess.UserID)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextMemberRoleKey, role)
		c.Request = c.Request.WithContext(orgcontext.WithOrgID(c.Request.Context(), orgID))
		c.Next()
	}
}

// SubscriptionRequired gates the core product behind an active or trialing
// subscription.
func (s *Server) SubscriptionRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID, ok := orgcontext.OrgIDFromContext(c.Request.Context())
		if !ok || orgID == 0 {
			AbortWithError(c, ErrOrgRequired)
			return
		}
		if err := s.billingSvc.Allowed(c.Request.Context(), int64(orgID)); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// GenerateRateLimit throttles draft generation per org.
func (s *Server) GenerateRateLimit() gin.HandlerFunc {
	return s.rateLimit("generate", func(c *gin.Context, orgID string) (bool, error) {
		res, err := s.limiter.AllowGenerate(c.Request.Context(), orgID)
		if err != nil {
			return false, err
		}
		return res.Allowed, nil
	})
}

// IngestRateLimit throttles document uploads per org.
func (s *Server) IngestRateLimit() gin.HandlerFunc {
	return s.rateLimit("ingest", func(c *gin.Context, orgID string) (bool, error) {
		res, err := s.limiter.AllowIngest(c.Request.Context(), orgID)
		if err != nil {
			return false, err
		}
		return res.Allowed, nil
	})
}

func (s *Server) rateLimit(endpoint string, allow func(*gin.Context, string) (bool, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		orgID, ok := orgcontext.OrgIDFromContext(c.Request.Context())
		if !ok || orgID == 0 {
			AbortWithError(c, ErrOrgRequired)
			return
		}

		allowed, err := allow(c, orgID.String())
		if err != nil {
			ctxlogger.FromContext(c.Request.Context()).Warn("rate limit check failed",
				zap.String("endpoint", endpoint),
				zap.Error(err),
			)
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !allowed {
			s.obsMetrics.RecordRateLimitDenied(c.Request.Context(), orgID.String(), endpoint, "org-rate")
			AbortWithError(c, ErrTooManyRequests)
			return
		}
		s.obsMetrics.RecordRateLimitAllowed(c.Request.Context(), orgID.String(), endpoint)
		c.Next()
	}
}

func sessionFromContext(c *gin.Context) *authdomain.Session {
	v, ok := c.Get(contextSessionKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*authdomain.Session)
	return sess
}

func userIDFromContext(c *gin.Context) string {
	return c.GetString(contextUserIDKey)
}
