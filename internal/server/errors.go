package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apikeydomain "github.com/velocibid/velocibid/internal/apikey/domain"
	answerdomain "github.com/velocibid/velocibid/internal/answer/domain"
	authdomain "github.com/velocibid/velocibid/internal/auth/domain"
	billingdomain "github.com/velocibid/velocibid/internal/billing/domain"
	"github.com/velocibid/velocibid/internal/extractor"
	knowledgedomain "github.com/velocibid/velocibid/internal/knowledge/domain"
	organizationdomain "github.com/velocibid/velocibid/internal/organization/domain"
	projectdomain "github.com/velocibid/velocibid/internal/project/domain"
	signupdomain "github.com/velocibid/velocibid/internal/signup/domain"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrOrgRequired        = errors.New("organization_required")
	ErrTooManyRequests    = errors.New("too_many_requests")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrInvalidCredentials),
		errors.Is(err, authdomain.ErrInvalidSession),
		errors.Is(err, authdomain.ErrSessionExpired),
		errors.Is(err, authdomain.ErrSessionRevoked),
		errors.Is(err, authdomain.ErrSessionNotFound):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, ErrOrgRequired),
		errors.Is(err, organizationdomain.ErrForbidden),
		errors.Is(err, apikeydomain.ErrInvalidOrganization),
		errors.Is(err, knowledgedomain.ErrInvalidOrganization),
		errors.Is(err, projectdomain.ErrInvalidOrganization):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, billingdomain.ErrSubscriptionInactive):
		return http.StatusPaymentRequired, errorPayload{
			Type:    "subscription_inactive",
			Message: "an active subscription is required",
		}
	case errors.Is(err, authdomain.ErrUserExists):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case errors.Is(err, apikeydomain.ErrMissingCredential):
		return http.StatusPreconditionFailed, errorPayload{
			Type:    "missing_credential",
			Message: "connect a provider API key first",
		}
	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "too_many_requests",
			Message: "rate limit exceeded",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, signupdomain.ErrInvalidRequest),
		errors.Is(err, organizationdomain.ErrInvalidName),
		errors.Is(err, organizationdomain.ErrInvalidEmail),
		errors.Is(err, organizationdomain.ErrInvalidRole),
		errors.Is(err, organizationdomain.ErrInvalidStatus),
		errors.Is(err, apikeydomain.ErrInvalidProvider),
		errors.Is(err, apikeydomain.ErrInvalidKeyFormat),
		errors.Is(err, knowledgedomain.ErrInvalidFilename),
		errors.Is(err, knowledgedomain.ErrNoUsableContent),
		errors.Is(err, knowledgedomain.ErrDimensionMismatch),
		errors.Is(err, projectdomain.ErrInvalidName),
		errors.Is(err, projectdomain.ErrEmptyDocument),
		errors.Is(err, projectdomain.ErrEmptyDraft),
		errors.Is(err, projectdomain.ErrProjectNotReady),
		errors.Is(err, answerdomain.ErrEmptyQuestion),
		errors.Is(err, extractor.ErrUnparsableDocument):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, organizationdomain.ErrInviteNotFound),
		errors.Is(err, knowledgedomain.ErrDocumentNotFound),
		errors.Is(err, projectdomain.ErrProjectNotFound),
		errors.Is(err, projectdomain.ErrQuestionNotFound),
		errors.Is(err, authdomain.ErrUserNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}
