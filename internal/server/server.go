// Package server exposes the HTTP API and wires every domain module
// together through fx.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/velocibid/velocibid/internal/answer"
	answerdomain "github.com/velocibid/velocibid/internal/answer/domain"
	"github.com/velocibid/velocibid/internal/apikey"
	apikeydomain "github.com/velocibid/velocibid/internal/apikey/domain"
	"github.com/velocibid/velocibid/internal/auth"
	authdomain "github.com/velocibid/velocibid/internal/auth/domain"
	"github.com/velocibid/velocibid/internal/auth/session"
	"github.com/velocibid/velocibid/internal/billing"
	billingdomain "github.com/velocibid/velocibid/internal/billing/domain"
	"github.com/velocibid/velocibid/internal/config"
	"github.com/velocibid/velocibid/internal/export"
	"github.com/velocibid/velocibid/internal/extractor"
	"github.com/velocibid/velocibid/internal/knowledge"
	knowledgedomain "github.com/velocibid/velocibid/internal/knowledge/domain"
	"github.com/velocibid/velocibid/internal/llm"
	"github.com/velocibid/velocibid/internal/observability"
	obsmetrics "github.com/velocibid/velocibid/internal/observability/metrics"
	"github.com/velocibid/velocibid/internal/organization"
	organizationdomain "github.com/velocibid/velocibid/internal/organization/domain"
	"github.com/velocibid/velocibid/internal/project"
	projectdomain "github.com/velocibid/velocibid/internal/project/domain"
	"github.com/velocibid/velocibid/internal/ratelimit"
	"github.com/velocibid/velocibid/internal/signup"
	signupdomain "github.com/velocibid/velocibid/internal/signup/domain"
	"github.com/velocibid/velocibid/internal/vault"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	config.Module,
	observability.Module,
	fx.Provide(registerGin),
	auth.Module,
	signup.Module,
	organization.Module,
	billing.Module,
	vault.Module,
	apikey.Module,
	extractor.Module,
	llm.Module,
	knowledge.Module,
	project.Module,
	answer.Module,
	export.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogging())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	db              *gorm.DB
	genID           *snowflake.Node
	sessions        *session.Manager
	authsvc         authdomain.Service
	signupsvc       signupdomain.Service
	organizationSvc organizationdomain.Service
	billingSvc      billingdomain.Service
	apiKeySvc       apikeydomain.Service
	knowledgeSvc    knowledgedomain.Service
	projectSvc      projectdomain.Service
	answerSvc       answerdomain.Service
	exportSvc       export.Service
	limiter         *ratelimit.Limiter
	obsMetrics      *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	DB              *gorm.DB
	GenID           *snowflake.Node
	Sessions        *session.Manager
	Authsvc         authdomain.Service
	Signupsvc       signupdomain.Service
	OrganizationSvc organizationdomain.Service
	BillingSvc      billingdomain.Service
	APIKeySvc       apikeydomain.Service
	KnowledgeSvc    knowledgedomain.Service
	ProjectSvc      projectdomain.Service
	AnswerSvc       answerdomain.Service
	ExportSvc       export.Service
	Limiter         *ratelimit.Limiter   `optional:"true"`
	ObsMetrics      *obsmetrics.Metrics  `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		db:              p.DB,
		genID:           p.GenID,
		sessions:        p.Sessions,
		authsvc:         p.Authsvc,
		signupsvc:       p.Signupsvc,
		organizationSvc: p.OrganizationSvc,
		billingSvc:      p.BillingSvc,
		apiKeySvc:       p.APIKeySvc,
		knowledgeSvc:    p.KnowledgeSvc,
		projectSvc:      p.ProjectSvc,
		answerSvc:       p.AnswerSvc,
		exportSvc:       p.ExportSvc,
		limiter:         p.Limiter,
		obsMetrics:      p.ObsMetrics,
	}

	svc.registerAuthRoutes()
	svc.registerAPIRoutes()
	svc.registerWebhookRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth")

	auth.POST("/signup", s.Signup)
	auth.POST("/login", s.Login)
	auth.POST("/logout", s.Logout)
	auth.GET("/me", s.AuthRequired(), s.Me)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1", s.AuthRequired())

	api.GET("/organizations", s.ListOrganizations)
	api.POST("/organizations", s.CreateOrganization)
	api.POST("/organizations/:id/invites", s.InviteMembers)
	api.POST("/invites/accept", s.AcceptInvite)
	api.POST("/session/org", s.SwitchOrg)

	org := api.Group("", s.OrgContext())

	org.POST("/api-keys", s.ConnectAPIKey)
	org.GET("/api-keys", s.ListAPIKeys)
	org.DELETE("/api-keys/:provider", s.RevokeAPIKey)

	gated := org.Group("", s.SubscriptionRequired())

	gated.POST("/knowledge/documents", s.IngestRateLimit(), s.UploadKnowledgeDocument)
	gated.GET("/knowledge/documents", s.ListKnowledgeDocuments)
	gated.DELETE("/knowledge/documents/:filename", s.DeleteKnowledgeDocument)

	gated.POST("/projects", s.IngestRateLimit(), s.CreateProject)
	gated.GET("/projects", s.ListProjects)
	gated.GET("/projects/:id", s.GetProject)
	gated.DELETE("/projects/:id", s.DeleteProject)
	gated.GET("/projects/:id/questions", s.ListProjectQuestions)
	gated.GET("/projects/:id/export", s.ExportProject)

	gated.POST("/questions/:id/generate", s.GenerateRateLimit(), s.GenerateAnswer)
	gated.PUT("/questions/:id", s.UpdateQuestionDraft)
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/webhooks/stripe", s.StripeWebhook)
}
