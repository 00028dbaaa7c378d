package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/clnpth/newsroom/internal/config"
	"github.com/clnpth/newsroom/internal/service"
	"github.com/clnpth/newsroom/internal/service/engine"
	"github.com/clnpth/newsroom/internal/service/imagegen"
	"github.com/clnpth/newsroom/internal/service/llm"
	"github.com/clnpth/newsroom/internal/service/publisher"
	"github.com/clnpth/newsroom/internal/service/translate"
)

type Server struct {
	Config *config.Config
	DB     *gorm.DB
	Router *gin.Engine
	Logger *zap.Logger
	Server *http.Server

	// Services
	Broadcaster  *service.Broadcaster
	Tasks        *service.TaskRunner
	Lifecycle    *service.Lifecycle
	Watchdog     *service.Watchdog
	Translations *service.Translations
	Images       *service.Images
	Supervisor   *service.Supervisor
	Learning     *service.Learning
	Social       *service.Social
	Publish      *service.Publish
	RSS          *service.RSS
	Auth         *service.Auth
}

func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	// Set gin mode
	gin.SetMode(cfg.Server.Mode)

	// Initialize database
	db, err := service.NewDatabase(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// External clients
	engineClient := engine.NewClient(&cfg.Engine, logger)
	deeplClient := translate.NewClient(&cfg.Translation, logger)
	llmClient := llm.NewClient(&cfg.LLM, logger)
	wordpress := publisher.NewWordPress(&cfg.Publisher, logger)
	backends := []imagegen.Backend{
		imagegen.NewComfyUI(&cfg.Image.Local, logger),
		imagegen.NewRunPod(&cfg.Image.Cloud, logger),
	}

	// Core services
	broadcaster := service.NewBroadcaster(logger)
	tasks := service.NewTaskRunner(logger)
	learning := service.NewLearning(db, logger)
	supervisor := service.NewSupervisor(db, llmClient, learning, broadcaster, logger)
	translations := service.NewTranslations(db, deeplClient, llmClient, broadcaster,
		cfg.Translation.SourceLanguage, logger)
	images := service.NewImages(db, backends, cfg.Image.StoragePath, broadcaster, logger)
	lifecycle := service.NewLifecycle(db, cfg, broadcaster, tasks, engineClient,
		llmClient, translations, images, supervisor, learning, logger)
	watchdog := service.NewWatchdog(db, &cfg.Queue, engineClient, broadcaster, logger)
	social := service.NewSocial(db, llmClient, logger)
	publish := service.NewPublish(db, wordpress, broadcaster, cfg.Image.StoragePath, logger)
	rss := service.NewRSS(lifecycle, logger)
	auth := service.NewAuth(cfg.Auth.Enabled, cfg.Auth.TOTPSecret, logger)

	// Create router
	router := gin.New()

	srv := &Server{
		Config:       cfg,
		DB:           db,
		Router:       router,
		Logger:       logger,
		Broadcaster:  broadcaster,
		Tasks:        tasks,
		Lifecycle:    lifecycle,
		Watchdog:     watchdog,
		Translations: translations,
		Images:       images,
		Supervisor:   supervisor,
		Learning:     learning,
		Social:       social,
		Publish:      publish,
		RSS:          rss,
		Auth:         auth,
	}

	srv.setupMiddleware()
	srv.setupRoutes()

	return srv, nil
}

func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.Router.Use(gin.Recovery())

	// Logger middleware
	s.Router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	// CORS middleware
	s.Router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Webhook-Token")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})
}

func (s *Server) setupRoutes() {
	// Health check
	s.Router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
		})
	})

	// Generated images
	s.Router.Static("/static/images", s.Config.Image.StoragePath)

	// Engine callback; authenticated by shared secret, not session
	s.Router.POST("/api/webhook/engine", s.handleEngineCallback)

	// Auth endpoints stay outside the session middleware
	s.Router.POST("/api/v1/auth/login", s.handleLogin)
	s.Router.POST("/api/v1/auth/logout", s.handleLogout)

	api := s.Router.Group("/api/v1")
	api.Use(s.sessionMiddleware())
	{
		articles := api.Group("/articles")
		{
			articles.POST("", s.handleCreateArticle)
			articles.GET("", s.handleListArticles)
			articles.GET("/stats", s.handleArticleStats)
			articles.GET("/:id", s.handleGetArticle)
			articles.GET("/:id/related", s.handleRelatedArticles)
			articles.POST("/:id/approve", s.handleApproveArticle)
			articles.POST("/:id/revise", s.handleReviseArticle)
			articles.POST("/:id/cancel", s.handleCancelArticle)
			articles.POST("/:id/retry", s.handleRetryArticle)
			articles.POST("/:id/pause", s.handlePauseArticle)
			articles.POST("/:id/resume", s.handleResumeArticle)
		}

		translations := api.Group("/articles/:id/translations")
		{
			translations.GET("", s.handleListTranslations)
			translations.POST("", s.handleRunTranslations)
			translations.GET("/:lang", s.handleGetTranslation)
			translations.PUT("/:lang", s.handleEditTranslation)
			translations.POST("/:lang/approve", s.handleApproveTranslation)
		}

		images := api.Group("/images")
		{
			images.GET("/backends", s.handleImageBackends)
			images.POST("/:id/generate", s.handleGenerateImage)
		}

		supervisor := api.Group("/supervisor")
		{
			supervisor.POST("/:id/evaluate", s.handleEvaluateArticle)
			supervisor.GET("/:id/decisions", s.handleDecisionHistory)
			supervisor.GET("/profile", s.handleGetProfile)
			supervisor.PUT("/profile", s.handleUpsertTrait)
			supervisor.DELETE("/profile/:trait", s.handleDeleteTrait)
			supervisor.GET("/topics", s.handleTopicRankings)
			supervisor.GET("/deviations", s.handleDeviations)
			supervisor.GET("/decisions", s.handleRecentDecisions)
		}

		if s.Config.Features.Publish {
			publish := api.Group("/publish")
			{
				publish.GET("/status", s.handlePublishStatus)
				publish.POST("/:id", s.handlePublishArticle)
			}
		}

		if s.Config.Features.Social {
			social := api.Group("/social")
			{
				social.POST("/:id/generate", s.handleGenerateSnippets)
				social.GET("/:id", s.handleListSnippets)
			}
		}

		if s.Config.Features.RSS {
			rss := api.Group("/rss")
			{
				rss.GET("/preview", s.handlePreviewFeed)
				rss.POST("/ingest", s.handleIngestFeed)
			}
		}

		api.GET("/events", s.handleEvents)
	}
}

func (s *Server) Start(ctx context.Context) error {
	if !s.Config.Queue.Disabled {
		s.Watchdog.Start(ctx)
	}

	addr := fmt.Sprintf("%s:%d", s.Config.Server.Host, s.Config.Server.Port)

	s.Server = &http.Server{
		Addr:    addr,
		Handler: s.Router,
	}

	s.Logger.Info("Starting HTTP server", zap.String("addr", addr))

	if s.Config.Server.CertFile != "" && s.Config.Server.KeyFile != "" {
		return s.Server.ListenAndServeTLS(s.Config.Server.CertFile, s.Config.Server.KeyFile)
	}

	return s.Server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	// Stop background work first so nothing races the closing DB
	if !s.Config.Queue.Disabled {
		s.Watchdog.Stop()
	}
	s.Tasks.Shutdown()

	if s.Server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return s.Server.Shutdown(shutdownCtx)
}
