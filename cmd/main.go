package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cloud-wave-best-zizon/billing-desk/internal/backend"
	"github.com/cloud-wave-best-zizon/billing-desk/internal/catalog"
	"github.com/cloud-wave-best-zizon/billing-desk/internal/contacts"
	"github.com/cloud-wave-best-zizon/billing-desk/internal/events"
	"github.com/cloud-wave-best-zizon/billing-desk/internal/handler"
	"github.com/cloud-wave-best-zizon/billing-desk/internal/history"
	"github.com/cloud-wave-best-zizon/billing-desk/internal/receipt"
	"github.com/cloud-wave-best-zizon/billing-desk/internal/repository"
	"github.com/cloud-wave-best-zizon/billing-desk/internal/workspace"
	"github.com/cloud-wave-best-zizon/billing-desk/pkg/config"
	"github.com/cloud-wave-best-zizon/billing-desk/pkg/middleware"
	pkgtls "github.com/cloud-wave-best-zizon/billing-desk/pkg/tls"
)

func main() {
	// Config 로드
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	// Logger 초기화
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("Failed to create logger:", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 백엔드 mTLS (SPIRE)
	tlsConfig, err := pkgtls.LoadClientTLSConfig(ctx, &cfg.TLS, logger)
	if err != nil {
		logger.Fatal("Failed to load TLS config", zap.Error(err))
	}
	defer pkgtls.Cleanup()
	if tlsConfig != nil {
		go pkgtls.WatchCertificates(ctx, time.Minute, logger)
	}

	client := backend.NewClient(cfg.BackendURL, cfg.BackendTimeout, tlsConfig, logger)

	products := catalog.New(client, logger)
	if err := products.Refresh(ctx); err != nil {
		logger.Warn("Starting without products", zap.Error(err))
	}
	directory := contacts.NewDirectory(client, logger)
	if err := directory.Refresh(ctx); err != nil {
		logger.Warn("Starting without contacts", zap.Error(err))
	}

	// UI 상태 저장소: 로컬 파일 또는 DynamoDB
	var store repository.StateStore
	if cfg.LocalMode {
		store = repository.NewFileStore(cfg.StateFile)
		logger.Info("Using local state file", zap.String("path", cfg.StateFile))
	} else {
		dynamoClient, err := repository.NewDynamoDBClient(ctx, cfg)
		if err != nil {
			logger.Fatal("Failed to create DynamoDB client", zap.Error(err))
		}
		store = repository.NewDynamoStore(dynamoClient, cfg.StateTableName)
		logger.Info("Using DynamoDB state table", zap.String("table", cfg.StateTableName))
	}

	var publisher events.Publisher = events.NopPublisher{Logger: logger}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		logger.Info("Publishing bill events", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}
	defer publisher.Close()

	spooler := receipt.NewSpooler(receipt.DirOpener{
		Dir:     cfg.Receipt.SpoolDir,
		Command: cfg.Receipt.PrintCommand,
		Logger:  logger,
	}, cfg.Receipt.FallbackDelay, logger)
	printer := receipt.NewPrinter(receipt.Header{
		ShopName: cfg.Receipt.ShopName,
		Title:    cfg.Receipt.Title,
		Phone:    cfg.Receipt.Phone,
		Footer:   cfg.Receipt.Footer,
	}, cfg.Receipt.ItemsPerPage, spooler)

	session := workspace.NewSession(workspace.Deps{
		Store:     store,
		Catalog:   products,
		Contacts:  directory,
		Bills:     client,
		Printer:   printer,
		Publisher: publisher,
	}, workspace.Options{
		BillPrefix:        cfg.BillPrefix,
		KeepAliveInterval: cfg.KeepAliveInterval,
	}, logger)
	session.Restore(ctx)
	if err := session.Start(ctx); err != nil {
		logger.Fatal("Failed to start session", zap.Error(err))
	}
	defer session.Stop()

	workspaceHandler := handler.NewWorkspaceHandler(session, printer, logger)
	catalogHandler := handler.NewCatalogHandler(products, directory, logger)
	historyHandler := handler.NewHistoryHandler(history.New(client, printer, logger), session, logger)

	// Gin Router 설정
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	// Routes
	v1 := router.Group("/api/v1")
	{
		workspaceHandler.Register(v1)
		catalogHandler.Register(v1)
		historyHandler.Register(v1)
		v1.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status":         "healthy",
				"productsLoaded": products.Loaded(),
			})
		})
	}

	// Server 시작
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	logger.Info("Server exited")
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		cfg.Level = lvl
	}
	return cfg.Build()
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}
