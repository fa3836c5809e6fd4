package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appConfig "github.com/iamCapel/mopc-reportes/internal/config"
	"github.com/iamCapel/mopc-reportes/internal/formsession"
	"github.com/iamCapel/mopc-reportes/internal/geo"
	"github.com/iamCapel/mopc-reportes/internal/handlers"
	"github.com/iamCapel/mopc-reportes/internal/logging"
	"github.com/iamCapel/mopc-reportes/internal/metrics"
	"github.com/iamCapel/mopc-reportes/internal/middleware"
	"github.com/iamCapel/mopc-reportes/internal/repository"
	"github.com/iamCapel/mopc-reportes/internal/services"
	"github.com/iamCapel/mopc-reportes/internal/store"
)

const version = "1.0.0"

func main() {
	cfg, err := appConfig.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error cargando configuración: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error iniciando logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	zap.S().Infof("iniciando mopc-reportes %s (backend=%s)", version, cfg.StoreBackend)

	// 1. Almacén remoto
	backend, err := initBackend(context.Background(), cfg)
	if err != nil {
		zap.S().Fatalf("error iniciando el almacén %s: %v", cfg.StoreBackend, err)
	}
	zap.S().Infof("almacén %s listo", cfg.StoreBackend)

	// 2. Tablas geográficas
	lookup := geo.Default()
	if cfg.GeoTablePath != "" {
		if lookup, err = geo.LoadTable(cfg.GeoTablePath); err != nil {
			zap.S().Fatalf("error cargando tabla geográfica %s: %v", cfg.GeoTablePath, err)
		}
	}

	// 3. Notificaciones
	var (
		notifier services.Notifier = services.LogNotifier{}
		kafka    *services.KafkaNotifier
	)
	if cfg.KafkaEnabled {
		kafka = services.NewKafkaNotifier(cfg.KafkaBootstrapServers, cfg.KafkaNotificationsTopic)
		if err := kafka.Ping(context.Background()); err != nil {
			zap.S().Warnf("conexión a Kafka fallida, las notificaciones se reintentarán al publicar: %v", err)
		} else {
			zap.S().Info("conectado a Kafka")
		}
		notifier = kafka
	}

	// 4. Repositorio y controladores
	repo := repository.New(backend, lookup, cfg.LocalCacheTTL)
	auth := services.NewLocalAuthProvider(repo.Accounts(), cfg.AuthSessionTTL)
	userService := services.NewUserService(repo, auth, notifier)
	reportService := services.NewReportService(repo, notifier)
	sessions := formsession.NewManager(reportService, cfg.AutosaveDelay, cfg.FormSessionTTL)

	if cfg.BootstrapAdminUsername != "" {
		if err := userService.EnsureAdmin(context.Background(), cfg.BootstrapAdminUsername, cfg.BootstrapAdminPassword, cfg.BootstrapAdminEmail); err != nil {
			zap.S().Fatalf("error creando el administrador inicial: %v", err)
		}
	}

	dependencies := map[string]handlers.Pinger{"store": repo}
	if kafka != nil {
		dependencies["kafka"] = kafka
	}

	router := setupRoutes(cfg, routeDeps{
		health:   handlers.NewHealthHandler(version, dependencies),
		users:    handlers.NewUserHandler(userService),
		reports:  handlers.NewReportHandler(reportService),
		sessions: handlers.NewSessionHandler(sessions),
		geo:      handlers.NewGeoHandler(lookup),
		auth:     userService,
	})

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Tareas de mantenimiento en segundo plano
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		runMaintenance(ctx, cfg, reportService, repo)
	}()

	go func() {
		zap.S().Infof("servidor escuchando en el puerto %s", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.S().Fatalf("error del servidor: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zap.S().Info("deteniendo el servidor...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zap.S().Errorf("error deteniendo el servidor: %v", err)
	}

	wg.Wait()

	// Los formularios abiertos se guardan antes de cerrar el almacén.
	sessions.Shutdown(shutdownCtx)

	if kafka != nil {
		if err := kafka.Close(); err != nil {
			zap.S().Warn(err)
		}
	}
	if err := backend.Close(shutdownCtx); err != nil {
		zap.S().Warnf("error cerrando el almacén: %v", err)
	}

	zap.S().Info("servidor detenido")
}

// runMaintenance sweeps stale drafts and settled staged records until ctx is
// cancelled.
func runMaintenance(ctx context.Context, cfg *appConfig.Config, reports *services.ReportService, repo *repository.Repository) {
	ticker := time.NewTicker(cfg.DraftCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed, err := reports.RunDraftCleanup(ctx, cfg.DraftRetentionDays); err != nil {
				zap.S().Warnf("limpieza de borradores fallida: %v", err)
			} else if removed > 0 {
				zap.S().Infof("limpieza: %d borradores eliminados", removed)
			}

			purged, err := repo.PurgeStaged(ctx)
			if err != nil {
				zap.S().Warnf("depuración del área local fallida: %v", err)
				continue
			}
			zap.S().Debugf("área local: %d registros confirmados depurados, %d pendientes", purged, repo.StagedCount())
		}
	}
}

// initBackend selects and connects the remote store.
func initBackend(ctx context.Context, cfg *appConfig.Config) (store.Backend, error) {
	switch cfg.StoreBackend {
	case appConfig.BackendDynamoDB:
		client, err := initDynamoDBClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return store.NewDynamoDBBackend(client, map[string]string{
			store.CollectionReports:        cfg.DynamoDBTableReports,
			store.CollectionPendingReports: cfg.DynamoDBTablePendingReport,
			store.CollectionUsers:          cfg.DynamoDBTableUsers,
			store.CollectionAccounts:       cfg.DynamoDBTableAccounts,
		}), nil
	case appConfig.BackendMongoDB:
		return store.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDB)
	default:
		zap.S().Warn("usando almacén en memoria: los datos se pierden al reiniciar")
		return store.NewMemoryBackend(), nil
	}
}

// initDynamoDBClient inicializa el cliente DynamoDB
func initDynamoDBClient(ctx context.Context, cfg *appConfig.Config) (*dynamodb.Client, error) {
	var (
		awsConfig aws.Config
		err       error
	)

	if cfg.AWSAccessKeyID != "" && cfg.AWSSecretKey != "" {
		awsConfig, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.AWSRegion),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AWSAccessKeyID,
				cfg.AWSSecretKey,
				"",
			)),
		)
	} else {
		// Credenciales por defecto (rol IAM, variables de entorno...)
		awsConfig, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.AWSRegion),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("no se pudo cargar la configuración AWS: %w", err)
	}

	if cfg.DynamoDBEndpoint != "" {
		zap.S().Infof("usando endpoint DynamoDB local: %s", cfg.DynamoDBEndpoint)
		return dynamodb.NewFromConfig(awsConfig, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
		}), nil
	}
	return dynamodb.NewFromConfig(awsConfig), nil
}

type routeDeps struct {
	health   *handlers.HealthHandler
	users    *handlers.UserHandler
	reports  *handlers.ReportHandler
	sessions *handlers.SessionHandler
	geo      *handlers.GeoHandler
	auth     middleware.Authenticator
}

// setupRoutes configura las rutas de la aplicación
func setupRoutes(cfg *appConfig.Config, deps routeDeps) *gin.Engine {
	router := gin.New()

	router.Use(middleware.SetupLogging())
	router.Use(middleware.SetupRecovery())
	router.Use(middleware.SetupCORS())
	router.Use(middleware.RequestID())
	router.Use(middleware.CorrelationID())

	if cfg.RateLimitRequests > 0 {
		router.Use(middleware.SetupRateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RequestsPerSecond(),
			BurstSize:         cfg.RateLimitRequests,
		}))
	}

	deps.health.Register(router)

	api := router.Group("/api")
	deps.users.RegisterPublic(api)
	deps.geo.Register(api)

	authed := api.Group("", middleware.RequireAuth(deps.auth))
	deps.users.RegisterAuthenticated(authed)
	deps.reports.Register(authed)
	deps.sessions.Register(authed)

	if cfg.EnableMetrics {
		router.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	return router
}
