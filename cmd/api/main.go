package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/campuskit/institute-api/api/swagger"
	"github.com/campuskit/institute-api/internal/handler"
	"github.com/campuskit/institute-api/internal/middleware"
	"github.com/campuskit/institute-api/internal/repository"
	"github.com/campuskit/institute-api/internal/service"
	"github.com/campuskit/institute-api/pkg/cache"
	"github.com/campuskit/institute-api/pkg/config"
	"github.com/campuskit/institute-api/pkg/database"
	"github.com/campuskit/institute-api/pkg/logger"
	corsmiddleware "github.com/campuskit/institute-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campuskit/institute-api/pkg/middleware/requestid"
)

// @title Institute Catalog API
// @version 1.0.0
// @description Multi-tenant course catalog and student roster API for institutes.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	migrateCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := database.Migrate(migrateCtx, db, cfg.Database.MigrationsDir, logr); err != nil {
		logr.Fatal("failed to run migrations", zap.Error(err))
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// Redis only backs best-effort statistics caching.
		logr.Warn("redis unavailable, statistics caching disabled", zap.Error(err))
		redisClient = nil
	}

	validate := validator.New()
	metrics := service.NewMetricsService()
	statsCache := service.NewStatsCache(redisClient, cfg.Stats.CacheTTL, metrics, logr)

	instituteRepo := repository.NewInstituteRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	gradeRepo := repository.NewGradeRepository(db)

	authService := service.NewAuthService(instituteRepo, studentRepo, service.JWTConfig{
		Secret:     cfg.JWT.Secret,
		Issuer:     cfg.JWT.Issuer,
		Expiration: cfg.JWT.Expiration,
	}, validate, logr)
	courseService := service.NewCourseService(courseRepo, subjectRepo, statsCache, metrics, validate, logr)
	studentService := service.NewStudentService(studentRepo, statsCache, metrics, cfg.Exports.MaxRows, validate, logr)
	subjectService := service.NewSubjectService(subjectRepo, courseRepo, validate, logr)
	gradeService := service.NewGradeService(gradeRepo, studentRepo, courseRepo, validate, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	handlers := handler.Handlers{
		Auth:      handler.NewAuthHandler(authService),
		Courses:   handler.NewCourseHandler(courseService),
		Students:  handler.NewStudentHandler(studentService),
		Subjects:  handler.NewSubjectHandler(subjectService),
		Grades:    handler.NewGradeHandler(gradeService),
		Dashboard: handler.NewDashboardHandler(studentService),
		Metrics:   handler.NewMetricsHandler(metrics, db),
	}
	handler.RegisterRoutes(r, cfg.APIPrefix, handlers, authService)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Info("server starting", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := r.Run(addr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}
