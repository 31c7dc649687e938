package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/collegeportal/portal-api/api/swagger"
	"github.com/collegeportal/portal-api/internal/handler"
	"github.com/collegeportal/portal-api/internal/middleware"
	"github.com/collegeportal/portal-api/internal/models"
	"github.com/collegeportal/portal-api/internal/push"
	"github.com/collegeportal/portal-api/internal/repository"
	"github.com/collegeportal/portal-api/internal/service"
	"github.com/collegeportal/portal-api/pkg/cache"
	"github.com/collegeportal/portal-api/pkg/config"
	"github.com/collegeportal/portal-api/pkg/database"
	"github.com/collegeportal/portal-api/pkg/logger"
	corsmiddleware "github.com/collegeportal/portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/collegeportal/portal-api/pkg/middleware/requestid"
	"github.com/collegeportal/portal-api/pkg/storage"
)

// @title College Portal API
// @version 1.0.0
// @description Academic portal backend: attendance, marks, notes, timetables, circulars and live notifications
// @BasePath /api/v1
// @schemes http
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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, summary caching disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	store, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	resolverRepo := repository.NewResolverRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	marksRepo := repository.NewMarksRepository(db)
	audienceRepo := repository.NewAudienceRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	circularRepo := repository.NewCircularRepository(db)
	noteRepo := repository.NewNoteRepository(db)
	timetableRepo := repository.NewTimetableRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsSvc := service.NewMetricsService()
	hub := push.NewHub(logr)
	notificationSvc := service.NewNotificationService(notificationRepo, hub, cfg.Notifications, logr).WithMetrics(metricsSvc)
	audienceSvc := service.NewAudienceService(audienceRepo, resolverRepo, logr)
	authSvc := service.NewAuthService(userRepo, studentRepo, resolverRepo, cfg.JWT, logr)
	attendanceSvc := service.NewAttendanceService(resolverRepo, attendanceRepo, cacheRepo, cfg.Cache.AttendanceSummaryTTL, logr)
	marksSvc := service.NewMarksService(resolverRepo, marksRepo, audienceSvc, notificationSvc, logr)
	circularSvc := service.NewCircularService(circularRepo, resolverRepo, audienceSvc, notificationSvc, store, logr)
	noteSvc := service.NewNoteService(noteRepo, resolverRepo, audienceSvc, notificationSvc, store, logr)
	timetableSvc := service.NewTimetableService(resolverRepo, timetableRepo, audienceSvc, notificationSvc, logr)
	studentSvc := service.NewStudentService(studentRepo, resolverRepo, logr)
	exportSvc := service.NewExportService(attendanceSvc, marksSvc, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notificationSvc.Start(ctx)
	defer notificationSvc.Stop()

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	marksHandler := handler.NewMarksHandler(marksSvc)
	circularHandler := handler.NewCircularHandler(circularSvc)
	noteHandler := handler.NewNoteHandler(noteSvc, store)
	timetableHandler := handler.NewTimetableHandler(timetableSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc, hub, metricsSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	exportHandler := handler.NewExportHandler(exportSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/register/students", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin), authHandler.RegisterStudents)
	auth.POST("/register/faculty", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin), authHandler.RegisterFaculty)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	protected.GET("/me", studentHandler.Me)
	protected.GET("/students", middleware.RequireRoles(models.RoleFaculty, models.RoleAdmin), studentHandler.Roster)

	attendance := protected.Group("/attendance")
	attendance.POST("", middleware.RequireRoles(models.RoleFaculty), attendanceHandler.Mark)
	attendance.GET("/history", middleware.RequireRoles(models.RoleFaculty, models.RoleAdmin), attendanceHandler.History)
	attendance.GET("/sessions/:id", middleware.RequireRoles(models.RoleFaculty, models.RoleAdmin), attendanceHandler.SessionDetails)
	attendance.PATCH("/records/:id", middleware.RequireRoles(models.RoleFaculty, models.RoleAdmin), attendanceHandler.UpdateStatus)
	attendance.GET("/summary", middleware.RequireRoles(models.RoleStudent), attendanceHandler.MySummary)

	marks := protected.Group("/marks")
	marks.POST("", middleware.RequireRoles(models.RoleFaculty), marksHandler.Update)
	marks.GET("/sheet", middleware.RequireRoles(models.RoleFaculty, models.RoleAdmin), marksHandler.ClassSheet)
	marks.GET("/me", middleware.RequireRoles(models.RoleStudent), marksHandler.MyScores)

	circulars := protected.Group("/circulars")
	circulars.POST("", middleware.RequireRoles(models.RoleFaculty, models.RoleAdmin), circularHandler.Create)
	circulars.GET("", circularHandler.List)
	circulars.GET("/recent", middleware.RequireRoles(models.RoleAdmin), circularHandler.Recent)
	circulars.GET("/:id", circularHandler.Get)
	circulars.PUT("/:id", middleware.RequireRoles(models.RoleFaculty, models.RoleAdmin), circularHandler.Update)
	circulars.DELETE("/:id", middleware.RequireRoles(models.RoleFaculty, models.RoleAdmin), circularHandler.Delete)

	notes := protected.Group("/notes")
	notes.POST("", middleware.RequireRoles(models.RoleFaculty), noteHandler.Upload)
	notes.GET("", middleware.RequireRoles(models.RoleFaculty, models.RoleAdmin), noteHandler.ListForClass)
	notes.GET("/me", middleware.RequireRoles(models.RoleStudent), noteHandler.ListMine)
	notes.GET("/:id/file", noteHandler.Download)

	timetable := protected.Group("/timetable")
	timetable.POST("", middleware.RequireRoles(models.RoleAdmin), timetableHandler.Save)
	timetable.GET("", middleware.RequireRoles(models.RoleFaculty, models.RoleAdmin), timetableHandler.WeekForClass)
	timetable.GET("/me", middleware.RequireRoles(models.RoleStudent), timetableHandler.MyWeek)

	notifications := protected.Group("/notifications")
	notifications.GET("", notificationHandler.List)
	notifications.POST("/:id/read", notificationHandler.MarkRead)
	notifications.POST("/read-all", notificationHandler.MarkAllRead)
	notifications.GET("/stream", notificationHandler.Stream)

	exports := protected.Group("/exports")
	exports.GET("/attendance", middleware.RequireRoles(models.RoleStudent), exportHandler.AttendanceSummary)
	exports.GET("/marks", middleware.RequireRoles(models.RoleFaculty, models.RoleAdmin), exportHandler.MarksSheet)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
