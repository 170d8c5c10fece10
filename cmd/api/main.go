package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"programhub/internal/attendance"
	"programhub/internal/audit"
	"programhub/internal/certificate"
	"programhub/internal/config"
	"programhub/internal/course"
	"programhub/internal/handler"
	"programhub/internal/httpmiddleware"
	"programhub/internal/mailer"
	"programhub/internal/program"
	"programhub/internal/qr"
	"programhub/internal/queue"
	"programhub/internal/report"
	"programhub/internal/reporting"
	"programhub/internal/storage"
	"programhub/internal/store"
	"programhub/internal/user"
)

func main() {
	cfg := config.Load()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	rep := reporting.New(cfg.RollbarToken, cfg.Env)
	defer rep.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.NewDB(cfg.DatabaseURL)
	if db == nil {
		return errors.Wrap(err, "open db")
	}
	if err != nil {
		rep.Warn("db not reachable at startup: " + err.Error())
	} else if cfg.AutoMigrate {
		if err := store.Migrate(ctx, db.Client); err != nil {
			return errors.Wrap(err, "migrate")
		}
	}
	defer db.Close()

	redisClient, err := store.NewRedis(cfg.RedisAddr)
	if err != nil {
		return errors.Wrap(err, "redis")
	}
	defer redisClient.Close()

	var (
		q      queue.Queue
		active qr.ActiveStore
	)
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
		active = qr.NewMemoryActiveStore()
		// No separate worker process consumes an in-memory queue.
		w := mailer.NewWorker(newSender(cfg), rep)
		go func() {
			if err := w.Run(ctx, q); err != nil {
				rep.Error("email worker stopped", err)
			}
		}()
	} else {
		q = queue.NewRedisQueue(redisClient.Client, queue.DefaultKey)
		active = qr.NewRedisActiveStore(redisClient.Client, "")
	}

	if cfg.RateLimitPerMin <= 0 {
		rep.Warn("RATE_LIMIT_PER_MIN is not positive, rate limiting disabled")
	}

	files, err := newStorage(cfg)
	if err != nil {
		return err
	}

	auditRepo := audit.NewRepository(db.Client)
	auditor := audit.NewLogger(auditRepo, rep)

	attendanceSvc := attendance.NewService(
		attendance.NewRepository(db.Client),
		qr.NewSigner(cfg.QRSecret, cfg.QRTTL, active),
		auditor,
	)
	programRepo := program.NewRepository(db.Client)
	programSvc := program.NewService(programRepo, attendanceSvc, auditor)
	userSvc := user.NewService(
		user.NewRepository(db.Client),
		programSvc,
		attendanceSvc,
		mailer.NewDispatcher(q, rep),
		auditor,
		user.Config{JWTIssuer: cfg.JWTIssuer, JWTKey: cfg.JWTSigningKey, AccessTTL: cfg.AccessTTL, Reporter: rep},
	)
	courseSvc := course.NewService(course.NewRepository(db.Client), files, programRepo, auditor)
	certificateSvc := certificate.NewService(certificate.NewRepository(db.Client), auditor)
	reportSvc := report.NewService(attendanceSvc, programSvc, auditRepo, report.NewRepository(db.Client))

	h := handler.New(handler.Config{
		JWTSigningKey: cfg.JWTSigningKey,
		JWTIssuer:     cfg.JWTIssuer,
	}, handler.Services{
		Users:        userSvc,
		Programs:     programSvc,
		Attendance:   attendanceSvc,
		Courses:      courseSvc,
		Certificates: certificateSvc,
		Reports:      reportSvc,
	})

	r := gin.New()
	r.Use(httpmiddleware.Recover(rep))
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(corsConfig(cfg.CORSOrigin)))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.Metrics())
	r.Use(httpmiddleware.ErrorResponder(rep))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Healthy(c.Request.Context())
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	if disk, ok := files.(*storage.Disk); ok {
		r.Static(storage.PublicPath, disk.Dir())
	}

	limiter := httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	h.Register(r, limiter.Middleware())
	handler.Docs(r)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

func newSender(cfg config.App) mailer.Sender {
	if cfg.SendgridAPIKey == "" {
		log.Println("SENDGRID_API_KEY not set, emails will be logged")
		return mailer.NewLogSender(log.Default())
	}
	return mailer.NewSendgridSender(cfg.SendgridAPIKey, cfg.MailFrom, cfg.MailFromName)
}

func newStorage(cfg config.App) (storage.Store, error) {
	if cfg.CloudinaryConfigured() {
		log.Println("Cloudinary configured:", cfg.CloudinaryCloudName)
		return storage.NewCloudinary(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder), nil
	}
	log.Printf("Cloudinary not configured, storing uploads in %s", cfg.UploadDir)
	disk, err := storage.NewDisk(cfg.UploadDir, cfg.PublicBaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "upload dir")
	}
	return disk, nil
}

// corsConfig accepts "*" or a comma separated origin list.
func corsConfig(origins string) cors.Config {
	c := cors.DefaultConfig()
	c.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	c.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	c.ExposeHeaders = []string{"Content-Disposition"}
	c.MaxAge = 24 * time.Hour
	if origins == "" || origins == "*" {
		c.AllowAllOrigins = true
		return c
	}
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			c.AllowOrigins = append(c.AllowOrigins, o)
		}
	}
	c.AllowCredentials = true
	return c
}
