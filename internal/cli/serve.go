package cli

import (
	"context"
	"errors"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"fitQuestAPI/handlers"
	"fitQuestAPI/internal/notification"
	"fitQuestAPI/middleware"
	"fitQuestAPI/services"
)

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (overrides PORT)")
	rootCmd.AddCommand(serveCmd)
}

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the progression API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if servePort != "" {
		a.cfg.Port = servePort
	}

	services.RegisterMetrics(prometheus.DefaultRegisterer)
	middleware.InitPrometheus(prometheus.DefaultRegisterer)

	var notifier notification.Notifier = notification.LogNotifier{}
	fcm, err := notification.NewFCMService(ctx, a.cfg.FCMCredentialsFile)
	if err != nil {
		logrus.WithError(err).Warn("Could not initialize FCM, progress notifications go to the log")
	} else {
		notifier = fcm
		logrus.Info("FCM push provider initialized successfully")
	}

	dispatcher := services.NewActivityDispatcher(a.ingest, notifier, services.DispatcherOptions{
		Workers:        a.cfg.DispatchWorkers,
		QueueSize:      a.cfg.DispatchQueue,
		EnqueueTimeout: a.cfg.DispatchEnqueueTimeout,
	})

	scheduler, err := services.NewMaintenanceScheduler(a.streaks, a.cfg.ResetSchedule, a.cfg.Location)
	if err != nil {
		dispatcher.Stop()
		return err
	}
	scheduler.Start()

	limiter := middleware.NewRateLimiter(a.cfg.RateLimitRPS, a.cfg.RateLimitBurst)
	go limiter.CleanupVisitors(ctx)

	r := newRouter(a, dispatcher, limiter)

	corsHandler := gorillaHandlers.CORS(
		gorillaHandlers.AllowedOrigins([]string{"*"}),
		gorillaHandlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		gorillaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", middleware.ServiceTokenHeader, "X-Pprof-Secret"}),
		gorillaHandlers.ExposedHeaders([]string{"Content-Length"}),
	)

	server := http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logrus.WithField("port", a.cfg.Port).Info("Starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logrus.Info("Shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			logrus.WithError(err).Error("Server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Server shutdown error")
	}
	scheduler.Stop()
	dispatcher.Stop()

	logrus.Info("Server shutdown complete")
	return nil
}

func newRouter(a *app, dispatcher *services.ActivityDispatcher, limiter *middleware.RateLimiter) *mux.Router {
	progressionHandler := handlers.NewProgressionHandler(a.progression)
	activityHandler := handlers.NewActivityHandler(dispatcher, a.cfg.Location, nil)
	operatorHandler := handlers.NewOperatorHandler(a.streaks, a.xp)
	healthHandler := handlers.NewHealthHandler(a.repo)

	r := mux.NewRouter()
	r.Use(limiter.Middleware)
	r.Use(middleware.MonitorMiddleware)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(a.cfg.MetricsUser, a.cfg.MetricsPass)(promhttp.Handler()))
	r.PathPrefix("/debug/pprof/").Handler(middleware.PprofSecurityMiddleware(a.cfg.PprofSecret)(http.DefaultServeMux))
	r.HandleFunc("/health", healthHandler.Health).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/progression/{userId}", progressionHandler.GetProgression).Methods("GET")
	api.HandleFunc("/achievements/{userId}", progressionHandler.GetAchievements).Methods("GET")
	api.HandleFunc("/streaks/{userId}", progressionHandler.GetStreaks).Methods("GET")
	api.HandleFunc("/xp-history/{userId}", progressionHandler.GetXPHistory).Methods("GET")
	api.HandleFunc("/progress-view/{userId}", progressionHandler.GetProgressView).Methods("GET")

	// collaborator and operator calls carry the service token
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.ServiceTokenMiddleware(a.cfg.ServiceToken))

	protected.HandleFunc("/activity/meal", activityHandler.LogMeal).Methods("POST")
	protected.HandleFunc("/activity/exercise", activityHandler.LogExercise).Methods("POST")
	protected.HandleFunc("/activity/water", activityHandler.LogWater).Methods("POST")

	protected.HandleFunc("/streaks/{userId}/{type}/recompute", operatorHandler.RecomputeStreak).Methods("POST")
	protected.HandleFunc("/xp/{userId}/adjustments", operatorHandler.CreditAdjustment).Methods("POST")

	return r
}
