package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/dinetab/table-reservation/internal/config"
	"github.com/dinetab/table-reservation/internal/handler"
	"github.com/dinetab/table-reservation/internal/queue"
	"github.com/dinetab/table-reservation/internal/repository"
	"github.com/dinetab/table-reservation/internal/router"
	"github.com/dinetab/table-reservation/internal/service"
	"github.com/dinetab/table-reservation/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if cfg.Env == "prod" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	st, err := store.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logrus.Panicf("failed to initialize store: %v", err)
	}
	logrus.Info("store ready, schema ensured")

	rdb := config.NewRedisClient()
	if rdb == nil {
		logrus.Warn("redis unreachable; rate limiting and response cache disabled")
	}

	// The consumer drains reservation events into the audit log. It
	// reconnects on its own; a missing broker only costs us the trail.
	go func() {
		if err := queue.StartEventConsumer(); err != nil {
			logrus.Warnf("event consumer stopped: %v", err)
		}
	}()

	users := repository.NewUserRepo(st.DB())
	tokens := repository.NewTokenRepo(st.DB())
	reservations := service.NewReservationService(st, cfg.ReservationWindow, queue.NewPublisher())

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), cfg.JWTSecret)
	router.RegisterRestaurants(e, handler.NewRestaurantHandler(st), cfg.JWTSecret, rdb)
	router.RegisterReservations(e, handler.NewReservationHandler(reservations), cfg.JWTSecret, rdb)

	addr := ":" + cfg.Port
	go func() {
		logrus.Infof("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logrus.Panicf("server error: %v", err)
		}
	}()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-done

	logrus.Info("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("graceful shutdown failed")
	}
}
