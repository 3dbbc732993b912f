package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"langgraph-chat/app/conversation/service"
	apperrors "langgraph-chat/app/pkg/errors"
	"langgraph-chat/app/pkg/logger"
	"langgraph-chat/app/pkg/ws"
	"langgraph-chat/app/shared/observability"
)

// startProjection serves the session's events on addr until ctx is done.
// The listener is bound before returning so address errors surface immediately.
func startProjection(ctx context.Context, g *errgroup.Group, ctrl *service.Controller, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	hub := ws.NewHub(ctrl.State, cfg.Security.AllowedOrigins, log)
	unsubscribe := ctrl.Subscribe(hub.Publish)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(logger.Middleware(log), apperrors.RecoveryWithLogger())
	hub.Routes(engine)
	engine.GET("/metrics", gin.WrapH(observability.MetricsHandler(registry)))

	srv := &http.Server{Handler: engine, ReadHeaderTimeout: 10 * time.Second}

	g.Go(func() error { return hub.Run(ctx) })
	g.Go(func() error {
		log.Info("Projection feed listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		unsubscribe()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return nil
}
