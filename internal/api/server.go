// Package api exposes the weight-learning subsystem over HTTP.
package api

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/aegisrisk/weightd/internal/sample"
	"github.com/aegisrisk/weightd/internal/scoring"
	"github.com/aegisrisk/weightd/internal/service"
	"github.com/aegisrisk/weightd/internal/training"
)

// #region server

// BuildServer wires all routes onto a fresh echo instance.
func BuildServer(svc *service.Service, scorer *scoring.Scorer, runs *training.RunStore, samples *sample.Store) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Recover())

	// request latency log
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			begin := time.Now()
			err := next(c)
			c.Logger().Infof("%s %s -> %d in %v",
				c.Request().Method, c.Request().URL.Path, c.Response().Status, time.Since(begin))
			return err
		}
	})

	h := &handlers{svc: svc, scorer: scorer, runs: runs, samples: samples}

	g := e.Group("/api/weights")
	g.POST("/train", h.train)
	g.GET("/versions", h.listVersions)
	g.GET("/versions/active", h.getActive)
	g.GET("/versions/compare", h.compare)
	g.GET("/versions/:id", h.getVersion)
	g.POST("/versions/:id/approve", h.approve)
	g.POST("/versions/:id/activate", h.activate)
	g.POST("/versions/:id/rollback", h.rollback)
	g.GET("/evolution", h.evolution)
	g.GET("/readiness", h.readiness)
	g.POST("/score", h.score)

	e.POST("/api/samples", h.addSample)

	return e
}

// #endregion
