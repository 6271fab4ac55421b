package echoapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	reqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "darasa_http_requests_total",
		Help: "HTTP requests processed, by route, method and status code.",
	}, []string{"route", "method", "code"})

	reqDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "darasa_http_request_duration_seconds",
		Help:    "HTTP request latency, by route and method.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})
)

func metricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)

			route := ctx.Path()
			method := ctx.Request().Method
			status := ctx.Response().Status
			if err != nil {
				if herr, ok := err.(*echo.HTTPError); ok {
					status = herr.Code
				}
			}

			reqTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
			reqDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func metricsHandler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
