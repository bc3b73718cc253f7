// Package metrics 收集推荐服务的 Prometheus 指标
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "recommend"

// Collector 持有独立的 registry，测试之间互不干扰
type Collector struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
	httpInFlight prometheus.Gauge

	pipelineRuns    *prometheus.CounterVec
	pipelineLatency *prometheus.HistogramVec
	pipelineItems   *prometheus.HistogramVec

	catalogProducts prometheus.Gauge
	catalogReloads  *prometheus.CounterVec
}

func NewCollector() *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})

	c.httpLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	c.httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "in_flight_requests",
		Help:      "Requests currently being served",
	})

	c.pipelineRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "runs_total",
		Help:      "Pipeline executions by scene and result",
	}, []string{"scene", "result"})

	c.pipelineLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "duration_seconds",
		Help:      "Pipeline execution latency",
		Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5, 30},
	}, []string{"scene"})

	c.pipelineItems = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "items",
		Help:      "Number of recommended items returned",
		Buckets:   prometheus.LinearBuckets(0, 2, 10),
	}, []string{"scene"})

	c.catalogProducts = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "catalog",
		Name:      "products",
		Help:      "Products in the current catalog snapshot",
	})

	c.catalogReloads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "catalog",
		Name:      "reloads_total",
		Help:      "Catalog reloads by result",
	}, []string{"result"})

	c.registry.MustRegister(
		c.httpRequests, c.httpLatency, c.httpInFlight,
		c.pipelineRuns, c.pipelineLatency, c.pipelineItems,
		c.catalogProducts, c.catalogReloads,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry 暴露给测试和需要额外注册指标的调用方
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler /metrics 的处理器
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Middleware 记录每个请求，route 使用 gin 的路由模板避免高基数
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		c.httpInFlight.Inc()
		defer c.httpInFlight.Dec()

		ctx.Next()

		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(ctx.Writer.Status())
		c.httpRequests.WithLabelValues(ctx.Request.Method, route, status).Inc()
		c.httpLatency.WithLabelValues(ctx.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func (c *Collector) RecordPipeline(scene string, d time.Duration, items int, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.pipelineRuns.WithLabelValues(scene, result).Inc()
	c.pipelineLatency.WithLabelValues(scene).Observe(d.Seconds())
	if err == nil {
		c.pipelineItems.WithLabelValues(scene).Observe(float64(items))
	}
}

func (c *Collector) RecordCatalogReload(products int, err error) {
	if err != nil {
		c.catalogReloads.WithLabelValues("error").Inc()
		return
	}
	c.catalogReloads.WithLabelValues("ok").Inc()
	c.catalogProducts.Set(float64(products))
}
