package metrics

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 消息投递结果标签
const (
	OutcomeDelivered = "delivered"
	OutcomeStored    = "stored"
)

var (
	// HTTPRequests 按路由和状态码统计的请求数
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "peoplegrid",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status.",
	}, []string{"method", "route", "status"})

	// WSConnections 当前 WebSocket 连接数
	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "peoplegrid",
		Name:      "ws_connections",
		Help:      "Open real-time connections.",
	})

	// MessagesRelayed 已持久化消息的投递结果
	MessagesRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "peoplegrid",
		Name:      "messages_relayed_total",
		Help:      "Persisted chat messages by live delivery outcome.",
	}, []string{"outcome"})
)

// Middleware 记录请求计数
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// Handler Prometheus 抓取端点
func Handler() http.Handler {
	return promhttp.Handler()
}
