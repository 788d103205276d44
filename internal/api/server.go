// Package api 账本的 HTTP/JSON 接口（gin）与 /ws/events 事件流。
// 调用方通过请求体中的 from 字段声明身份，服务端不做签名校验。
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/openfire/firemarket/internal/domain"
	"github.com/openfire/firemarket/internal/ledger"
	"github.com/openfire/firemarket/internal/metrics"
	"github.com/openfire/firemarket/pkg/ratelimit"
)

var log = logrus.WithField("component", "api")

// CodeBadRequest 请求格式错误（非账本错误）
const (
	CodeBadRequest  = "BadRequest"
	CodeInternal    = "Internal"
	CodeRateLimited = "RateLimited"
)

// ErrorResponse 错误响应体
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Server HTTP 接口
type Server struct {
	engine   *ledger.Engine
	upgrader websocket.Upgrader

	writeLimit *ratelimit.Keyed

	done      chan struct{}
	closeOnce sync.Once
}

// Option API 服务选项
type Option func(*Server)

// WithWriteLimit 按客户端 IP 限制写请求（POST）的频率
func WithWriteLimit(l *ratelimit.Keyed) Option {
	return func(s *Server) { s.writeLimit = l }
}

// New 创建 API 服务
func New(engine *ledger.Engine, opts ...Option) *Server {
	s := &Server{
		engine: engine,
		done:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CloseStreams 通知所有 websocket 连接发送 close 帧并退出。
// http.Server.Shutdown 不会等待被劫持的连接，需要在它之前调用。
func (s *Server) CloseStreams() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Router 注册所有路由
func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/ws/events", s.handleEvents)

	api := r.Group("/api")
	if s.writeLimit != nil {
		api.Use(limitWrites(s.writeLimit))
	}
	api.GET("/info", s.wrap(s.handleInfo))

	assets := api.Group("/assets")
	assets.GET("", s.wrap(s.handleAssetsList))
	assets.POST("", s.wrap(s.handleMint))
	assets.GET("/:id", s.wrap(s.handleAssetGet))
	assets.POST("/:id/transfer", s.wrap(s.handleAssetTransfer))

	api.POST("/approvals", s.wrap(s.handleSetApproval))
	api.GET("/approvals/:owner/:operator", s.wrap(s.handleApprovalGet))

	api.GET("/accounts/:addr", s.wrap(s.handleAccountGet))

	payments := api.Group("/payments")
	payments.POST("/transfer", s.wrap(s.handlePaymentTransfer))
	payments.POST("/approve", s.wrap(s.handlePaymentApprove))
	payments.POST("/transfer-from", s.wrap(s.handlePaymentTransferFrom))
	api.GET("/allowances/:owner/:spender", s.wrap(s.handleAllowanceGet))

	listings := api.Group("/listings")
	listings.GET("", s.wrap(s.handleListingsList))
	listings.POST("", s.wrap(s.handleList))
	listings.GET("/:id", s.wrap(s.handleListingGet))
	listings.GET("/:id/quote", s.wrap(s.handleQuote))
	listings.POST("/:id/cancel", s.wrap(s.handleCancel))
	listings.POST("/:id/purchase", s.wrap(s.handlePurchase))

	api.GET("/receipts", s.wrap(s.handleReceipts))

	return r
}

// handlerFunc 返回状态码与响应体；返回错误时统一映射为 ErrorResponse
type handlerFunc func(c *gin.Context) (int, any, error)

func (s *Server) wrap(h handlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, body, err := h(c)
		if err != nil {
			status, resp := errorResponse(err)
			if status >= http.StatusInternalServerError {
				log.WithField("path", c.FullPath()).Errorf("请求失败: %v", err)
			}
			c.JSON(status, resp)
			return
		}
		if body == nil {
			c.Status(status)
			return
		}
		c.JSON(status, body)
	}
}

// badRequest 请求参数错误
type badRequest struct{ msg string }

func (e *badRequest) Error() string { return e.msg }

func badRequestf(format string, args ...any) error {
	return &badRequest{msg: fmt.Sprintf(format, args...)}
}

var statusByKind = map[string]int{
	"InvalidRoyalty":        http.StatusBadRequest,
	"InvalidOwner":          http.StatusBadRequest,
	"PriceTooLow":           http.StatusBadRequest,
	"InvalidOperator":       http.StatusBadRequest,
	"InvalidAmount":         http.StatusBadRequest,
	"NotOwner":              http.StatusForbidden,
	"NotApproved":           http.StatusForbidden,
	"UnknownAsset":          http.StatusNotFound,
	"UnknownListing":        http.StatusNotFound,
	"AlreadyListed":         http.StatusConflict,
	"NotOnSale":             http.StatusConflict,
	"AlreadyInitialized":    http.StatusConflict,
	"InsufficientOffer":     http.StatusUnprocessableEntity,
	"InsufficientBalance":   http.StatusUnprocessableEntity,
	"InsufficientAllowance": http.StatusUnprocessableEntity,
	"Overflow":              http.StatusUnprocessableEntity,
}

// errorResponse 账本错误 -> HTTP 状态码 + 稳定错误码
func errorResponse(err error) (int, ErrorResponse) {
	var br *badRequest
	if errors.As(err, &br) {
		return http.StatusBadRequest, ErrorResponse{Error: br.msg, Code: CodeBadRequest}
	}
	kind := domain.ErrorKind(err)
	if status, ok := statusByKind[kind]; ok {
		return status, ErrorResponse{Error: err.Error(), Code: kind}
	}
	return http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: CodeInternal}
}

// limitWrites 读请求不限流
func limitWrites(l *ratelimit.Keyed) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet {
			c.Next()
			return
		}
		ok, retry := l.Allow(c.ClientIP())
		if !ok {
			metrics.RateLimited.Add(1)
			c.Header("Retry-After", strconv.Itoa(int(retry.Seconds())+1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error: "too many write requests",
				Code:  CodeRateLimited,
			})
			return
		}
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		log.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
		}).Debug("http")
	}
}

// ---------- 参数解析 ----------

func bindJSON(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil {
		return badRequestf("invalid json body: %v", err)
	}
	return nil
}

func parseAccount(field, s string) (domain.Account, error) {
	a, err := domain.ParseAccount(s)
	if err != nil {
		return a, badRequestf("%s: %v", field, err)
	}
	return a, nil
}

func paramAccount(c *gin.Context, name string) (domain.Account, error) {
	return parseAccount(name, c.Param(name))
}

func paramAssetID(c *gin.Context) (domain.AssetID, error) {
	return parseAssetID(c.Param("id"))
}

func parseAssetID(s string) (domain.AssetID, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, badRequestf("invalid asset id %q", s)
	}
	return domain.AssetID(n), nil
}
