package bridge

import (
	"context"
	_ "embed"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

//go:embed web/index.html
var indexPage []byte

const serverShutdownTimeout = 5 * time.Second

type controlSurface interface {
	Status(ctx context.Context) MediaSnapshot
	Control(ctx context.Context, token string)
}

// ControlServer serves the control panel, the status endpoint and the control endpoint
type ControlServer struct {
	logger  *zap.SugaredLogger
	surface controlSurface
	server  *http.Server

	running int32 // Atomic flag: 1 = running, 0 = stopped

	// set when ListenAndServe gives up on its own
	failed     chan error
	serverLock sync.Mutex
}

// NewControlServer creates a ControlServer on top of the given facade
func NewControlServer(logger *zap.SugaredLogger, surface controlSurface) (*ControlServer, error) {
	logger = logger.Named("http")

	if surface == nil {
		return nil, errors.New("control surface is required")
	}

	srv := &ControlServer{
		logger:  logger,
		surface: surface,
		failed:  make(chan error, 1),
	}

	logger.Debug("Created control server instance")

	return srv, nil
}

// SetupRouter creates and configures the Gin router
func SetupRouter(logger *zap.SugaredLogger, surface controlSurface) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))
	r.Use(corsMiddleware())

	h := &handlers{surface: surface}

	r.GET("/", h.index)
	r.GET("/status", h.status)
	r.GET("/control/:action", h.control)

	return r
}

// Start starts listening on the given address in the background
func (srv *ControlServer) Start(addr string) error {
	if atomic.LoadInt32(&srv.running) == 1 {
		srv.logger.Debugw("Control server already running", "addr", addr)
		return nil
	}

	gin.SetMode(gin.ReleaseMode)

	srv.serverLock.Lock()
	srv.server = &http.Server{
		Addr:    addr,
		Handler: SetupRouter(srv.logger, srv.surface),
	}
	server := srv.server
	srv.serverLock.Unlock()

	atomic.StoreInt32(&srv.running, 1)

	go func() {
		srv.logger.Infow("Starting control server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srv.logger.Errorw("Control server error", "error", err)
			atomic.StoreInt32(&srv.running, 0)

			select {
			case srv.failed <- err:
			default:
			}
		}
	}()

	return nil
}

// Failed delivers the error that made the listener quit, if it ever does
func (srv *ControlServer) Failed() <-chan error {
	return srv.failed
}

// Stop gracefully shuts the control server down
func (srv *ControlServer) Stop() {
	if atomic.LoadInt32(&srv.running) == 0 {
		return
	}

	srv.logger.Debug("Stopping control server")

	srv.serverLock.Lock()
	server := srv.server
	srv.serverLock.Unlock()

	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			srv.logger.Warnw("Error during control server shutdown", "error", err)
			server.Close()
		}
	}

	atomic.StoreInt32(&srv.running, 0)

	srv.logger.Info("Control server stopped")
}

// IsRunning returns whether the server is currently running
func (srv *ControlServer) IsRunning() bool {
	return atomic.LoadInt32(&srv.running) == 1
}

type handlers struct {
	surface controlSurface
}

func (h *handlers) index(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexPage)
}

func (h *handlers) status(c *gin.Context) {
	c.JSON(http.StatusOK, h.surface.Status(c.Request.Context()))
}

// control always acknowledges, clients re-poll /status to see what happened
func (h *handlers) control(c *gin.Context) {
	h.surface.Control(c.Request.Context(), c.Param("action"))
	c.Status(http.StatusNoContent)
}

func requestLogger(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debugw("Handled request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"remote", c.ClientIP(),
			"took", time.Since(start).String())
	}
}

// corsMiddleware lets front ends hosted elsewhere poll us
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
