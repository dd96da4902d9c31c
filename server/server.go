// Package server exposes the relay over HTTP and websockets.
package server

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mrsingh-rishi/voice-relay/output"
	"github.com/mrsingh-rishi/voice-relay/pipeline"
	"github.com/mrsingh-rishi/voice-relay/registry"
)

// Ingest is what the websocket handler needs from the pipeline.
// *pipeline.Gateway satisfies it.
type Ingest interface {
	Connect(channel, clientID string, conn registry.Conn)
	Disconnect(channel, clientID string, conn registry.Conn)
	Accept(ctx context.Context, channel, clientID string, audio []byte) (string, error)
	Listeners() map[string]int
}

type Server struct {
	app          *fiber.App
	ingest       Ingest
	supported    map[string]bool
	channels     []string
	gatherer     prometheus.Gatherer
	log          *log.Logger
	WriteTimeout time.Duration
}

// New builds the fiber app. supported lists the channels that have a
// synthesis voice; listeners on other channels are accepted but warned.
func New(ingest Ingest, supported []string, gatherer prometheus.Gatherer, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		app: fiber.New(fiber.Config{
			DisableStartupMessage: true,
		}),
		ingest:       ingest,
		supported:    make(map[string]bool, len(supported)),
		channels:     supported,
		gatherer:     gatherer,
		log:          logger.WithPrefix("server"),
		WriteTimeout: output.DefaultWriteTimeout,
	}
	for _, ch := range supported {
		s.supported[ch] = true
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	// Health check
	s.app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})

	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	api := s.app.Group("/api/v1")
	api.Get("/channels", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"supported": s.channels,
			"listeners": s.ingest.Listeners(),
		})
	})

	// Middleware to require WebSocket upgrade on /ws
	api.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	api.Get("/ws/:channel/:client_id", websocket.New(s.handleStream))
}

// handleStream registers the client as a listener on its channel and
// feeds every non-empty binary frame into the pipeline until the socket
// closes.
func (s *Server) handleStream(ws *websocket.Conn) {
	channel := ws.Params("channel")
	clientID := ws.Params("client_id")
	logger := s.log.With("channel", channel, "client_id", clientID)

	conn, err := output.NewWebSocketConn(ws, s.WriteTimeout)
	if err != nil {
		logger.Error("wrapping connection", "err", err)
		return
	}
	if !s.supported[channel] {
		logger.Warn("no synthesis voice for channel, translated audio will be dropped")
	}

	s.ingest.Connect(channel, clientID, conn)
	defer func() {
		s.ingest.Disconnect(channel, clientID, conn)
		conn.Close()
	}()

	for {
		messageType, msg, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Info("websocket closed")
			} else {
				logger.Warn("websocket read error", "err", err)
			}
			return
		}
		if messageType != websocket.BinaryMessage || len(msg) == 0 {
			continue
		}

		if _, err := s.ingest.Accept(context.Background(), channel, clientID, msg); err != nil {
			if errors.Is(err, pipeline.ErrNotAccepting) {
				logger.Info("pipeline stopping, closing stream")
				return
			}
			logger.Warn("chunk rejected", "err", err)
		}
	}
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	s.log.Info("listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits for open ones to close,
// up to the deadline of ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	if deadline, ok := ctx.Deadline(); ok {
		return s.app.ShutdownWithTimeout(time.Until(deadline))
	}
	return s.app.Shutdown()
}
