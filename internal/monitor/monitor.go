// Package monitor serves the node status over HTTP and streams node events
// over a websocket.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"artnetnode/internal/logger"
	"artnetnode/internal/node"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

// Source is the node as seen by the monitor.
type Source interface {
	Status() node.Status
	Peers() []node.Peer
	Handlers() []node.Descriptor
}

type nodeSource struct {
	n *node.Node
}

// NodeSource adapts a Node to a Source.
func NodeSource(n *node.Node) Source {
	return nodeSource{n: n}
}

func (s nodeSource) Status() node.Status         { return s.n.Status() }
func (s nodeSource) Peers() []node.Peer          { return s.n.Peers().Snapshot() }
func (s nodeSource) Handlers() []node.Descriptor { return s.n.Handlers().Descriptors() }

type Conf struct {
	Listen      string
	CORSOrigins []string
}

// Server is the monitor HTTP server.
type Server struct {
	log     *logger.Log
	cfg     Conf
	source  Source
	hub     *Hub
	started time.Time
	server  *http.Server
	addr    net.Addr
	done    chan struct{}
}

func New(log logger.Logger, cfg Conf, source Source, hub *Hub) *Server {
	s := &Server{
		log:     log.With(logger.Fields{"module": "monitor"}),
		cfg:     cfg,
		source:  source,
		hub:     hub,
		started: time.Now(),
	}
	s.server = &http.Server{
		Handler:     s.Router(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	return s
}

// Router returns the HTTP routes.
func (s *Server) Router() http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: s.log, NoColor: true}))
	router.Use(middleware.Recoverer)

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: append([]string{"http://localhost:3000"}, s.cfg.CORSOrigins...),
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	})
	router.Use(corsMiddleware.Handler)

	router.Get("/health", s.health)
	router.Route("/api", func(r chi.Router) {
		r.Get("/status", s.status)
		r.Get("/peers", s.peers)
		r.Get("/handlers", s.handlers)
	})
	router.Handle("/ws", s.hub)
	return router
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return err
	}
	s.addr = listener.Addr()
	s.done = make(chan struct{})
	s.log.Infof("monitor listening on http://%s", s.addr)

	go func() {
		defer close(s.done)
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Errorf("monitor server: %v", err)
		}
	}()
	return nil
}

// Addr is the bound address, nil before Start.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Stop disconnects websocket clients and shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.hub.Close()
	if s.done == nil {
		return nil
	}
	err := s.server.Shutdown(ctx)
	<-s.done
	return err
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	st := s.source.Status()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"node":      st.State,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.source.Status())
}

func (s *Server) peers(w http.ResponseWriter, _ *http.Request) {
	peers := s.source.Peers()
	if peers == nil {
		peers = []node.Peer{}
	}
	writeJSON(w, http.StatusOK, peers)
}

func (s *Server) handlers(w http.ResponseWriter, _ *http.Request) {
	descs := s.source.Handlers()
	if descs == nil {
		descs = []node.Descriptor{}
	}
	writeJSON(w, http.StatusOK, descs)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
