package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/w1xm/slew_interface/slewtest"
)

// Runner starts tests in the background.
type Runner interface {
	Start(ctx context.Context, plan slewtest.Plan) (context.CancelFunc, error)
	Running() bool
}

// ErrNotRunning is returned by a cancel command when no test is active.
var ErrNotRunning = errors.New("no slew test running")

type Command struct {
	Command  string  `json:"command"`
	Test     string  `json:"test,omitempty"`
	Altitude float64 `json:"altitude,omitempty"`
	Azimuth  float64 `json:"azimuth,omitempty"`
}

// Server accepts commands over websockets and streams Hub events back.
type Server struct {
	ctx    context.Context
	hub    *Hub
	runner Runner

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewServer returns a Server. Tests started through it are bound to ctx.
func NewServer(ctx context.Context, hub *Hub, runner Runner) *Server {
	return &Server{ctx: ctx, hub: hub, runner: runner}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Router returns the HTTP routes. metrics may be nil.
func (s *Server) Router(metrics http.Handler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/ws", s.SocketHandler)
	r.HandleFunc("/api/status", s.StatusHandler).Methods(http.MethodGet)
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}
	return r
}

// Execute runs a single command.
func (s *Server) Execute(cmd Command) error {
	switch cmd.Command {
	case "run":
		plan, ok := slewtest.Lookup(cmd.Test)
		if !ok {
			return fmt.Errorf("unknown test %q", cmd.Test)
		}
		return s.start(plan)
	case "slew":
		return s.start(slewtest.NormalSlew(cmd.Altitude, cmd.Azimuth))
	case "cancel":
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.cancel == nil || !s.runner.Running() {
			return ErrNotRunning
		}
		s.cancel()
		s.cancel = nil
		return nil
	}
	return fmt.Errorf("unknown command %q", cmd.Command)
}

func (s *Server) start(plan slewtest.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cancel, err := s.runner.Start(s.ctx, plan)
	if err != nil {
		return err
	}
	s.cancel = cancel
	log.Printf("started %s to %v", plan.Label, plan.Target)
	return nil
}

func (s *Server) status() Status {
	st := s.hub.Status()
	st.Running = s.runner.Running()
	return st
}

func (s *Server) StatusHandler(w http.ResponseWriter, r *http.Request) {
	data, err := json.Marshal(s.status())
	if err != nil {
		log.Print(err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (s *Server) SocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}
	defer conn.Close()

	events, unsubscribe := s.hub.Subscribe()
	defer unsubscribe()

	replies := make(chan Event, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var cmd Command
			if err := conn.ReadJSON(&cmd); err != nil {
				return
			}
			if err := s.Execute(cmd); err != nil {
				select {
				case replies <- Event{Type: EventError, Error: err.Error(), Time: s.hub.now()}:
				default:
				}
			}
		}
	}()

	if err := conn.WriteJSON(s.status()); err != nil {
		log.Print(err)
		return
	}
	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case data := <-events:
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Print(err)
				return
			}
		case e := <-replies:
			if err := conn.WriteJSON(e); err != nil {
				log.Print(err)
				return
			}
		}
	}
}
