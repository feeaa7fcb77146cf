// Package distributormock provides an in-process distributor for tests.
package distributormock

import (
	"io/ioutil"
	"net/http"
	"strconv"
	"sync"

	"github.com/JiscSD/ammolib/request"

	log "github.com/sirupsen/logrus"
)

// Server is an http.Handler that accepts encoded requests on POST
// /requests and answers GET /health. It is safe to use from multiple
// goroutines.
type Server struct {
	Logger log.FieldLogger

	mu       sync.RWMutex
	requests []*request.Request
	down     bool
}

var _ http.Handler = (*Server)(nil)

func New() *Server {
	return &Server{Logger: log.StandardLogger()}
}

// SetDown makes every endpoint answer 503 while down is true.
func (s *Server) SetDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = down
}

// Requests returns the requests received so far.
func (s *Server) Requests() []*request.Request {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*request.Request, len(s.requests))
	copy(out, s.requests)
	return out
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	down := s.down
	s.mu.RUnlock()
	if down {
		http.Error(w, "distributor is down", http.StatusServiceUnavailable)
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/health":
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPost && r.URL.Path == "/requests":
		s.handleRequest(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	data, err := ioutil.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req, err := request.Decode(data, s.Logger)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	n := len(s.requests)
	s.mu.Unlock()

	id := req.UUID
	if id == "" {
		id = "request-" + strconv.Itoa(n)
	}
	s.Logger.WithFields(log.Fields{"action": req.Action, "uuid": id}).Debug("Request received")
	_, _ = w.Write([]byte(id))
}
