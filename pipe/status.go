package pipe

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// StatusServer exposes a read-only view of a pipe over local HTTP for
// debugging a headless deployment. It has no control surface.
type StatusServer struct {
	log  *zap.SugaredLogger
	pipe *Pipe

	srv *http.Server
}

// NewStatusServer builds a status server for p.
func NewStatusServer(p *Pipe, log *zap.SugaredLogger) *StatusServer {
	return &StatusServer{
		log:  log.Named("status"),
		pipe: p,
	}
}

func (s *StatusServer) handler() http.Handler {
	router := httprouter.New()
	router.GET("/healthz", s.healthz)
	router.GET("/status", s.status)
	return router
}

// ListenAndServe serves GET /healthz and GET /status on addr until Close
// is called.
func (s *StatusServer) ListenAndServe(addr string) error {
	s.srv = &http.Server{Addr: addr, Handler: s.handler()}
	s.log.Infof("status endpoint on http://%s/status", addr)

	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close shuts the status server down.
func (s *StatusServer) Close() error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Close()
}

func (s *StatusServer) healthz(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *StatusServer) status(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	b, err := json.Marshal(s.pipe.Snapshot())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Add("Content-Type", "application/json")
	w.Write(b)
}
