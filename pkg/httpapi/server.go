// Package httpapi is the thin REST adapter spec §6 describes: it translates
// the Control API and Device model's read accessors into JSON request and
// response shapes for building-automation clients.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/enp6s0/dspgate/pkg/tesira"
	"github.com/enp6s0/dspgate/pkg/util"
	"github.com/enp6s0/dspgate/pkg/version"
)

// Server is the HTTP front end wired to one Gateway.
type Server struct {
	gw     *tesira.Gateway
	router *mux.Router
	server *http.Server
}

// NewServer builds a Server listening on addr and routes to gw.
func NewServer(gw *tesira.Gateway, addr string) *Server {
	router := mux.NewRouter()

	s := &Server{
		gw:     gw,
		router: router,
		server: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}

	router.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	router.HandleFunc("/dsp", s.handleDSP).Methods(http.MethodGet)
	router.HandleFunc("/block", s.handleBlockList).Methods(http.MethodGet)
	router.HandleFunc("/block/{id}", s.handleBlockGet).Methods(http.MethodGet)
	router.HandleFunc("/block/{id}", s.handleBlockChange).Methods(http.MethodPost, http.MethodPatch)

	return s
}

// ListenAndServe starts serving. It blocks until the server stops.
func (s *Server) ListenAndServe() error {
	util.WithField("addr", s.server.Addr).Info("HTTP API listening")
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type rootResponse struct {
	API     string `json:"api"`
	Version string `json:"version"`
	Ready   bool   `json:"ready"`
	Time    string `json:"time"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rootResponse{
		API:     "dspgate",
		Version: version.Version,
		Ready:   s.gw.Device.Ready(),
		Time:    nowRFC3339(),
	})
}

type dspResponse struct {
	Hostname string `json:"hostname"`
	Version  string `json:"version"`
}

func (s *Server) handleDSP(w http.ResponseWriter, r *http.Request) {
	info := s.gw.Device.Info()
	writeJSON(w, http.StatusOK, dspResponse{Hostname: info.Hostname, Version: info.Firmware})
}

func (s *Server) handleBlockList(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.gw.Device.SupportedBlocks()
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}

	type blockEntry struct {
		Type tesira.BlockType `json:"type"`
	}
	blocks := make(map[string]blockEntry, len(summaries))
	for _, s := range summaries {
		blocks[s.ID] = blockEntry{Type: s.Type}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"blocks": blocks})
}

func (s *Server) handleBlockGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	b, err := s.gw.Device.Block(id)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleBlockChange(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req blockChangeRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	changes, err := applyBlockChange(s.gw.Control, s.gw.Device, id, req)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"changes": changes})
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// statusForError maps a Control/Device error to an HTTP status. The
// 400/404/412/500 cases are exactly spec §6's table for /block/<id>; 503 is
// this adapter's own addition for "discovery hasn't completed yet" /
// "transport down", which the spec's table (scoped to mutation requests)
// doesn't separately name.
func statusForError(err error) int {
	switch {
	case isInvalidBody(err):
		return http.StatusBadRequest
	case isNotReady(err):
		return http.StatusServiceUnavailable
	case isNoSuchBlock(err):
		return http.StatusNotFound
	case isMalformed(err):
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}
