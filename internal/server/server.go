// Package server exposes the segment collection over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/agleyzer/trimcut/internal/cluster"
	"github.com/agleyzer/trimcut/internal/detect"
	"github.com/agleyzer/trimcut/internal/edl"
	"github.com/agleyzer/trimcut/internal/segment"
	"github.com/agleyzer/trimcut/internal/selection"
	"github.com/agleyzer/trimcut/internal/store"
	"github.com/agleyzer/trimcut/internal/transform"
	"github.com/agleyzer/trimcut/pkg/api"
)

// Cluster is the replication surface the server consults when the node is
// part of a Raft cluster: followers serve the replicated session state and
// refuse writes, pointing clients at the leader.
type Cluster interface {
	IsLeader() bool
	LeaderAddr() string
	State() string
	GetState() cluster.SessionState
}

// Server serves the segment editing API
type Server struct {
	store      *store.Store
	sel        *selection.Set
	integrator *detect.Integrator
	detector   detect.Detector
	cluster    Cluster
	port       int
	logger     *slog.Logger
	httpServer *http.Server
}

// New creates a new HTTP server. detector may be nil, in which case the
// detect endpoint reports that no detector is configured.
func New(st *store.Store, sel *selection.Set, integrator *detect.Integrator, detector detect.Detector, port int, logger *slog.Logger) *Server {
	return &Server{
		store:      st,
		sel:        sel,
		integrator: integrator,
		detector:   detector,
		port:       port,
		logger:     logger,
	}
}

// AttachCluster makes the server replication-aware. Must be called before
// Handler; a nil cluster means standalone operation.
func (s *Server) AttachCluster(c Cluster) {
	s.cluster = c
}

// Handler returns the full request handler, exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /segments", s.handleList)
	mux.HandleFunc("POST /segments", s.leaderOnly(s.handleCreate))
	mux.HandleFunc("PATCH /segments/{index}", s.leaderOnly(s.handleUpdate))
	mux.HandleFunc("DELETE /segments", s.leaderOnly(s.handleRemove))
	mux.HandleFunc("POST /segments/split", s.leaderOnly(s.handleSplit))
	mux.HandleFunc("POST /segments/merge", s.leaderOnly(s.handleMerge))
	mux.HandleFunc("POST /segments/invert", s.leaderOnly(s.handleInvert))
	mux.HandleFunc("POST /segments/fill-gaps", s.leaderOnly(s.handleFillGaps))
	mux.HandleFunc("POST /segments/clear", s.leaderOnly(s.handleClear))
	mux.HandleFunc("POST /undo", s.leaderOnly(s.handleUndo))
	mux.HandleFunc("POST /redo", s.leaderOnly(s.handleRedo))
	mux.HandleFunc("POST /selection", s.handleSelection)
	mux.HandleFunc("POST /order", s.leaderOnly(s.handleOrder))
	mux.HandleFunc("POST /shift", s.leaderOnly(s.handleShift))
	mux.HandleFunc("POST /import", s.leaderOnly(s.handleImport))
	mux.HandleFunc("GET /export", s.handleExport)
	mux.HandleFunc("POST /detect", s.leaderOnly(s.handleDetect))
	mux.HandleFunc("GET /health", s.handleHealth)

	return s.loggingMiddleware(mux)
}

// Start starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.Handler(),
	}

	go func() {
		s.logger.Info("starting HTTP server", "port", s.port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()

	<-ctx.Done()

	s.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(shutdownCtx)
}

// leaderOnly rejects segment mutations on follower nodes, which serve a
// read-only view of the replicated session.
func (s *Server) leaderOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cluster != nil && !s.cluster.IsLeader() {
			s.writeError(w, http.StatusServiceUnavailable,
				fmt.Errorf("node is %s, not leader; send writes to %s", s.cluster.State(), s.cluster.LeaderAddr()))
			return
		}
		next(w, r)
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if s.cluster != nil && !s.cluster.IsLeader() {
		s.writeReplicatedList(w)
		return
	}
	s.writeList(w)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req api.CreateRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Start != nil && req.End != nil && *req.Start >= *req.End {
		s.writeError(w, http.StatusUnprocessableEntity, store.ErrInvalidTimeOrdering)
		return
	}

	// Check the cap before Create so a rejected write leaves the color
	// counter untouched. A lone placeholder is replaced, not counted.
	existing := s.store.Segments()
	live := len(existing)
	if live == 1 && existing[0].IsPlaceholder() {
		live = 0
	}
	if live+1 > s.store.MaxSegments() {
		s.writeError(w, http.StatusUnprocessableEntity, store.ErrTooManySegments)
		return
	}

	seg := s.store.Create(req.Start, req.End, req.Name, true)
	seg.Tags = req.Tags
	if err := s.store.Append([]segment.Segment{seg}); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeList(w)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid index: %w", err))
		return
	}

	var req api.UpdateRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	err = s.store.UpdateAt(index, func(seg *segment.Segment) {
		if req.Start != nil {
			seg.Start = req.Start
		}
		if req.End != nil {
			seg.End = req.End
		}
		if req.Name != nil {
			seg.Name = *req.Name
		}
		if req.Tags != nil {
			seg.Tags = req.Tags
		}
	})
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeList(w)
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	var req api.RemoveRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.store.RemoveByIDs(req.IDs...)
	s.sel.Prune(segment.IDs(s.store.Segments()))
	s.writeList(w)
}

func (s *Server) handleSplit(w http.ResponseWriter, r *http.Request) {
	var req api.SplitRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.store.Split(req.Index, req.Time); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeList(w)
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	if err := s.store.MergeOverlapping(); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.sel.Prune(segment.IDs(s.store.Segments()))
	s.writeList(w)
}

func (s *Server) handleInvert(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Invert(); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.sel.SelectAll()
	s.writeList(w)
}

func (s *Server) handleFillGaps(w http.ResponseWriter, r *http.Request) {
	if err := s.store.FillGaps(); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeList(w)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.store.Clear()
	s.sel.SelectAll()
	s.writeList(w)
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	if !s.store.Undo() {
		s.writeError(w, http.StatusConflict, errors.New("nothing to undo"))
		return
	}
	s.sel.Prune(segment.IDs(s.store.Segments()))
	s.writeList(w)
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	if !s.store.Redo() {
		s.writeError(w, http.StatusConflict, errors.New("nothing to redo"))
		return
	}
	s.sel.Prune(segment.IDs(s.store.Segments()))
	s.writeList(w)
}

func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	var req api.SelectRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	ids := segment.IDs(s.store.Segments())
	switch {
	case req.Toggle != "":
		s.sel.Toggle(req.Toggle)
	case req.Only != "":
		s.sel.SelectOnly(req.Only, ids)
	case req.ByName != "":
		s.sel.SelectByName(req.ByName, s.store.Segments())
	case req.All:
		s.sel.SelectAll()
	case req.None:
		s.sel.DeselectAll(ids)
	default:
		s.writeError(w, http.StatusBadRequest, errors.New("no selection operation given"))
		return
	}
	s.writeList(w)
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	var req api.OrderRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	switch {
	case req.Move != nil:
		if err := s.store.MoveTo(req.Move.From, req.Move.To); err != nil {
			s.writeStoreError(w, err)
			return
		}
	case len(req.IDs) > 0:
		if err := s.store.ApplyOrder(req.IDs); err != nil {
			s.writeStoreError(w, err)
			return
		}
	case req.Sort:
		s.store.SortByApparentStart()
	default:
		s.writeError(w, http.StatusBadRequest, errors.New("no order operation given"))
		return
	}
	s.writeList(w)
}

func (s *Server) handleShift(w http.ResponseWriter, r *http.Request) {
	var req api.ShiftRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	concurrency := req.Concurrency
	if concurrency <= 0 {
		concurrency = transform.DefaultConcurrency
	}
	if err := s.integrator.ShiftSelected(r.Context(), req.Delta, s.sel, concurrency); err != nil {
		s.writeStoreError(w, err)
		return
	}
	// Shifting can drop segments whose clamped bounds collapse.
	s.sel.Prune(segment.IDs(s.store.Segments()))
	s.writeList(w)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req api.ImportRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	var entries []edl.Entry
	var err error
	switch req.Format {
	case "m3u8":
		entries, err = edl.ParseM3U8(strings.NewReader(req.Content))
	case "edl", "":
		entries, err = edl.ParseEDL(strings.NewReader(req.Content))
	default:
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("unknown format %q", req.Format))
		return
	}
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	mode := edl.ModeReplace
	if req.Append {
		mode = edl.ModeAppend
	}
	if err := edl.Import(s.store, entries, mode); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeList(w)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	segments := s.store.Segments()
	duration := s.store.Duration()

	switch format := r.URL.Query().Get("format"); format {
	case "m3u8":
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(edl.ExportM3U8(segments, s.store.Timeline().Source, duration)))
	case "edl", "":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(edl.ExportEDL(segments, duration)))
	default:
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("unknown format %q", format))
	}
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	if s.detector == nil {
		s.writeError(w, http.StatusServiceUnavailable, errors.New("no detector configured"))
		return
	}

	var params detect.Params
	if r.ContentLength > 0 {
		if err := decode(r, &params); err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	window := detect.Window{From: 0, To: s.store.Duration()}
	if err := s.integrator.Run(r.Context(), s.detector, window, params); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeList(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":  "ok",
		"working": s.integrator.Working(),
		"stats":   s.store.Stats(),
	}
	if s.cluster != nil {
		health["cluster"] = map[string]interface{}{
			"state":               s.cluster.State(),
			"leader":              s.cluster.LeaderAddr(),
			"replicated_segments": len(s.cluster.GetState().Segments),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(health)
}

// writeList responds with the current collection, selection state included.
func (s *Server) writeList(w http.ResponseWriter) {
	segments := s.store.Segments()

	list := api.SegmentList{
		Segments:  make([]api.Segment, len(segments)),
		Current:   s.store.Current(),
		Counter:   s.store.Counter(),
		UndoDepth: s.store.UndoDepth(),
		RedoDepth: s.store.RedoDepth(),
	}
	for i, seg := range segments {
		list.Segments[i] = api.Segment{
			ID:         seg.ID,
			ColorIndex: seg.ColorIndex,
			Start:      seg.Start,
			End:        seg.End,
			Name:       seg.Name,
			Tags:       seg.Tags,
			Selected:   s.sel.IsSelected(seg.ID),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(list)
}

// writeReplicatedList serves the Raft session state on follower nodes.
// Selection stays node-local; history depths are zero because the undo
// history lives on the leader.
func (s *Server) writeReplicatedList(w http.ResponseWriter) {
	state := s.cluster.GetState()

	list := api.SegmentList{
		Segments: make([]api.Segment, len(state.Segments)),
		Current:  state.Current,
		Counter:  state.Counter,
	}
	for i, seg := range state.Segments {
		list.Segments[i] = api.Segment{
			ID:         seg.ID,
			ColorIndex: seg.ColorIndex,
			Start:      seg.Start,
			End:        seg.End,
			Name:       seg.Name,
			Tags:       seg.Tags,
			Selected:   s.sel.IsSelected(seg.ID),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(list)
}

// writeStoreError maps domain errors to HTTP status codes.
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrUnknownSegment):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrInvalidTimeOrdering),
		errors.Is(err, store.ErrNoValidSegments),
		errors.Is(err, store.ErrTooManySegments),
		errors.Is(err, store.ErrEmptyCollection),
		errors.Is(err, store.ErrCannotInvert):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, detect.ErrNoMediaLoaded):
		status = http.StatusConflict
	}
	s.writeError(w, status, err)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(api.Error{Error: err.Error()})
}

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)

		s.logger.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
			"status", wrapped.statusCode,
			"duration", duration,
		)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
