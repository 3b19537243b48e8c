package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/rollcall/internal/pbconv"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/service"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

type Dependencies struct {
	Logger     zerolog.Logger
	Addr       string
	Attendance service.Attendance
	Readers    *service.ReaderRegistry // nil accepts every reader
	Gateway    http.Handler            // mounted at /ws when set
	WebRoot    string                  // static files at / when set
}

type Server struct {
	httpServer *http.Server
	logger     zerolog.Logger
	mux        *http.ServeMux
	attendance service.Attendance
	readers    *service.ReaderRegistry
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()
	logger := d.Logger.With().Str("component", "http").Logger()

	s := &Server{
		logger:     logger,
		mux:        mux,
		attendance: d.Attendance,
		readers:    d.Readers,
	}

	mux.HandleFunc("POST /v1/scan", s.handleScan)
	mux.HandleFunc("POST /v1/reset", s.handleReset)
	mux.HandleFunc("GET /v1/ledger", s.handleLedger)
	mux.HandleFunc("GET /v1/presence/{tag}", s.handlePresence)

	if d.Gateway != nil {
		mux.Handle("GET /ws", d.Gateway)
	}
	if d.WebRoot != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(d.WebRoot)))
	}

	handler := loggingMiddleware(logger, mux)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	pb := isProtobuf(r)

	var req types.ScanRequest
	if pb {
		var msg structpb.Struct
		if err := readProto(r, &msg); err != nil {
			writeError(w, http.StatusBadRequest, "bad_protobuf", "invalid protobuf body")
			return
		}
		var err error
		if req, err = pbconv.ScanRequestFromStruct(&msg); err != nil {
			writeError(w, http.StatusBadRequest, "bad_protobuf", err.Error())
			return
		}
	} else {
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
			return
		}
	}

	if s.readers != nil {
		if err := s.readers.Authorize(r.Context(), req.ReaderID); err != nil {
			s.writeServiceError(w, "scan", err)
			return
		}
	}

	tag, err := types.ParseTag(req.CardTag)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_card_tag", err.Error())
		return
	}

	entry, err := s.attendance.RecordScan(r.Context(), tag)
	if err != nil && !errors.Is(err, service.ErrPublishFailed) {
		s.writeServiceError(w, "scan", err)
		return
	}
	if err != nil {
		// The row is durable; a retry would toggle the card again.
		s.logger.Warn().Err(err).Str("card_tag", tag.String()).Msg("scan recorded without notification")
	}

	resp := types.NewScanResponse(entry, time.Now())
	if pb {
		writeProto(w, http.StatusOK, pbconv.ScanResponseToStruct(resp))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.attendance.Reset(r.Context()); err != nil {
		s.writeServiceError(w, "reset", err)
		return
	}
	writeJSON(w, http.StatusOK, types.ResetResponse{
		OK:         true,
		ServerTime: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// handleLedger returns the snapshot in store order, or sorted by time with
// ?order=time.
func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	snap, err := s.attendance.Snapshot(r.Context())
	if err != nil {
		s.writeServiceError(w, "ledger", err)
		return
	}

	switch r.URL.Query().Get("order") {
	case "", "store":
	case "time":
		snap = snap.Chronological()
	default:
		writeError(w, http.StatusBadRequest, "bad_order", `order must be "time" or "store"`)
		return
	}

	if wantsProtobuf(r) {
		writeProto(w, http.StatusOK, pbconv.SnapshotToList(snap))
		return
	}
	writeJSON(w, http.StatusOK, snap.Records())
}

func (s *Server) handlePresence(w http.ResponseWriter, r *http.Request) {
	tag, err := types.ParseTag(r.PathValue("tag"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_card_tag", err.Error())
		return
	}

	present, err := s.attendance.IsPresent(r.Context(), tag)
	if err != nil {
		s.writeServiceError(w, "presence", err)
		return
	}
	writeJSON(w, http.StatusOK, types.PresenceResponse{CardTag: tag.String(), Present: present})
}

func (s *Server) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidTag):
		writeError(w, http.StatusBadRequest, "invalid_card_tag", err.Error())
	case errors.Is(err, service.ErrUnknownReader):
		writeError(w, http.StatusForbidden, "unknown_reader", err.Error())
	case errors.Is(err, service.ErrLedgerGap):
		s.logger.Error().Err(err).Str("op", op).Msg("ledger gap")
		writeError(w, http.StatusInternalServerError, "ledger_gap", err.Error())
	case errors.Is(err, service.ErrCorruptRecord):
		s.logger.Error().Err(err).Str("op", op).Msg("corrupt ledger")
		writeError(w, http.StatusInternalServerError, "corrupt_ledger", "stored ledger record is corrupt")
	case errors.Is(err, service.ErrDispatcherClosed):
		writeError(w, http.StatusServiceUnavailable, "shutting_down", "server is shutting down")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "cancelled", "request cancelled")
	default:
		s.logger.Error().Err(err).Str("op", op).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
	}
}
