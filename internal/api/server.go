package api

import (
	"errors"
	"net"
	"slices"
	"strconv"

	"github.com/fasthttp/router"
	"github.com/go-logr/logr"
	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"

	"github.com/corefreq/cpu-freq-manager/internal/clock"
	"github.com/corefreq/cpu-freq-manager/internal/dispatch"
	"github.com/corefreq/cpu-freq-manager/internal/freqtable"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Server serves the control API. One instance per agent.
type Server struct {
	mgr    dispatch.Manager
	stater clock.CoreStater
	log    logr.Logger
	srv    *fasthttp.Server
}

func NewServer(mgr dispatch.Manager, stater clock.CoreStater, log logr.Logger) *Server {
	s := &Server{
		mgr:    mgr,
		stater: stater,
		log:    log,
	}

	r := router.New()
	r.GET("/v1/cores", s.handleStatus)
	r.POST("/v1/cores/{core}/frequency", s.withCore(s.handleSetFrequency))
	r.POST("/v1/cores/{core}/online", s.withCore(s.handleCoreOnline))
	r.POST("/v1/cores/{core}/offline-prepare", s.withCore(s.handleOfflinePrepare))
	r.POST("/v1/cores/{core}/offline-abort", s.withCore(s.handleOfflineAbort))
	r.POST("/v1/suspend", s.handleSuspend)
	r.POST("/v1/resume", s.handleResume)

	s.srv = &fasthttp.Server{
		Handler: r.Handler,
		Name:    "corefreq-agent",
	}
	return s
}

// ListenAndServe blocks serving the control API on addr.
func (s *Server) ListenAndServe(addr string) error {
	s.log.V(4).Info("control API listening", "addr", addr)
	return s.srv.ListenAndServe(addr)
}

// Serve blocks serving the control API on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	return s.srv.Serve(ln)
}

func (s *Server) Shutdown() error {
	return s.srv.Shutdown()
}

type coreHandler func(ctx *fasthttp.RequestCtx, core uint)

// withCore parses the {core} path segment before invoking next.
func (s *Server) withCore(next coreHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		raw, _ := ctx.UserValue("core").(string)
		core, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			s.writeError(ctx, fasthttp.StatusBadRequest, "invalid core identifier: "+raw)
			return
		}
		next(ctx, uint(core))
	}
}

func (s *Server) handleSetFrequency(ctx *fasthttp.RequestCtx, core uint) {
	var req FrequencyRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		s.writeError(ctx, fasthttp.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}
	rel, err := freqtable.ParseRelation(req.Relation)
	if err != nil {
		s.writeError(ctx, fasthttp.StatusBadRequest, err.Error())
		return
	}

	if err := s.mgr.RequestFrequency(core, freqtable.Frequency(req.TargetKHz), rel); err != nil {
		s.writeError(ctx, statusForError(err), err.Error())
		return
	}

	freq, _ := s.mgr.CurrentFrequency(core)
	s.writeJSON(ctx, fasthttp.StatusOK, FrequencyResponse{
		Core:         core,
		FrequencyKHz: uint(freq),
	})
}

func (s *Server) handleStatus(ctx *fasthttp.RequestCtx) {
	cores := s.mgr.Cores()
	slices.Sort(cores)

	resp := StatusResponse{Cores: make([]CoreStatus, 0, len(cores))}
	for _, core := range cores {
		freq, _ := s.mgr.CurrentFrequency(core)
		resp.Cores = append(resp.Cores, CoreStatus{
			Core:         core,
			FrequencyKHz: uint(freq),
			Active:       s.stater.IsActive(core),
			Suspended:    s.mgr.Suspended(core),
		})
	}
	s.writeJSON(ctx, fasthttp.StatusOK, resp)
}

func (s *Server) handleCoreOnline(ctx *fasthttp.RequestCtx, core uint) {
	s.mgr.OnCoreOnline(core)
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

func (s *Server) handleOfflinePrepare(ctx *fasthttp.RequestCtx, core uint) {
	s.mgr.OnCoreOfflinePrepare(core)
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

func (s *Server) handleOfflineAbort(ctx *fasthttp.RequestCtx, core uint) {
	s.mgr.OnCoreOfflineAborted(core)
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

func (s *Server) handleSuspend(ctx *fasthttp.RequestCtx) {
	s.mgr.SuspendAll()
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

func (s *Server) handleResume(ctx *fasthttp.RequestCtx) {
	s.mgr.ResumeAll()
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, dispatch.ErrUnsupportedFrequency):
		return fasthttp.StatusBadRequest
	case errors.Is(err, dispatch.ErrDeviceSuspended):
		return fasthttp.StatusConflict
	case errors.Is(err, dispatch.ErrCoreUnavailable):
		return fasthttp.StatusServiceUnavailable
	default:
		return fasthttp.StatusInternalServerError
	}
}

func (s *Server) writeJSON(ctx *fasthttp.RequestCtx, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		s.log.Error(err, "response marshaling failed")
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(data)
}

func (s *Server) writeError(ctx *fasthttp.RequestCtx, status int, msg string) {
	s.writeJSON(ctx, status, ErrorResponse{Error: msg})
}
