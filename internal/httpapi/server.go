package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/checkora/internal/adapter/presenter"
	"github.com/park285/checkora/internal/game"
	"github.com/park285/checkora/internal/service/play"
	"github.com/park285/checkora/internal/session"
	"github.com/park285/checkora/pkg/checkoradto"
)

const (
	defaultCookieName     = "checkora_sid"
	defaultRequestTimeout = 15 * time.Second
	contentTypeJSON       = "application/json"
)

type Config struct {
	SessionCookie  string
	SessionTTL     time.Duration
	RequestTimeout time.Duration
	EngineName     string
}

type Server struct {
	svc       *play.Service
	cfg       Config
	logger    *zap.Logger
	endpoints map[string]endpoint
}

func New(svc *play.Service, cfg Config, logger *zap.Logger) *Server {
	if cfg.SessionCookie == "" {
		cfg.SessionCookie = defaultCookieName
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = session.DefaultTTL
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{svc: svc, cfg: cfg, logger: logger}
	s.endpoints = s.routes()
	return s
}

// Handler returns the request router with access logging.
func (s *Server) Handler() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()
		s.route(ctx)
		s.logger.Debug("http_request",
			zap.ByteString("method", ctx.Method()),
			zap.ByteString("path", ctx.Path()),
			zap.Int("status", ctx.Response.StatusCode()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}

type endpoint struct {
	method string
	handle fasthttp.RequestHandler
}

func (s *Server) routes() map[string]endpoint {
	return map[string]endpoint{
		"/api/new-game":     {fasthttp.MethodPost, s.handleNewGame},
		"/api/move":         {fasthttp.MethodPost, s.handleMove},
		"/api/valid-moves":  {fasthttp.MethodGet, s.handleValidMoves},
		"/api/is-promotion": {fasthttp.MethodGet, s.handleIsPromotion},
		"/api/pause":        {fasthttp.MethodPost, s.handlePause},
		"/api/state":        {fasthttp.MethodGet, s.handleState},
		"/api/board.png":    {fasthttp.MethodGet, s.handleBoardPNG},
		"/api/games":        {fasthttp.MethodGet, s.handleGames},
		"/healthz":          {fasthttp.MethodGet, s.handleHealth},
	}
}

func (s *Server) route(ctx *fasthttp.RequestCtx) {
	ep, ok := s.endpoints[string(ctx.Path())]
	if !ok {
		writeJSON(ctx, fasthttp.StatusNotFound, checkoradto.ErrorResponse{Code: "not_found", Message: "Not found."})
		return
	}
	if string(ctx.Method()) != ep.method {
		ctx.Response.Header.Set(fasthttp.HeaderAllow, ep.method)
		writeJSON(ctx, fasthttp.StatusMethodNotAllowed, checkoradto.ErrorResponse{Code: "method_not_allowed", Message: "Method not allowed."})
		return
	}
	ep.handle(ctx)
}

func (s *Server) handleNewGame(ctx *fasthttp.RequestCtx) {
	reqCtx, cancel := s.requestContext()
	defer cancel()

	view, msg, err := s.svc.NewGame(reqCtx, s.sessionID(ctx))
	if err != nil {
		s.writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, checkoradto.NewGameResponse{Message: msg, GameState: presenter.ToDTOState(view)})
}

func (s *Server) handleMove(ctx *fasthttp.RequestCtx) {
	sid := s.sessionID(ctx)
	invalid := checkoradto.MoveRejected{Message: s.svc.Text("move.invalid_request", nil, "Invalid request data.")}

	from, to, promotion, err := parseMoveRequest(ctx.PostBody())
	if err != nil {
		writeJSON(ctx, fasthttp.StatusBadRequest, invalid)
		return
	}

	reqCtx, cancel := s.requestContext()
	defer cancel()
	out, err := s.svc.Move(reqCtx, sid, from, to, promotion)
	switch {
	case errors.Is(err, game.ErrInvalidSquare):
		writeJSON(ctx, fasthttp.StatusBadRequest, invalid)
	case errors.Is(err, session.ErrConflict):
		writeJSON(ctx, fasthttp.StatusConflict, checkoradto.MoveRejected{
			Message: s.svc.Text("move.conflict", nil, "The game changed while your move was processed. Please try again."),
		})
	case err != nil:
		s.logError("move_failed", err)
		writeJSON(ctx, fasthttp.StatusInternalServerError, checkoradto.MoveRejected{Message: s.internalMessage()})
	default:
		writeJSON(ctx, fasthttp.StatusOK, presenter.ToDTOMove(out))
	}
}

func (s *Server) handleValidMoves(ctx *fasthttp.RequestCtx) {
	sid := s.sessionID(ctx)
	empty := checkoradto.ValidMovesResponse{ValidMoves: []checkoradto.Destination{}}

	sq, err := querySquare(ctx.QueryArgs(), "row", "col")
	if err != nil {
		writeJSON(ctx, fasthttp.StatusBadRequest, empty)
		return
	}

	reqCtx, cancel := s.requestContext()
	defer cancel()
	dests, err := s.svc.LegalMoves(reqCtx, sid, sq)
	switch {
	case errors.Is(err, game.ErrInvalidSquare):
		writeJSON(ctx, fasthttp.StatusBadRequest, empty)
	case err != nil:
		s.logError("valid_moves_failed", err)
		writeJSON(ctx, fasthttp.StatusInternalServerError, empty)
	default:
		writeJSON(ctx, fasthttp.StatusOK, checkoradto.ValidMovesResponse{ValidMoves: presenter.ToDTODestinations(dests)})
	}
}

func (s *Server) handleIsPromotion(ctx *fasthttp.RequestCtx) {
	sid := s.sessionID(ctx)
	args := ctx.QueryArgs()
	from, ferr := querySquare(args, "from_row", "from_col")
	to, terr := querySquare(args, "to_row", "to_col")
	if ferr != nil || terr != nil {
		writeJSON(ctx, fasthttp.StatusBadRequest, checkoradto.IsPromotionResponse{})
		return
	}

	reqCtx, cancel := s.requestContext()
	defer cancel()
	promo, err := s.svc.IsPromotion(reqCtx, sid, from, to)
	switch {
	case errors.Is(err, game.ErrInvalidSquare):
		writeJSON(ctx, fasthttp.StatusBadRequest, checkoradto.IsPromotionResponse{})
	case err != nil:
		s.logError("is_promotion_failed", err)
		writeJSON(ctx, fasthttp.StatusInternalServerError, checkoradto.IsPromotionResponse{})
	default:
		writeJSON(ctx, fasthttp.StatusOK, checkoradto.IsPromotionResponse{IsPromotion: promo})
	}
}

func (s *Server) handlePause(ctx *fasthttp.RequestCtx) {
	sid := s.sessionID(ctx)
	var req checkoradto.PauseRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.Paused == nil {
		writeJSON(ctx, fasthttp.StatusBadRequest, checkoradto.ErrorResponse{
			Code:    "invalid_request",
			Message: s.svc.Text("move.invalid_request", nil, "Invalid request data."),
		})
		return
	}

	reqCtx, cancel := s.requestContext()
	defer cancel()
	view, msg, err := s.svc.Pause(reqCtx, sid, *req.Paused)
	if err != nil {
		s.writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, checkoradto.PauseResponse{Message: msg, GameState: presenter.ToDTOState(view)})
}

func (s *Server) handleState(ctx *fasthttp.RequestCtx) {
	reqCtx, cancel := s.requestContext()
	defer cancel()

	view, err := s.svc.State(reqCtx, s.sessionID(ctx))
	if err != nil {
		s.writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, presenter.ToDTOState(view))
}

func (s *Server) handleBoardPNG(ctx *fasthttp.RequestCtx) {
	reqCtx, cancel := s.requestContext()
	defer cancel()

	raw, err := s.svc.BoardPNG(reqCtx, s.sessionID(ctx))
	if err != nil {
		s.writeServiceError(ctx, err)
		return
	}
	ctx.Response.Header.Set(fasthttp.HeaderCacheControl, "no-store")
	ctx.SetContentType("image/png")
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBody(raw)
}

func (s *Server) handleGames(ctx *fasthttp.RequestCtx) {
	reqCtx, cancel := s.requestContext()
	defer cancel()

	games, err := s.svc.RecentGames(reqCtx, s.sessionID(ctx))
	if err != nil {
		s.writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, checkoradto.GamesResponse{Games: presenter.ToDTOGames(games)})
}

func (s *Server) handleHealth(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, fasthttp.StatusOK, checkoradto.HealthResponse{Status: "ok", Engine: s.cfg.EngineName})
}

// sessionID returns the caller's session id, issuing a fresh cookie when the
// request carries none or a malformed one.
func (s *Server) sessionID(ctx *fasthttp.RequestCtx) string {
	if raw := ctx.Request.Header.Cookie(s.cfg.SessionCookie); len(raw) > 0 {
		if id, err := uuid.ParseBytes(raw); err == nil {
			return id.String()
		}
	}
	id := uuid.NewString()
	c := fasthttp.AcquireCookie()
	defer fasthttp.ReleaseCookie(c)
	c.SetKey(s.cfg.SessionCookie)
	c.SetValue(id)
	c.SetPath("/")
	c.SetHTTPOnly(true)
	c.SetSameSite(fasthttp.CookieSameSiteLaxMode)
	c.SetMaxAge(int(s.cfg.SessionTTL / time.Second))
	ctx.Response.Header.SetCookie(c)
	return id
}

func (s *Server) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.cfg.RequestTimeout)
}

func (s *Server) writeServiceError(ctx *fasthttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, play.ErrNoGame):
		writeJSON(ctx, fasthttp.StatusNotFound, checkoradto.ErrorResponse{
			Code:    "game_not_found",
			Message: s.svc.Text("game.not_found", nil, "No game in progress."),
		})
	case errors.Is(err, session.ErrConflict):
		writeJSON(ctx, fasthttp.StatusConflict, checkoradto.ErrorResponse{
			Code:      "conflict",
			Message:   s.svc.Text("move.conflict", nil, "The game changed while your move was processed. Please try again."),
			Retryable: true,
		})
	default:
		s.logError("request_failed", err)
		writeJSON(ctx, fasthttp.StatusInternalServerError, checkoradto.ErrorResponse{Code: "internal", Message: s.internalMessage()})
	}
}

func (s *Server) internalMessage() string {
	return s.svc.Text("error.internal", nil, "Something went wrong. Please start a new game.")
}

func (s *Server) logError(event string, err error) {
	if errors.Is(err, session.ErrCorruptSnapshot) {
		s.logger.Warn(event, zap.Error(err))
		return
	}
	s.logger.Error(event, zap.Error(err))
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		ctx.Error("encode response", fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType(contentTypeJSON)
	ctx.SetBody(body)
}
