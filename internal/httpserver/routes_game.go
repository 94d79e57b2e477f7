// internal/httpserver/routes_game.go
//
// Game endpoints under /api/game. Every handler decodes and shape-checks the body,
// hands the action to the phase controller and maps its error kind to a status:
//
//   POST /api/game                   → full new record
//   GET  /api/game/{gameId}          → full record
//   POST /api/game/{gameId}/join     → {success:true, ...record}
//   POST /api/game/{gameId}/hint     → {success:true}
//   POST /api/game/{gameId}/guess    → {success:true, points}
//   POST /api/game/{gameId}/next     → {success:true}
//   POST /api/game/{gameId}/chat     → {success:true}
//   GET  /api/game/{gameId}/ws       → websocket stream of records

package httpserver

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/robalobadob/wavelength/internal/game"
)

type playerReq struct {
	PlayerID   string `json:"playerId" validate:"required"`
	PlayerName string `json:"playerName" validate:"required"`
}

var playerMessages = bindMessages{
	"PlayerID":   {"required": "Missing playerId or playerName"},
	"PlayerName": {"required": "Missing playerId or playerName"},
}

type scaleReq struct {
	Left  string `json:"left" validate:"required"`
	Right string `json:"right" validate:"required"`
}

type hintReq struct {
	PlayerID string    `json:"playerId" validate:"required"`
	Scale    *scaleReq `json:"scale" validate:"required"`
	Hint     string    `json:"hint" validate:"required"`
}

var hintMessages = bindMessages{
	"PlayerID": {"required": "Missing playerId"},
	"Scale":    {"required": "Please enter both ends of the scale"},
	"Left":     {"required": "Please enter both ends of the scale"},
	"Right":    {"required": "Please enter both ends of the scale"},
	"Hint":     {"required": "Please enter a hint"},
}

type guessReq struct {
	PlayerID    string   `json:"playerId" validate:"required"`
	NeedleAngle *float64 `json:"needleAngle" validate:"required"`
}

var guessMessages = bindMessages{
	"PlayerID":    {"required": "Missing playerId"},
	"NeedleAngle": {"required": "Missing needleAngle"},
}

type chatReq struct {
	Sender  string `json:"sender" validate:"required"`
	Message string `json:"message" validate:"required"`
}

var chatMessages = bindMessages{
	"Sender":  {"required": "Missing sender or message"},
	"Message": {"required": "Missing sender or message"},
}

type successRes struct {
	Success bool `json:"success"`
}

type guessRes struct {
	Success bool `json:"success"`
	Points  int  `json:"points"`
}

// joinRes flattens the record next to the success flag.
type joinRes struct {
	Success bool `json:"success"`
	*game.Record
}

func gameID(r *http.Request) string { return chi.URLParam(r, "gameId") }

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req playerReq
	if !bindJSON(w, r, &req, playerMessages, "Missing playerId or playerName") {
		return
	}
	rec, err := s.deps.Service.Create(r.Context(), req.PlayerID, req.PlayerName)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	rec, err := s.deps.Service.State(r.Context(), gameID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req playerReq
	if !bindJSON(w, r, &req, playerMessages, "Missing playerId or playerName") {
		return
	}
	rec, err := s.deps.Service.Join(r.Context(), gameID(r), req.PlayerID, req.PlayerName)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, joinRes{Success: true, Record: rec})
}

func (s *Server) handleHint(w http.ResponseWriter, r *http.Request) {
	var req hintReq
	if !bindJSON(w, r, &req, hintMessages, "Missing playerId, scale or hint") {
		return
	}
	scale := game.Scale{Left: req.Scale.Left, Right: req.Scale.Right}
	if err := s.deps.Service.SubmitHint(r.Context(), gameID(r), req.PlayerID, scale, req.Hint); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successRes{Success: true})
}

func (s *Server) handleGuess(w http.ResponseWriter, r *http.Request) {
	var req guessReq
	if !bindJSON(w, r, &req, guessMessages, "Missing playerId or needleAngle") {
		return
	}
	points, err := s.deps.Service.SubmitGuess(r.Context(), gameID(r), req.PlayerID, *req.NeedleAngle)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, guessRes{Success: true, Points: points})
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Service.AdvanceRound(r.Context(), gameID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successRes{Success: true})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatReq
	if !bindJSON(w, r, &req, chatMessages, "Missing sender or message") {
		return
	}
	if err := s.deps.Service.AppendChat(r.Context(), gameID(r), req.Sender, req.Message); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successRes{Success: true})
}

// handleWS streams the record: first the current state, then every committed change.
// The lookup here only decides between 404 and upgrade; the hub reloads the state
// after subscribing.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	rec, err := s.deps.Service.State(r.Context(), gameID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	code := rec.GameID
	s.deps.Hub.Serve(w, r, code, func(ctx context.Context) (*game.Record, error) {
		return s.deps.Service.State(ctx, code)
	})
}
