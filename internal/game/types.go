// internal/game/types.go
//
// Core type definitions for the Wavelength game record.
// Defines:
//   - Phase: the stage of the turn cycle (waiting/boss-input/guessing/revealed).
//   - Record: the single persisted document per game code.
//   - Player, Scale, ChatMessage: the record's nested values.
//
// JSON field names are the wire/persistence names; clients and every store
// backend read and write exactly this layout.

package game

import "strings"

// Phase represents the current stage of a round.
type Phase string

const (
	PhaseWaiting   Phase = "waiting"
	PhaseBossInput Phase = "boss-input"
	PhaseGuessing  Phase = "guessing"
	PhaseRevealed  Phase = "revealed"
)

// MaxPlayers is the fixed capacity of a game.
const MaxPlayers = 2

// MaxChatMessages is the chat log capacity; the oldest message is evicted first.
const MaxChatMessages = 50

// Player is one participant, identified by a client-generated opaque ID.
type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Scale holds the two free-text endpoint labels of the round's axis.
type Scale struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// ChatMessage is one entry of the capped chat log.
type ChatMessage struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

// Record holds the full state of one game.
type Record struct {
	GameID      string         `json:"gameId"`
	Players     []Player       `json:"players"`
	Round       int            `json:"round"`
	Scores      map[string]int `json:"scores"`
	BossID      string         `json:"bossId"`
	TargetAngle float64        `json:"targetAngle"`
	Scale       *Scale         `json:"scale"`
	Hint        *string        `json:"hint"`
	NeedleAngle *float64       `json:"needleAngle"`
	Phase       Phase          `json:"phase"`
	Chat        []ChatMessage  `json:"chat"`
	LastUpdate  int64          `json:"lastUpdate"` // unix millis, advisory only
}

// NormalizeCode returns the canonical (trimmed, upper-case) form of a game code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// HasPlayer reports whether id is one of the record's players.
func (r *Record) HasPlayer(id string) bool {
	for _, p := range r.Players {
		if p.ID == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	c := *r
	c.Players = append([]Player(nil), r.Players...)
	c.Chat = append([]ChatMessage(nil), r.Chat...)
	c.Scores = make(map[string]int, len(r.Scores))
	for k, v := range r.Scores {
		c.Scores[k] = v
	}
	if r.Scale != nil {
		s := *r.Scale
		c.Scale = &s
	}
	if r.Hint != nil {
		h := *r.Hint
		c.Hint = &h
	}
	if r.NeedleAngle != nil {
		n := *r.NeedleAngle
		c.NeedleAngle = &n
	}
	return &c
}
