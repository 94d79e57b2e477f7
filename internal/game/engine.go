// internal/game/engine.go
//
// Phase state machine for a single Wavelength game record.
// Responsibilities:
//   - Create the initial record for the creating player (phase "waiting").
//   - Validate an action against the current phase and the acting player.
//   - Apply the transition in place:
//       waiting    --join(2nd player)-->  boss-input
//       boss-input --hint(boss)-------->  guessing
//       guessing   --guess(guesser)---->  revealed
//       revealed   --advance----------->  boss-input (round+1, boss rotates)
//
// Notes:
//   - Methods never touch storage; the service layer loads, calls one method and
//     persists the result. A method that returns an error leaves the record unchanged.
//   - While a game is still "waiting" there is no guesser yet, so every turn action
//     fails with ErrInvalidPhase before any role check.

package game

import "time"

// NewRecord builds the initial record for a freshly allocated game code.
// The creator is the first boss.
func NewRecord(code string, creator Player, target float64, now time.Time) *Record {
	return &Record{
		GameID:      NormalizeCode(code),
		Players:     []Player{creator},
		Round:       1,
		Scores:      map[string]int{creator.ID: 0},
		BossID:      creator.ID,
		TargetAngle: target,
		Phase:       PhaseWaiting,
		Chat:        []ChatMessage{},
		LastUpdate:  now.UnixMilli(),
	}
}

// Join adds p to the game. Joining twice with the same ID is a no-op and
// reports joined=false.
func (r *Record) Join(p Player, now time.Time) (joined bool, err error) {
	if r.HasPlayer(p.ID) {
		return false, nil
	}
	if len(r.Players) >= MaxPlayers {
		return false, actionErr(ErrGameFull, "Game is full")
	}
	r.Players = append(r.Players, p)
	if r.Scores == nil {
		r.Scores = make(map[string]int)
	}
	r.Scores[p.ID] = 0
	if r.Phase == PhaseWaiting && len(r.Players) == MaxPlayers {
		r.Phase = PhaseBossInput
	}
	r.touch(now)
	return true, nil
}

// SubmitHint stores the boss's scale and hint and opens the guessing phase.
func (r *Record) SubmitHint(playerID string, scale Scale, hint string, now time.Time) error {
	if r.Phase == PhaseWaiting {
		return actionErr(ErrInvalidPhase, "Waiting for a second player")
	}
	if playerID != r.BossID {
		return actionErr(ErrForbidden, "Only the boss can submit a hint")
	}
	if r.Phase != PhaseBossInput {
		return actionErr(ErrInvalidPhase, "Not in boss-input phase")
	}
	r.Scale = &scale
	r.Hint = &hint
	r.Phase = PhaseGuessing
	r.touch(now)
	return nil
}

// SubmitGuess records the guesser's needle, reveals the round and credits the
// score tier to the guesser. It returns the points awarded.
func (r *Record) SubmitGuess(playerID string, needleAngle float64, now time.Time) (int, error) {
	if r.Phase == PhaseWaiting {
		return 0, actionErr(ErrInvalidPhase, "Waiting for a second player")
	}
	if playerID == r.BossID {
		return 0, actionErr(ErrForbidden, "Boss cannot submit a guess")
	}
	if !r.HasPlayer(playerID) {
		return 0, actionErr(ErrForbidden, "Not a player in this game")
	}
	if r.Phase != PhaseGuessing {
		return 0, actionErr(ErrInvalidPhase, "Not in guessing phase")
	}
	points := Score(needleAngle, r.TargetAngle)
	r.NeedleAngle = &needleAngle
	r.Phase = PhaseRevealed
	r.Scores[playerID] += points
	r.touch(now)
	return points, nil
}

// AdvanceRound starts the next round with a fresh target. Either player may call it.
func (r *Record) AdvanceRound(target float64, now time.Time) error {
	if r.Phase != PhaseRevealed {
		return actionErr(ErrInvalidPhase, "Not in revealed phase")
	}
	r.BossID = r.otherPlayer(r.BossID)
	r.Round++
	r.TargetAngle = target
	r.Scale = nil
	r.Hint = nil
	r.NeedleAngle = nil
	r.Phase = PhaseBossInput
	r.touch(now)
	return nil
}

// AppendChat adds msg to the chat log, evicting the oldest entries beyond MaxChatMessages.
// Chat is open in every phase.
func (r *Record) AppendChat(msg ChatMessage, now time.Time) {
	r.Chat = append(r.Chat, msg)
	if over := len(r.Chat) - MaxChatMessages; over > 0 {
		r.Chat = append([]ChatMessage(nil), r.Chat[over:]...)
	}
	r.touch(now)
}

// otherPlayer returns the player who is not id. Boss rotation is strict
// two-player alternation, so with two players this is always the other one.
func (r *Record) otherPlayer(id string) string {
	for _, p := range r.Players {
		if p.ID != id {
			return p.ID
		}
	}
	return id
}

func (r *Record) touch(now time.Time) { r.LastUpdate = now.UnixMilli() }
