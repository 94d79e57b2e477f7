// internal/game/validate.go
//
// Input normalisation for player-supplied fields.
// Responsibilities:
//   - Trim and length-check ids, names, scale labels, hints and chat messages.
//   - Reject needle angles that are not finite or fall outside ±NeedleRange.
//
// All failures are ErrValidation with the message clients display.

package game

import (
	"math"
	"strings"
	"unicode/utf8"
)

// Input limits, in characters.
const (
	MaxPlayerIDLen   = 64
	MaxPlayerNameLen = 40
	MaxScaleLabelLen = 60
	MaxHintLen       = 200
	MaxChatLen       = 1000
)

// NewPlayer trims and validates a player's identity.
func NewPlayer(id, name string) (Player, error) {
	id, name = strings.TrimSpace(id), strings.TrimSpace(name)
	if id == "" || name == "" {
		return Player{}, Validationf("Missing playerId or playerName")
	}
	if utf8.RuneCountInString(id) > MaxPlayerIDLen {
		return Player{}, Validationf("playerId is too long")
	}
	if utf8.RuneCountInString(name) > MaxPlayerNameLen {
		return Player{}, Validationf("playerName must be at most %d characters", MaxPlayerNameLen)
	}
	return Player{ID: id, Name: name}, nil
}

// NormalizeHint trims and validates the boss's scale and hint.
func NormalizeHint(scale Scale, hint string) (Scale, string, error) {
	scale.Left, scale.Right = strings.TrimSpace(scale.Left), strings.TrimSpace(scale.Right)
	hint = strings.TrimSpace(hint)
	if scale.Left == "" || scale.Right == "" {
		return Scale{}, "", Validationf("Please enter both ends of the scale")
	}
	if hint == "" {
		return Scale{}, "", Validationf("Please enter a hint")
	}
	if utf8.RuneCountInString(scale.Left) > MaxScaleLabelLen || utf8.RuneCountInString(scale.Right) > MaxScaleLabelLen {
		return Scale{}, "", Validationf("Scale labels must be at most %d characters", MaxScaleLabelLen)
	}
	if utf8.RuneCountInString(hint) > MaxHintLen {
		return Scale{}, "", Validationf("Hint must be at most %d characters", MaxHintLen)
	}
	return scale, hint, nil
}

// ValidateNeedle checks that a needle angle is finite and on the dial.
func ValidateNeedle(angle float64) error {
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return Validationf("needleAngle must be a number")
	}
	if angle < -NeedleRange || angle > NeedleRange {
		return Validationf("needleAngle must be between %.0f and %.0f", -NeedleRange, NeedleRange)
	}
	return nil
}

// NewChatMessage trims and validates a chat entry.
func NewChatMessage(sender, message string) (ChatMessage, error) {
	sender, message = strings.TrimSpace(sender), strings.TrimSpace(message)
	if sender == "" || message == "" {
		return ChatMessage{}, Validationf("Missing sender or message")
	}
	if utf8.RuneCountInString(message) > MaxChatLen {
		return ChatMessage{}, Validationf("Message must be at most %d characters", MaxChatLen)
	}
	return ChatMessage{Sender: sender, Message: message}, nil
}
