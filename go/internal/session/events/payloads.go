package events

import (
	"github.com/mcdev12/sketchturn/go/internal/models"
)

// Outbound event types shared between the session and the transport layers

// Type names an outbound session event
type Type string

const (
	TypeUsers       Type = "users"
	TypeTurn        Type = "turn"
	TypeRound       Type = "round"
	TypeTimer       Type = "timer"
	TypeLeaderboard Type = "leaderboard"
	TypeDraw        Type = "draw"
	TypeClear       Type = "clear"
	TypeHistory     Type = "history"
)

// Event is a single outbound state change. Data is marshalled as-is.
type Event struct {
	Type Type
	Data any
}

// PlayerSummary is one roster entry of a users event
type PlayerSummary struct {
	Name         string  `json:"name"`
	ConnectionID string  `json:"connectionId"`
	Rating       float64 `json:"rating"`
}

// TurnPayload announces the active drawer. An empty ConnectionID means nobody holds the turn.
type TurnPayload struct {
	ConnectionID string `json:"connectionId"`
	Round        int    `json:"round"`
}

// LeaderboardEntry is one ranked line of the final leaderboard
type LeaderboardEntry struct {
	Name   string  `json:"name"`
	Rating float64 `json:"rating"`
}

func Users(players []PlayerSummary) Event {
	if players == nil {
		players = []PlayerSummary{}
	}
	return Event{Type: TypeUsers, Data: players}
}

func Turn(connectionID string, round int) Event {
	return Event{Type: TypeTurn, Data: TurnPayload{ConnectionID: connectionID, Round: round}}
}

func Round(round int) Event {
	return Event{Type: TypeRound, Data: round}
}

func Timer(seconds int) Event {
	return Event{Type: TypeTimer, Data: seconds}
}

func Leaderboard(entries []LeaderboardEntry) Event {
	if entries == nil {
		entries = []LeaderboardEntry{}
	}
	return Event{Type: TypeLeaderboard, Data: entries}
}

func Draw(stroke models.Stroke) Event {
	return Event{Type: TypeDraw, Data: stroke}
}

// Clear carries no payload
func Clear() Event {
	return Event{Type: TypeClear}
}

func History(strokes []models.Stroke) Event {
	if strokes == nil {
		strokes = []models.Stroke{}
	}
	return Event{Type: TypeHistory, Data: strokes}
}
