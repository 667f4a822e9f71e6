package domain

import "time"

// GameRecord is a finished or abandoned game kept after its session is gone.
type GameRecord struct {
	ID          int64
	GameID      string
	SessionHash string
	Result      string
	Method      string
	Moves       []string
	PGN         string
	FinalFEN    string
	WhiteTime   int
	BlackTime   int
	EndedAt     time.Time
}

const (
	ResultWhite      = "white"
	ResultBlack      = "black"
	ResultUnfinished = "*"

	MethodTimeout = "timeout"
	MethodReset   = "reset"
)
