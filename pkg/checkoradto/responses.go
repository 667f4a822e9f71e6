package checkoradto

import "time"

type MoveResponse struct {
	Valid    bool    `json:"valid"`
	Message  string  `json:"message"`
	Captured *string `json:"captured"`
	*GameState
}

type NewGameResponse struct {
	Message string `json:"message"`
	*GameState
}

type ValidMovesResponse struct {
	ValidMoves []Destination `json:"valid_moves"`
}

type IsPromotionResponse struct {
	IsPromotion bool `json:"is_promotion"`
}

type PauseResponse struct {
	Message string `json:"message"`
	*GameState
}

type GameRecord struct {
	GameID    string    `json:"game_id"`
	Result    string    `json:"result"`
	Method    string    `json:"method"`
	Moves     []string  `json:"moves"`
	PGN       string    `json:"pgn"`
	FinalFEN  string    `json:"final_fen"`
	WhiteTime int       `json:"white_time"`
	BlackTime int       `json:"black_time"`
	EndedAt   time.Time `json:"ended_at"`
}

type GamesResponse struct {
	Games []GameRecord `json:"games"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Engine string `json:"engine"`
}

// MoveRejected is the body for move requests that never reached the game.
type MoveRejected struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}
