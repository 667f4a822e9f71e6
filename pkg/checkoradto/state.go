package checkoradto

type Destination struct {
	Row         int  `json:"row"`
	Col         int  `json:"col"`
	IsCapture   bool `json:"is_capture"`
	IsPromotion bool `json:"is_promotion"`
}

type HistoryEntry struct {
	Notation   string  `json:"notation"`
	Piece      string  `json:"piece"`
	From       [2]int  `json:"from"`
	To         [2]int  `json:"to"`
	Captured   *string `json:"captured"`
	Color      string  `json:"color"`
	PromotedTo *string `json:"promoted_to"`
}

type CapturedPieces struct {
	White []string `json:"white"`
	Black []string `json:"black"`
}

// GameState is the board view every mutating endpoint returns.
type GameState struct {
	Board          [][]*string    `json:"board"`
	CurrentTurn    string         `json:"current_turn"`
	MoveHistory    []HistoryEntry `json:"move_history"`
	CapturedPieces CapturedPieces `json:"captured_pieces"`
	WhiteTime      int            `json:"white_time"`
	BlackTime      int            `json:"black_time"`
	Paused         bool           `json:"paused"`
	GameOver       bool           `json:"game_over"`
	Winner         string         `json:"winner,omitempty"`
}
