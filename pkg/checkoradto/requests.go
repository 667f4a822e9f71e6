package checkoradto

// MoveRequest carries raw JSON values so handlers can coerce numeric strings.
type MoveRequest struct {
	FromRow   any    `json:"from_row"`
	FromCol   any    `json:"from_col"`
	ToRow     any    `json:"to_row"`
	ToCol     any    `json:"to_col"`
	Promotion string `json:"promotion"`
}

type PauseRequest struct {
	Paused *bool `json:"paused"`
}
