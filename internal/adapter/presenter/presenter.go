package presenter

import (
	"github.com/park285/checkora/internal/board"
	"github.com/park285/checkora/internal/domain"
	"github.com/park285/checkora/internal/engine"
	"github.com/park285/checkora/internal/game"
	"github.com/park285/checkora/internal/service/play"
	"github.com/park285/checkora/pkg/checkoradto"
)

func ToDTOState(v *play.View) *checkoradto.GameState {
	if v == nil {
		return nil
	}
	return &checkoradto.GameState{
		Board:          v.Board.Grid(),
		CurrentTurn:    string(v.Turn),
		MoveHistory:    toDTOHistory(v.History),
		CapturedPieces: toDTOCaptured(v.Captured),
		WhiteTime:      v.WhiteTime,
		BlackTime:      v.BlackTime,
		Paused:         v.Paused,
		GameOver:       v.GameOver(),
		Winner:         string(v.Winner()),
	}
}

func ToDTOMove(m *play.MoveOutcome) *checkoradto.MoveResponse {
	if m == nil {
		return nil
	}
	return &checkoradto.MoveResponse{
		Valid:     m.Valid,
		Message:   m.Message,
		Captured:  pieceToken(m.Captured),
		GameState: ToDTOState(m.State),
	}
}

func ToDTODestinations(dests []engine.Destination) []checkoradto.Destination {
	out := make([]checkoradto.Destination, 0, len(dests))
	for _, d := range dests {
		out = append(out, checkoradto.Destination{
			Row:         d.Row,
			Col:         d.Col,
			IsCapture:   d.IsCapture,
			IsPromotion: d.IsPromotion,
		})
	}
	return out
}

func ToDTOGames(records []*domain.GameRecord) []checkoradto.GameRecord {
	out := make([]checkoradto.GameRecord, 0, len(records))
	for _, rec := range records {
		if rec == nil {
			continue
		}
		out = append(out, checkoradto.GameRecord{
			GameID:    rec.GameID,
			Result:    rec.Result,
			Method:    rec.Method,
			Moves:     append([]string{}, rec.Moves...),
			PGN:       rec.PGN,
			FinalFEN:  rec.FinalFEN,
			WhiteTime: rec.WhiteTime,
			BlackTime: rec.BlackTime,
			EndedAt:   rec.EndedAt,
		})
	}
	return out
}

func toDTOHistory(history []game.HistoryEntry) []checkoradto.HistoryEntry {
	out := make([]checkoradto.HistoryEntry, 0, len(history))
	for _, h := range history {
		out = append(out, checkoradto.HistoryEntry{
			Notation:   h.Notation,
			Piece:      h.Piece,
			From:       h.From,
			To:         h.To,
			Captured:   h.Captured,
			Color:      string(h.Color),
			PromotedTo: h.PromotedTo,
		})
	}
	return out
}

func toDTOCaptured(c game.Captured) checkoradto.CapturedPieces {
	return checkoradto.CapturedPieces{
		White: append([]string{}, c.White...),
		Black: append([]string{}, c.Black...),
	}
}

func pieceToken(p board.Piece) *string {
	if p.Empty() {
		return nil
	}
	s := p.String()
	return &s
}
