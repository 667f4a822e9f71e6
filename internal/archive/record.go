package archive

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/park285/checkora/internal/board"
	"github.com/park285/checkora/internal/domain"
	"github.com/park285/checkora/internal/game"
)

// NewRecord captures the final state of g for archiving.
func NewRecord(sessionHash string, g *game.Game, result, method string, endedAt time.Time) *domain.GameRecord {
	moves := make([]string, 0, len(g.History))
	for _, h := range g.History {
		moves = append(moves, h.Notation)
	}
	return &domain.GameRecord{
		GameID:      uuid.NewString(),
		SessionHash: sessionHash,
		Result:      result,
		Method:      method,
		Moves:       moves,
		PGN:         MoveText(moves, result),
		FinalFEN:    g.Board.FEN(g.Turn),
		WhiteTime:   g.Clock.White,
		BlackTime:   g.Clock.Black,
		EndedAt:     endedAt.UTC(),
	}
}

// ResultFor maps the side that ran out of time to the winning result.
func ResultFor(flagged board.Color) string {
	switch flagged {
	case board.White:
		return domain.ResultBlack
	case board.Black:
		return domain.ResultWhite
	default:
		return domain.ResultUnfinished
	}
}

// MoveText renders numbered move pairs followed by the result token.
func MoveText(moves []string, result string) string {
	var sb strings.Builder
	for i, mv := range moves {
		if i%2 == 0 {
			if i > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(strconv.Itoa(i/2 + 1))
			sb.WriteString(". ")
		} else {
			sb.WriteByte(' ')
		}
		sb.WriteString(mv)
	}
	token := resultToken(result)
	if sb.Len() > 0 {
		sb.WriteByte(' ')
	}
	sb.WriteString(token)
	return sb.String()
}

func resultToken(result string) string {
	switch result {
	case domain.ResultWhite:
		return "1-0"
	case domain.ResultBlack:
		return "0-1"
	default:
		return "*"
	}
}
