package board

import "strings"

// PromotionKind is the piece a pawn turns into, as sent on the wire.
type PromotionKind byte

const (
	PromoteQueen  PromotionKind = 'q'
	PromoteRook   PromotionKind = 'r'
	PromoteBishop PromotionKind = 'b'
	PromoteKnight PromotionKind = 'n'
)

func (k PromotionKind) String() string { return string(rune(k)) }

// NormalizePromotion maps a caller choice onto a kind; anything empty or
// unknown becomes a queen.
func NormalizePromotion(choice string) PromotionKind {
	switch strings.ToLower(strings.TrimSpace(choice)) {
	case "r":
		return PromoteRook
	case "b":
		return PromoteBishop
	case "n":
		return PromoteKnight
	default:
		return PromoteQueen
	}
}

// IsPromotion is the geometric check: a pawn landing on the far back rank.
func IsPromotion(p Piece, toRow int) bool {
	return (p == 'P' && toRow == 0) || (p == 'p' && toRow == Size-1)
}

// Promote returns the promoted symbol in the mover's case.
func Promote(p Piece, kind PromotionKind) Piece {
	if p.Color() == White {
		return Piece(kind) - ('a' - 'A')
	}
	return Piece(kind)
}
