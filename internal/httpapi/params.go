package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/valyala/fasthttp"

	"github.com/park285/checkora/internal/board"
	"github.com/park285/checkora/pkg/checkoradto"
)

var errBadParam = errors.New("bad request parameter")

// coerceInt accepts JSON numbers and numeric strings. Fractional numbers are
// truncated toward zero.
func coerceInt(v any) (int, error) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, errBadParam
		}
		return int(n), nil
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), nil
		}
		f, err := n.Float64()
		if err != nil {
			return 0, errBadParam
		}
		return coerceInt(f)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, errBadParam
		}
		return i, nil
	default:
		return 0, errBadParam
	}
}

func squareOf(row, col any) (board.Square, error) {
	r, err := coerceInt(row)
	if err != nil {
		return board.Square{}, err
	}
	c, err := coerceInt(col)
	if err != nil {
		return board.Square{}, err
	}
	return board.Square{Row: r, Col: c}, nil
}

func parseMoveRequest(body []byte) (from, to board.Square, promotion string, err error) {
	var req checkoradto.MoveRequest
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err = dec.Decode(&req); err != nil {
		return board.Square{}, board.Square{}, "", errBadParam
	}
	if from, err = squareOf(req.FromRow, req.FromCol); err != nil {
		return board.Square{}, board.Square{}, "", err
	}
	if to, err = squareOf(req.ToRow, req.ToCol); err != nil {
		return board.Square{}, board.Square{}, "", err
	}
	return from, to, req.Promotion, nil
}

func queryInt(args *fasthttp.Args, key string) (int, error) {
	if !args.Has(key) {
		return 0, errBadParam
	}
	return coerceInt(string(args.Peek(key)))
}

func querySquare(args *fasthttp.Args, rowKey, colKey string) (board.Square, error) {
	r, err := queryInt(args, rowKey)
	if err != nil {
		return board.Square{}, err
	}
	c, err := queryInt(args, colKey)
	if err != nil {
		return board.Square{}, err
	}
	return board.Square{Row: r, Col: c}, nil
}
