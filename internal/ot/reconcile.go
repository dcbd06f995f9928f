// Package ot adjusts the position of an incoming edit against recent
// edits on the same document.
//
// The adjustment is a heuristic. It does not make concurrent edits
// converge; the server keeps a single authoritative copy of every file
// and the last applied content wins. Only the replayed descriptor moves.
package ot

import (
	"unicode/utf8"

	"codeshare/internal/models"
)

// DefaultWindow is how many prior operations an incoming edit is checked against.
const DefaultWindow = 10

// Reconcile returns a copy of incoming with its position shifted by every
// prior operation that happened strictly earlier:
//   - an insertion at or before the position moves it forward by the
//     inserted length;
//   - a deletion starting before the position moves it back by the part
//     of the deleted range that lies before it, never below zero.
//
// A replace counts as a deletion of Length followed by an insertion of Text.
// window is expected oldest first; its order does not change the result.
func Reconcile(incoming models.Operation, window []models.Operation) models.Operation {
	out := incoming
	for _, prior := range window {
		if prior.Timestamp >= incoming.Timestamp {
			continue
		}

		switch prior.Type {
		case models.OperationInsert:
			out.Position = shiftInsert(out.Position, prior.Position, insertedLen(prior))
		case models.OperationDelete:
			out.Position = shiftDelete(out.Position, prior.Position, prior.Length)
		case models.OperationReplace:
			out.Position = shiftDelete(out.Position, prior.Position, prior.Length)
			out.Position = shiftInsert(out.Position, prior.Position, insertedLen(prior))
		}
	}
	return out
}

func shiftInsert(pos, at, n int) int {
	if at <= pos {
		return pos + n
	}
	return pos
}

func shiftDelete(pos, at, n int) int {
	if at >= pos || n <= 0 {
		return pos
	}
	overlap := min(n, pos-at)
	return max(pos-overlap, 0)
}

func insertedLen(op models.Operation) int {
	if op.Text != "" {
		return utf8.RuneCountInString(op.Text)
	}
	return max(op.Length, 0)
}
