/*
 * Copyright 2025 The Coedit Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package operations provides validation, transformation and application of
// linear-text edit operations. Positions are byte offsets into the document
// content.
package operations

import (
	"fmt"

	"github.com/coedit-team/coedit/api/types"
	"github.com/coedit-team/coedit/pkg/errors"
)

var (
	// ErrUnknownKind is returned when the operation kind is not one of
	// insert, delete or retain.
	ErrUnknownKind = errors.InvalidArgument("unknown operation kind").WithCode("ErrUnknownKind")

	// ErrNegativeBounds is returned when position or length is negative.
	ErrNegativeBounds = errors.InvalidArgument("operation bounds must be non-negative").WithCode("ErrNegativeBounds")

	// ErrEmptyInsert is returned when an insert carries no content.
	ErrEmptyInsert = errors.InvalidArgument("insert requires content").WithCode("ErrEmptyInsert")

	// ErrOutOfBounds is returned when an operation's position falls outside
	// the current content after transformation. It signals client desync and
	// is deliberately not clamped away.
	ErrOutOfBounds = errors.InvalidArgument("operation position out of bounds").WithCode("ErrOutOfBounds")
)

// Validate checks the static shape of an operation independent of any
// document state.
func Validate(op types.Operation) error {
	if !op.Kind.Valid() {
		return fmt.Errorf("kind %q: %w", op.Kind, ErrUnknownKind)
	}
	if op.Position < 0 {
		return fmt.Errorf("position %d: %w", op.Position, ErrNegativeBounds)
	}

	switch op.Kind {
	case types.OpInsert:
		if op.Content == "" {
			return ErrEmptyInsert
		}
	case types.OpDelete, types.OpRetain:
		if op.Length < 0 {
			return fmt.Errorf("length %d: %w", op.Length, ErrNegativeBounds)
		}
	}

	return nil
}

// Transform adjusts op to account for an operation that has already been
// accepted since op's base version, preserving convergence. The applied
// operation is not modified. Retain never mutates content, so transforming
// against it is the identity.
func Transform(op types.Operation, applied types.Operation) types.Operation {
	switch applied.Kind {
	case types.OpInsert:
		return transformAgainstInsert(op, applied.Position, len(applied.Content))
	case types.OpDelete:
		return transformAgainstDelete(op, applied.Position, applied.Length)
	default:
		return op
	}
}

// transformAgainstInsert shifts op to account for an insert of length
// insLen at insPos. An insert at the same position as an earlier-accepted
// insert is shifted behind it, so the server-decided order also decides the
// relative order of the text.
func transformAgainstInsert(op types.Operation, insPos, insLen int) types.Operation {
	switch op.Kind {
	case types.OpInsert:
		if op.Position >= insPos {
			op.Position += insLen
		}
	case types.OpDelete, types.OpRetain:
		if insPos <= op.Position {
			op.Position += insLen
		}
		// An insert landing strictly inside the range leaves the range
		// untouched: the range still covers the same leading bytes, which is
		// what a client deleting "everything up to here" intended.
	}
	return op
}

// transformAgainstDelete shifts or shrinks op to account for a delete of
// delLen bytes at delPos.
func transformAgainstDelete(op types.Operation, delPos, delLen int) types.Operation {
	delEnd := delPos + delLen

	switch op.Kind {
	case types.OpInsert:
		if op.Position >= delEnd {
			op.Position -= delLen
		} else if op.Position > delPos {
			// Insert point was inside the deleted range; collapse to its start.
			op.Position = delPos
		}
	case types.OpDelete, types.OpRetain:
		opEnd := op.Position + op.Length
		if delEnd <= op.Position {
			op.Position -= delLen
		} else if opEnd > delPos {
			// Ranges overlap; drop the overlapping part.
			overlap := min(opEnd, delEnd) - max(op.Position, delPos)
			op.Length -= overlap
			if op.Position > delPos {
				op.Position = delPos
			}
		}
	}
	return op
}

// Apply applies the operation to the given content and returns the result.
// The position must lie within [0, len(content)]; a position outside that
// range is rejected rather than clamped to avoid masking client desync. A
// delete or retain length running past the end of the content is clamped.
func Apply(content string, op types.Operation) (string, error) {
	if err := Validate(op); err != nil {
		return "", err
	}
	if op.Position > len(content) {
		return "", fmt.Errorf(
			"position %d beyond content length %d: %w",
			op.Position, len(content), ErrOutOfBounds,
		)
	}

	switch op.Kind {
	case types.OpInsert:
		return content[:op.Position] + op.Content + content[op.Position:], nil
	case types.OpDelete:
		end := op.Position + op.Length
		if end > len(content) {
			end = len(content)
		}
		return content[:op.Position] + content[end:], nil
	default: // retain
		return content, nil
	}
}
