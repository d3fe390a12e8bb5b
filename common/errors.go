// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package common

// The error constants below are the fatal categories of a migration run.
// Every failure is wrapped into exactly one of them so callers can match
// the kind of a failure with errors.Is instead of inspecting message text.
const (
	// ErrMalformedInput indicates persisted data that cannot be decoded,
	// like a truncated snapshot blob or a length field exceeding the
	// remaining input.
	ErrMalformedInput = ConstError("malformed input")

	// ErrMissingData indicates a datum that is required but unresolvable in
	// any configured store, like an absent trie root or an account address
	// that cannot be recovered from its hash.
	ErrMissingData = ConstError("missing data")

	// ErrInconsistency indicates a failed hash or count comparison. Results
	// produced by a run reporting this error must be discarded.
	ErrInconsistency = ConstError("state inconsistency")
)
