// Package fndef provides the data model for site-function definitions.
//
// This package contains type definitions, input-schema validation, and
// canonical serialization only. All other internal packages import fndef;
// fndef imports nothing internal. This keeps the definition model the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Input emission order is ascending InputValue.Order with declaration
//     rank as tiebreaker; every ordering helper must be a stable sort.
//   - Content hashes are computed over canonical JSON (sorted keys,
//     NFC-normalized strings) so that two loads of the same definition
//     hash identically regardless of map iteration order.
//   - FilterNode is a closed union: a node is either a combinator
//     (Op + Children) or a leaf (Cond), never both.
package fndef
