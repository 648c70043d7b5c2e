package query

import "errors"

// Query-side error taxonomy. Codec- and quota- and cycle-layer errors are
// identified via errors.Is against their own sentinels
// (codec.ErrNonCanonicalArg, codec.ErrInvalidArgType,
// codec.ErrInvalidResultType, codec.ErrUnexpectedEndOfData,
// cycle.ErrCycle, quota.ErrQuotaExceeded); the remaining identifiers are
// owned here. Query bodies return them, and the executor itself also
// returns two of them: ErrNotImplemented when no Body is registered for a
// kind, and ErrTypeMismatch when a cached entry is not a codec.Result.
var (
	// ErrNodeNotFound is returned by a query body when an AST/IR node
	// referenced by an argument CID cannot be located.
	ErrNodeNotFound = errors.New("query: node not found")
	// ErrSymbolNotFound is returned when a symbol lookup fails to resolve.
	ErrSymbolNotFound = errors.New("query: symbol not found")
	// ErrNotAModule is returned when a CID expected to name a module
	// names something else.
	ErrNotAModule = errors.New("query: not a module")
	// ErrTypeMismatch is returned when an argument or intermediate value
	// has an unexpected type.
	ErrTypeMismatch = errors.New("query: type mismatch")
	// ErrNotImplemented is returned by a query body for a code path that
	// is intentionally unimplemented.
	ErrNotImplemented = errors.New("query: not implemented")
)
