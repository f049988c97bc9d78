// Package policy compiles the destination+token transfer restriction into
// the byte-range predicate language evaluated by the custody backend, and
// decodes backend predicates back into their components for display and
// audit. Only the single restriction shape used by the sweep engine is
// supported; this is not a general predicate compiler.
package policy
