// Package custody wraps the REST boundary of the remote custody backend: the
// account directory, wallet provisioning, restriction management, and the
// delegated signer that evaluates compiled restrictions before signing. The
// backend's internals are never reimplemented here; this package only
// consumes its contracts and validates responses at the boundary.
package custody
