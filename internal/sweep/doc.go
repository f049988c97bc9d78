// Package sweep implements the consolidation engine: the per-wallet
// orchestrator that decides whether and how much to move, and the scheduler
// that repeats that decision over the whole account set without overlap.
// All expected conditions (empty wallet, dust balance, missing gas) are
// modelled as classified outcomes, not errors; only setup failures escape as
// errors.
package sweep
