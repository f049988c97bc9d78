// Package chain houses blockchain connectivity for the sweep engine: the
// client contract consumed by the orchestrator (balances, raw broadcast,
// confirmation waits), ERC-20 call packing, and multi-network configuration
// helpers. Concrete EVM clients live in the ethereum subpackage and are
// registered per network by the provider subpackage.
package chain
