package custody

import (
	"context"
	"strings"
	"sync"

	xerrors "TreasurySweep/internal/errors"
)

// WalletCreator is the slice of the custody client the resolver needs.
type WalletCreator interface {
	CreateWallet(ctx context.Context, network string) (Wallet, error)
}

// DestinationResolver resolves the consolidation target exactly once per
// process: the configured address when present, otherwise a single lazy
// wallet creation. The resolved destination is immutable afterwards. It is
// an explicit object handed to every component that needs the destination,
// never module-level state, so tests can inject fresh fixtures per case.
type DestinationResolver struct {
	creator    WalletCreator
	network    string
	configured Destination

	mu       sync.Mutex
	resolved *Destination
}

// NewDestinationResolver builds a resolver for the given network. configured
// may be empty, in which case the first Resolve call creates the wallet.
func NewDestinationResolver(creator WalletCreator, network string, configured Destination) *DestinationResolver {
	return &DestinationResolver{
		creator:    creator,
		network:    network,
		configured: configured,
	}
}

// Resolve returns the destination account, creating it on first use when no
// address was configured. Later calls reuse the cached result; the creation
// call is made at most once per process lifetime.
func (r *DestinationResolver) Resolve(ctx context.Context) (Destination, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.resolved != nil {
		return *r.resolved, nil
	}

	if addr := strings.TrimSpace(r.configured.Address); addr != "" {
		dest := Destination{Address: addr, Handle: strings.TrimSpace(r.configured.Handle)}
		r.resolved = &dest
		return dest, nil
	}

	if r.creator == nil {
		return Destination{}, xerrors.New(xerrors.CodeConfigError,
			"no destination address configured and no custody client to create one")
	}
	wallet, err := r.creator.CreateWallet(ctx, r.network)
	if err != nil {
		return Destination{}, xerrors.Wrap(xerrors.CodeConfigError, err, "resolve destination account")
	}
	dest := Destination{Address: wallet.Address, Handle: wallet.Handle}
	r.resolved = &dest
	return dest, nil
}
