package custody

import "strings"

// Wallet is a deposit address scoped to one isolation realm. The engine only
// reads its address, its custody handle, and its optional linked signing key.
type Wallet struct {
	Address      string `json:"address"`
	Handle       string `json:"handle"`
	SigningKeyID string `json:"signing_key_id,omitempty"`
}

// SigningIdentifier resolves the identifier presented to the delegated
// signer: the linked signing key when present, otherwise the address itself.
func (w Wallet) SigningIdentifier() string {
	if id := strings.TrimSpace(w.SigningKeyID); id != "" {
		return id
	}
	return w.Address
}

// Account groups the wallets of one isolation realm. Realms are independent
// authorization domains; restrictions created in one never apply to another.
type Account struct {
	RealmID string   `json:"realm_id"`
	Name    string   `json:"name,omitempty"`
	Wallets []Wallet `json:"wallets"`
}

// Destination is the single consolidation target for swept funds. The handle
// is empty for self-custodied destinations.
type Destination struct {
	Address string `json:"address"`
	Handle  string `json:"handle,omitempty"`
}

// TxRequest describes the transaction submitted for delegated signing. Data
// is hex encoded with a 0x prefix; Value is a decimal base-unit string.
type TxRequest struct {
	Network string `json:"network"`
	ChainID int64  `json:"chain_id,omitempty"`
	To      string `json:"to"`
	Data    string `json:"data"`
	Value   string `json:"value"`
}

// RestrictionEffect is the backend-side action taken when a restriction's
// predicate matches.
type RestrictionEffect string

const (
	EffectAllow RestrictionEffect = "allow"
	EffectDeny  RestrictionEffect = "deny"
)
