package policy

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	xerrors "TreasurySweep/internal/errors"
)

// TransferSelector is the 4-byte function selector of ERC-20
// transfer(address,uint256).
const TransferSelector = "0xa9059cbb"

// ClauseUnrecognized marks a decoded clause whose shape Compile never
// produces. The backend may hand back predicate variants of its own; display
// degrades per clause instead of failing the whole decode.
const ClauseUnrecognized = "unrecognized"

// conjunction joins the three clauses. Clause order is fixed: target,
// selector, argument. The decoder relies on it to round-trip.
const conjunction = " && "

const (
	targetPrefix   = "tx.to == "
	selectorPrefix = "tx.data[0:4] == "
	argumentPrefix = "tx.data[4:36] == "
)

// Restriction is the decoded view of a compiled predicate.
type Restriction struct {
	Token       string
	Destination string
	Selector    string
}

// Compile builds the predicate that restricts a signer to ERC-20 transfers
// of token towards destination. Both addresses are lower-cased; the
// destination is left-padded to the 32-byte calldata slot.
func Compile(token, destination string) (string, error) {
	token = strings.TrimSpace(token)
	destination = strings.TrimSpace(destination)

	if !common.IsHexAddress(token) {
		return "", xerrors.New(xerrors.CodeInvalidAddress,
			fmt.Sprintf("token address %q is not a 20-byte hex address", token))
	}
	if !common.IsHexAddress(destination) {
		return "", xerrors.New(xerrors.CodeInvalidAddress,
			fmt.Sprintf("destination address %q is not a 20-byte hex address", destination))
	}
	token = strings.ToLower(common.HexToAddress(token).Hex())
	destination = strings.ToLower(common.HexToAddress(destination).Hex())

	clauses := []string{
		targetPrefix + token,
		selectorPrefix + TransferSelector,
		argumentPrefix + padToSlot(destination),
	}
	return strings.Join(clauses, conjunction), nil
}

// Decompile is the inverse of Compile. Clauses that do not match the shapes
// Compile emits decode to ClauseUnrecognized rather than failing.
func Decompile(predicate string) Restriction {
	decoded := Restriction{
		Token:       ClauseUnrecognized,
		Destination: ClauseUnrecognized,
		Selector:    ClauseUnrecognized,
	}
	for _, clause := range strings.Split(predicate, conjunction) {
		clause = strings.TrimSpace(clause)
		switch {
		case strings.HasPrefix(clause, targetPrefix):
			if addr := strings.TrimPrefix(clause, targetPrefix); common.IsHexAddress(addr) {
				decoded.Token = strings.ToLower(addr)
			}
		case strings.HasPrefix(clause, selectorPrefix):
			if sel := strings.TrimPrefix(clause, selectorPrefix); isHexBytes(sel, 4) {
				decoded.Selector = strings.ToLower(sel)
			}
		case strings.HasPrefix(clause, argumentPrefix):
			if addr, ok := unpadSlot(strings.TrimPrefix(clause, argumentPrefix)); ok {
				decoded.Destination = addr
			}
		}
	}
	return decoded
}

// padToSlot left-pads a 20-byte address to the 32-byte argument slot.
func padToSlot(address string) string {
	return "0x" + strings.Repeat("0", 24) + strings.TrimPrefix(address, "0x")
}

// unpadSlot strips the 12 zero bytes of padding and recovers the address.
func unpadSlot(slot string) (string, bool) {
	if !isHexBytes(slot, 32) {
		return "", false
	}
	hex := strings.ToLower(strings.TrimPrefix(slot, "0x"))
	if !strings.HasPrefix(hex, strings.Repeat("0", 24)) {
		return "", false
	}
	address := "0x" + hex[24:]
	if !common.IsHexAddress(address) {
		return "", false
	}
	return address, true
}

func isHexBytes(value string, byteLen int) bool {
	if !strings.HasPrefix(value, "0x") {
		return false
	}
	hex := value[2:]
	if len(hex) != byteLen*2 {
		return false
	}
	for _, r := range hex {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
