package policy

import (
	"errors"
	"strings"
	"testing"

	xerrors "TreasurySweep/internal/errors"
)

const (
	testToken       = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
	testDestination = "0x9f8f72aa9304c8b593d555f12ef6589cc3a579a2"
)

func TestCompileEmitsFixedClauseOrder(t *testing.T) {
	predicate, err := Compile(testToken, testDestination)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	clauses := strings.Split(predicate, " && ")
	if len(clauses) != 3 {
		t.Fatalf("expected 3 clauses, got %d: %q", len(clauses), predicate)
	}
	if clauses[0] != "tx.to == "+testToken {
		t.Fatalf("unexpected target clause: %q", clauses[0])
	}
	if clauses[1] != "tx.data[0:4] == "+TransferSelector {
		t.Fatalf("unexpected selector clause: %q", clauses[1])
	}
	wantArg := "tx.data[4:36] == 0x" + strings.Repeat("0", 24) + strings.TrimPrefix(testDestination, "0x")
	if clauses[2] != wantArg {
		t.Fatalf("unexpected argument clause: %q", clauses[2])
	}
}

func TestCompileLowerCasesAddresses(t *testing.T) {
	mixed := "0x" + strings.ToUpper(testToken[2:])
	predicate, err := Compile(mixed, testDestination)
	if err != nil {
		t.Fatalf("compile mixed case: %v", err)
	}
	if strings.Contains(predicate, strings.ToUpper(testToken[2:])) {
		t.Fatalf("predicate retained upper-case address: %q", predicate)
	}
}

func TestCompileRejectsMalformedAddresses(t *testing.T) {
	cases := []struct {
		name        string
		token, dest string
	}{
		{"short token", "0x1234", testDestination},
		{"empty destination", testToken, ""},
		{"non-hex destination", testToken, "0xzz8f72aa9304c8b593d555f12ef6589cc3a579a2"},
		{"overlong token", testToken + "00", testDestination},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Compile(tc.token, tc.dest); !errors.Is(err, xerrors.New(xerrors.CodeInvalidAddress, "")) {
				t.Fatalf("expected INVALID_ADDRESS, got %v", err)
			}
		})
	}
}

func TestDecompileRoundTrip(t *testing.T) {
	pairs := [][2]string{
		{testToken, testDestination},
		{"0xdac17f958d2ee523a2206206994597c13d831ec7", "0x0000000000000000000000000000000000000001"},
		{"0xffffffffffffffffffffffffffffffffffffffff", "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"},
	}
	for _, pair := range pairs {
		predicate, err := Compile(pair[0], pair[1])
		if err != nil {
			t.Fatalf("compile(%s, %s): %v", pair[0], pair[1], err)
		}
		decoded := Decompile(predicate)
		if decoded.Token != pair[0] {
			t.Fatalf("token round-trip: want %s, got %s", pair[0], decoded.Token)
		}
		if decoded.Destination != pair[1] {
			t.Fatalf("destination round-trip: want %s, got %s", pair[1], decoded.Destination)
		}
		if decoded.Selector != TransferSelector {
			t.Fatalf("selector round-trip: want %s, got %s", TransferSelector, decoded.Selector)
		}
	}
}

func TestDecompileDegradesPerClause(t *testing.T) {
	// A backend variant with an unknown byte range must not fail the decode;
	// the recognisable clauses still come through.
	predicate := "tx.to == " + testToken +
		" && tx.data[0:4] == 0xdeadbeef" +
		" && tx.data[36:68] == 0x" + strings.Repeat("0", 64)
	decoded := Decompile(predicate)
	if decoded.Token != testToken {
		t.Fatalf("expected token to decode, got %s", decoded.Token)
	}
	if decoded.Selector != "0xdeadbeef" {
		t.Fatalf("expected foreign selector to decode, got %s", decoded.Selector)
	}
	if decoded.Destination != ClauseUnrecognized {
		t.Fatalf("expected unrecognized destination, got %s", decoded.Destination)
	}
}

func TestDecompileRejectsBadPadding(t *testing.T) {
	// Argument slot without the 12-byte zero padding cannot be an address.
	predicate := "tx.data[4:36] == 0x" + strings.Repeat("f", 64)
	decoded := Decompile(predicate)
	if decoded.Destination != ClauseUnrecognized {
		t.Fatalf("expected unrecognized destination, got %s", decoded.Destination)
	}
}

func TestDecompileGarbage(t *testing.T) {
	decoded := Decompile("allow everything")
	if decoded.Token != ClauseUnrecognized || decoded.Destination != ClauseUnrecognized || decoded.Selector != ClauseUnrecognized {
		t.Fatalf("expected fully unrecognized restriction, got %+v", decoded)
	}
}
