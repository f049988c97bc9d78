package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"
)

func TestWrapPreservesCode(t *testing.T) {
	cause := stdErrors.New("dial tcp: connection refused")
	err := Wrap(CodeSigningUnavailable, cause, "", WithMetadata("realm", "realm-1"))

	if CodeOf(err) != CodeSigningUnavailable {
		t.Fatalf("code = %s, want %s", CodeOf(err), CodeSigningUnavailable)
	}
	if !stdErrors.Is(err, cause) {
		t.Fatal("wrapped cause lost from chain")
	}
	if !stdErrors.Is(err, New(CodeSigningUnavailable, "")) {
		t.Fatal("errors.Is by code failed")
	}

	// Another layer of wrapping keeps the code reachable.
	outer := fmt.Errorf("iteration 3: %w", err)
	if CodeOf(outer) != CodeSigningUnavailable {
		t.Fatalf("code through fmt wrap = %s, want %s", CodeOf(outer), CodeSigningUnavailable)
	}
}

func TestDefaultMessageFromRegistry(t *testing.T) {
	err := New(CodeNoBalance, "")
	if err.Message() != "no token balance" {
		t.Fatalf("message = %q, want registry default", err.Message())
	}
}

func TestSkipCodes(t *testing.T) {
	for _, code := range []Code{CodeInsufficientGas, CodeNoBalance, CodeBelowThreshold} {
		if !IsSkip(New(code, "")) {
			t.Fatalf("code %s not classified as skip", code)
		}
		if ShouldAlert(New(code, "")) {
			t.Fatalf("skip code %s marked alertable", code)
		}
	}
	for _, code := range []Code{CodeSigningRejected, CodeTransactionFailed, CodeConfirmationUnknown, CodeDirectoryError} {
		if IsSkip(New(code, "")) {
			t.Fatalf("failure code %s classified as skip", code)
		}
		if !ShouldAlert(New(code, "")) {
			t.Fatalf("failure code %s not alertable", code)
		}
	}
}

func TestRetryableCodes(t *testing.T) {
	if !Retryable(New(CodeConfirmationUnknown, "")) {
		t.Fatal("CONFIRMATION_UNKNOWN should be retryable on a later iteration")
	}
	if Retryable(New(CodeSigningRejected, "")) {
		t.Fatal("SIGNING_REJECTED must not be retried blindly")
	}
}

func TestCodeOfForeignError(t *testing.T) {
	if CodeOf(stdErrors.New("plain")) != CodeUnknown {
		t.Fatal("foreign errors must map to UNKNOWN")
	}
	if CodeOf(nil) != CodeUnknown {
		t.Fatal("nil must map to UNKNOWN")
	}
}

func TestMetadataIsCopied(t *testing.T) {
	err := New(CodeConfigError, "bad threshold", WithMetadata("field", "threshold"))
	meta := err.Metadata()
	meta["field"] = "mutated"
	if err.Metadata()["field"] != "threshold" {
		t.Fatal("metadata map leaked by reference")
	}
}
