package identity

import (
	"errors"
	"testing"
)

func TestNew(t *testing.T) {
	if _, err := New("", "0xabc"); !errors.Is(err, ErrEmptySubject) {
		t.Fatalf("expected ErrEmptySubject, got %v", err)
	}
	if _, err := New("   ", ""); !errors.Is(err, ErrEmptySubject) {
		t.Fatalf("expected ErrEmptySubject for blank subject, got %v", err)
	}

	id, err := New("user-1", "")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if id.HasWallet() || id.WalletVerified {
		t.Fatalf("wallet should be absent: %+v", id)
	}

	id, err = New("user-1", " ")
	if err != nil || id.Wallet != "" {
		t.Fatalf("blank wallet should be absent: %+v err=%v", id, err)
	}

	id, err = New("user-1", "0xAbC")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if id.Wallet != "0xAbC" || id.WalletVerified {
		t.Fatalf("wallet must be copied verbatim and unverified: %+v", id)
	}
}

func TestWithVerifiedWallet(t *testing.T) {
	id, _ := New("user-1", "0xaaa")
	v := id.WithVerifiedWallet("0xbbb")
	if v.Wallet != "0xbbb" || !v.WalletVerified {
		t.Fatalf("got %+v", v)
	}
	if id.WalletVerified || id.Wallet != "0xaaa" {
		t.Fatalf("original mutated: %+v", id)
	}
}
