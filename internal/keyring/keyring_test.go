package keyring

import (
	"errors"
	"testing"

	gokeyring "github.com/zalando/go-keyring"
)

func TestSetAndGet(t *testing.T) {
	gokeyring.MockInit()

	for _, s := range Secrets() {
		if err := Set(s, "value-"+string(s)); err != nil {
			t.Fatalf("Set(%s) failed: %v", s, err)
		}
	}
	for _, s := range Secrets() {
		got, err := Get(s)
		if err != nil || got != "value-"+string(s) {
			t.Errorf("Get(%s) = %q, %v", s, got, err)
		}
	}
}

func TestSetEmpty(t *testing.T) {
	gokeyring.MockInit()
	if err := Set(GeminiAPIKey, ""); err == nil {
		t.Error("Set with empty value should return an error")
	}
}

func TestNotFound(t *testing.T) {
	gokeyring.MockInit()
	_ = Delete(WalletPrivateKey)

	if _, err := Get(WalletPrivateKey); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want %v", err, ErrNotFound)
	}
	if err := Delete(WalletPrivateKey); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() error = %v, want %v", err, ErrNotFound)
	}
	if v := Lookup(WalletPrivateKey); v != "" {
		t.Errorf("Lookup() = %q, want empty", v)
	}
}

func TestDelete(t *testing.T) {
	gokeyring.MockInit()
	if err := Set(TwilioAuthToken, "tok"); err != nil {
		t.Fatal(err)
	}
	if err := Delete(TwilioAuthToken); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := Get(TwilioAuthToken); !errors.Is(err, ErrNotFound) {
		t.Errorf("after Delete, Get() error = %v", err)
	}
}

func TestParseSecret(t *testing.T) {
	if s, err := ParseSecret("gemini-api-key"); err != nil || s != GeminiAPIKey {
		t.Errorf("ParseSecret = %q, %v", s, err)
	}
	if s, err := ParseSecret("database-connection"); err != nil || s != DatabaseConnection {
		t.Errorf("ParseSecret = %q, %v", s, err)
	}
	if _, err := ParseSecret("nope"); !errors.Is(err, ErrUnknownSecret) {
		t.Errorf("ParseSecret(nope) error = %v", err)
	}
}

func TestIsAvailable(t *testing.T) {
	gokeyring.MockInit()
	if !IsAvailable() {
		t.Error("IsAvailable() = false, want true in mock mode")
	}
}
