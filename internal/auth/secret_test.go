package auth

import (
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func TestHashSecret(t *testing.T) {
	hash, salt, err := hashSecret("longenoughpw")
	if err != nil {
		t.Fatalf("hashSecret: %v", err)
	}
	if !strings.HasPrefix(hash, salt) {
		t.Fatalf("salt %q is not a prefix of hash %q", salt, hash)
	}
	if len(salt) != bcryptSaltPrefixLen {
		t.Fatalf("unexpected salt length %d", len(salt))
	}
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		t.Fatalf("bcrypt.Cost: %v", err)
	}
	if cost != localHashCost {
		t.Fatalf("unexpected cost %d, want %d", cost, localHashCost)
	}

	if !verifySecret(hash, "longenoughpw") {
		t.Fatal("correct secret rejected")
	}
	if verifySecret(hash, "wrong-secret") {
		t.Fatal("wrong secret accepted")
	}
	if verifySecret("", "longenoughpw") {
		t.Fatal("empty hash accepted")
	}
}

func TestHashSecretEmpty(t *testing.T) {
	if _, _, err := hashSecret(""); err == nil {
		t.Fatal("empty secret must not hash")
	}
}

func TestDeriveTokenValue(t *testing.T) {
	until := time.Date(2025, time.March, 11, 0, 0, 0, 0, time.UTC)
	first, err := deriveTokenValue("alice", "10.0.0.5", until)
	if err != nil {
		t.Fatalf("deriveTokenValue: %v", err)
	}
	if _, err := hex.DecodeString(first); err != nil {
		t.Fatalf("token value is not hex: %v", err)
	}

	// Salts are random, so identical inputs yield distinct values.
	second, err := deriveTokenValue("alice", "10.0.0.5", until)
	if err != nil {
		t.Fatalf("deriveTokenValue: %v", err)
	}
	if first == second {
		t.Fatal("two derivations over identical inputs must differ")
	}
}

func TestDateOnly(t *testing.T) {
	in := time.Date(2025, time.March, 10, 23, 59, 59, 0, time.UTC)
	got := dateOnly(in)
	want := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("dateOnly(%v)=%v, want %v", in, got, want)
	}
	if d := dateOnly(in.Add(time.Minute)); !d.Equal(time.Date(2025, time.March, 11, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("day rollover mishandled: %v", d)
	}
}
