package hub

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestNewKeyManager_EmptySecret(t *testing.T) {
	if _, err := NewKeyManager(""); !errors.Is(err, ErrNoSecret) {
		t.Fatalf("NewKeyManager(\"\") error = %v", err)
	}
}

func TestKeyManager_MintValidate(t *testing.T) {
	km, _ := NewKeyManager("s3cret")
	other, _ := NewKeyManager("other")

	scoped, err := km.Mint("anna", []string{"family"}, time.Hour)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}
	negative, _ := km.Mint("anna", nil, -time.Minute)
	forever, _ := km.Mint("admin", nil, 0)
	foreign, _ := other.Mint("anna", nil, time.Hour)
	unsigned, _ := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name    string
		key     string
		wantErr bool
		allows  map[string]bool
	}{
		{name: "scoped", key: scoped, allows: map[string]bool{"family": true, "work": false}},
		{name: "no expiry, all households", key: forever, allows: map[string]bool{"family": true, "work": true}},
		{name: "negative ttl never expires", key: negative, allows: map[string]bool{"x": true}},
		{name: "wrong secret", key: foreign, wantErr: true},
		{name: "alg none", key: unsigned, wantErr: true},
		{name: "garbage", key: "not-a-jwt", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := km.Validate(tt.key)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidKey) {
					t.Fatalf("Validate() error = %v, want ErrInvalidKey", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			for h, want := range tt.allows {
				if got := claims.Allows(h); got != want {
					t.Errorf("Allows(%q) = %v, want %v", h, got, want)
				}
			}
		})
	}
}

func TestKeyManager_RejectsExpired(t *testing.T) {
	km, _ := NewKeyManager("s3cret")
	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}}
	key, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s3cret"))

	if _, err := km.Validate(key); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("Validate() error = %v, want ErrInvalidKey", err)
	}
}
