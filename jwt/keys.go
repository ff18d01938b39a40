package jwt

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// GenerateEphemeralKeyPair creates a fresh PEM-encoded key pair. Tokens
// signed with it die with the process, so it is only meant for development
// and tests.
func GenerateEphemeralKeyPair(method SigningMethod) (privatePEM, publicPEM []byte, err error) {
	var priv crypto.Signer
	switch method {
	case MethodES256:
		priv, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case MethodEd25519:
		_, priv, err = ed25519.GenerateKey(rand.Reader)
	default:
		return nil, nil, errors.New("unsupported signing method")
	}
	if err != nil {
		return nil, nil, err
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, nil, err
	}
	pubDER, err := x509.MarshalPKIXPublicKey(priv.Public())
	if err != nil {
		return nil, nil, err
	}

	privatePEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	publicPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	return privatePEM, publicPEM, nil
}

func parsePrivateKey(method SigningMethod, key []byte) (any, error) {
	switch method {
	case MethodES256:
		k, err := jwt.ParseECPrivateKeyFromPEM(key)
		if err != nil {
			return nil, errors.New("invalid ecdsa private key")
		}
		if k.Curve != elliptic.P256() {
			return nil, errors.New("es256 requires a P-256 key")
		}
		return k, nil
	default:
		return parseEdPrivateKey(key)
	}
}

func parsePublicKey(method SigningMethod, key []byte) (any, error) {
	switch method {
	case MethodES256:
		k, err := jwt.ParseECPublicKeyFromPEM(key)
		if err != nil {
			return nil, errors.New("invalid ecdsa public key")
		}
		if k.Curve != elliptic.P256() {
			return nil, errors.New("es256 requires a P-256 key")
		}
		return k, nil
	default:
		return parseEdPublicKey(key)
	}
}

func publicFromPrivate(key any) any {
	switch k := key.(type) {
	case *ecdsa.PrivateKey:
		return &k.PublicKey
	case ed25519.PrivateKey:
		return k.Public()
	default:
		return nil
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
