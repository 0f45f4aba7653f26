package auth

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"
)

const (
	AlgEd25519   = "ed25519"
	AlgSecp256k1 = "secp256k1"
)

func SupportedAlg(alg string) bool {
	switch strings.ToLower(alg) {
	case AlgEd25519, AlgSecp256k1:
		return true
	}
	return false
}

// ParsePublicKey reports whether publicKey is a well-formed key for alg.
func ParsePublicKey(alg, publicKey string) error {
	switch strings.ToLower(alg) {
	case AlgEd25519:
		b, err := decodeBase64OrHex(publicKey)
		if err != nil {
			return err
		}
		if len(b) != ed25519.PublicKeySize {
			return errors.New("invalid ed25519 public key length")
		}
		return nil
	case AlgSecp256k1:
		b, err := decodeHex(publicKey)
		if err != nil {
			return err
		}
		_, err = secp256k1.ParsePubKey(b)
		return err
	default:
		return fmt.Errorf("unsupported alg: %s", alg)
	}
}

// VerifySignature checks signature over message. ed25519 keys and
// signatures are base64 or hex; secp256k1 keys are hex SEC1 and signatures
// are hex r||s over the Ethereum personal-message hash.
func VerifySignature(alg, publicKey, message, signature string) error {
	switch strings.ToLower(alg) {
	case AlgEd25519:
		pubKey, sig, err := decodeEd25519(publicKey, signature)
		if err != nil {
			return err
		}
		if !ed25519.Verify(pubKey, []byte(message), sig) {
			return errors.New("invalid ed25519 signature")
		}
		return nil
	case AlgSecp256k1:
		pubKeyBytes, err := decodeHex(publicKey)
		if err != nil {
			return err
		}
		sigBytes, err := decodeHex(signature)
		if err != nil {
			return err
		}
		pubKey, err := secp256k1.ParsePubKey(pubKeyBytes)
		if err != nil {
			return err
		}
		if len(sigBytes) < 64 {
			return errors.New("invalid secp256k1 signature length")
		}
		var r, s secp256k1.ModNScalar
		if r.SetByteSlice(sigBytes[:32]) || s.SetByteSlice(sigBytes[32:64]) {
			return errors.New("invalid secp256k1 signature")
		}
		if !ecdsa.NewSignature(&r, &s).Verify(EthereumPersonalHash([]byte(message)), pubKey) {
			return errors.New("invalid secp256k1 signature")
		}
		return nil
	default:
		return fmt.Errorf("unsupported alg: %s", alg)
	}
}

// EthereumPersonalHash is keccak256 of the EIP-191 prefixed message.
func EthereumPersonalHash(msg []byte) []byte {
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(msg))
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(prefix))
	h.Write(msg)
	return h.Sum(nil)
}

func decodeEd25519(pub, sig string) (ed25519.PublicKey, []byte, error) {
	pubBytes, err := decodeBase64OrHex(pub)
	if err != nil {
		return nil, nil, err
	}
	sigBytes, err := decodeBase64OrHex(sig)
	if err != nil {
		return nil, nil, err
	}
	if len(pubBytes) != ed25519.PublicKeySize {
		return nil, nil, errors.New("invalid ed25519 public key length")
	}
	if len(sigBytes) != ed25519.SignatureSize {
		return nil, nil, errors.New("invalid ed25519 signature length")
	}
	return ed25519.PublicKey(pubBytes), sigBytes, nil
}

func decodeBase64OrHex(input string) ([]byte, error) {
	if b, err := base64.StdEncoding.DecodeString(input); err == nil {
		return b, nil
	}
	if b, err := base64.RawStdEncoding.DecodeString(input); err == nil {
		return b, nil
	}
	return decodeHex(input)
}

func decodeHex(input string) ([]byte, error) {
	clean := strings.TrimPrefix(strings.TrimSpace(input), "0x")
	return hex.DecodeString(clean)
}
