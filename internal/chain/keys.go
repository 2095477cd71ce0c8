package chain

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/ripemd160"
)

const (
	KeyTypeK1 byte = 0
	KeyTypeR1 byte = 1
)

func ripemd160Checksum(data []byte, suffix string) []byte {
	h := ripemd160.New()
	h.Write(data)
	if suffix != "" {
		h.Write([]byte(suffix))
	}
	return h.Sum(nil)[:4]
}

// FormatPublicKey renders a 33-byte compressed key in the legacy EOS
// form for K1 keys and the PUB_R1 form for R1 keys.
func FormatPublicKey(keyType byte, raw [33]byte) (string, error) {
	switch keyType {
	case KeyTypeK1:
		payload := append(raw[:], ripemd160Checksum(raw[:], "")...)
		return "EOS" + base58.Encode(payload), nil
	case KeyTypeR1:
		payload := append(raw[:], ripemd160Checksum(raw[:], "R1")...)
		return "PUB_R1_" + base58.Encode(payload), nil
	default:
		return "", fmt.Errorf("unknown public key type %d", keyType)
	}
}

// ParseSignature decodes a SIG_K1_ signature into the 65-byte compact
// form (header byte, R, S) used for recovery.
func ParseSignature(sig string) ([]byte, error) {
	if !strings.HasPrefix(sig, "SIG_K1_") {
		return nil, fmt.Errorf("unsupported signature format: %.8q", sig)
	}
	decoded := base58.Decode(sig[len("SIG_K1_"):])
	if len(decoded) != 65+4 {
		return nil, fmt.Errorf("signature payload is %d bytes, want 69", len(decoded))
	}
	payload := decoded[:65]
	if !bytes.Equal(decoded[65:], ripemd160Checksum(payload, "K1")) {
		return nil, fmt.Errorf("signature checksum mismatch")
	}
	return payload, nil
}

// SigDigest is the digest transactions are signed over: the chain id,
// the packed transaction and the hash of the packed context-free data
// (all zeros when there is none).
func SigDigest(chainID, packedTrx, packedCfd []byte) []byte {
	h := sha256.New()
	h.Write(chainID)
	h.Write(packedTrx)
	if len(packedCfd) > 0 {
		cfdHash := sha256.Sum256(packedCfd)
		h.Write(cfdHash[:])
	} else {
		var zero [32]byte
		h.Write(zero[:])
	}
	return h.Sum(nil)
}

// RecoverSigningKeys recovers the public keys that produced the given
// signatures over digest. Unsupported or malformed signatures yield an
// error rather than a partial result.
func RecoverSigningKeys(digest []byte, signatures []string) ([]string, error) {
	keys := make([]string, 0, len(signatures))
	for _, sig := range signatures {
		compact, err := ParseSignature(sig)
		if err != nil {
			return nil, err
		}
		pub, _, err := ecdsa.RecoverCompact(compact, digest)
		if err != nil {
			return nil, fmt.Errorf("recover key: %w", err)
		}
		var raw [33]byte
		copy(raw[:], pub.SerializeCompressed())
		formatted, err := FormatPublicKey(KeyTypeK1, raw)
		if err != nil {
			return nil, err
		}
		keys = append(keys, formatted)
	}
	return keys, nil
}
