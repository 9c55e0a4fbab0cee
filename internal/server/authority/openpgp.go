package authority

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
)

// OpenPGPVerifier verifies armored detached PGP signatures.
type OpenPGPVerifier struct{}

func (OpenPGPVerifier) Verify(armoredPublicKey string, payload, armoredSignature []byte) error {
	keyring, err := openpgp.ReadArmoredKeyRing(strings.NewReader(armoredPublicKey))
	if err != nil {
		return fmt.Errorf("reading public key: %w", err)
	}

	_, err = openpgp.CheckArmoredDetachedSignature(
		keyring, bytes.NewReader(payload), bytes.NewReader(armoredSignature), nil)
	if err != nil {
		return fmt.Errorf("checking signature: %w", err)
	}

	return nil
}
