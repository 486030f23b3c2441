package ssh

// keys.go wraps 'crypto/ed25519' for the one keypair this tool needs: a
// process-unique credential generated at run start, imported to the cloud in
// the OpenSSH public format and persisted locally in the OpenSSH private PEM
// format for the remote-shell session.

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"

	"golang.org/x/crypto/ssh"
)

var (
	ErrKeyGen         = fmt.Errorf("failed to generate a 'crypto/ed25519' keypair")
	ErrPubKeyConv     = fmt.Errorf("failed to convert the 'ed25519.PublicKey' to 'ssh.PublicKey'")
	ErrPubKeyMarshal  = fmt.Errorf("failed to marshal the 'ssh.PublicKey' to OpenSSH format")
	ErrPrivKeyMarshal = fmt.Errorf("failed to marshal the private key to OpenSSH format")
	ErrPEMEncode      = fmt.Errorf("failed to PEM-encode the private key")
)

// NewED25519KeyPair generates a fresh ED25519 public+private key pair.
func NewED25519KeyPair() (ED25519KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return ED25519KeyPair{}, fmt.Errorf("%w: %w", ErrKeyGen, err)
	}
	return ED25519KeyPair{
		Public:  ED25519PublicKey{key: pub},
		Private: ED25519PrivateKey{key: priv},
	}, nil
}

type ED25519KeyPair struct {
	Public  ED25519PublicKey
	Private ED25519PrivateKey
}

type ED25519PublicKey struct {
	key ed25519.PublicKey
}

// MarshalOpenSSH renders the public key in the OpenSSH 'authorized_keys'
// format, which is also the format the cloud keypair import expects.
func (pubKey ED25519PublicKey) MarshalOpenSSH() ([]byte, error) {
	pub, err := ssh.NewPublicKey(pubKey.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPubKeyConv, err)
	}
	marshaled := ssh.MarshalAuthorizedKey(pub)
	if marshaled == nil {
		return nil, ErrPubKeyMarshal
	}
	return marshaled, nil
}

type ED25519PrivateKey struct {
	key ed25519.PrivateKey
}

// MarshalOpenSSH renders the private key as a PEM-encoded OpenSSH block,
// suitable for writing to an identity file.
func (privKey ED25519PrivateKey) MarshalOpenSSH(comment string) ([]byte, error) {
	block, err := ssh.MarshalPrivateKey(privKey.key, comment)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPrivKeyMarshal, err)
	}
	encoded := pem.EncodeToMemory(block)
	if encoded == nil {
		return nil, ErrPEMEncode
	}
	return encoded, nil
}

// ToSSH converts the private key to an 'ssh.Signer' for connection
// authentication.
func (privKey ED25519PrivateKey) ToSSH() (ssh.Signer, error) {
	return ssh.NewSignerFromKey(privKey.key)
}
