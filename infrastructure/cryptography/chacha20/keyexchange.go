package chacha20

import (
	"crypto/rand"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/curve25519"
)

// kexType marks the one-shot ephemeral key exchange datagram that
// precedes the MTU probe, distinct from probeType so DriveHandshake's
// peer never confuses the two (spec §4.4 HANDSHAKE is silent on a
// specific wire shape, leaving this detail to the record layer).
const kexType = 0xF1

// kexConn is the narrow slice of *net.UDPConn this file needs;
// declared locally so tests can substitute an in-memory net.Pipe
// instead of a real UDP socket pair.
type kexConn interface {
	io.Reader
	io.Writer
	SetReadDeadline(t time.Time) error
}

// performKeyExchange runs one ephemeral X25519 exchange over conn and
// returns the raw shared secret, mixed into DeriveDatagramKeys
// alongside master_secret so a compromised master_secret alone cannot
// recover traffic recorded before the exchange. Grounded on the
// teacher's server-side X25519 pair
// (infrastructure/cryptography/chacha20/handshake/server_crypto.go:
// NewX25519SessionKeyPair, GenerateSharedSecret), adapted from a
// reliable-channel handshake step into a one-shot datagram exchange
// that runs once per datagram session rather than once per rekey.
func performKeyExchange(conn kexConn, timeout time.Duration) ([]byte, error) {
	var priv [32]byte
	if _, err := io.ReadFull(rand.Reader, priv[:]); err != nil {
		return nil, fmt.Errorf("chacha20: kex: generate private key: %w", err)
	}
	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("chacha20: kex: derive public key: %w", err)
	}

	outFrame := make([]byte, 1+len(pub))
	outFrame[0] = kexType
	copy(outFrame[1:], pub)
	if _, err := conn.Write(outFrame); err != nil {
		return nil, fmt.Errorf("chacha20: kex: send public key: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	peerFrame := make([]byte, 1+32)
	n, err := conn.Read(peerFrame)
	if err != nil {
		return nil, fmt.Errorf("chacha20: kex: recv peer public key: %w", err)
	}
	if n != len(peerFrame) || peerFrame[0] != kexType {
		return nil, fmt.Errorf("chacha20: kex: malformed peer key exchange frame")
	}

	shared, err := curve25519.X25519(priv[:], peerFrame[1:])
	if err != nil {
		return nil, fmt.Errorf("chacha20: kex: compute shared secret: %w", err)
	}
	return shared, nil
}
