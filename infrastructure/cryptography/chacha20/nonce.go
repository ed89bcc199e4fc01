package chacha20

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// nonce is a monotonic 96-bit counter encoded as a chacha20poly1305
// nonce. Grounded directly on the teacher's Nonce type
// (infrastructure/cryptography/chacha20/nonce.go): a 64-bit low word
// plus a 32-bit high word, big-endian encoded, overflow-checked.
type nonce struct {
	mu   sync.Mutex
	low  uint64
	high uint32
}

func newNonce() *nonce {
	return &nonce{}
}

func (n *nonce) next(buf []byte) ([]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.high == ^uint32(0) && n.low == ^uint64(0) {
		return nil, fmt.Errorf("chacha20: nonce overflow: maximum number of messages reached")
	}

	binary.BigEndian.PutUint64(buf[:8], n.low)
	binary.BigEndian.PutUint32(buf[8:12], n.high)

	if n.low == ^uint64(0) {
		n.high++
		n.low = 0
	} else {
		n.low++
	}
	return buf, nil
}
