package chacha20

import "errors"

var (
	ErrNonUniqueNonce   = errors.New("chacha20: critical decryption error: nonce was not unique")
	ErrInvalidNonceSize = errors.New("chacha20: invalid nonce size")
	ErrHandshakeNotDone = errors.New("chacha20: handshake has not completed")
)
