// Package framing implements the Framing Codec (spec §4.1): encoding
// and decoding the two wire frame formats, and classifying decoded
// frames so the tunnel loop can dispatch on them.
package framing

import (
	"fmt"

	"sslvpnworker/application"
	"sslvpnworker/domain/frame"
)

// Action is what the tunnel loop must do with a successfully decoded
// frame (spec §4.1 classification rules).
type Action int

const (
	ActionToTun       Action = iota // DATA: deliver payload to the tunnel device
	ActionReplyDPD                  // DPD_OUT: reply with DPD_RESP on the same channel
	ActionLiveness                  // DPD_RESP, KEEPALIVE: liveness evidence only
	ActionDisconnect                // DISCONN: immediate worker exit
	ActionIgnoreLogged              // anything else: logged and ignored
)

// Codec holds reusable scratch buffers for encode so the hot path
// (tun-read to wire, wire to tun-write) does not allocate per frame.
type Codec struct {
	reliableScratch []byte
	datagramScratch []byte
}

// NewCodec returns a Codec with scratch buffers pre-sized to mtuHint.
func NewCodec(mtuHint int) *Codec {
	return &Codec{
		reliableScratch: make([]byte, 0, mtuHint+frame.ReliableHeaderLen),
		datagramScratch: make([]byte, 0, mtuHint+frame.DatagramHeaderLen),
	}
}

// EncodeReliable frames payload for the CSTP channel, reusing the
// codec's scratch buffer; the returned slice is valid until the next
// EncodeReliable call.
func (c *Codec) EncodeReliable(typ frame.Type, payload []byte) []byte {
	c.reliableScratch = frame.EncodeReliable(c.reliableScratch, typ, payload)
	return c.reliableScratch
}

// EncodeDatagram frames payload for the DTLS channel.
func (c *Codec) EncodeDatagram(typ frame.Type, payload []byte) []byte {
	c.datagramScratch = frame.EncodeDatagram(c.datagramScratch, typ, payload)
	return c.datagramScratch
}

// DecodeReliable validates and parses a reliable-channel frame. A
// non-nil error is always application.ErrMalformed-classified and
// fatal to the session (spec §4.1).
func DecodeReliable(buf []byte) (frame.Type, []byte, error) {
	typ, payload, err := frame.DecodeReliable(buf)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", application.ErrMalformed, err)
	}
	return typ, payload, nil
}

// DecodeDatagram validates and parses a datagram-channel frame.
func DecodeDatagram(buf []byte) (frame.Type, []byte, error) {
	typ, payload, err := frame.DecodeDatagram(buf)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", application.ErrMalformed, err)
	}
	return typ, payload, nil
}

// Classify maps a decoded frame type to the tunnel loop's dispatch
// action (spec §4.1).
func Classify(typ frame.Type) Action {
	switch typ {
	case frame.TypeData:
		return ActionToTun
	case frame.TypeDPDOut:
		return ActionReplyDPD
	case frame.TypeDPDResp, frame.TypeKeepalive:
		return ActionLiveness
	case frame.TypeDisconnect:
		return ActionDisconnect
	default:
		return ActionIgnoreLogged
	}
}
