package controlsocket

import (
	"encoding/binary"
	"fmt"

	"sslvpnworker/application"
)

// Wire tags, one per application.OutboundMessageType/InboundMessageType.
const (
	tagTunMTU byte = iota + 1
	tagSessionInfo
)

const (
	tagUDPFDHandover byte = iota + 1
	tagResumeSessionQuery
	tagResumeSessionResponse
	tagCookieVerifyResponse
)

func encodeOutbound(msg application.OutboundMessage) ([]byte, error) {
	switch msg.Type {
	case application.MsgTunMTU:
		buf := make([]byte, 5)
		buf[0] = tagTunMTU
		binary.BigEndian.PutUint32(buf[1:], uint32(msg.TunMTU))
		return buf, nil
	case application.MsgSessionInfo:
		buf := []byte{tagSessionInfo}
		buf = appendLenPrefixedString(buf, msg.TLSCipherSuite)
		buf = appendLenPrefixedString(buf, msg.DTLSCipherSuite)
		buf = appendLenPrefixedString(buf, msg.UserAgent)
		return buf, nil
	default:
		return nil, fmt.Errorf("controlsocket: unknown outbound message type %d", msg.Type)
	}
}

func decodeInbound(body []byte) (application.InboundMessage, error) {
	if len(body) < 1 {
		return application.InboundMessage{}, fmt.Errorf("%w: controlsocket: empty message body", application.ErrMalformed)
	}
	switch body[0] {
	case tagUDPFDHandover:
		if len(body) < 5 {
			return application.InboundMessage{}, fmt.Errorf("%w: controlsocket: short UDP_FD_HANDOVER", application.ErrMalformed)
		}
		fd := int(int32(binary.BigEndian.Uint32(body[1:])))
		return application.InboundMessage{Type: application.MsgUDPFDHandover, UDPFd: fd}, nil
	case tagResumeSessionQuery:
		return application.InboundMessage{Type: application.MsgResumeSessionQuery}, nil
	case tagResumeSessionResponse:
		if len(body) < 2 {
			return application.InboundMessage{}, fmt.Errorf("%w: controlsocket: short RESUME_SESSION_RESPONSE", application.ErrMalformed)
		}
		return application.InboundMessage{Type: application.MsgResumeSessionResponse, ResumeApproved: body[1] != 0}, nil
	case tagCookieVerifyResponse:
		if len(body) < 2 {
			return application.InboundMessage{}, fmt.Errorf("%w: controlsocket: short COOKIE_VERIFY_RESPONSE", application.ErrMalformed)
		}
		return application.InboundMessage{Type: application.MsgCookieVerifyResponse, CookieValid: body[1] != 0}, nil
	default:
		return application.InboundMessage{}, fmt.Errorf("%w: controlsocket: unknown message tag %d", application.ErrMalformed, body[0])
	}
}

func appendLenPrefixedString(dst []byte, s string) []byte {
	lenBuf := make([]byte, 2)
	binary.BigEndian.PutUint16(lenBuf, uint16(len(s)))
	dst = append(dst, lenBuf...)
	dst = append(dst, s...)
	return dst
}
