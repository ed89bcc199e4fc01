package application

// ControlSocket is the length-prefixed, versioned binary channel to
// the parent process (spec §6). The engine produces TunMTU and
// SessionInfo reports and consumes UDP FD handover, resume-session
// query/response, and cookie-verification request/response messages.
// infrastructure/controlsocket provides the wire encoding;
// infrastructure/PAL-equivalent fd-passing is the parent's concern.
type ControlSocket interface {
	// Send encodes and writes one outbound message.
	Send(msg OutboundMessage) error
	// Recv blocks until one inbound message is available, or returns
	// an error classified via application.KindOf.
	Recv() (InboundMessage, error)
	// Fd returns the underlying file descriptor, for readiness
	// registration in the event loop.
	Fd() int
}

// OutboundMessageType enumerates the messages the engine produces.
type OutboundMessageType byte

const (
	MsgTunMTU OutboundMessageType = iota + 1
	MsgSessionInfo
)

// OutboundMessage is a parent-bound report. Exactly one of the typed
// fields is meaningful, selected by Type.
type OutboundMessage struct {
	Type OutboundMessageType

	TunMTU int // plaintext MTU, i.e. conn_mtu - 1 (spec §4.2)

	TLSCipherSuite  string
	DTLSCipherSuite string
	UserAgent       string
}

// InboundMessageType enumerates the messages the engine consumes.
type InboundMessageType byte

const (
	MsgUDPFDHandover InboundMessageType = iota + 1
	MsgResumeSessionQuery
	MsgResumeSessionResponse
	MsgCookieVerifyResponse
)

// InboundMessage is a command or reply arriving from the parent.
type InboundMessage struct {
	Type InboundMessageType

	UDPFd int // valid when Type == MsgUDPFDHandover

	ResumeApproved bool // valid when Type == MsgResumeSessionResponse

	CookieValid bool // valid when Type == MsgCookieVerifyResponse
}
