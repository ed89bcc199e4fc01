package framing

import (
	"bytes"
	"testing"

	"sslvpnworker/domain/frame"
)

func TestReliableRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		typ     frame.Type
		payload []byte
	}{
		{"data", frame.TypeData, []byte("hello world")},
		{"empty payload", frame.TypeKeepalive, nil},
		{"dpd out", frame.TypeDPDOut, []byte{1, 2, 3, 4}},
	}

	c := NewCodec(1500)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			encoded := c.EncodeReliable(tc.typ, tc.payload)
			gotType, gotPayload, err := DecodeReliable(encoded)
			if err != nil {
				t.Fatalf("DecodeReliable: %v", err)
			}
			if gotType != tc.typ {
				t.Errorf("type = %v, want %v", gotType, tc.typ)
			}
			if !bytes.Equal(gotPayload, tc.payload) {
				t.Errorf("payload = %v, want %v", gotPayload, tc.payload)
			}
		})
	}
}

func TestDatagramRoundTrip(t *testing.T) {
	c := NewCodec(1500)
	payload := []byte("datagram payload")
	encoded := c.EncodeDatagram(frame.TypeData, payload)
	gotType, gotPayload, err := DecodeDatagram(encoded)
	if err != nil {
		t.Fatalf("DecodeDatagram: %v", err)
	}
	if gotType != frame.TypeData {
		t.Errorf("type = %v, want DATA", gotType)
	}
	if !bytes.Equal(gotPayload, payload) {
		t.Errorf("payload = %v, want %v", gotPayload, payload)
	}
}

func TestDecodeReliableMalformed(t *testing.T) {
	cases := []struct {
		name string
		buf  []byte
	}{
		{"too short", []byte{'S', 'T', 'F'}},
		{"bad magic", []byte{'X', 'T', 'F', 0x01, 0, 0, 0, 0}},
		{"reserved byte nonzero", []byte{'S', 'T', 'F', 0x01, 0, 0, 0, 0xFF}},
		{"length mismatch", []byte{'S', 'T', 'F', 0x01, 0, 5, 0, 0, 'a', 'b'}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := DecodeReliable(tc.buf); err == nil {
				t.Errorf("expected error, got nil")
			}
		})
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		typ  frame.Type
		want Action
	}{
		{frame.TypeData, ActionToTun},
		{frame.TypeDPDOut, ActionReplyDPD},
		{frame.TypeDPDResp, ActionLiveness},
		{frame.TypeKeepalive, ActionLiveness},
		{frame.TypeDisconnect, ActionDisconnect},
		{frame.Type(0xEE), ActionIgnoreLogged},
	}
	for _, tc := range cases {
		if got := Classify(tc.typ); got != tc.want {
			t.Errorf("Classify(%v) = %v, want %v", tc.typ, got, tc.want)
		}
	}
}
