package tlsrecordlayer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"math/big"
	"net"
	"testing"
	"time"
)

// tlsPair returns a handshaken client/server *tls.Conn pair over an
// in-memory net.Pipe, for exercising ReliableSession without a real
// socket.
func tlsPair(t *testing.T) (client, server *tls.Conn) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "sslvpnworker-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}
	cert := tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}

	clientConn, serverConn := net.Pipe()

	serverTLS := tls.Server(serverConn, &tls.Config{Certificates: []tls.Certificate{cert}})
	clientTLS := tls.Client(clientConn, &tls.Config{InsecureSkipVerify: true})

	done := make(chan error, 1)
	go func() { done <- serverTLS.Handshake() }()
	if err := clientTLS.Handshake(); err != nil {
		t.Fatalf("client Handshake: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("server Handshake: %v", err)
	}
	return clientTLS, serverTLS
}

func TestReliableSessionRoundTrip(t *testing.T) {
	client, server := tlsPair(t)
	defer client.Close()
	defer server.Close()

	clientSess := New(client, 1)
	serverSess := New(server, 2)

	// net.Pipe is unbuffered: the write only completes once the server
	// side reads, so Encrypt runs on its own goroutine.
	done := make(chan error, 1)
	go func() {
		_, err := clientSess.Encrypt([]byte("hello over cstp"))
		done <- err
	}()
	buf := make([]byte, 1500)
	got, err := serverSess.Decrypt(buf)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if string(got) != "hello over cstp" {
		t.Fatalf("Decrypt = %q, want %q", got, "hello over cstp")
	}
}

func TestReliableSessionOverhead(t *testing.T) {
	r := &ReliableSession{}
	if got, want := r.Overhead(), 8; got != want {
		t.Fatalf("Overhead() = %d, want %d", got, want)
	}
}

// TestReliableSessionPendingTracksFullBufferReads matches spec §4.5
// step 2: Pending mirrors whether the last Decrypt filled its buffer,
// the only externally observable proxy this package has for
// crypto/tls's internal record buffering.
func TestReliableSessionPendingTracksFullBufferReads(t *testing.T) {
	client, server := tlsPair(t)
	defer client.Close()
	defer server.Close()

	clientSess := New(client, 1)
	serverSess := New(server, 2)

	done := make(chan error, 1)
	go func() {
		_, err := clientSess.Encrypt([]byte("0123456789"))
		done <- err
	}()

	small := make([]byte, 4)
	if _, err := serverSess.Decrypt(small); err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if !serverSess.Pending() {
		t.Fatalf("expected Pending() after a full-buffer read")
	}

	large := make([]byte, 64)
	if _, err := serverSess.Decrypt(large); err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if serverSess.Pending() {
		t.Fatalf("expected Pending() cleared after a partial-buffer read")
	}
}

func TestIsRenegotiationAttempt(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{errors.New("tls: no renegotiation"), true},
		{errors.New("remote error: tls: no_renegotiation(100)"), true},
		{errors.New("EOF"), false},
		{errors.New("read tcp: connection reset by peer"), false},
	}
	for _, c := range cases {
		if got := isRenegotiationAttempt(c.err); got != c.want {
			t.Errorf("isRenegotiationAttempt(%q) = %v, want %v", c.err, got, c.want)
		}
	}
}
