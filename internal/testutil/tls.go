// Package testutil provides throwaway TLS endpoints for tests.
package testutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"
)

// SelfSignedCert creates a certificate for names that stops being valid at
// notAfter. notAfter is truncated to whole seconds, as X.509 encodes it.
func SelfSignedCert(t testing.TB, notAfter time.Time, names ...string) tls.Certificate {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	commonName := "localhost"
	if len(names) > 0 {
		commonName = names[0]
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: commonName, Organization: []string{"certwatch test"}},
		NotBefore:    notAfter.Add(-90 * 24 * time.Hour),
		NotAfter:     notAfter.UTC().Truncate(time.Second),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     names,
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}

	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}

	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
		Leaf:        leaf,
	}
}

// TLSServer accepts connections on 127.0.0.1, completes the handshake and
// hangs up.
type TLSServer struct {
	listener net.Listener

	mu          sync.Mutex
	serverNames []string
	wg          sync.WaitGroup
}

// StartTLSServer serves cert until the test ends.
func StartTLSServer(t testing.TB, cert tls.Certificate) *TLSServer {
	t.Helper()

	s := &TLSServer{}
	config := &tls.Config{
		GetCertificate: func(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
			s.mu.Lock()
			s.serverNames = append(s.serverNames, hello.ServerName)
			s.mu.Unlock()
			return &cert, nil
		},
	}

	listener, err := tls.Listen("tcp", "127.0.0.1:0", config)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s.listener = listener

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
			_ = conn.(*tls.Conn).Handshake()
			conn.Close()
		}
	}()

	t.Cleanup(s.Close)
	return s
}

// Port returns the listening port.
func (s *TLSServer) Port() uint16 {
	return ListenerPort(s.listener)
}

// ServerNames returns the SNI values received so far.
func (s *TLSServer) ServerNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.serverNames...)
}

func (s *TLSServer) Close() {
	s.listener.Close()
	s.wg.Wait()
}

// ListenerPort extracts the TCP port a listener is bound to.
func ListenerPort(l net.Listener) uint16 {
	_, port, _ := net.SplitHostPort(l.Addr().String())
	p, _ := strconv.Atoi(port)
	return uint16(p)
}

// ClosedPort returns a local port nothing is listening on.
func ClosedPort(t testing.TB) uint16 {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ListenerPort(l)
	l.Close()
	return port
}
