package udp

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"moodscope/internal/log"
)

// ErrSenderClosed is returned by Send after Close.
var ErrSenderClosed = errors.New("udp sender closed")

// maxDatagram keeps packets inside a single Ethernet frame.
const maxDatagram = 1472

const writeTimeout = 50 * time.Millisecond

// UDPSender writes datagrams to one connected destination.
type UDPSender struct {
	mu     sync.Mutex // guards conn against Close
	conn   *net.UDPConn
	target *net.UDPAddr
	log    *log.Logger

	sent   atomic.Uint64
	failed atomic.Uint64
}

// NewUDPSender dials targetAddress ("host:port", e.g. "127.0.0.1:9090").
// No local port is bound explicitly.
func NewUDPSender(targetAddress string) (*UDPSender, error) {
	target, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, fmt.Errorf("resolve udp target %q: %w", targetAddress, err)
	}

	conn, err := net.DialUDP("udp", nil, target)
	if err != nil {
		return nil, fmt.Errorf("dial udp target %q: %w", targetAddress, err)
	}

	s := &UDPSender{
		conn:   conn,
		target: target,
		log:    log.Named("udp.sender").With("target", target.String()),
	}
	s.log.Infof("sending from %s", conn.LocalAddr())
	return s, nil
}

// Target returns the resolved destination.
func (s *UDPSender) Target() *net.UDPAddr {
	return s.target
}

// Send writes data as one datagram. A write that cannot complete within a
// short deadline fails rather than stalling the publisher.
func (s *UDPSender) Send(data []byte) error {
	if len(data) > maxDatagram {
		return fmt.Errorf("datagram of %d bytes exceeds %d", len(data), maxDatagram)
	}

	s.mu.Lock()
	if s.conn == nil {
		s.mu.Unlock()
		return ErrSenderClosed
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err := s.conn.Write(data)
	s.mu.Unlock()

	if err != nil {
		if n := s.failed.Add(1); n%100 == 1 {
			s.log.Warnf("send failed (%d so far): %v", n, err)
		}
		return fmt.Errorf("send udp datagram: %w", err)
	}
	s.sent.Add(1)
	return nil
}

// Stats returns the number of datagrams written and failed.
func (s *UDPSender) Stats() (sent, failed uint64) {
	return s.sent.Load(), s.failed.Load()
}

// Close releases the socket. Further calls do nothing.
func (s *UDPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	conn := s.conn
	s.conn = nil

	sent, failed := s.Stats()
	s.log.Infof("closing after %d datagrams (%d failed)", sent, failed)
	if err := conn.Close(); err != nil {
		return fmt.Errorf("close udp connection: %w", err)
	}
	return nil
}

var _ sender = (*UDPSender)(nil)
