// SPDX-License-Identifier: MIT
package udp

import (
	"fmt"
	"sync"
	"time"

	"moodscope/internal/analysis"
	"moodscope/internal/log"
	"moodscope/internal/transport"
)

// sender is what the publisher needs from a UDPSender.
type sender interface {
	Send(data []byte) error
	Close() error
}

// UDPPublisher keeps the latest analysis result and, on every tick of its
// interval, packs it into the binary format and sends it. A result is sent
// at most once; ticks with nothing new are skipped.
type UDPPublisher struct {
	sender   sender
	interval time.Duration
	now      func() time.Time
	log      *log.Logger

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop.

	latestMu sync.Mutex
	latest   analysis.AnalysisResult
	fresh    bool
	closed   bool

	sequenceNum uint32
	packet      []byte // reused encoding buffer
}

// NewUDPPublisher creates a publisher over s. An interval <= 0 defaults to
// 16ms (~60Hz).
func NewUDPPublisher(interval time.Duration, s sender) (*UDPPublisher, error) {
	if s == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}

	logger := log.Named("udp.publisher")
	if interval <= 0 {
		interval = 16 * time.Millisecond
		logger.Warnf("invalid interval provided, defaulting to %s", interval)
	}

	return &UDPPublisher{
		sender:   s,
		interval: interval,
		now:      time.Now,
		log:      logger,
		packet:   make([]byte, 0, PacketSize),
	}, nil
}

// Send records the newest result. It accepts an analysis.AnalysisResult or
// a transport.Message and never blocks on the network.
func (p *UDPPublisher) Send(data any) error {
	var r analysis.AnalysisResult
	switch v := data.(type) {
	case analysis.AnalysisResult:
		r = v
	case transport.Message:
		r = analysis.AnalysisResult{
			Features:          v.Features,
			Mood:              v.Mood,
			MoodConfidence:    v.Confidence,
			DominantFrequency: v.DominantFrequency,
		}
	default:
		return fmt.Errorf("UDPPublisher: unsupported payload %T", data)
	}

	p.latestMu.Lock()
	defer p.latestMu.Unlock()
	if p.closed {
		return transport.ErrClosed
	}
	p.latest = r
	p.fresh = true
	return nil
}

// Start begins the periodic publishing process.
// It is safe to call Start multiple times; subsequent calls are no-ops if already started.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		p.log.Warnf("Start called but already running")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.log.Infof("publisher goroutine started (interval: %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.buildAndSendPacket()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to terminate and waits for it to exit.
// It is safe to call Stop multiple times.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	p.log.Debugf("publisher goroutine finished")
	return nil
}

// buildAndSendPacket sends the latest result if it has not been sent yet.
func (p *UDPPublisher) buildAndSendPacket() {
	p.latestMu.Lock()
	if !p.fresh {
		p.latestMu.Unlock()
		return
	}
	r := p.latest
	p.fresh = false
	p.latestMu.Unlock()

	p.sequenceNum++
	p.packet = AppendPacket(p.packet[:0], p.sequenceNum, p.now().UnixNano(), r)

	if err := p.sender.Send(p.packet); err != nil {
		return // sender logs
	}
	p.log.Debugf("sent packet %d (%d bytes)", p.sequenceNum, len(p.packet))
}

// Close stops publishing and closes the sender.
func (p *UDPPublisher) Close() error {
	p.latestMu.Lock()
	p.closed = true
	p.latestMu.Unlock()

	if err := p.Stop(); err != nil {
		return err
	}
	return p.sender.Close()
}

var _ transport.Transport = (*UDPPublisher)(nil)
