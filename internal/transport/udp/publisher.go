// SPDX-License-Identifier: MIT

// Package udp streams pipeline updates as fixed-layout binary datagrams.
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	applog "micscope/internal/log"
	"micscope/internal/pipeline"
)

// DefaultInterval is the send period when none is given (~60 Hz).
const DefaultInterval = 16 * time.Millisecond

/*
Packet layout, big-endian:

	| Field      | Type      | Bytes | Description                  |
	|------------|-----------|-------|------------------------------|
	| Sequence   | uint32    | 4     | Update sequence number       |
	| Timestamp  | int64     | 8     | Nanoseconds since epoch      |
	| State      | uint8     | 1     | 0 awaiting, 1 streaming      |
	| Min        | float32   | 4     | Raw window minimum           |
	| Max        | float32   | 4     | Raw window maximum           |
	| Count      | uint16    | 2     | Buckets per summary (N)      |
	| Waveform   | []float32 | N*4   | Biased waveform bucket means |
	| Spectrum   | []float32 | N*4   | Spectrum bucket means        |
*/
const headerSize = 4 + 8 + 1 + 4 + 4 + 2

// Packet is a decoded datagram.
type Packet struct {
	Seq       uint32
	Timestamp int64
	State     pipeline.State
	Min, Max  float32
	Waveform  []float32
	Spectrum  []float32
}

var errShortPacket = errors.New("udp: short packet")

// Publisher sends the most recent update every interval. Publish only
// records the update, so the pipeline never waits on the network.
type Publisher struct {
	sender   *Sender
	interval time.Duration

	latestMu sync.Mutex
	latest   pipeline.Update
	pending  bool

	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop.
	ticker   *time.Ticker
	doneChan chan struct{}
	wg       sync.WaitGroup

	packetBuffer *bytes.Buffer // Owned by the publisher goroutine.
	f32Buffer    []float32
}

// NewPublisher returns a stopped publisher. A non-positive interval
// falls back to DefaultInterval.
func NewPublisher(interval time.Duration, sender *Sender) (*Publisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("udp: sender cannot be nil")
	}
	if interval <= 0 {
		applog.Warnf("UDPPublisher: invalid interval, defaulting to %s", DefaultInterval)
		interval = DefaultInterval
	}
	return &Publisher{
		sender:       sender,
		interval:     interval,
		packetBuffer: new(bytes.Buffer),
	}, nil
}

// Publish records u as the next update to send.
func (p *Publisher) Publish(u pipeline.Update) error {
	p.latestMu.Lock()
	p.latest = u
	p.pending = true
	p.latestMu.Unlock()
	return nil
}

// Start launches the send loop. Calling it while running is a no-op.
func (p *Publisher) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ticker != nil {
		applog.Warnf("UDPPublisher: Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	ticker, doneChan := p.ticker, p.doneChan

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Infof("UDPPublisher: started (interval %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.sendLatest()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop ends the send loop and waits for it. It is safe to call
// repeatedly and before Start.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	close(p.doneChan)
	p.ticker.Stop()
	p.ticker = nil
	p.mu.Unlock()

	p.wg.Wait()
	applog.Infof("UDPPublisher: stopped.")
	return nil
}

func (p *Publisher) sendLatest() {
	p.latestMu.Lock()
	if !p.pending {
		p.latestMu.Unlock()
		return
	}
	u := p.latest
	p.pending = false
	p.latestMu.Unlock()

	if err := p.pack(u); err != nil {
		applog.Errorf("UDPPublisher: packing update %d: %v", u.Seq, err)
		return
	}
	if err := p.sender.Send(p.packetBuffer.Bytes()); err != nil {
		applog.Debugf("UDPPublisher: %v", err)
		return
	}
	applog.Debugf("UDPPublisher: sent update %d (%d bytes)", u.Seq, p.packetBuffer.Len())
}

// pack encodes u into packetBuffer.
func (p *Publisher) pack(u pipeline.Update) error {
	n := len(u.Waveform)
	if len(u.Spectrum) != n {
		return fmt.Errorf("summary lengths differ (%d != %d)", n, len(u.Spectrum))
	}
	if n > math.MaxUint16 {
		return fmt.Errorf("too many buckets (%d)", n)
	}

	p.packetBuffer.Reset()
	w := p.packetBuffer
	header := struct {
		Seq       uint32
		Timestamp int64
		State     uint8
		Min, Max  float32
		Count     uint16
	}{uint32(u.Seq), u.Time.UnixNano(), uint8(u.State), float32(u.Min), float32(u.Max), uint16(n)}
	if err := binary.Write(w, binary.BigEndian, header); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, p.toFloat32(u.Waveform)); err != nil {
		return err
	}
	return binary.Write(w, binary.BigEndian, p.toFloat32(u.Spectrum))
}

func (p *Publisher) toFloat32(values []float64) []float32 {
	if cap(p.f32Buffer) < len(values) {
		p.f32Buffer = make([]float32, len(values))
	}
	out := p.f32Buffer[:len(values)]
	for i, v := range values {
		out[i] = float32(v)
	}
	return out
}

// Close stops the publisher and closes its sender.
func (p *Publisher) Close() error {
	return errors.Join(p.Stop(), p.sender.Close())
}

// Decode parses a datagram produced by Publisher.
func Decode(data []byte) (Packet, error) {
	if len(data) < headerSize {
		return Packet{}, errShortPacket
	}
	var pkt Packet
	pkt.Seq = binary.BigEndian.Uint32(data[0:])
	pkt.Timestamp = int64(binary.BigEndian.Uint64(data[4:]))
	pkt.State = pipeline.State(data[12])
	pkt.Min = math.Float32frombits(binary.BigEndian.Uint32(data[13:]))
	pkt.Max = math.Float32frombits(binary.BigEndian.Uint32(data[17:]))
	n := int(binary.BigEndian.Uint16(data[21:]))

	body := data[headerSize:]
	if len(body) != 8*n {
		return Packet{}, fmt.Errorf("%w: want %d payload bytes, got %d", errShortPacket, 8*n, len(body))
	}
	pkt.Waveform = make([]float32, n)
	pkt.Spectrum = make([]float32, n)
	for i := range n {
		pkt.Waveform[i] = math.Float32frombits(binary.BigEndian.Uint32(body[4*i:]))
		pkt.Spectrum[i] = math.Float32frombits(binary.BigEndian.Uint32(body[4*(n+i):]))
	}
	return pkt, nil
}
