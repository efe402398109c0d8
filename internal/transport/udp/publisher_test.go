// SPDX-License-Identifier: MIT
package udp

import (
	"net"
	"testing"
	"time"

	"micscope/internal/pipeline"
)

func listen(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestPublisher_SendsLatestUpdate(t *testing.T) {
	recv := listen(t)
	sender, err := NewSender(recv.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewSender: %v", err)
	}
	pub, err := NewPublisher(5*time.Millisecond, sender)
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	defer pub.Close()

	now := time.Now()
	pub.Publish(pipeline.Update{Seq: 1, Time: now, Waveform: []float64{0}, Spectrum: []float64{0}})
	pub.Publish(pipeline.Update{
		Seq:      2,
		Time:     now,
		State:    pipeline.Streaming,
		Waveform: []float64{32767.5, 40000},
		Spectrum: []float64{0, 1234.5},
		Min:      -100,
		Max:      250,
	})
	pub.Start()
	pub.Start() // no-op

	buf := make([]byte, 1500)
	recv.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := recv.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	pkt, err := Decode(buf[:n])
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if pkt.Seq != 2 || pkt.State != pipeline.Streaming || pkt.Timestamp != now.UnixNano() {
		t.Errorf("header = %+v", pkt)
	}
	if pkt.Min != -100 || pkt.Max != 250 {
		t.Errorf("min/max = %v/%v", pkt.Min, pkt.Max)
	}
	if len(pkt.Waveform) != 2 || pkt.Waveform[0] != 32767.5 || pkt.Spectrum[1] != 1234.5 {
		t.Errorf("payload = %v %v", pkt.Waveform, pkt.Spectrum)
	}
	if n != headerSize+2*2*4 {
		t.Errorf("packet size = %d", n)
	}
}

func TestPublisher_SkipsWithoutNewUpdate(t *testing.T) {
	recv := listen(t)
	sender, err := NewSender(recv.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewSender: %v", err)
	}
	pub, _ := NewPublisher(5*time.Millisecond, sender)
	pub.Start()
	defer pub.Close()

	recv.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	if _, err := recv.Read(make([]byte, 64)); err == nil {
		t.Error("received a packet before any update was published")
	}
}

func TestPublisher_PackRejectsMismatchedSummaries(t *testing.T) {
	p := &Publisher{}
	if err := p.pack(pipeline.Update{Waveform: []float64{1}, Spectrum: nil}); err == nil {
		t.Error("expected error for mismatched summaries")
	}
}

func TestPublisher_StopLifecycle(t *testing.T) {
	recv := listen(t)
	sender, err := NewSender(recv.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewSender: %v", err)
	}
	pub, err := NewPublisher(0, sender)
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	if pub.interval != DefaultInterval {
		t.Errorf("interval = %s, want %s", pub.interval, DefaultInterval)
	}
	if err := pub.Stop(); err != nil {
		t.Errorf("Stop before Start: %v", err)
	}
	pub.Start()
	if err := pub.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := pub.Stop(); err != nil {
		t.Errorf("Stop after Close: %v", err)
	}
	if err := sender.Send([]byte{1}); err == nil {
		t.Error("Send after Close succeeded")
	}
}

func TestNewPublisher_NilSender(t *testing.T) {
	if _, err := NewPublisher(time.Second, nil); err == nil {
		t.Error("expected error for nil sender")
	}
}

func TestDecode_Short(t *testing.T) {
	if _, err := Decode(make([]byte, headerSize-1)); err == nil {
		t.Error("expected error for short header")
	}
	hdr := make([]byte, headerSize)
	hdr[headerSize-1] = 2 // count 2, no payload
	if _, err := Decode(hdr); err == nil {
		t.Error("expected error for missing payload")
	}
}
