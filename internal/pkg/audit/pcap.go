package audit

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"os"
	"sync"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

const pcapSnapLen = 65536

// PcapRecorder writes every audited message as a synthetic TCP segment
// between the session endpoints, so the traffic can be inspected with
// standard capture tools. The file uses the raw IP link type.
type PcapRecorder struct {
	mu     sync.Mutex
	file   *os.File
	writer *pcapgo.Writer
	seq    map[string]uint32 // next sequence number per direction of a session
}

// NewPcapRecorder creates (or truncates) the capture file
func NewPcapRecorder(path string) (*PcapRecorder, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create PCAP file: %w", err)
	}

	w := pcapgo.NewWriter(file)
	if err := w.WriteFileHeader(pcapSnapLen, layers.LinkTypeRaw); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to write PCAP header: %w", err)
	}

	return &PcapRecorder{
		file:   file,
		writer: w,
		seq:    make(map[string]uint32),
	}, nil
}

func (p *PcapRecorder) Name() string { return "pcap" }

// Write appends rec as one packet. Inbound messages flow remote -> local,
// outbound ones local -> remote.
func (p *PcapRecorder) Write(_ context.Context, rec Record) error {
	if len(rec.Raw) == 0 {
		return nil
	}

	src, dst := rec.RemoteAddr, rec.LocalAddr
	if rec.Direction == Sent {
		src, dst = dst, src
	}
	srcAP, err := parseAddrPort(src)
	if err != nil {
		return err
	}
	dstAP, err := parseAddrPort(dst)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	key := src + ">" + dst
	seq := p.seq[key]
	p.seq[key] = seq + uint32(len(rec.Raw))

	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(srcAP.Port()),
		DstPort: layers.TCPPort(dstAP.Port()),
		Seq:     seq,
		PSH:     true,
		ACK:     true,
		Window:  65535,
	}

	var network gopacket.NetworkLayer
	if srcAP.Addr().Is4() && dstAP.Addr().Is4() {
		ip := &layers.IPv4{
			Version:  4,
			TTL:      64,
			Protocol: layers.IPProtocolTCP,
			SrcIP:    net.IP(srcAP.Addr().AsSlice()),
			DstIP:    net.IP(dstAP.Addr().AsSlice()),
		}
		network = ip
	} else {
		ip := &layers.IPv6{
			Version:    6,
			HopLimit:   64,
			NextHeader: layers.IPProtocolTCP,
			SrcIP:      ip16(srcAP.Addr()),
			DstIP:      ip16(dstAP.Addr()),
		}
		network = ip
	}
	if err := tcp.SetNetworkLayerForChecksum(network); err != nil {
		return fmt.Errorf("pcap checksum setup: %w", err)
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts,
		network.(gopacket.SerializableLayer), tcp, gopacket.Payload(rec.Raw)); err != nil {
		return fmt.Errorf("pcap serialize: %w", err)
	}

	data := buf.Bytes()
	ci := gopacket.CaptureInfo{
		Timestamp:     rec.Timestamp,
		CaptureLength: len(data),
		Length:        len(data),
	}
	if err := p.writer.WritePacket(ci, data); err != nil {
		return fmt.Errorf("pcap write: %w", err)
	}
	return nil
}

// Close flushes and closes the capture file
func (p *PcapRecorder) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.file.Close()
}

func parseAddrPort(s string) (netip.AddrPort, error) {
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("pcap endpoint %q: %w", s, err)
	}
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port()), nil
}

func ip16(a netip.Addr) net.IP {
	b := a.As16()
	return net.IP(b[:])
}
