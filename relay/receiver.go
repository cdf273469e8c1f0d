package relay

import (
	"fmt"
	"net"
	"time"
)

// Receiver collects position frames on a UDP port.
type Receiver struct {
	conn *net.UDPConn
}

// Listen binds a receiver to addr (e.g. ":5000" or "0.0.0.0:5000").
func Listen(addr string) (*Receiver, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("invalid relay listen address %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return &Receiver{conn: conn}, nil
}

// LocalAddr returns the bound address.
func (r *Receiver) LocalAddr() net.Addr {
	return r.conn.LocalAddr()
}

// SetDeadline bounds how long Next blocks.
func (r *Receiver) SetDeadline(t time.Time) error {
	return r.conn.SetReadDeadline(t)
}

// Next blocks for the next frame and reports who sent it.
func (r *Receiver) Next() (Frame, net.Addr, error) {
	buf := make([]byte, 1024)
	n, sender, err := r.conn.ReadFrom(buf)
	if err != nil {
		return Frame{}, nil, err
	}
	frame, err := Unmarshal(buf[:n])
	if err != nil {
		return Frame{}, sender, err
	}
	return frame, sender, nil
}

// Close releases the socket.
func (r *Receiver) Close() error {
	return r.conn.Close()
}
