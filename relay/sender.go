package relay

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Sender pushes position frames to one UDP target.
type Sender struct {
	conn   net.Conn
	target string
}

// Dial resolves the target ("host:port") and returns a ready Sender.
func Dial(target string) (*Sender, error) {
	conn, err := net.Dial("udp", target)
	if err != nil {
		return nil, fmt.Errorf("failed to dial relay target %s: %w", target, err)
	}
	return &Sender{conn: conn, target: target}, nil
}

// Target returns the remote address frames are sent to.
func (s *Sender) Target() string {
	return s.target
}

// Send transmits one snapshot, stamped with the current time.
func (s *Sender) Send(positions map[int]int) error {
	frame := Frame{
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
		Positions: positions,
	}
	data, err := frame.Marshal()
	if err != nil {
		return err
	}
	if _, err := s.conn.Write(data); err != nil {
		return fmt.Errorf("failed to send frame to %s: %w", s.target, err)
	}
	return nil
}

// Run streams snapshots from source at the given period until ctx is
// cancelled or source fails. Each cycle sleeps whatever remains of its
// period; an overrunning cycle is late, never caught up.
func (s *Sender) Run(ctx context.Context, period time.Duration, source func() (map[int]int, error)) error {
	if period <= 0 {
		return fmt.Errorf("relay period must be positive, got %v", period)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		start := time.Now()
		positions, err := source()
		if err != nil {
			return err
		}
		if err := s.Send(positions); err != nil {
			return err
		}

		if remaining := period - time.Since(start); remaining > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(remaining):
			}
		}
	}
}

// Close releases the socket.
func (s *Sender) Close() error {
	return s.conn.Close()
}
