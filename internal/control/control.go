// Package control implements the local control socket server: a fixed-size binary command/response protocol served over
// a Unix domain socket, one connection handled at a time.
package control

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"github.com/cwsl/sdrcore/internal/acquisition"
	"github.com/cwsl/sdrcore/internal/frame"
)

// ioDeadline bounds each read/write on an accepted connection so a
// stalled or malicious client cannot pin the single-connection server
// forever.
const ioDeadline = 5 * time.Second

// StatusProvider supplies the fields of a GET_STATUS response. The
// daemon implements this by reading counters off the acquisition loop
// and ring writer.
type StatusProvider interface {
	Status() frame.Status
}

// Stopper shuts the whole pipeline down in response to a STOP command:
// flip the shared ring's streaming flag and unwind acquisition. The
// daemon implements this by canceling the context its run loop waits
// on.
type Stopper interface {
	Stop()
}

// Server accepts control connections on a Unix domain socket and
// serializes them: only one connection is served at a time. This is an
// RPC channel, not a pipeline.
type Server struct {
	path    string
	loop    *acquisition.Loop
	status  StatusProvider
	stopper Stopper

	listener net.Listener
}

// Listen creates (replacing any stale socket file) the control socket
// at path.
func Listen(path string, loop *acquisition.Loop, status StatusProvider, stopper Stopper) (*Server, error) {
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("control: listen %s: %w", path, err)
	}
	return &Server{path: path, loop: loop, status: status, stopper: stopper, listener: ln}, nil
}

// Serve accepts connections until ctx is canceled. Connections are
// handled one at a time in this goroutine, by design: the protocol
// does not need concurrency and serializing avoids interleaved writes
// to the radio.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("control: accept: %w", err)
		}
		s.handle(ctx, conn)
	}
}

// Close removes the socket file.
func (s *Server) Close() error {
	s.listener.Close()
	return os.Remove(s.path)
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	for {
		conn.SetReadDeadline(time.Now().Add(ioDeadline))
		var buf [frame.CommandSize]byte
		if _, err := readFull(conn, buf[:]); err != nil {
			return
		}

		cmd, err := frame.DecodeCommand(buf[:])
		if err != nil {
			log.Printf("control: decode: %v", err)
			return
		}

		resp := s.dispatch(ctx, cmd)

		conn.SetWriteDeadline(time.Now().Add(ioDeadline))
		wire := frame.EncodeResponse(resp)
		if _, err := conn.Write(wire[:]); err != nil {
			return
		}

		if cmd.Opcode == frame.OpStop {
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, cmd frame.Command) frame.Response {
	if !frame.KnownOpcode(cmd.Opcode) {
		return frame.Response{Success: false, Message: "unknown opcode"}
	}

	switch cmd.Opcode {
	case frame.OpPing:
		return frame.Response{Success: true, Message: "pong"}

	case frame.OpGetStatus:
		st := s.status.Status()
		return frame.Response{Success: true, Actual: float64(st.PeakDBFS), Message: "status"}

	case frame.OpSetFreq:
		return s.applyTune(ctx, acquisition.CmdSetFreq, cmd.Value)
	case frame.OpSetSampleRate:
		return s.applyTune(ctx, acquisition.CmdSetSampleRate, cmd.Value)
	case frame.OpSetGain:
		return s.applyTune(ctx, acquisition.CmdSetGain, cmd.Value)
	case frame.OpSetBandwidth:
		return s.applyTune(ctx, acquisition.CmdSetBandwidth, cmd.Value)

	case frame.OpStop:
		if s.stopper != nil {
			s.stopper.Stop()
		}
		return frame.Response{Success: true, Message: "stopping"}

	default:
		return frame.Response{Success: false, Message: "unhandled opcode"}
	}
}

func (s *Server) applyTune(ctx context.Context, kind acquisition.CommandKind, value float64) frame.Response {
	cctx, cancel := context.WithTimeout(ctx, ioDeadline)
	defer cancel()

	actual, err := s.loop.Submit(cctx, acquisition.Command{Kind: kind, Value: value})
	if err != nil {
		return frame.Response{Success: false, Message: err.Error()}
	}
	return frame.Response{Success: true, Actual: actual, Message: "ok"}
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
