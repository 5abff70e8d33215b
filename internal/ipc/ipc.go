// Package ipc carries control commands to a running viewer as JSON-RPC over a
// unix domain socket.
package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"karolbroda.com/lyricfloat/internal/control"
	"karolbroda.com/lyricfloat/internal/logging"
)

const (
	serviceName = "Lyricfloat"
	dialTimeout = 2 * time.Second
)

type SendRequest struct {
	RequestID string
	Command   control.Envelope
}

type SendResponse struct {
	RequestID string
	Reply     control.Reply
}

type PingRequest struct{}

type PingResponse struct {
	PID int
}

// DefaultSocketPath places the socket under XDG_RUNTIME_DIR when available.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "lyricfloat.sock")
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("lyricfloat-%d.sock", os.Getuid()))
}

// Server exposes a control.Handler on a socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewServer(ctx context.Context, path string, handler control.Handler, logger *slog.Logger) (*Server, error) {
	if handler == nil {
		return nil, errors.New("ipc server requires a handler")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	rpcServer := rpc.NewServer()
	svc := &service{handler: handler, logger: logging.NewComponentLogger(logger, "ipc"), ctx: serverCtx}
	if err := rpcServer.RegisterName(serviceName, svc); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve accepts connections in the background until Close.
func (s *Server) Serve() {
	s.logger.Debug("control socket listening", "socket", s.path)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				s.logger.Warn("accept failed", logging.Error(err))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket", "socket", s.path, logging.Error(err))
	}
}

type service struct {
	handler control.Handler
	logger  *slog.Logger
	ctx     context.Context
}

func (s *service) Send(req SendRequest, resp *SendResponse) error {
	resp.RequestID = req.RequestID

	cmd, err := control.Decode(req.Command)
	if err != nil {
		s.logger.Debug("rejected command", "request_id", req.RequestID, "kind", req.Command.Kind, logging.Error(err))
		return err
	}

	s.logger.Debug("command received", "request_id", req.RequestID, "kind", cmd.Kind())
	reply, err := s.handler.Handle(s.ctx, cmd)
	if err != nil {
		return err
	}
	resp.Reply = reply
	return nil
}

func (s *service) Ping(_ PingRequest, resp *PingResponse) error {
	resp.PID = os.Getpid()
	return nil
}

// Client talks to a running viewer.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, dialTimeout)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, client: rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))}, nil
}

func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Send encodes cmd and waits for the viewer's reply.
func (c *Client) Send(cmd control.Command) (*control.Reply, error) {
	env, err := control.Encode(cmd)
	if err != nil {
		return nil, err
	}

	var resp SendResponse
	req := SendRequest{RequestID: uuid.NewString(), Command: env}
	if err := c.client.Call(serviceName+".Send", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Reply, nil
}

func (c *Client) Ping() (int, error) {
	var resp PingResponse
	if err := c.client.Call(serviceName+".Ping", PingRequest{}, &resp); err != nil {
		return 0, err
	}
	return resp.PID, nil
}
