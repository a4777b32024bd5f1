package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"signald/internal/logging"
	"signald/internal/tools"
)

// StdioServer serves one long-lived session over line-delimited JSON-RPC.
// The channel is point-to-point: one caller, synchronous request→response.
// Logs must stay off the out writer; stdout belongs to the protocol.
type StdioServer struct {
	core *Core
	in   io.Reader
	out  io.Writer

	writeMu sync.Mutex
}

// NewStdioServer creates a stdio server reading requests from in and
// writing responses to out.
func NewStdioServer(registry *tools.Registry, in io.Reader, out io.Writer) *StdioServer {
	return &StdioServer{
		core: NewCore(registry, true),
		in:   in,
		out:  out,
	}
}

// Serve reads requests until EOF or context cancellation. Each malformed
// line gets a parse error reply; the session survives it.
func (s *StdioServer) Serve(ctx context.Context) error {
	log := logging.Get(logging.CategoryTransport)
	log.Info("stdio session started")

	sess := &session{}
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req rpcRequest
		if err := json.Unmarshal(line, &req); err != nil {
			log.Warn("unparseable frame", zap.Error(err))
			if err := s.write(newErrorResponse(nil, codeParseError, "parse error: "+err.Error(), nil)); err != nil {
				return err
			}
			continue
		}

		resp := s.core.handle(ctx, sess, &req)
		if resp == nil {
			continue
		}
		if err := s.write(resp); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stdio read failed: %w", err)
	}
	log.Info("stdio session closed")
	return nil
}

func (s *StdioServer) write(resp *rpcResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err = s.out.Write(append(data, '\n'))
	return err
}
