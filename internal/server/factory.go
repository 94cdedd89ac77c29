package server

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/wagnerlima/psytech-mcp/internal/session"
)

// Factory hands every MCP client session its own MCP server over its own
// session.Session. A session is closed when its client disconnects, or by
// Close for whatever is still open.
type Factory struct {
	newSession func() (*session.Session, error)
	logger     *zap.Logger

	mu     sync.Mutex
	open   map[*session.Session]struct{}
	closed bool
}

// NewFactory returns a Factory that builds sessions with newSession.
func NewFactory(newSession func() (*session.Session, error), logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{
		newSession: newSession,
		logger:     logger,
		open:       make(map[*session.Session]struct{}),
	}
}

// Server builds the MCP server for one new client session. It has the
// signature mcp.NewStreamableHTTPHandler expects and returns nil, which the
// handler answers with 400, when no session can be built.
func (f *Factory) Server(*http.Request) *mcp.Server {
	sess, err := f.newSession()
	if err != nil {
		f.logger.Error("create client session", zap.Error(err))
		return nil
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		sess.Close()
		return nil
	}
	f.open[sess] = struct{}{}
	f.mu.Unlock()

	f.logger.Info("client session opened", zap.String("session_id", sess.ID()))
	return newServer(sess, f.logger, &mcp.ServerOptions{
		InitializedHandler: func(_ context.Context, req *mcp.InitializedRequest) {
			go func() {
				req.Session.Wait()
				f.release(sess)
			}()
		},
	})
}

// Open reports how many client sessions are open.
func (f *Factory) Open() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.open)
}

// Close closes every open session. Later calls to Server return nil.
func (f *Factory) Close() error {
	f.mu.Lock()
	f.closed = true
	open := f.open
	f.open = make(map[*session.Session]struct{})
	f.mu.Unlock()

	var errs []error
	for sess := range open {
		errs = append(errs, sess.Close())
	}
	return errors.Join(errs...)
}

func (f *Factory) release(sess *session.Session) {
	f.mu.Lock()
	_, ok := f.open[sess]
	delete(f.open, sess)
	f.mu.Unlock()
	if !ok {
		return
	}
	if err := sess.Close(); err != nil {
		f.logger.Warn("close client session", zap.String("session_id", sess.ID()), zap.Error(err))
		return
	}
	f.logger.Info("client session closed", zap.String("session_id", sess.ID()))
}
