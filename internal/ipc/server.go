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
	"sync"

	"github.com/NovoNihilo/clipforge/internal/daemon"
	"github.com/NovoNihilo/clipforge/internal/logging"
	"github.com/NovoNihilo/clipforge/internal/queue"
)

// serviceName is the JSON-RPC namespace shared with the client.
const serviceName = "ClipForge"

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, store *queue.Store, logger *slog.Logger) (*Server, error) {
	if d == nil || store == nil {
		return nil, errors.New("ipc server requires daemon and store")
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

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, store: store, logger: logging.NewComponentLogger(logger, "ipc"), ctx: ctx}
	if err := rpcServer.RegisterName(serviceName, srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("ipc server listening", logging.String("socket", s.path))
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
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"))
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

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err))
	}
}

type service struct {
	daemon *daemon.Daemon
	store  *queue.Store
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status, err := s.daemon.Status(s.ctx)
	if err != nil {
		return err
	}
	stats, err := s.store.Stats(s.ctx)
	if err != nil {
		return err
	}

	resp.Running = status.Running
	resp.Owner = status.Workflow.Owner
	resp.Workers = status.Workflow.Workers
	resp.LastError = status.Workflow.LastError
	resp.QueueDBPath = status.QueueDBPath
	resp.LockPath = status.LockFilePath
	resp.PID = os.Getpid()
	resp.QueueStats = make(map[string]int, len(stats))
	for stage, count := range stats {
		resp.QueueStats[string(stage)] = count
	}
	return nil
}

func (s *service) JobAdd(req JobAddRequest, resp *JobAddResponse) error {
	job, err := s.store.Create(s.ctx, req.ID, req.SourceURL, nil)
	if err != nil {
		return err
	}
	s.logger.Info("job enqueued via ipc",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldEventType, "job_added"))
	resp.Job = FromQueueJob(job)
	return nil
}

func (s *service) JobList(req JobListRequest, resp *JobListResponse) error {
	var stages []queue.Stage
	for _, raw := range req.Stages {
		stage, ok := queue.ParseStage(raw)
		if !ok {
			return fmt.Errorf("unknown stage %q", raw)
		}
		stages = append(stages, stage)
	}
	jobs, err := s.store.List(s.ctx, stages...)
	if err != nil {
		return err
	}
	resp.Jobs = make([]Job, 0, len(jobs))
	for _, job := range jobs {
		resp.Jobs = append(resp.Jobs, FromQueueJob(job))
	}
	return nil
}

func (s *service) JobShow(req JobShowRequest, resp *JobShowResponse) error {
	job, err := s.store.GetByID(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Job = FromQueueJob(job)
	return nil
}

func (s *service) JobReset(req JobResetRequest, resp *JobResetResponse) error {
	job, err := s.store.ResetFailed(s.ctx, req.ID)
	if err != nil {
		return err
	}
	s.logger.Info("job reset via ipc",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldStage, string(job.Stage)),
		logging.String(logging.FieldEventType, "job_reset"))
	resp.Job = FromQueueJob(job)
	return nil
}

func (s *service) JobRemove(req JobRemoveRequest, resp *JobRemoveResponse) error {
	removed, err := s.store.Remove(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Removed = removed
	return nil
}

func (s *service) QueueStats(_ QueueStatsRequest, resp *QueueStatsResponse) error {
	stats, err := s.store.Stats(s.ctx)
	if err != nil {
		return err
	}
	resp.Stats = make(map[string]int, len(stats))
	for stage, count := range stats {
		resp.Stats[string(stage)] = count
	}
	return nil
}

func (s *service) ClearPackaged(_ ClearPackagedRequest, resp *ClearPackagedResponse) error {
	removed, err := s.store.ClearPackaged(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	return nil
}
