// Package queueaccess lets CLI commands operate on the queue the same way
// whether a daemon is running (IPC) or not (direct store access).
package queueaccess

import (
	"context"
	"fmt"

	"github.com/NovoNihilo/clipforge/internal/ipc"
	"github.com/NovoNihilo/clipforge/internal/queue"
)

// Access provides queue operations regardless of IPC or direct store backing.
type Access interface {
	Add(ctx context.Context, id, sourceURL string) (ipc.Job, error)
	List(ctx context.Context, stages []string) ([]ipc.Job, error)
	Show(ctx context.Context, id string) (ipc.Job, error)
	Stats(ctx context.Context) (map[string]int, error)
	Reset(ctx context.Context, id string) (ipc.Job, error)
	Remove(ctx context.Context, id string) (bool, error)
	ClearPackaged(ctx context.Context) (int64, error)
}

// NewIPCAccess returns an Access backed by daemon IPC.
func NewIPCAccess(client *ipc.Client) Access {
	return &ipcAccess{client: client}
}

// NewStoreAccess returns an Access backed by direct database access.
func NewStoreAccess(store *queue.Store) Access {
	return &storeAccess{store: store}
}

type ipcAccess struct {
	client *ipc.Client
}

func (a *ipcAccess) Add(_ context.Context, id, sourceURL string) (ipc.Job, error) {
	resp, err := a.client.JobAdd(id, sourceURL)
	if err != nil {
		return ipc.Job{}, err
	}
	return resp.Job, nil
}

func (a *ipcAccess) List(_ context.Context, stages []string) ([]ipc.Job, error) {
	resp, err := a.client.JobList(stages)
	if err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

func (a *ipcAccess) Show(_ context.Context, id string) (ipc.Job, error) {
	resp, err := a.client.JobShow(id)
	if err != nil {
		return ipc.Job{}, err
	}
	return resp.Job, nil
}

func (a *ipcAccess) Stats(_ context.Context) (map[string]int, error) {
	resp, err := a.client.QueueStats()
	if err != nil {
		return nil, err
	}
	return resp.Stats, nil
}

func (a *ipcAccess) Reset(_ context.Context, id string) (ipc.Job, error) {
	resp, err := a.client.JobReset(id)
	if err != nil {
		return ipc.Job{}, err
	}
	return resp.Job, nil
}

func (a *ipcAccess) Remove(_ context.Context, id string) (bool, error) {
	resp, err := a.client.JobRemove(id)
	if err != nil {
		return false, err
	}
	return resp.Removed, nil
}

func (a *ipcAccess) ClearPackaged(_ context.Context) (int64, error) {
	resp, err := a.client.ClearPackaged()
	if err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

type storeAccess struct {
	store *queue.Store
}

func (a *storeAccess) Add(ctx context.Context, id, sourceURL string) (ipc.Job, error) {
	job, err := a.store.Create(ctx, id, sourceURL, nil)
	if err != nil {
		return ipc.Job{}, err
	}
	return ipc.FromQueueJob(job), nil
}

func (a *storeAccess) List(ctx context.Context, rawStages []string) ([]ipc.Job, error) {
	var stages []queue.Stage
	for _, raw := range rawStages {
		stage, ok := queue.ParseStage(raw)
		if !ok {
			return nil, fmt.Errorf("unknown stage %q", raw)
		}
		stages = append(stages, stage)
	}
	jobs, err := a.store.List(ctx, stages...)
	if err != nil {
		return nil, err
	}
	out := make([]ipc.Job, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, ipc.FromQueueJob(job))
	}
	return out, nil
}

func (a *storeAccess) Show(ctx context.Context, id string) (ipc.Job, error) {
	job, err := a.store.GetByID(ctx, id)
	if err != nil {
		return ipc.Job{}, err
	}
	return ipc.FromQueueJob(job), nil
}

func (a *storeAccess) Stats(ctx context.Context) (map[string]int, error) {
	stats, err := a.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(stats))
	for stage, count := range stats {
		out[string(stage)] = count
	}
	return out, nil
}

func (a *storeAccess) Reset(ctx context.Context, id string) (ipc.Job, error) {
	job, err := a.store.ResetFailed(ctx, id)
	if err != nil {
		return ipc.Job{}, err
	}
	return ipc.FromQueueJob(job), nil
}

func (a *storeAccess) Remove(ctx context.Context, id string) (bool, error) {
	return a.store.Remove(ctx, id)
}

func (a *storeAccess) ClearPackaged(ctx context.Context) (int64, error) {
	return a.store.ClearPackaged(ctx)
}
