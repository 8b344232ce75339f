package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Status retrieves daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call(serviceName+".Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobAdd enqueues a new clip job.
func (c *Client) JobAdd(id, sourceURL string) (*JobAddResponse, error) {
	var resp JobAddResponse
	if err := c.client.Call(serviceName+".JobAdd", JobAddRequest{ID: id, SourceURL: sourceURL}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobList returns jobs optionally filtered by stage.
func (c *Client) JobList(stages []string) (*JobListResponse, error) {
	var resp JobListResponse
	if err := c.client.Call(serviceName+".JobList", JobListRequest{Stages: stages}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobShow returns details for a single job.
func (c *Client) JobShow(id string) (*JobShowResponse, error) {
	var resp JobShowResponse
	if err := c.client.Call(serviceName+".JobShow", JobShowRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobReset returns a failed job to the stage it failed at.
func (c *Client) JobReset(id string) (*JobResetResponse, error) {
	var resp JobResetResponse
	if err := c.client.Call(serviceName+".JobReset", JobResetRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobRemove deletes a job from the queue.
func (c *Client) JobRemove(id string) (*JobRemoveResponse, error) {
	var resp JobRemoveResponse
	if err := c.client.Call(serviceName+".JobRemove", JobRemoveRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueStats returns per-stage job counts.
func (c *Client) QueueStats() (*QueueStatsResponse, error) {
	var resp QueueStatsResponse
	if err := c.client.Call(serviceName+".QueueStats", QueueStatsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClearPackaged removes packaged jobs from the queue.
func (c *Client) ClearPackaged() (*ClearPackagedResponse, error) {
	var resp ClearPackagedResponse
	if err := c.client.Call(serviceName+".ClearPackaged", ClearPackagedRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
