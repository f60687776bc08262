package floodmask

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// RemoteQueue talks to the batch platform's task API over HTTP.
type RemoteQueue struct {
	baseURL string
	client  *http.Client
}

func NewRemoteQueue(baseURL string) *RemoteQueue {
	return &RemoteQueue{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type taskListResponse struct {
	Tasks []struct {
		ID    string `json:"id"`
		State string `json:"state"`
	} `json:"tasks"`
}

// Depth counts tasks that are queued or running.
func (q *RemoteQueue) Depth(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, q.baseURL+"/tasks", nil)
	if err != nil {
		return 0, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("error while doing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)
	}

	var data taskListResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return 0, fmt.Errorf("error decoding resp.Body: %w", err)
	}

	active := 0
	for _, t := range data.Tasks {
		if t.State == "READY" || t.State == "RUNNING" {
			active++
		}
	}
	return active, nil
}

type submitRequest struct {
	Key      string `json:"mon_yr_adm1_id"`
	Adm1Code int    `json:"adm1_code"`
	Year     int    `json:"year"`
}

// Submit starts one extraction task. The platform responds before the task
// runs; results arrive later as per-event metrics files.
func (q *RemoteQueue) Submit(ctx context.Context, job Job) error {
	body, err := json.Marshal(submitRequest{
		Key:      job.Key,
		Adm1Code: job.Adm1Code,
		Year:     job.Year,
	})
	if err != nil {
		return fmt.Errorf("error encoding job: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, q.baseURL+"/tasks", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := q.client.Do(req)
	if err != nil {
		return fmt.Errorf("error while doing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)
	}
	return nil
}
