package printer

import (
	"encoding/json"

	"helixscreen/pkg/log"
	"helixscreen/pkg/moonraker"
	"helixscreen/pkg/subject"
)

// JobQueueEntry is one queued print job.
type JobQueueEntry struct {
	JobID       string  `json:"job_id"`
	Filename    string  `json:"filename"`
	TimeAdded   float64 `json:"time_added"`
	TimeInQueue float64 `json:"time_in_queue"`
}

// JobQueue mirrors Moonraker's server-side job queue. Entries update on
// notify_job_queue_changed; the Count and State subjects drive the queue
// badge and panel. UI goroutine only.
type JobQueue struct {
	client *moonraker.Client
	queue  *subject.UpdateQueue
	logger *log.Logger

	entries []JobQueueEntry
	token   moonraker.SubscriptionToken
	started bool

	Count *subject.Subject // int, number of queued jobs
	State *subject.Subject // string: ready/loading/starting/paused
}

// NewJobQueue creates an empty mirror bound to client and queue.
func NewJobQueue(client *moonraker.Client, queue *subject.UpdateQueue) *JobQueue {
	return &JobQueue{
		client: client,
		queue:  queue,
		logger: log.New("JobQueue"),
		Count:  subject.NewInt(0),
		State:  subject.NewString(16, "ready"),
	}
}

// Start subscribes to queue-change notifications and fetches the initial
// state. Idempotent.
func (j *JobQueue) Start() {
	if j.started {
		return
	}
	j.started = true
	j.token = j.client.SubscribeMethod("notify_job_queue_changed", j.onChanged)
	j.Refresh()
}

// Stop unregisters the notification handler.
func (j *JobQueue) Stop() {
	if !j.started {
		return
	}
	j.client.Unsubscribe(j.token)
	j.started = false
}

// Entries returns the current queue contents.
func (j *JobQueue) Entries() []JobQueueEntry {
	return j.entries
}

// Refresh fetches the queue state on a worker goroutine and posts the
// result back.
func (j *JobQueue) Refresh() {
	go func() {
		status, err := j.client.GetJobQueueStatus()
		if err != nil {
			j.logger.Warn("job_queue.status failed: %v", err)
			return
		}
		j.queue.Post(func() {
			entries := make([]JobQueueEntry, len(status.QueuedJobs))
			for i, job := range status.QueuedJobs {
				entries[i] = JobQueueEntry{
					JobID:     job.JobID,
					Filename:  job.Filename,
					TimeAdded: job.TimeAdded,
				}
			}
			j.apply(entries, status.QueueState)
		})
	}()
}

// onChanged handles notify_job_queue_changed. Params are a JSON array
// with one object: {action, updated_queue, queue_state}.
func (j *JobQueue) onChanged(params json.RawMessage) {
	var arr []struct {
		Action       string          `json:"action"`
		UpdatedQueue []JobQueueEntry `json:"updated_queue"`
		QueueState   string          `json:"queue_state"`
	}
	if err := json.Unmarshal(params, &arr); err != nil || len(arr) == 0 {
		j.logger.Warn("malformed job queue notification: %v", err)
		return
	}
	n := arr[0]
	if n.UpdatedQueue != nil {
		j.apply(n.UpdatedQueue, n.QueueState)
	} else if n.QueueState != "" {
		j.State.SetString(n.QueueState)
	}
}

func (j *JobQueue) apply(entries []JobQueueEntry, state string) {
	j.entries = entries
	j.Count.SetInt(int64(len(entries)))
	if state != "" {
		j.State.SetString(state)
	}
}
