package moonraker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"helixscreen/pkg/errors"
)

// ServerInfo mirrors the server.info result.
type ServerInfo struct {
	KlippyConnected  bool     `json:"klippy_connected"`
	KlippyState      string   `json:"klippy_state"`
	Components       []string `json:"components"`
	FailedComponents []string `json:"failed_components"`
	Warnings         []string `json:"warnings"`
	MoonrakerVersion string   `json:"moonraker_version"`
	APIVersionString string   `json:"api_version_string"`
	Hostname         string   `json:"hostname"`
}

// PrinterInfo mirrors the printer.info result.
type PrinterInfo struct {
	State           string `json:"state"`
	StateMessage    string `json:"state_message"`
	Hostname        string `json:"hostname"`
	SoftwareVersion string `json:"software_version"`
	ConfigFile      string `json:"config_file"`
}

// FileEntry describes one file from server.files.list.
type FileEntry struct {
	Path     string  `json:"path"`
	Modified float64 `json:"modified"`
	Size     int64   `json:"size"`
}

// JobQueueJob describes one queued print job.
type JobQueueJob struct {
	JobID     string  `json:"job_id"`
	Filename  string  `json:"filename"`
	TimeAdded float64 `json:"time_added"`
}

// JobQueueStatus mirrors server.job_queue.status.
type JobQueueStatus struct {
	QueuedJobs []JobQueueJob `json:"queued_jobs"`
	QueueState string        `json:"queue_state"`
}

// GetServerInfo fetches server.info.
func (c *Client) GetServerInfo() (*ServerInfo, error) {
	var info ServerInfo
	if err := c.Call("server.info", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetPrinterInfo fetches printer.info.
func (c *Client) GetPrinterInfo() (*PrinterInfo, error) {
	var info PrinterInfo
	if err := c.Call("printer.info", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ListObjects fetches the available printer objects.
func (c *Client) ListObjects() ([]string, error) {
	var res struct {
		Objects []string `json:"objects"`
	}
	if err := c.Call("printer.objects.list", nil, &res); err != nil {
		return nil, err
	}
	return res.Objects, nil
}

// QueryObjects queries status for the given objects. A nil attribute
// slice requests all attributes for that object.
func (c *Client) QueryObjects(objects map[string][]string) (map[string]map[string]any, error) {
	var res struct {
		Status map[string]map[string]any `json:"status"`
	}
	params := map[string]any{"objects": objectsParam(objects)}
	if err := c.Call("printer.objects.query", params, &res); err != nil {
		return nil, err
	}
	return res.Status, nil
}

// SubscribeObjects subscribes to status updates for the given objects.
// Updates arrive as notify_status_update notifications; register a
// handler with SubscribeMethod before calling this. Returns the initial
// status snapshot.
func (c *Client) SubscribeObjects(objects map[string][]string) (map[string]map[string]any, error) {
	var res struct {
		Status map[string]map[string]any `json:"status"`
	}
	params := map[string]any{"objects": objectsParam(objects)}
	if err := c.Call("printer.objects.subscribe", params, &res); err != nil {
		return nil, err
	}
	return res.Status, nil
}

func objectsParam(objects map[string][]string) map[string]any {
	out := make(map[string]any, len(objects))
	for name, attrs := range objects {
		if attrs == nil {
			out[name] = nil
		} else {
			out[name] = attrs
		}
	}
	return out
}

// RunGCode executes a G-code script and waits for completion.
func (c *Client) RunGCode(script string) error {
	params := map[string]any{"script": script}
	return c.Call("printer.gcode.script", params, nil)
}

// RunGCodeAsync executes a G-code script without blocking the caller.
// done (optional) runs on the UI goroutine.
func (c *Client) RunGCodeAsync(script string, done func(err error)) {
	params := map[string]any{"script": script}
	c.CallAsync("printer.gcode.script", params, func(_ json.RawMessage, err error) {
		if done != nil {
			done(err)
		}
	})
}

// EmergencyStop triggers an immediate firmware halt.
func (c *Client) EmergencyStop() error {
	return c.Call("printer.emergency_stop", nil, nil)
}

// FirmwareRestart restarts the Klipper firmware connection.
func (c *Client) FirmwareRestart() error {
	return c.Call("printer.firmware_restart", nil, nil)
}

// RestartKlipper restarts the Klippy host process.
func (c *Client) RestartKlipper() error {
	return c.Call("printer.restart", nil, nil)
}

// ShutdownMachine powers off the host machine.
func (c *Client) ShutdownMachine() error {
	return c.Call("machine.shutdown", nil, nil)
}

// RebootMachine reboots the host machine.
func (c *Client) RebootMachine() error {
	return c.Call("machine.reboot", nil, nil)
}

// Print lifecycle calls.

// StartPrint begins printing the given file.
func (c *Client) StartPrint(filename string) error {
	return c.Call("printer.print.start", map[string]any{"filename": filename}, nil)
}

// PausePrint pauses the active print.
func (c *Client) PausePrint() error {
	return c.Call("printer.print.pause", nil, nil)
}

// ResumePrint resumes a paused print.
func (c *Client) ResumePrint() error {
	return c.Call("printer.print.resume", nil, nil)
}

// CancelPrint cancels the active print.
func (c *Client) CancelPrint() error {
	return c.Call("printer.print.cancel", nil, nil)
}

// Job queue calls.

// GetJobQueueStatus fetches the server job queue state.
func (c *Client) GetJobQueueStatus() (*JobQueueStatus, error) {
	var res JobQueueStatus
	if err := c.Call("server.job_queue.status", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// StartJobQueue resumes processing of the job queue.
func (c *Client) StartJobQueue() error {
	return c.Call("server.job_queue.start", nil, nil)
}

// PauseJobQueue pauses the job queue after the current print.
func (c *Client) PauseJobQueue() error {
	return c.Call("server.job_queue.pause", nil, nil)
}

// EnqueueJob appends filenames to the job queue.
func (c *Client) EnqueueJob(filenames ...string) error {
	return c.Call("server.job_queue.post_job", map[string]any{"filenames": filenames}, nil)
}

// RemoveJob deletes jobs from the queue by id.
func (c *Client) RemoveJob(jobIDs ...string) error {
	return c.Call("server.job_queue.delete_job", map[string]any{"job_ids": jobIDs}, nil)
}

// JumpJob moves a queued job to the front of the queue.
func (c *Client) JumpJob(jobID string) error {
	return c.Call("server.job_queue.jump", map[string]any{"job_id": jobID}, nil)
}

// File calls.

// ListFiles lists files under a root ("gcodes", "config").
func (c *Client) ListFiles(root string) ([]FileEntry, error) {
	var entries []FileEntry
	params := map[string]any{"root": root}
	if err := c.Call("server.files.list", params, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// GetFileMetadata fetches gcode metadata for a file.
func (c *Client) GetFileMetadata(filename string) (map[string]any, error) {
	var meta map[string]any
	params := map[string]any{"filename": filename}
	if err := c.Call("server.files.metadata", params, &meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// DownloadFile fetches a file's contents over HTTP. root is a Moonraker
// file root ("config", "gcodes"); path is relative to that root.
func (c *Client) DownloadFile(root, path string) ([]byte, error) {
	url := fmt.Sprintf("http://%s/server/files/%s/%s", c.cfg.Address, root, path)
	httpClient := &http.Client{Timeout: 30 * time.Second}

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.TransportError(err.Error())
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("X-Api-Key", c.cfg.APIKey)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, errors.TransportError(fmt.Sprintf("download %s/%s: %v", root, path, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.ServerError(resp.StatusCode,
			fmt.Sprintf("download %s/%s: %s", root, path, resp.Status))
	}
	return io.ReadAll(resp.Body)
}

// UploadFile uploads contents to root/path via the multipart upload
// endpoint, overwriting any existing file.
func (c *Client) UploadFile(root, path string, contents []byte) error {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	if err := w.WriteField("root", root); err != nil {
		return errors.IOError("build upload form", err)
	}
	part, err := w.CreateFormFile("file", path)
	if err != nil {
		return errors.IOError("build upload form", err)
	}
	if _, err := part.Write(contents); err != nil {
		return errors.IOError("build upload form", err)
	}
	if err := w.Close(); err != nil {
		return errors.IOError("build upload form", err)
	}

	url := fmt.Sprintf("http://%s/server/files/upload", c.cfg.Address)
	req, err := http.NewRequest(http.MethodPost, url, &body)
	if err != nil {
		return errors.TransportError(err.Error())
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if c.cfg.APIKey != "" {
		req.Header.Set("X-Api-Key", c.cfg.APIKey)
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	resp, err := httpClient.Do(req)
	if err != nil {
		return errors.TransportError(fmt.Sprintf("upload %s/%s: %v", root, path, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return errors.ServerError(resp.StatusCode,
			fmt.Sprintf("upload %s/%s: %s", root, path, resp.Status))
	}
	return nil
}
