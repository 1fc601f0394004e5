package forge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/image/draw"
	_ "image/jpeg"
	"image/png"
)

// GenerationRequest is one job submission to the generation service.
// InitImage carries an optional base64-encoded guidance image.
type GenerationRequest struct {
	Prompt    string  `json:"prompt"`
	Seed      int64   `json:"seed"`
	Strength  float64 `json:"strength"`
	InitImage string  `json:"init_image,omitempty"`
}

// GenerationJob mirrors the service's job document.
type GenerationJob struct {
	ID       string  `json:"id"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	AssetURL string  `json:"asset_url,omitempty"`
	Error    string  `json:"error,omitempty"`
}

const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobSucceeded = "succeeded"
	JobFailed    = "failed"
)

// GenerationProgress is one progress tick for a running job.
type GenerationProgress struct {
	JobID    string  `json:"job_id"`
	Progress float64 `json:"progress"`
	Stage    string  `json:"stage,omitempty"`
}

// GenerationClient talks to the generation service over HTTP, with an
// optional websocket stream for progress.
type GenerationClient struct {
	endpoint    string
	progressURL string
	apiKey      string
	httpClient  *http.Client
	pollEvery   time.Duration
	log         Logger
}

func NewGenerationClient(cfg GenerationConfig, log Logger) *GenerationClient {
	if log == nil {
		log = NewNopLogger()
	}
	poll := time.Duration(cfg.PollSeconds) * time.Second
	if poll <= 0 {
		poll = 2 * time.Second
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GenerationClient{
		endpoint:    cfg.Endpoint,
		progressURL: cfg.ProgressURL,
		apiKey:      cfg.APIKey,
		httpClient:  &http.Client{Timeout: timeout},
		pollEvery:   poll,
		log:         log,
	}
}

func (c *GenerationClient) do(ctx context.Context, method, url string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("generation service: %s %s: %s: %s", method, url, resp.Status, string(raw))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Submit queues a job and returns its initial document.
func (c *GenerationClient) Submit(ctx context.Context, req GenerationRequest) (*GenerationJob, error) {
	var job GenerationJob
	if err := c.do(ctx, http.MethodPost, c.endpoint+"/jobs", req, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Status fetches the current job document.
func (c *GenerationClient) Status(ctx context.Context, jobID string) (*GenerationJob, error) {
	var job GenerationJob
	if err := c.do(ctx, http.MethodGet, c.endpoint+"/jobs/"+jobID, nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Await polls until the job reaches a terminal status or ctx is done.
func (c *GenerationClient) Await(ctx context.Context, jobID string) (*GenerationJob, error) {
	ticker := time.NewTicker(c.pollEvery)
	defer ticker.Stop()

	for {
		job, err := c.Status(ctx, jobID)
		if err != nil {
			return nil, err
		}
		switch job.Status {
		case JobSucceeded, JobFailed:
			return job, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// StreamProgress reads progress ticks for jobID over the websocket and
// feeds them to onTick until the stream closes or ctx is done. Returns
// nil when no progress URL is configured.
func (c *GenerationClient) StreamProgress(ctx context.Context, jobID string, onTick func(GenerationProgress)) error {
	if c.progressURL == "" {
		return nil
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.progressURL+"?job="+jobID, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var tick GenerationProgress
		if err := conn.ReadJSON(&tick); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		if tick.JobID == "" || tick.JobID == jobID {
			onTick(tick)
		}
	}
}

// Download fetches url into destDir, returning the written path.
func (c *GenerationClient) Download(ctx context.Context, url, destDir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: %s", url, resp.Status)
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(destDir, filepath.Base(url))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", err
	}
	return path, nil
}

// WriteThumbnail decodes src, scales it to fit maxDim and writes a PNG
// to dst.
func WriteThumbnail(src, dst string, maxDim int) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return err
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > h {
		h = h * maxDim / w
		w = maxDim
	} else {
		w = w * maxDim / h
		h = maxDim
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	thumb := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(thumb, thumb.Bounds(), img, b, draw.Over, nil)

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	return png.Encode(out, thumb)
}

type generationResult struct {
	entityID string
	record   GenerationRecord
	path     string
}

// Generator runs generation jobs off-thread and applies their results
// back on the update thread. Failures degrade the entity (placeholder
// bounds stay), they never abort the session.
type Generator struct {
	client *GenerationClient
	lib    *AssetLibrary
	log    Logger

	mu      sync.Mutex
	results []generationResult
	cancels map[string]*genJob

	// Progress fires on the worker goroutine; subscribers must be
	// thread-safe or just forward to the UI layer.
	Progress Signal[GenerationProgress]
}

func NewGenerator(client *GenerationClient, lib *AssetLibrary, log Logger) *Generator {
	if log == nil {
		log = NewNopLogger()
	}
	return &Generator{
		client:  client,
		lib:     lib,
		log:     log,
		cancels: map[string]*genJob{},
	}
}

type genJob struct {
	cancel context.CancelFunc
}

// Kick starts a generation job for the entity. At most one job per
// entity; a second Kick cancels the first.
func (g *Generator) Kick(ent *GenerativeEntity, req GenerationRequest) {
	g.Cancel(ent.ID())

	ctx, cancel := context.WithCancel(context.Background())
	job := &genJob{cancel: cancel}
	entityID := ent.ID()

	g.mu.Lock()
	g.cancels[entityID] = job
	g.mu.Unlock()

	go func() {
		defer g.finish(entityID, job)
		g.run(ctx, entityID, req)
	}()
}

// Cancel stops the entity's running job, if any.
func (g *Generator) Cancel(entityID string) {
	g.mu.Lock()
	job := g.cancels[entityID]
	delete(g.cancels, entityID)
	g.mu.Unlock()
	if job != nil {
		job.cancel()
	}
}

// finish releases the job slot unless a newer Kick already replaced it.
func (g *Generator) finish(entityID string, job *genJob) {
	g.mu.Lock()
	if g.cancels[entityID] == job {
		delete(g.cancels, entityID)
	}
	g.mu.Unlock()
	job.cancel()
}

func (g *Generator) run(ctx context.Context, entityID string, req GenerationRequest) {
	record := GenerationRecord{
		Prompt:   req.Prompt,
		Seed:     req.Seed,
		Strength: req.Strength,
		At:       time.Now(),
	}

	fail := func(err error) {
		g.log.Errorf("generation for %s failed: %v", entityID, err)
		record.Status = JobFailed
		g.push(generationResult{entityID: entityID, record: record})
	}

	job, err := g.client.Submit(ctx, req)
	if err != nil {
		fail(err)
		return
	}

	go func() {
		err := g.client.StreamProgress(ctx, job.ID, func(tick GenerationProgress) {
			g.Progress.Emit(tick)
		})
		if err != nil && ctx.Err() == nil {
			g.log.Warnf("progress stream for job %s: %v", job.ID, err)
		}
	}()

	job, err = g.client.Await(ctx, job.ID)
	if err != nil {
		fail(err)
		return
	}
	if job.Status != JobSucceeded {
		fail(fmt.Errorf("job %s: %s", job.ID, job.Error))
		return
	}

	path, err := g.client.Download(ctx, job.AssetURL, g.lib.dir)
	if err != nil {
		fail(err)
		return
	}

	record.Status = JobSucceeded
	record.AssetURL = job.AssetURL
	g.push(generationResult{entityID: entityID, record: record, path: path})
}

func (g *Generator) push(r generationResult) {
	g.mu.Lock()
	g.results = append(g.results, r)
	g.mu.Unlock()
}

func (g *Generator) drain() []generationResult {
	g.mu.Lock()
	out := g.results
	g.results = nil
	g.mu.Unlock()
	return out
}

// GenerationModule installs the client, the generator and the result
// drain system.
type GenerationModule struct {
	Config GenerationConfig
}

func (m GenerationModule) Install(app *App) {
	log := app.Logger()
	client := NewGenerationClient(m.Config, log)
	lib := ResourceOf[AssetLibrary](app)
	if lib == nil {
		log.Warnf("generation disabled: no asset library installed")
		return
	}
	gen := NewGenerator(client, lib, log)
	app.AddResources(client, gen)
	app.OnDispose(func() {
		gen.mu.Lock()
		jobs := make([]*genJob, 0, len(gen.cancels))
		for _, j := range gen.cancels {
			jobs = append(jobs, j)
		}
		gen.cancels = map[string]*genJob{}
		gen.mu.Unlock()
		for _, j := range jobs {
			j.cancel()
		}
	})
	app.UseSystem(System(generationDrainSystem).InStage(StagePostUpdate))
}

// generationDrainSystem applies finished jobs to their entities on the
// update thread.
func generationDrainSystem(gen *Generator, ed *Editor) {
	for _, r := range gen.drain() {
		ent := ed.EntityByID(r.entityID)
		if ent == nil {
			continue
		}
		ge, ok := ent.(*GenerativeEntity)
		if !ok {
			continue
		}
		ge.RecordGeneration(r.record)
		if r.record.Status == JobSucceeded && r.path != "" {
			if id, err := gen.lib.Import(r.path); err == nil {
				ge.AssetID = id
			}
		}
	}
}
