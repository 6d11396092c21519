package core

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// CronJob is a persisted scheduled send.
type CronJob struct {
	ID          string    `json:"id"`
	Platform    string    `json:"platform"`
	Destination string    `json:"destination,omitempty"`
	CronExpr    string    `json:"cron_expr"`
	Message     string    `json:"message"`
	Description string    `json:"description,omitempty"`
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"created_at"`
	LastRun     time.Time `json:"last_run,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
}

// CronStore persists cron jobs to a JSON file under the data dir.
type CronStore struct {
	path string
	mu   sync.Mutex
	jobs []*CronJob
}

func NewCronStore(dataDir string) (*CronStore, error) {
	dir := filepath.Join(dataDir, "crons")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	s := &CronStore{path: filepath.Join(dir, "jobs.json")}
	s.load()
	return s, nil
}

func (s *CronStore) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	json.Unmarshal(data, &s.jobs)
}

func (s *CronStore) save() error {
	data, err := json.MarshalIndent(s.jobs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}

func (s *CronStore) Add(job *CronJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
	return s.save()
}

func (s *CronStore) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, j := range s.jobs {
		if j.ID == id {
			s.jobs = append(s.jobs[:i], s.jobs[i+1:]...)
			s.save()
			return true
		}
	}
	return false
}

func (s *CronStore) SetEnabled(id string, enabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.ID == id {
			j.Enabled = enabled
			s.save()
			return true
		}
	}
	return false
}

func (s *CronStore) MarkRun(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.ID == id {
			j.LastRun = time.Now()
			if err != nil {
				j.LastError = err.Error()
			} else {
				j.LastError = ""
			}
			s.save()
			return
		}
	}
}

func (s *CronStore) List() []*CronJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*CronJob, len(s.jobs))
	copy(out, s.jobs)
	return out
}

func (s *CronStore) Get(id string) *CronJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.ID == id {
			return j
		}
	}
	return nil
}

// CronScheduler fires jobs by pushing outbound messages through the
// registered dispatchers.
type CronScheduler struct {
	store       *CronStore
	cron        *cron.Cron
	dispatchers map[string]*Dispatcher // platform name → dispatcher
	mu          sync.RWMutex
	entries     map[string]cron.EntryID // job ID → cron entry
}

func NewCronScheduler(store *CronStore) *CronScheduler {
	return &CronScheduler{
		store:       store,
		cron:        cron.New(),
		dispatchers: make(map[string]*Dispatcher),
		entries:     make(map[string]cron.EntryID),
	}
}

func (cs *CronScheduler) RegisterDispatcher(platform string, d *Dispatcher) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.dispatchers[platform] = d
}

func (cs *CronScheduler) Start() error {
	jobs := cs.store.List()
	for _, job := range jobs {
		if job.Enabled {
			if err := cs.scheduleJob(job); err != nil {
				slog.Warn("cron: failed to schedule job", "id", job.ID, "error", err)
			}
		}
	}
	cs.cron.Start()
	slog.Info("cron: scheduler started", "jobs", len(jobs))
	return nil
}

func (cs *CronScheduler) Stop() {
	cs.cron.Stop()
}

func (cs *CronScheduler) AddJob(job *CronJob) error {
	if _, err := cron.ParseStandard(job.CronExpr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", job.CronExpr, err)
	}
	cs.mu.RLock()
	_, ok := cs.dispatchers[job.Platform]
	cs.mu.RUnlock()
	if !ok {
		return fmt.Errorf("platform %q is not configured", job.Platform)
	}
	if err := cs.store.Add(job); err != nil {
		return err
	}
	if job.Enabled {
		return cs.scheduleJob(job)
	}
	return nil
}

func (cs *CronScheduler) RemoveJob(id string) bool {
	cs.mu.Lock()
	if entryID, ok := cs.entries[id]; ok {
		cs.cron.Remove(entryID)
		delete(cs.entries, id)
	}
	cs.mu.Unlock()
	return cs.store.Remove(id)
}

func (cs *CronScheduler) Store() *CronStore {
	return cs.store
}

// AddEphemeral registers a schedule that lives only for this process — used
// for [[schedules]] entries declared in the config file.
func (cs *CronScheduler) AddEphemeral(expr, platform, dest, message string) error {
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	_, err := cs.cron.AddFunc(expr, func() {
		cs.deliver(platform, dest, message, "config schedule")
	})
	return err
}

func (cs *CronScheduler) scheduleJob(job *CronJob) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if old, ok := cs.entries[job.ID]; ok {
		cs.cron.Remove(old)
	}

	jobID := job.ID
	entryID, err := cs.cron.AddFunc(job.CronExpr, func() {
		cs.executeJob(jobID)
	})
	if err != nil {
		return err
	}
	cs.entries[jobID] = entryID
	return nil
}

func (cs *CronScheduler) executeJob(jobID string) {
	job := cs.store.Get(jobID)
	if job == nil || !job.Enabled {
		return
	}

	err := cs.deliver(job.Platform, job.Destination, job.Message, jobID)
	cs.store.MarkRun(jobID, err)

	if err != nil {
		slog.Error("cron: job failed", "id", jobID, "error", err)
	} else {
		slog.Info("cron: job completed", "id", jobID)
	}
}

func (cs *CronScheduler) deliver(platform, dest, message, origin string) error {
	cs.mu.RLock()
	d, ok := cs.dispatchers[platform]
	cs.mu.RUnlock()
	if !ok {
		return fmt.Errorf("platform %q is not configured", platform)
	}

	slog.Info("cron: sending", "origin", origin, "platform", platform, "dest", dest)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	return d.Dispatch(ctx, &Outbound{Text: message, Destination: dest})
}

func GenerateCronID() string {
	b := make([]byte, 4)
	rand.Read(b)
	return hex.EncodeToString(b)
}
