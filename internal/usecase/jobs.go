package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"StockPredictor/internal/domain/models"
	domrepo "StockPredictor/internal/domain/repository"
	"StockPredictor/pkg/logger"
	"StockPredictor/pkg/queue"
)

// PredictionJobType is the queue message type for async predictions.
const PredictionJobType = "prediction.run"

const (
	BackendInproc = "inproc"
	BackendRedis  = "redis"
)

type jobPayload struct {
	ID     string        `json:"id"`
	Params PredictParams `json:"params"`
}

// JobManager runs predictions asynchronously and tracks their status.
type JobManager struct {
	uc       *PredictionUseCase
	store    domrepo.JobStore
	dispatch queue.Publisher
	metrics  domrepo.Metrics
	log      *logger.Logger
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.Mutex
	subs map[string]map[chan models.Job]struct{}
}

// NewJobManager creates a manager. With a nil dispatcher jobs run in-process.
func NewJobManager(uc *PredictionUseCase, store domrepo.JobStore, dispatch queue.Publisher, metrics domrepo.Metrics, log *logger.Logger) *JobManager {
	if log == nil {
		log = logger.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &JobManager{
		uc:       uc,
		store:    store,
		dispatch: dispatch,
		metrics:  metrics,
		log:      log,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		subs:     make(map[string]map[chan models.Job]struct{}),
	}
}

// Submit stores a pending job and starts it. The returned record is a snapshot.
func (m *JobManager) Submit(ctx context.Context, p PredictParams) (*models.Job, error) {
	symbol := NormalizeSymbol(p.Symbol)
	if symbol == "" {
		return nil, ErrSymbolRequired
	}
	p.Symbol = symbol

	now := m.now().UTC()
	job := &models.Job{
		ID:        uuid.NewString(),
		Status:    models.JobPending,
		Symbol:    symbol,
		Source:    p.Source,
		CreatedAt: now,
		UpdatedAt: now,
	}
	p.JobID = job.ID
	if err := m.save(ctx, job); err != nil {
		return nil, err
	}

	if m.dispatch != nil {
		if err := m.dispatch.PublishMessage(ctx, PredictionJobType, jobPayload{ID: job.ID, Params: p}); err != nil {
			m.fail(ctx, job, fmt.Errorf("dispatch: %w", err))
			return nil, fmt.Errorf("dispatch job: %w", err)
		}
		snapshot := *job
		return &snapshot, nil
	}

	snapshot := *job
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.execute(m.ctx, job, p)
	}()
	return &snapshot, nil
}

// Get returns the job record or ErrJobNotFound from the store.
func (m *JobManager) Get(ctx context.Context, id string) (*models.Job, error) {
	return m.store.Get(ctx, id)
}

// Subscribe streams every status change of id. The channel is closed after a
// terminal status or when cancel is called.
func (m *JobManager) Subscribe(id string) (<-chan models.Job, func()) {
	ch := make(chan models.Job, 4)
	m.mu.Lock()
	if m.subs[id] == nil {
		m.subs[id] = make(map[chan models.Job]struct{})
	}
	m.subs[id][ch] = struct{}{}
	m.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if set, ok := m.subs[id]; ok {
				if _, ok := set[ch]; ok {
					delete(set, ch)
					close(ch)
				}
				if len(set) == 0 {
					delete(m.subs, id)
				}
			}
		})
	}
	return ch, cancel
}

// Close cancels running in-process jobs and waits for them.
func (m *JobManager) Close(ctx context.Context) error {
	m.cancel()
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *JobManager) execute(ctx context.Context, job *models.Job, p PredictParams) error {
	job.Status = models.JobRunning
	if err := m.save(ctx, job); err != nil {
		return err
	}

	res, err := m.uc.Predict(ctx, p)
	if err != nil {
		m.fail(ctx, job, err)
		return err
	}

	job.Status = models.JobSucceeded
	job.Result = res
	return m.save(ctx, job)
}

func (m *JobManager) fail(ctx context.Context, job *models.Job, cause error) {
	job.Status = models.JobFailed
	job.Error = cause.Error()
	// record the failure even when ctx is gone
	if err := m.save(context.WithoutCancel(ctx), job); err != nil {
		m.log.Error("store failed job", logger.String("job_id", job.ID), logger.Error(err))
	}
}

func (m *JobManager) save(ctx context.Context, job *models.Job) error {
	job.UpdatedAt = m.now().UTC()
	if err := m.store.Put(ctx, job); err != nil {
		m.metrics.RecordError("job_store")
		return fmt.Errorf("store job %s: %w", job.ID, err)
	}
	m.metrics.RecordJob(job.Status)
	m.log.Debug("job status",
		logger.String("job_id", job.ID),
		logger.String("symbol", job.Symbol),
		logger.String("status", string(job.Status)))
	m.notify(*job)
	return nil
}

func (m *JobManager) notify(job models.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.subs[job.ID]
	for ch := range set {
		select {
		case ch <- job:
		default:
			// slow reader; drop the oldest update and keep the latest
			select {
			case <-ch:
			default:
			}
			ch <- job
		}
		if job.Status.Terminal() {
			close(ch)
		}
	}
	if job.Status.Terminal() {
		delete(m.subs, job.ID)
	}
}

// Job adapts the manager to a queue consumer.
func (m *JobManager) Job() queue.Job { return predictionJob{m: m} }

type predictionJob struct {
	m *JobManager
}

func (predictionJob) Name() string { return "prediction" }
func (predictionJob) Type() string { return PredictionJobType }

func (j predictionJob) Handle(ctx context.Context, payload json.RawMessage) error {
	p, err := queue.ParsePayload[jobPayload](payload)
	if err != nil {
		return err
	}
	job, err := j.m.store.Get(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", p.ID, err)
	}
	if job.Status.Terminal() {
		return nil
	}
	err = j.m.execute(ctx, job, p.Params)
	if err != nil && !errors.Is(err, context.Canceled) {
		// failure is recorded on the job; retrying would repeat it
		return nil
	}
	return err
}
