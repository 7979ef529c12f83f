package queue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/pkg/common"

	"go.uber.org/zap"
)

// JobState 匯入任務的狀態
type JobState string

const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

// Job 一筆非同步匯入任務的快照
type Job struct {
	ID        string      `json:"id"`
	State     JobState    `json:"state"`
	Progress  string      `json:"progress,omitempty"`
	Result    interface{} `json:"result,omitempty"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Task 任務本體，progress 用來回報進度訊息
type Task func(ctx context.Context, progress func(string)) (interface{}, error)

// Status 隊列狀態
type Status struct {
	QueueLength    int `json:"queue_length"`
	ProcessedCount int `json:"processed_count"`
	MaxQueueSize   int `json:"max_queue_size"`
	Workers        int `json:"workers"`
}

type queuedJob struct {
	id   string
	task Task
}

// Manager 匯入任務隊列
// 影片下載與 AI 分析可能要花上數分鐘，HTTP 端點只負責排入任務，
// 實際工作交給固定數量的 worker，客戶端用任務 ID 輪詢結果
type Manager struct {
	config    *config.QueueConfig
	queue     chan *queuedJob
	jobs      map[string]*Job
	mu        sync.RWMutex
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	processed int64
}

// NewManager 創建匯入任務隊列並啟動 worker
func NewManager(cfg *config.QueueConfig) *Manager {
	m := &Manager{
		config: cfg,
		queue:  make(chan *queuedJob, cfg.MaxSize),
		jobs:   make(map[string]*Job),
		done:   make(chan struct{}),
	}

	for i := 0; i < cfg.Workers; i++ {
		m.wg.Add(1)
		go m.worker(i + 1)
	}
	go m.startCleanup()

	common.LogInfo("匯入任務隊列已啟動",
		zap.Int("worker數", cfg.Workers),
		zap.Int("隊列容量", cfg.MaxSize),
		zap.Duration("任務保留時間", cfg.JobTTL),
	)
	return m
}

// Submit 排入一筆匯入任務，回傳任務 ID
func (m *Manager) Submit(task Task) (string, error) {
	id := common.GenerateUUID()
	now := time.Now()

	m.mu.Lock()
	m.jobs[id] = &Job{
		ID:        id,
		State:     JobPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.mu.Unlock()

	select {
	case m.queue <- &queuedJob{id: id, task: task}:
		common.LogInfo("任務已排入",
			zap.String("任務", id),
			zap.Int("隊列長度", len(m.queue)),
		)
		return id, nil
	case <-m.done:
		m.removeJob(id)
		return "", fmt.Errorf("queue manager is closed")
	default:
		m.removeJob(id)
		return "", fmt.Errorf("queue is full")
	}
}

// Get 取得任務快照，不存在回傳 false
func (m *Manager) Get(id string) (Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// QueueStatus 取得隊列狀態
func (m *Manager) QueueStatus() *Status {
	return &Status{
		QueueLength:    len(m.queue),
		ProcessedCount: int(atomic.LoadInt64(&m.processed)),
		MaxQueueSize:   m.config.MaxSize,
		Workers:        m.config.Workers,
	}
}

// worker 依序取出任務執行
func (m *Manager) worker(index int) {
	defer m.wg.Done()

	for {
		select {
		case <-m.done:
			return
		case item := <-m.queue:
			if item == nil {
				return
			}
			m.run(index, item)
		}
	}
}

func (m *Manager) run(worker int, item *queuedJob) {
	m.update(item.id, func(job *Job) {
		job.State = JobRunning
	})
	common.LogInfo("任務開始",
		zap.Int("worker", worker),
		zap.String("任務", item.id),
	)

	result, err := item.task(context.Background(), func(message string) {
		m.update(item.id, func(job *Job) {
			job.Progress = message
		})
	})

	atomic.AddInt64(&m.processed, 1)
	if err != nil {
		m.update(item.id, func(job *Job) {
			job.State = JobFailed
			job.Error = err.Error()
		})
		common.LogWarn("任務失敗",
			zap.String("任務", item.id),
			zap.Error(err),
		)
		return
	}

	m.update(item.id, func(job *Job) {
		job.State = JobCompleted
		job.Result = result
		job.Progress = ""
	})
	common.LogInfo("任務完成", zap.String("任務", item.id))
}

func (m *Manager) update(id string, fn func(*Job)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job, ok := m.jobs[id]; ok {
		fn(job)
		job.UpdatedAt = time.Now()
	}
}

func (m *Manager) removeJob(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
}

// startCleanup 定期清掉過期的已完成任務，避免 map 無限成長
func (m *Manager) startCleanup() {
	interval := m.config.JobTTL
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-m.config.JobTTL)
			m.mu.Lock()
			for id, job := range m.jobs {
				if (job.State == JobCompleted || job.State == JobFailed) && job.UpdatedAt.Before(cutoff) {
					delete(m.jobs, id)
				}
			}
			m.mu.Unlock()
		}
	}
}

// Close 關閉隊列並等待 worker 結束
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
	})
	m.wg.Wait()
	common.LogInfo("匯入任務隊列已關閉",
		zap.Int64("已處理任務", atomic.LoadInt64(&m.processed)),
	)
}
