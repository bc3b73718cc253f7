package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"product_recommend/internal/logger"
)

// ErrNotFound 任务不存在
var ErrNotFound = errors.New("task not found")

// Status 异步任务状态
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Task 一个异步任务，例如后台重新加载目录
type Task struct {
	ID         string      `json:"id"`
	Kind       string      `json:"kind"`
	Status     Status      `json:"status"`
	Result     interface{} `json:"result,omitempty"`
	Error      string      `json:"error,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
}

// Job 任务体，返回值写入 Task.Result
type Job func(ctx context.Context) (interface{}, error)

// Manager 内存中的任务表
type Manager struct {
	tasks map[string]*Task
	mu    sync.RWMutex
	wg    sync.WaitGroup
}

func NewManager() *Manager {
	return &Manager{
		tasks: make(map[string]*Task),
	}
}

// NewTask 创建并登记一个 pending 任务
func (m *Manager) NewTask(kind string) Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := &Task{
		ID:        uuid.New().String(),
		Kind:      kind,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
	m.tasks[t.ID] = t
	return *t
}

// Submit 创建任务并在后台执行 job，立即返回 pending 状态的任务
func (m *Manager) Submit(ctx context.Context, kind string, job Job) Task {
	t := m.NewTask(kind)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		_ = m.UpdateStatus(t.ID, StatusProcessing)

		result, err := job(ctx)
		if err != nil {
			logger.Error("Task %s (%s) failed: %v", t.ID, kind, err)
			_ = m.SetError(t.ID, err)
			return
		}
		logger.Info("Task %s (%s) completed", t.ID, kind)
		_ = m.SetResult(t.ID, result)
	}()

	return t
}

// Wait 等待所有已提交的任务结束
func (m *Manager) Wait() {
	m.wg.Wait()
}

// GetTask 返回任务的副本
func (m *Manager) GetTask(id string) (Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, exists := m.tasks[id]
	if !exists {
		return Task{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *t, nil
}

func (m *Manager) UpdateStatus(id string, status Status) error {
	return m.update(id, func(t *Task) {
		t.Status = status
	})
}

// SetResult 写入结果并标记完成
func (m *Manager) SetResult(id string, result interface{}) error {
	return m.update(id, func(t *Task) {
		t.Result = result
		t.Status = StatusCompleted
		t.Error = ""
		t.finish()
	})
}

// SetError 写入错误并标记失败
func (m *Manager) SetError(id string, err error) error {
	return m.update(id, func(t *Task) {
		t.Error = err.Error()
		t.Status = StatusFailed
		t.finish()
	})
}

func (m *Manager) update(id string, fn func(t *Task)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, exists := m.tasks[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	fn(t)
	return nil
}

func (t *Task) finish() {
	now := time.Now()
	t.FinishedAt = &now
}
