package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"product_recommend/internal/model"
)

// Record 代表一条推荐历史记录
type Record struct {
	UserID    string   `json:"user_id"`
	ProductID model.ID `json:"product_id"`
	Scene     string   `json:"scene"` // e.g., "storefront", "product_page"
	Timestamp int64    `json:"timestamp"`
}

// Store 定义历史记录存储接口
type Store interface {
	// GetRecentHistory 获取用户在指定场景下最近 N 天推荐过的商品
	GetRecentHistory(userID string, scene string, days int) ([]model.ID, error)
	// SaveHistory 保存推荐历史
	SaveHistory(userID string, scene string, ids []model.ID) error
	// Cleanup 删除 N 天之前的记录
	Cleanup(days int) error
}

// FileStore 基于 jsonl 文件的历史存储实现
type FileStore struct {
	filePath string
	mu       sync.RWMutex
	records  []Record // 内存缓存，用于快速查询
	now      func() time.Time
}

// NewFileStore 创建一个新的 FileStore
// 如果文件不存在，会自动创建
func NewFileStore(filePath string) (*FileStore, error) {
	fs := &FileStore{
		filePath: filePath,
		records:  make([]Record, 0),
		now:      time.Now,
	}

	if dir := filepath.Dir(filePath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create history dir: %w", err)
		}
	}

	if err := fs.load(); err != nil {
		return nil, err
	}

	return fs, nil
}

// load 从文件加载所有历史记录到内存
func (s *FileStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.filePath, os.O_RDONLY|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("failed to open history file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var record Record
		if err := json.Unmarshal(line, &record); err != nil {
			// 忽略损坏的行
			continue
		}
		s.records = append(s.records, record)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to scan history file: %w", err)
	}

	return nil
}

func (s *FileStore) cutoff(days int) int64 {
	return s.now().Unix() - int64(days*24*60*60)
}

// GetRecentHistory 获取用户最近 N 天的历史记录 (返回商品 ID 列表)
func (s *FileStore) GetRecentHistory(userID string, scene string, days int) ([]model.ID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.cutoff(days)

	var result []model.ID
	// 简单的全量扫描
	for _, r := range s.records {
		if r.UserID == userID && r.Scene == scene && r.Timestamp >= cutoff {
			result = append(result, r.ProductID)
		}
	}

	return result, nil
}

// SaveHistory 保存新的推荐历史到文件和内存
func (s *FileStore) SaveHistory(userID string, scene string, ids []model.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.filePath, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("failed to open history file for appending: %w", err)
	}
	defer f.Close()

	now := s.now().Unix()
	encoder := json.NewEncoder(f)

	for _, id := range ids {
		record := Record{
			UserID:    userID,
			ProductID: id,
			Scene:     scene,
			Timestamp: now,
		}

		// 1. 写入文件
		if err := encoder.Encode(record); err != nil {
			return fmt.Errorf("failed to write history record: %w", err)
		}

		// 2. 更新内存
		s.records = append(s.records, record)
	}

	return nil
}

// Cleanup 删除 N 天之前的记录，并重写文件
// 先写临时文件再 rename，避免写到一半时损坏原文件
func (s *FileStore) Cleanup(days int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.cutoff(days)
	kept := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		if r.Timestamp >= cutoff {
			kept = append(kept, r)
		}
	}

	tmpPath := s.filePath + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create temp history file: %w", err)
	}

	w := bufio.NewWriter(f)
	encoder := json.NewEncoder(w)
	for _, r := range kept {
		if err := encoder.Encode(r); err != nil {
			f.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("failed to write history record: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to flush history file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close history file: %w", err)
	}
	if err := os.Rename(tmpPath, s.filePath); err != nil {
		return fmt.Errorf("failed to replace history file: %w", err)
	}

	s.records = kept
	return nil
}
