package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"product_recommend/internal/model"
)

func TestCleanup(t *testing.T) {
	// 1. 创建临时文件
	tmpDir := t.TempDir()
	filePath := filepath.Join(tmpDir, "test_history.jsonl")

	// 2. 准备数据：包含过期和未过期的数据
	now := time.Now().Unix()
	records := []Record{
		{UserID: "u1", ProductID: "old_item", Scene: "storefront", Timestamp: now - 8*24*3600},            // 8 days ago (expired)
		{UserID: "u1", ProductID: "new_item", Scene: "storefront", Timestamp: now - 1*24*3600},            // 1 day ago (kept)
		{UserID: "u2", ProductID: "just_expired", Scene: "product_page", Timestamp: now - 7*24*3600 - 100}, // > 7 days (expired)
		{UserID: "u2", ProductID: "just_kept", Scene: "product_page", Timestamp: now - 7*24*3600 + 100},    // < 7 days (kept)
	}

	f, err := os.Create(filePath)
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	encoder := json.NewEncoder(f)
	for _, r := range records {
		if err := encoder.Encode(r); err != nil {
			t.Fatalf("failed to write record: %v", err)
		}
	}
	f.Close()

	// 3. 初始化 Store
	store, err := NewFileStore(filePath)
	if err != nil {
		t.Fatalf("failed to new file store: %v", err)
	}

	// 4. 执行清理 (保留 7 天)
	if err := store.Cleanup(7); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}

	// 5. 验证内存数据
	// 我们期望剩下 2 条记录
	expectedCount := 2
	if len(store.records) != expectedCount {
		t.Errorf("expected %d records, got %d", expectedCount, len(store.records))
	}

	for _, r := range store.records {
		if r.ProductID == "old_item" || r.ProductID == "just_expired" {
			t.Errorf("found expired item: %s", r.ProductID)
		}
	}

	// 6. 验证文件持久化
	// 重新加载 Store
	store2, err := NewFileStore(filePath)
	if err != nil {
		t.Fatalf("failed to reload file store: %v", err)
	}
	if len(store2.records) != expectedCount {
		t.Errorf("expected %d records after reload, got %d", expectedCount, len(store2.records))
	}
}

func TestSaveAndGetRecentHistory(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "nested", "history.jsonl")

	store, err := NewFileStore(filePath)
	if err != nil {
		t.Fatalf("failed to new file store: %v", err)
	}

	if err := store.SaveHistory("u1", "storefront", []model.ID{"1", "2"}); err != nil {
		t.Fatalf("SaveHistory failed: %v", err)
	}
	if err := store.SaveHistory("u2", "storefront", []model.ID{"3"}); err != nil {
		t.Fatalf("SaveHistory failed: %v", err)
	}

	got, err := store.GetRecentHistory("u1", "storefront", 7)
	if err != nil {
		t.Fatalf("GetRecentHistory failed: %v", err)
	}
	if len(got) != 2 || got[0] != "1" || got[1] != "2" {
		t.Errorf("unexpected history: %v", got)
	}

	other, _ := store.GetRecentHistory("u1", "product_page", 7)
	if len(other) != 0 {
		t.Errorf("expected no history for other scene, got %v", other)
	}

	// 时间前移 8 天后记录过期
	store.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }
	expired, _ := store.GetRecentHistory("u1", "storefront", 7)
	if len(expired) != 0 {
		t.Errorf("expected expired history to be ignored, got %v", expired)
	}

	reloaded, err := NewFileStore(filePath)
	if err != nil {
		t.Fatalf("failed to reload file store: %v", err)
	}
	if len(reloaded.records) != 3 {
		t.Errorf("expected 3 records after reload, got %d", len(reloaded.records))
	}
}
