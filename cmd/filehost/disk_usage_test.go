package main

import "testing"

func TestGetDiskUsage(t *testing.T) {
	total, used, available, err := getDiskUsage(t.TempDir())
	if err != nil {
		t.Fatalf("Ошибка statfs: %v", err)
	}
	if total <= 0 || used < 0 || available < 0 {
		t.Fatalf("неожиданные значения: total=%d used=%d available=%d", total, used, available)
	}
	// Зарезервированные блоки не учитываются ни в used, ни в available
	if used+available > total {
		t.Errorf("used+available (%d) > total (%d)", used+available, total)
	}

	if _, _, _, err := getDiskUsage("/nonexistent/filehost"); err == nil {
		t.Error("ожидалась ошибка для несуществующего пути")
	}
}
