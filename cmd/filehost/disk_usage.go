package main

import (
	"errors"
	"fmt"
	"syscall"
)

// errNoCapacity — файловая система не сообщает размер (например, часть procfs).
var errNoCapacity = errors.New("файловая система без ёмкости")

// getDiskUsage возвращает ёмкость файловой системы корня хранилища в байтах.
// used — занятые блоки; available — доступное непривилегированному процессу,
// поэтому зарезервированные для root блоки не входят ни в used, ни в available.
func getDiskUsage(dataDir string) (total, used, available int64, err error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(dataDir, &st); err != nil {
		return 0, 0, 0, fmt.Errorf("statfs %s: %w", dataDir, err)
	}
	if st.Blocks == 0 {
		return 0, 0, 0, fmt.Errorf("statfs %s: %w", dataDir, errNoCapacity)
	}

	block := uint64(st.Bsize)
	total = int64(st.Blocks * block)
	used = int64((st.Blocks - st.Bfree) * block)
	available = int64(st.Bavail * block)
	return total, used, available, nil
}
