package ingest

import (
	"errors"
	"fmt"
)

// ErrRunInProgress：另一导入任务持有运行锁
var ErrRunInProgress = errors.New("ingest: another import run is in progress")

// ConfigError：导入配置不合法，在读取任何行之前返回
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("ingest: config field %q: %s", e.Field, e.Message)
}

// StorageError：存在性检查、批量写入或提交失败；本次运行已整体回滚
// Processed / Inserted 为失败时刻的计数，Inserted 中的批次均已随回滚撤销
type StorageError struct {
	Op        string
	Processed int
	Inserted  int
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("ingest: storage %s failed after %d processed / %d inserted: %v", e.Op, e.Processed, e.Inserted, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// SourceError：数据集下载、解压或读取失败
type SourceError struct {
	Stage State
	Err   error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("ingest: source %s: %v", e.Stage, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }
