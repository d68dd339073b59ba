package storage

import "errors"

var (
	// ErrClosed 存储已关闭
	ErrClosed = errors.New("storage: closed")

	// ErrInvalidConfig 无效配置
	ErrInvalidConfig = errors.New("storage: invalid config")

	// ErrReadOnly 只读打开的存储不能写入
	ErrReadOnly = errors.New("storage: read-only")

	// ErrNotFound 快照不存在
	ErrNotFound = errors.New("storage: snapshot not found")

	// ErrCorrupted 记录无法解码
	ErrCorrupted = errors.New("storage: corrupted record")
)
