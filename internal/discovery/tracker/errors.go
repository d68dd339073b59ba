package tracker

import "errors"

var (
	// ErrNotStarted 跟踪器未启动
	ErrNotStarted = errors.New("tracker: not started")

	// ErrAlreadyStarted 跟踪器已启动
	ErrAlreadyStarted = errors.New("tracker: already started")

	// ErrClosed 跟踪器已停止，不能再次启动
	ErrClosed = errors.New("tracker: closed")

	// ErrInvalidConfig 无效的配置
	ErrInvalidConfig = errors.New("tracker: invalid config")
)
