package btnodedb

import "errors"

// 公共错误定义
var (
	// ErrNotStarted 注册表服务未启动
	ErrNotStarted = errors.New("registry not started")

	// ErrAlreadyStarted 注册表服务已启动
	ErrAlreadyStarted = errors.New("registry already started")

	// ErrClosed 注册表服务已关闭
	ErrClosed = errors.New("registry closed")
)
