package types

import "errors"

var (
	// ErrInvalidBDAddress 无效的蓝牙设备地址
	ErrInvalidBDAddress = errors.New("invalid bluetooth device address")

	// ErrInvalidBusAddress 无效的总线地址
	ErrInvalidBusAddress = errors.New("invalid bluetooth bus address")
)
