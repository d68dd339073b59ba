package types

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"net"
	"strings"
)

// BDAddress 蓝牙设备地址（48 位）
//
// 零值 00:00:00:00:00:00 表示未知地址。
type BDAddress [6]byte

// ParseBDAddress 解析蓝牙设备地址
//
// 支持以下格式：
//   - "AA:BB:CC:DD:EE:FF"
//   - "AA-BB-CC-DD-EE-FF"
//   - "AABB.CCDD.EEFF"
//   - "AABBCCDDEEFF"（12 位十六进制）
func ParseBDAddress(s string) (BDAddress, error) {
	var a BDAddress

	s = strings.TrimSpace(s)
	if len(s) == 12 {
		if _, err := hex.Decode(a[:], []byte(s)); err != nil {
			return BDAddress{}, fmt.Errorf("%w: %q", ErrInvalidBDAddress, s)
		}
		return a, nil
	}

	hw, err := net.ParseMAC(s)
	if err != nil || len(hw) != len(a) {
		return BDAddress{}, fmt.Errorf("%w: %q", ErrInvalidBDAddress, s)
	}
	copy(a[:], hw)
	return a, nil
}

// MustParseBDAddress 解析设备地址，失败时 panic
//
// 仅用于常量初始化和测试代码。
func MustParseBDAddress(s string) BDAddress {
	a, err := ParseBDAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// String 返回 "AA:BB:CC:DD:EE:FF" 形式（大写）
func (a BDAddress) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", a[0], a[1], a[2], a[3], a[4], a[5])
}

// IsZero 是否为零值地址
func (a BDAddress) IsZero() bool {
	return a == BDAddress{}
}

// Compare 按字节序比较两个设备地址
func (a BDAddress) Compare(b BDAddress) int {
	return bytes.Compare(a[:], b[:])
}

// Uint64 返回地址的 48 位整数形式
func (a BDAddress) Uint64() uint64 {
	var v uint64
	for _, b := range a {
		v = v<<8 | uint64(b)
	}
	return v
}
