package types

import (
	"fmt"
	"strconv"
	"strings"
)

// BusAddressScheme 总线地址规格的传输名前缀
const BusAddressScheme = "bluetooth"

// InvalidPSM 无效 PSM 哨兵值
//
// PSM 等于 InvalidPSM 的总线地址被视为无效。
const InvalidPSM uint16 = 0

// BusAddress 蓝牙总线地址
//
// 由设备地址和 L2CAP PSM 组成，是节点注册表的主键。
// 先比较设备地址，再比较 PSM，构成全序。
// 零值是无效地址。
type BusAddress struct {
	Addr BDAddress
	PSM  uint16
}

// NewBusAddress 由设备地址和 PSM 构造总线地址
func NewBusAddress(addr BDAddress, psm uint16) BusAddress {
	return BusAddress{Addr: addr, PSM: psm}
}

// ParseBusAddress 解析总线地址规格
//
// 格式为 "bluetooth:addr=XX:XX:XX:XX:XX:XX,psm=0xXXXX"。
// 解析失败不会报错：传输名不匹配、设备地址非法、psm 缺失或越界时，
// 返回 PSM 为 InvalidPSM 的地址。
func ParseBusAddress(spec string) BusAddress {
	args, ok := parseArguments(BusAddressScheme, spec)
	if !ok {
		return BusAddress{}
	}

	addr, err := ParseBDAddress(args["addr"])
	if err != nil {
		return BusAddress{}
	}

	return BusAddress{Addr: addr, PSM: parsePSM(args["psm"])}
}

// ToSpec 返回总线地址规格："bluetooth:addr=XX:XX:XX:XX:XX:XX,psm=0xXXXX"
func (a BusAddress) ToSpec() string {
	return fmt.Sprintf("%s:addr=%s,psm=0x%04x", BusAddressScheme, a.Addr, a.PSM)
}

// String 返回人类可读形式："XX:XX:XX:XX:XX:XX-XXXX"
//
// 仅用于日志，不可作为解析输入。
func (a BusAddress) String() string {
	return fmt.Sprintf("%s-%04x", a.Addr, a.PSM)
}

// IsValid 地址是否有效
func (a BusAddress) IsValid() bool {
	return a.PSM != InvalidPSM
}

// Compare 比较两个地址，返回 -1、0 或 1
func (a BusAddress) Compare(b BusAddress) int {
	if c := a.Addr.Compare(b.Addr); c != 0 {
		return c
	}
	switch {
	case a.PSM < b.PSM:
		return -1
	case a.PSM > b.PSM:
		return 1
	}
	return 0
}

// Less 是否 a < b
func (a BusAddress) Less(b BusAddress) bool {
	return a.Compare(b) < 0
}

// MarshalText 以连接规格形式编码
func (a BusAddress) MarshalText() ([]byte, error) {
	return []byte(a.ToSpec()), nil
}

// UnmarshalText 从连接规格解码
//
// 与 ParseBusAddress 不同，这里对无效地址返回错误，
// 避免快照文件中的笔误被静默吞掉。
func (a *BusAddress) UnmarshalText(text []byte) error {
	parsed := ParseBusAddress(string(text))
	if !parsed.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidBusAddress, text)
	}
	*a = parsed
	return nil
}

// parseArguments 解析 "<scheme>:k1=v1,k2=v2" 形式的参数
//
// 只在第一个 ':' 处切分，设备地址中的 ':' 不受影响。
func parseArguments(scheme, spec string) (map[string]string, bool) {
	prefix, rest, found := strings.Cut(strings.TrimSpace(spec), ":")
	if !found || prefix != scheme {
		return nil, false
	}

	args := make(map[string]string)
	for _, kv := range strings.Split(rest, ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		args[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return args, true
}

// parsePSM 解析 PSM，自动识别 0x 前缀；失败返回 InvalidPSM
func parsePSM(s string) uint16 {
	if s == "" {
		return InvalidPSM
	}
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return InvalidPSM
	}
	return uint16(v)
}
