package nodedb

import "errors"

var (
	// ErrInvalidNode 节点地址无效
	ErrInvalidNode = errors.New("invalid node: bus address not valid")

	// ErrNodeIndexed 节点已被注册表索引，不能修改其索引键
	//
	// 需要修改地址、唯一名、连接代理或过期时间时，
	// 先从注册表移除节点，修改后再重新添加。
	ErrNodeIndexed = errors.New("node is indexed by a registry; remove it before changing key fields")

	// ErrProxyCycle 连接代理链形成环或超过最大深度
	ErrProxyCycle = errors.New("connect proxy chain does not terminate")
)
