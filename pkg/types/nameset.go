package types

import "sort"

// NameSet 总线名称集合
//
// 用于节点的广播名（advertise）和查找名（find）。
// NameSet 不是并发安全的，由持有它的注册表负责加锁。
type NameSet map[string]struct{}

// NewNameSet 创建名称集合
func NewNameSet(names ...string) NameSet {
	s := make(NameSet, len(names))
	for _, name := range names {
		s[name] = struct{}{}
	}
	return s
}

// Add 添加名称
func (s NameSet) Add(names ...string) {
	for _, name := range names {
		s[name] = struct{}{}
	}
}

// Remove 删除名称，不存在时无操作
func (s NameSet) Remove(name string) {
	delete(s, name)
}

// Has 是否包含名称
func (s NameSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Len 名称数量
func (s NameSet) Len() int {
	return len(s)
}

// Empty 是否为空
func (s NameSet) Empty() bool {
	return len(s) == 0
}

// Range 按字典序遍历名称，fn 返回 false 时停止
//
// 遍历的是快照，fn 中修改集合是安全的。
func (s NameSet) Range(fn func(name string) bool) {
	for _, name := range s.Sorted() {
		if !fn(name) {
			return
		}
	}
}

// RemoveIf 删除所有满足条件的名称，返回删除数量
func (s NameSet) RemoveIf(pred func(name string) bool) int {
	n := 0
	for name := range s {
		if pred(name) {
			delete(s, name)
			n++
		}
	}
	return n
}

// Sorted 返回排序后的名称列表
func (s NameSet) Sorted() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone 深拷贝
func (s NameSet) Clone() NameSet {
	c := make(NameSet, len(s))
	for name := range s {
		c[name] = struct{}{}
	}
	return c
}

// Equal 两个集合是否包含相同的名称
func (s NameSet) Equal(o NameSet) bool {
	if len(s) != len(o) {
		return false
	}
	for name := range s {
		if _, ok := o[name]; !ok {
			return false
		}
	}
	return true
}

// Difference 返回在 s 中但不在 o 中的名称
func (s NameSet) Difference(o NameSet) NameSet {
	d := make(NameSet)
	for name := range s {
		if _, ok := o[name]; !ok {
			d[name] = struct{}{}
		}
	}
	return d
}
