// Package main 提供 btnodedb 命令行入口
//
// 子命令：
//
//	btnodedb diff OLD NEW        比较两个注册表快照
//	btnodedb replay SCRIPT       用模拟时钟回放发现事件脚本
//	btnodedb serve               运行注册表服务并暴露 /metrics 和 /nodes
//	btnodedb version             输出版本信息
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
