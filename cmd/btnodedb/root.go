package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dep2p/go-btnodedb/config"
	"github.com/dep2p/go-btnodedb/pkg/lib/log"
)

var logger = log.Logger("btnodedb/cmd")

// globalFlags 全局标志
type globalFlags struct {
	ConfigPath string // 配置文件
	LogLevel   string // 覆盖配置中的日志级别
	LogFile    string // 覆盖配置中的日志文件
	Output     string // 输出格式
	Verbose    bool   // 详细模式（debug 日志）
}

// cli 一次命令行调用的共享状态
type cli struct {
	flags globalFlags
	cfg   *config.Config
	logW  io.Closer
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "btnodedb",
		Short: "蓝牙总线节点注册表工具",
		Long: `btnodedb - 蓝牙总线拓扑的节点注册表

- 比较两个注册表快照，输出新增和删除的名称
- 用模拟时钟回放发现事件脚本，观察合并与过期回收
- 以服务方式运行注册表，暴露 Prometheus 指标
- 查看服务归档的历史快照`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if c.logW != nil {
				return c.logW.Close()
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&c.flags.ConfigPath, "config", "c", "", "配置文件路径 (.json / .yaml)")
	pf.StringVar(&c.flags.LogLevel, "log-level", "", "日志级别: debug|info|warn|error")
	pf.StringVar(&c.flags.LogFile, "log-file", "", "日志文件路径（按大小轮转）")
	pf.StringVarP(&c.flags.Output, "output", "o", "table", "输出格式: table|json|yaml")
	pf.BoolVarP(&c.flags.Verbose, "verbose", "v", false, "详细输出")

	root.AddCommand(
		newDiffCmd(c),
		newHistoryCmd(c),
		newReplayCmd(c),
		newServeCmd(c),
		newVersionCmd(),
	)
	return root
}

// setup 加载配置并初始化日志
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	cfg := config.NewConfig()
	if c.flags.ConfigPath != "" {
		loaded, err := config.Load(c.flags.ConfigPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	if c.flags.LogLevel != "" {
		cfg.Log.Level = c.flags.LogLevel
	}
	if c.flags.Verbose {
		cfg.Log.Level = "debug"
	}
	if c.flags.LogFile != "" {
		cfg.Log.File = c.flags.LogFile
	}
	if err := cfg.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}

	switch c.flags.Output {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("未知的输出格式: %s (可用: table, json, yaml)", c.flags.Output)
	}

	w, closer, err := newLogWriter(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	level, _ := log.ParseLevel(cfg.Log.Level)
	log.SetOutputWithLevel(w, level)

	c.cfg = cfg
	c.logW = closer
	return nil
}

// newLogWriter 创建日志写入器，配置了日志文件时按大小轮转
func newLogWriter(cfg config.LogConfig, stderr io.Writer) (io.Writer, io.Closer, error) {
	if cfg.File == "" {
		return stderr, nil, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o700); err != nil {
		return nil, nil, fmt.Errorf("创建日志目录: %w", err)
	}
	lj := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,  // megabytes
		MaxBackups: cfg.MaxBackups, // 最多保留文件数
		MaxAge:     cfg.MaxAgeDays, // days
		Compress:   cfg.Compress,
	}
	return lj, lj, nil
}
