package config

import (
	"errors"

	"go.uber.org/multierr"

	"github.com/dep2p/go-btnodedb/pkg/lib/log"
)

// LogConfig 日志配置
type LogConfig struct {
	// Level 日志级别：debug / info / warn / error
	Level string `json:"level" yaml:"level"`

	// File 日志文件路径，为空时输出到 stderr
	File string `json:"file,omitempty" yaml:"file,omitempty"`

	// MaxSizeMB 单个日志文件最大大小（MB）
	MaxSizeMB int `json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups 保留的旧日志文件数
	MaxBackups int `json:"max_backups" yaml:"max_backups"`

	// MaxAgeDays 旧日志文件保留天数
	MaxAgeDays int `json:"max_age_days" yaml:"max_age_days"`

	// Compress 是否压缩旧日志文件
	Compress bool `json:"compress" yaml:"compress"`
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:      "info",
		MaxSizeMB:  100,
		MaxBackups: 3,
		MaxAgeDays: 7,
	}
}

// Validate 验证日志配置
func (c LogConfig) Validate() error {
	var err error
	if _, lerr := log.ParseLevel(c.Level); lerr != nil {
		err = multierr.Append(err, lerr)
	}
	if c.File != "" && c.MaxSizeMB <= 0 {
		err = multierr.Append(err, errors.New("max_size_mb must be positive"))
	}
	if c.MaxBackups < 0 || c.MaxAgeDays < 0 {
		err = multierr.Append(err, errors.New("max_backups and max_age_days must not be negative"))
	}
	return err
}
