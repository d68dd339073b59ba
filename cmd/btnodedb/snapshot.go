package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dep2p/go-btnodedb/pkg/lib/nodedb"
)

// formatForPath 按扩展名返回 json 或 yaml
func formatForPath(path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return "json", nil
	case ".yaml", ".yml":
		return "yaml", nil
	default:
		return "", fmt.Errorf("%s: 不支持的文件格式 %q", path, ext)
	}
}

// decodeFile 按扩展名解析 JSON 或 YAML 文件
func decodeFile(path string, v any) error {
	format, err := formatForPath(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if format == "json" {
		err = json.Unmarshal(data, v)
	} else {
		err = yaml.Unmarshal(data, v)
	}
	if err != nil {
		return fmt.Errorf("解析 %s: %w", path, err)
	}
	return nil
}

// loadSnapshot 读取快照文件并重建注册表
func loadSnapshot(path string, opts ...nodedb.Option) (*nodedb.DB, error) {
	var s nodedb.Snapshot
	if err := decodeFile(path, &s); err != nil {
		return nil, err
	}
	db, err := nodedb.FromSnapshot(s, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return db, nil
}

// writeDB 按输出格式写出注册表
func writeDB(w io.Writer, format string, db *nodedb.DB) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(db.Snapshot())
	case "yaml":
		return encodeYAML(w, db.Snapshot())
	default:
		return db.WriteTable(w)
	}
}

// encodeYAML 写出 YAML，Close 把缓冲的内容刷到 w
func encodeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
