package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dep2p/go-btnodedb/pkg/lib/nodedb"
)

// diffResult diff 子命令的结构化输出
type diffResult struct {
	Added   nodedb.Snapshot `json:"added" yaml:"added"`
	Removed nodedb.Snapshot `json:"removed" yaml:"removed"`
}

func newDiffCmd(c *cli) *cobra.Command {
	var nodesOnly bool

	cmd := &cobra.Command{
		Use:   "diff <old> <new>",
		Short: "比较两个注册表快照",
		Long: `比较两个注册表快照，输出从 old 到 new 新增和删除的名称。

--nodes-only 只比较节点是否存在，忽略名称。`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oldDB, err := loadSnapshot(args[0])
			if err != nil {
				return err
			}
			newDB, err := loadSnapshot(args[1])
			if err != nil {
				return err
			}

			var added, removed *nodedb.DB
			if nodesOnly {
				added, removed = oldDB.NodeDiff(newDB)
			} else {
				added, removed = oldDB.Diff(newDB)
			}
			logger.Debug("快照差异", "old", oldDB.Size(), "new", newDB.Size(),
				"added", added.Size(), "removed", removed.Size())

			return writeDiff(cmd.OutOrStdout(), c.flags.Output, added, removed)
		},
	}

	cmd.Flags().BoolVar(&nodesOnly, "nodes-only", false, "只比较节点是否存在")
	return cmd
}

// writeDiff 按输出格式写出差异
func writeDiff(out io.Writer, format string, added, removed *nodedb.DB) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(diffResult{Added: added.Snapshot(), Removed: removed.Snapshot()})
	case "yaml":
		return encodeYAML(out, diffResult{Added: added.Snapshot(), Removed: removed.Snapshot()})
	}

	if _, err := fmt.Fprintf(out, "新增 (%d):\n", added.Size()); err != nil {
		return err
	}
	if err := added.WriteTable(out); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(out, "\n删除 (%d):\n", removed.Size()); err != nil {
		return err
	}
	return removed.WriteTable(out)
}
