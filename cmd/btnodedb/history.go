package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dep2p/go-btnodedb/internal/core/storage"
	"github.com/dep2p/go-btnodedb/pkg/lib/nodedb"
)

func newHistoryCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "查看 serve --archive 归档的注册表快照",
		Long: `查看 serve --archive 归档的注册表快照。

快照按时间升序编号，从 0 开始；负数从最新往前数（-1 为最新），
传负数时在参数前加 "--"，例如 history show -- ./archive -2。`,
	}
	cmd.AddCommand(
		newHistoryListCmd(c),
		newHistoryShowCmd(c),
		newHistoryDiffCmd(c),
	)
	return cmd
}

func newHistoryListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list <archive>",
		Short: "列出归档中的快照",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openArchive(c, args[0])
			if err != nil {
				return err
			}
			defer s.Close()

			infos, err := s.Snapshots()
			if err != nil {
				return err
			}
			return writeInfos(cmd.OutOrStdout(), c.flags.Output, infos)
		},
	}
}

func newHistoryShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show <archive> [index]",
		Short: "输出一个归档快照（默认最新）",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openArchive(c, args[0])
			if err != nil {
				return err
			}
			defer s.Close()

			idx := "-1"
			if len(args) == 2 {
				idx = args[1]
			}
			db, _, err := loadArchived(s, idx)
			if err != nil {
				return err
			}
			return writeDB(cmd.OutOrStdout(), c.flags.Output, db)
		},
	}
}

func newHistoryDiffCmd(c *cli) *cobra.Command {
	var nodesOnly bool

	cmd := &cobra.Command{
		Use:   "diff <archive> <old-index> <new-index>",
		Short: "比较两个归档快照",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openArchive(c, args[0])
			if err != nil {
				return err
			}
			defer s.Close()

			oldDB, _, err := loadArchived(s, args[1])
			if err != nil {
				return err
			}
			newDB, _, err := loadArchived(s, args[2])
			if err != nil {
				return err
			}

			var added, removed *nodedb.DB
			if nodesOnly {
				added, removed = oldDB.NodeDiff(newDB)
			} else {
				added, removed = oldDB.Diff(newDB)
			}
			return writeDiff(cmd.OutOrStdout(), c.flags.Output, added, removed)
		},
	}

	cmd.Flags().BoolVar(&nodesOnly, "nodes-only", false, "只比较节点是否存在")
	return cmd
}

// openArchive 只读打开归档目录
func openArchive(c *cli, path string) (*storage.Store, error) {
	cfg := storage.ConfigFromUnified(c.cfg)
	cfg.Path = path
	cfg.ReadOnly = true
	return storage.Open(cfg)
}

// loadArchived 按编号读出快照并重建注册表
func loadArchived(s *storage.Store, idx string) (*nodedb.DB, storage.Info, error) {
	i, err := strconv.Atoi(idx)
	if err != nil {
		return nil, storage.Info{}, fmt.Errorf("无效的快照编号 %q", idx)
	}
	infos, err := s.Snapshots()
	if err != nil {
		return nil, storage.Info{}, err
	}
	if i < 0 {
		i += len(infos)
	}
	if i < 0 || i >= len(infos) {
		return nil, storage.Info{}, fmt.Errorf("快照编号 %s 超出范围（共 %d 个）", idx, len(infos))
	}

	info := infos[i]
	snap, err := s.Load(info.At)
	if err != nil {
		return nil, info, err
	}
	db, err := nodedb.FromSnapshot(snap)
	if err != nil {
		return nil, info, fmt.Errorf("快照 %d: %w", i, err)
	}
	return db, info, nil
}

// writeInfos 按输出格式写出快照列表
func writeInfos(w io.Writer, format string, infos []storage.Info) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	case "yaml":
		return encodeYAML(w, infos)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tTIME\tNODES")
	for i, info := range infos {
		fmt.Fprintf(tw, "%d\t%s\t%d\n", i, info.At.UTC().Format(time.RFC3339Nano), info.Nodes)
	}
	return tw.Flush()
}
