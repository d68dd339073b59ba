package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dep2p/go-btnodedb"
	"github.com/dep2p/go-btnodedb/pkg/types"
)

func newServeCmd(c *cli) *cobra.Command {
	var (
		listen  string
		seed    string
		save    string
		archive string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "运行注册表服务",
		Long: `运行注册表服务，直到收到 SIGINT / SIGTERM。

--seed 指定的快照作为一次完整扫描合并进注册表；
--listen 启动自省服务（/metrics、/debug/introspect/nodes 等）；
--save 在退出时把注册表写入快照文件；
--archive 把注册表快照定期归档到 BadgerDB，用 history 命令查看。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := c.cfg.Clone()
			if listen != "" {
				cfg.Metrics.ListenAddr = listen
			}
			if archive != "" {
				cfg.Storage.Path = archive
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg, err := btnodedb.Start(ctx, btnodedb.WithConfig(cfg))
			if err != nil {
				return err
			}

			if seed != "" {
				db, err := loadSnapshot(seed)
				if err != nil {
					_ = reg.Close()
					return err
				}
				if err := reg.Scan(db, types.BusAddress{}, 0); err != nil {
					_ = reg.Close()
					return err
				}
				logger.Info("已载入种子快照", "path", seed, "nodes", db.Size())
			}

			if addr := reg.DebugAddr(); addr != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "自省服务: http://%s/debug/introspect\n", addr)
			}

			<-ctx.Done()
			logger.Info("收到退出信号，正在停止")

			if save != "" {
				if err := saveSnapshot(save, reg); err != nil {
					logger.Error("保存快照失败", "path", save, "err", err)
				}
			}
			return reg.Close()
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "自省服务监听地址（覆盖 metrics.listen_addr）")
	cmd.Flags().StringVar(&seed, "seed", "", "启动时载入的快照文件")
	cmd.Flags().StringVar(&save, "save", "", "退出时写入的快照文件")
	cmd.Flags().StringVar(&archive, "archive", "", "快照归档目录（覆盖 storage.path）")
	return cmd
}

func saveSnapshot(path string, reg *btnodedb.Registry) error {
	format, err := formatForPath(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := writeDB(f, format, reg.DB()); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
