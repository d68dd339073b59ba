package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/spf13/cobra"

	"github.com/dep2p/go-btnodedb"
	"github.com/dep2p/go-btnodedb/config"
	pkgif "github.com/dep2p/go-btnodedb/pkg/interfaces"
	"github.com/dep2p/go-btnodedb/pkg/lib/nodedb"
	"github.com/dep2p/go-btnodedb/pkg/types"
)

// replayScript 发现事件脚本
//
//	steps:
//	  - at: 0s
//	    found:
//	      - addr: bluetooth:addr=00:1A:7D:DA:71:01,psm=0x1001
//	        advertise_names: [org.alljoyn.About]
//	        ttl: 10s
//	  - at: 5s
//	    scan:
//	      epoch: 2
//	      nodes:
//	        - addr: bluetooth:addr=00:1A:7D:DA:71:01,psm=0x1001
//	  - at: 20s
//	    lost: [bluetooth:addr=00:1A:7D:DA:71:02,psm=0x1001]
type replayScript struct {
	Steps []replayStep `json:"steps" yaml:"steps"`
}

// replayStep 在时刻 At 先回收过期节点，再依次应用 Found、Scan、Lost
type replayStep struct {
	At    config.Duration    `json:"at" yaml:"at"`
	Found []replayFound      `json:"found,omitempty" yaml:"found,omitempty"`
	Scan  *replayScan        `json:"scan,omitempty" yaml:"scan,omitempty"`
	Lost  []types.BusAddress `json:"lost,omitempty" yaml:"lost,omitempty"`
}

type replayFound struct {
	nodedb.NodeSnapshot `yaml:",inline"`
	TTL                 config.Duration `json:"ttl,omitempty" yaml:"ttl,omitempty"`
}

type replayScan struct {
	ConnectAddr types.BusAddress      `json:"connect_addr,omitempty" yaml:"connect_addr,omitempty"`
	Epoch       uint32                `json:"epoch,omitempty" yaml:"epoch,omitempty"`
	Nodes       []nodedb.NodeSnapshot `json:"nodes" yaml:"nodes"`
}

func newReplayCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "replay <script>",
		Short: "用模拟时钟回放发现事件脚本",
		Long: `按时间顺序回放脚本中的发现事件（found / scan / lost），
每一步之后推进模拟时钟并回收过期节点，最后输出注册表。`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var script replayScript
			if err := decodeFile(args[0], &script); err != nil {
				return err
			}
			db, err := runReplay(cmd.Context(), c.cfg, script, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if c.flags.Output == "table" {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), "\n最终注册表:"); err != nil {
					return err
				}
			}
			return writeDB(cmd.OutOrStdout(), c.flags.Output, db)
		},
	}
}

// runReplay 回放脚本，事件摘要写入 w，返回最终的注册表
func runReplay(ctx context.Context, cfg *config.Config, script replayScript, w io.Writer) (*nodedb.DB, error) {
	mock := clock.NewMock()
	start := mock.Now()

	if cfg == nil {
		cfg = config.NewConfig()
	}
	reg, err := btnodedb.New(btnodedb.WithConfig(cfg), btnodedb.WithClock(mock))
	if err != nil {
		return nil, err
	}
	defer reg.Close()

	// 每一步结束后清空订阅，缓冲区只需容纳单步产生的事件
	buf := 1
	for _, step := range script.Steps {
		buf = max(buf, len(step.Lost)+1)
	}

	bus := reg.EventBus()
	names, err := bus.Subscribe(new(pkgif.EvtNamesChanged), pkgif.BufSize(buf))
	if err != nil {
		return nil, err
	}
	defer names.Close()
	expired, err := bus.Subscribe(new(pkgif.EvtNodesExpired), pkgif.BufSize(1))
	if err != nil {
		return nil, err
	}
	defer expired.Close()

	for i, step := range script.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		at := start.Add(step.At.Duration())
		if at.Before(mock.Now()) {
			return nil, fmt.Errorf("steps[%d]: 时间 %s 早于上一步", i, step.At)
		}
		mock.Set(at)
		reg.Reap()

		if err := applyStep(reg, mock, step); err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		if err := report(w, step.At, names, expired); err != nil {
			return nil, err
		}
	}
	return reg.DB().Clone(), nil
}

func applyStep(reg *btnodedb.Registry, c clock.Clock, step replayStep) error {
	for _, f := range step.Found {
		db, err := nodedb.FromSnapshot(nodedb.Snapshot{Nodes: []nodedb.NodeSnapshot{f.NodeSnapshot}})
		if err != nil {
			return err
		}
		n := db.FindByAddress(f.Addr)
		db.RemoveNode(n)
		if err := reg.Found(n, f.TTL.Duration()); err != nil {
			return err
		}
	}

	if s := step.Scan; s != nil {
		db, err := nodedb.FromSnapshot(nodedb.Snapshot{Nodes: s.Nodes}, nodedb.WithClock(c))
		if err != nil {
			return err
		}
		err = reg.Scan(db, s.ConnectAddr, s.Epoch)
		db.Release()
		if err != nil {
			return err
		}
	}

	for _, addr := range step.Lost {
		if err := reg.Lost(addr); err != nil {
			return err
		}
	}
	return nil
}

// report 输出这一步产生的事件
func report(w io.Writer, at config.Duration, names, expired pkgif.Subscription) error {
	for {
		select {
		case e := <-expired.Out():
			evt := e.(pkgif.EvtNodesExpired)
			if _, err := fmt.Fprintf(w, "[%8s] expired  %d\n", time.Duration(at), evt.Nodes.Size()); err != nil {
				return err
			}
		case e := <-names.Out():
			evt := e.(pkgif.EvtNamesChanged)
			if _, err := fmt.Fprintf(w, "[%8s] names    +%d -%d (epoch %d)\n",
				time.Duration(at), evt.Added.Size(), evt.Removed.Size(), evt.Epoch); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}
