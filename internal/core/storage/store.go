package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dgraph-io/badger/v4"

	"github.com/dep2p/go-btnodedb/pkg/lib/log"
	"github.com/dep2p/go-btnodedb/pkg/lib/nodedb"
	"github.com/dep2p/go-btnodedb/pkg/types"
)

var logger = log.Logger("core/storage")

var (
	markPrefix = []byte("t/")
	nodePrefix = []byte("s/")
)

// Option 存储选项
type Option func(*Store)

// WithClock 设置时钟，快照时间戳和定期归档都使用它
func WithClock(c clock.Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

// Info 一个已归档快照的概要
type Info struct {
	At    time.Time `json:"at" yaml:"at"`
	Nodes int       `json:"nodes" yaml:"nodes"`
}

// Store 基于 BadgerDB 的注册表快照归档
type Store struct {
	db     *badger.DB
	cfg    Config
	clock  clock.Clock
	closed atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Open 打开（或创建）归档
func Open(cfg Config, opts ...Option) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.ensureDir(); err != nil {
		return nil, err
	}

	db, err := badger.Open(buildBadgerOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("open badger %s: %w", cfg.Path, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		db:     db,
		cfg:    cfg,
		clock:  clock.New(),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	logger.Debug("归档已打开", "path", cfg.Path, "in_memory", cfg.InMemory, "read_only", cfg.ReadOnly)
	return s, nil
}

func buildBadgerOptions(cfg Config) badger.Options {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	return opts.
		WithReadOnly(cfg.ReadOnly).
		WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(badgerLogger{})
}

// badgerLogger 把 badger 日志转到本包 logger，Info 按 Debug 输出
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	logger.Error(badgerMsg(format, args))
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	logger.Warn(badgerMsg(format, args))
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	logger.Debug(badgerMsg(format, args))
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	logger.Debug(badgerMsg(format, args))
}

func badgerMsg(format string, args []interface{}) string {
	return "badger: " + strings.TrimSpace(fmt.Sprintf(format, args...))
}

// ============================================================================
//                              后台任务
// ============================================================================

// Start 启动值日志回收，db 不为 nil 时按 ArchiveInterval 定期归档
func (s *Store) Start(db *nodedb.DB) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if s.cfg.GCInterval > 0 && !s.cfg.InMemory && !s.cfg.ReadOnly {
		s.wg.Add(1)
		go s.gcLoop()
	}
	if db != nil && s.cfg.ArchiveInterval > 0 {
		s.wg.Add(1)
		go s.archiveLoop(db)
	}
	return nil
}

func (s *Store) archiveLoop(db *nodedb.DB) {
	defer s.wg.Done()

	ticker := s.clock.Ticker(s.cfg.ArchiveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Archive(db); err != nil {
				logger.Warn("定期归档失败", "err", err)
			}
		}
	}
}

func (s *Store) gcLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.runGC()
		}
	}
}

// runGC 反复回收直到没有可回收的空间
func (s *Store) runGC() {
	for !s.closed.Load() {
		if err := s.db.RunValueLogGC(s.cfg.GCDiscardRatio); err != nil {
			if !errors.Is(err, badger.ErrNoRewrite) {
				logger.Debug("值日志回收结束", "err", err)
			}
			return
		}
	}
}

// Close 停止后台任务并关闭存储，重复调用无操作
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.cancel()
	s.wg.Wait()
	return s.db.Close()
}

// ============================================================================
//                              键编码
// ============================================================================

func tsBytes(at time.Time) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(at.UnixMilli()))
	return b[:]
}

func markKey(at time.Time) []byte {
	return append(append([]byte{}, markPrefix...), tsBytes(at)...)
}

func snapPrefix(at time.Time) []byte {
	return append(append([]byte{}, nodePrefix...), tsBytes(at)...)
}

func nodeKey(at time.Time, addr types.BusAddress) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], addr.Addr.Uint64()<<16|uint64(addr.PSM))
	return append(snapPrefix(at), b[:]...)
}

// ============================================================================
//                              写入
// ============================================================================

func (s *Store) writable() error {
	if s.closed.Load() {
		return ErrClosed
	}
	if s.cfg.ReadOnly {
		return ErrReadOnly
	}
	return nil
}

// Archive 归档注册表的当前内容，返回快照时间
func (s *Store) Archive(db *nodedb.DB) (time.Time, error) {
	return s.Record(db.Snapshot())
}

// Record 以当前时间归档 snap，随后按 MaxSnapshots 删除最旧的快照
//
// 同一毫秒内的重复归档覆盖前一次。
func (s *Store) Record(snap nodedb.Snapshot) (time.Time, error) {
	if err := s.writable(); err != nil {
		return time.Time{}, err
	}
	at := time.UnixMilli(s.clock.Now().UnixMilli())

	err := s.db.Update(func(txn *badger.Txn) error {
		if err := deletePrefix(txn, snapPrefix(at)); err != nil {
			return err
		}
		for _, ns := range snap.Nodes {
			if !ns.Addr.IsValid() {
				return fmt.Errorf("node %s: %w", ns.Addr, nodedb.ErrInvalidNode)
			}
			value, err := json.Marshal(ns)
			if err != nil {
				return fmt.Errorf("encode node %s: %w", ns.Addr, err)
			}
			if err := txn.Set(nodeKey(at, ns.Addr), value); err != nil {
				return err
			}
		}
		var count [4]byte
		binary.BigEndian.PutUint32(count[:], uint32(len(snap.Nodes)))
		return txn.Set(markKey(at), count[:])
	})
	if errors.Is(err, badger.ErrTxnTooBig) {
		return time.Time{}, fmt.Errorf("snapshot of %d nodes: %w", len(snap.Nodes), err)
	}
	if err != nil {
		return time.Time{}, err
	}

	if _, err := s.Prune(s.cfg.MaxSnapshots); err != nil {
		logger.Warn("清理旧快照失败", "err", err)
	}
	logger.Debug("快照已归档", "at", at.UnixMilli(), "nodes", len(snap.Nodes))
	return at, nil
}

// Prune 只保留最新的 keep 个快照，返回删除数量
func (s *Store) Prune(keep int) (int, error) {
	if err := s.writable(); err != nil {
		return 0, err
	}
	infos, err := s.Snapshots()
	if err != nil {
		return 0, err
	}
	if len(infos) <= keep {
		return 0, nil
	}

	stale := infos[:len(infos)-max(keep, 0)]
	for _, info := range stale {
		err := s.db.Update(func(txn *badger.Txn) error {
			if err := deletePrefix(txn, snapPrefix(info.At)); err != nil {
				return err
			}
			return txn.Delete(markKey(info.At))
		})
		if err != nil {
			return 0, err
		}
	}
	return len(stale), nil
}

// deletePrefix 在 txn 中删除 prefix 下的全部键
func deletePrefix(txn *badger.Txn, prefix []byte) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()

	for _, key := range keys {
		if err := txn.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// ============================================================================
//                              读取
// ============================================================================

// Snapshots 按时间升序列出已归档的快照
func (s *Store) Snapshots() ([]Info, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	var infos []Info
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = markPrefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(markPrefix); it.ValidForPrefix(markPrefix); it.Next() {
			item := it.Item()
			key := item.Key()
			if len(key) != len(markPrefix)+8 {
				return fmt.Errorf("%w: marker key %x", ErrCorrupted, key)
			}
			info := Info{At: time.UnixMilli(int64(binary.BigEndian.Uint64(key[len(markPrefix):])))}
			err := item.Value(func(val []byte) error {
				if len(val) != 4 {
					return fmt.Errorf("%w: marker %x has %d bytes", ErrCorrupted, key, len(val))
				}
				info.Nodes = int(binary.BigEndian.Uint32(val))
				return nil
			})
			if err != nil {
				return err
			}
			infos = append(infos, info)
		}
		return nil
	})
	return infos, err
}

// Load 读出 at 时刻归档的快照
func (s *Store) Load(at time.Time) (nodedb.Snapshot, error) {
	if s.closed.Load() {
		return nodedb.Snapshot{}, ErrClosed
	}

	var snap nodedb.Snapshot
	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := txn.Get(markKey(at)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %d", ErrNotFound, at.UnixMilli())
			}
			return err
		}

		prefix := snapPrefix(at)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		snap.Nodes = []nodedb.NodeSnapshot{}
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var ns nodedb.NodeSnapshot
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &ns)
			})
			if err != nil {
				return fmt.Errorf("%w: key %x: %v", ErrCorrupted, item.Key(), err)
			}
			snap.Nodes = append(snap.Nodes, ns)
		}
		return nil
	})
	return snap, err
}

// Latest 返回最新的快照，归档为空时返回 ErrNotFound
func (s *Store) Latest() (Info, nodedb.Snapshot, error) {
	infos, err := s.Snapshots()
	if err != nil {
		return Info{}, nodedb.Snapshot{}, err
	}
	if len(infos) == 0 {
		return Info{}, nodedb.Snapshot{}, ErrNotFound
	}
	info := infos[len(infos)-1]
	snap, err := s.Load(info.At)
	return info, snap, err
}
