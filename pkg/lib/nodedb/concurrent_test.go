package nodedb

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDB_Concurrent(t *testing.T) {
	db := New()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				dev := byte(w*50 + i%50)
				n := testNode(dev, fmt.Sprintf(":%d.%d", w, i%50), "org.a")
				require.NoError(t, db.AddNode(n))
				db.RefreshNodeExpiration(n, time.Minute)
				if i%3 == 0 {
					db.RemoveNode(n)
				}
			}
		}(w)
	}

	// 并发读取与比较
	for r := 0; r < 2; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = db.FindByUniqueName(":0.1")
				_ = db.FindNextDirectMinion(testNode(1, ""), nil)
				_ = db.NextExpirationDeadline()
				_ = db.Stats()
			}
		}()
	}

	wg.Wait()
	checkInvariants(t, db)
}

// 两个线程以相反方向比较和合并两个注册表，不应死锁
func TestDB_ConcurrentDiffOpposite(t *testing.T) {
	a := New()
	b := New()
	for dev := byte(1); dev <= 20; dev++ {
		require.NoError(t, a.AddNode(testNode(dev, "", "org.a")))
		require.NoError(t, b.AddNode(testNode(dev+10, "", "org.b")))
	}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				added, removed := a.Diff(b)
				a.UpdateDB(added, removed, false)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				added, removed := b.Diff(a)
				b.UpdateDB(added, removed, false)
				b.GetNodesFromConnectAddr(testAddr(1, 0x1001), a)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("deadlock")
	}
	checkInvariants(t, a)
	checkInvariants(t, b)
}
