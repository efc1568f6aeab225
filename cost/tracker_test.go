package cost

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTracker_RecordCallAccumulates(t *testing.T) {
	tr := NewTracker()
	tr.RecordCall("acme-credit", "credit-report", 100)
	tr.RecordCall("acme-credit", "credit-report", 200)
	tr.RecordCall("other-provider", "identity", 50)

	snap := tr.Snapshot()
	require.Equal(t, uint64(2), snap.PerProvider["acme-credit"].Calls)
	require.Equal(t, uint64(300), snap.PerProvider["acme-credit"].Bytes)
	require.Equal(t, uint64(3), snap.Totals.Calls)
	require.Equal(t, uint64(350), snap.Totals.Bytes)
}

func TestTracker_SnapshotIndependence(t *testing.T) {
	tr := NewTracker()
	tr.RecordCall("p", "t", 10)
	snap := tr.Snapshot()
	tr.RecordCall("p", "t", 10)
	require.Equal(t, uint64(1), snap.Totals.Calls, "earlier snapshot must not see later writes")
}

func TestTracker_ConcurrentRecordCall(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.RecordCall("p", "t", 1)
		}()
	}
	wg.Wait()
	require.Equal(t, uint64(100), tr.Snapshot().Totals.Calls)
}
