package clan

import (
	"testing"
	"time"
)

// waitFor は条件が満たされるまで最大2秒待つ。
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("条件が時間内に満たされなかった")
}
