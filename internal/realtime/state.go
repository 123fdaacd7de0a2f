package realtime

// State はリアルタイム接続の状態。
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	// StateClosed は接続が閉じられた終端状態。
	StateClosed
	// StateFailed は接続エラーで終わった終端状態。Closed とは区別する。
	StateFailed
)

// String は状態の文字列表現を返す。
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal は終端状態かどうかを返す。終端状態から他の状態へは遷移しない。
func (s State) Terminal() bool {
	return s == StateClosed || s == StateFailed
}
