package model

// ClanQueryKind は現在のクラン取得結果の種別。
type ClanQueryKind int

const (
	// ClanQueryAbsent は認証済みだがクランに所属していないことを示す（エラーではない）。
	ClanQueryAbsent ClanQueryKind = iota
	// ClanQueryPresent はクランに所属していることを示す。
	ClanQueryPresent
	// ClanQueryError は取得に失敗したことを示す。
	ClanQueryError
)

// String は種別の文字列表現を返す。
func (k ClanQueryKind) String() string {
	switch k {
	case ClanQueryPresent:
		return "present"
	case ClanQueryAbsent:
		return "absent"
	case ClanQueryError:
		return "error"
	default:
		return "unknown"
	}
}

// ClanQueryResult は current_clan 取得の三値結果。
// 「クランなし」と「取得失敗」をnilで兼用せず、種別で明示的に区別する。
type ClanQueryResult struct {
	Kind   ClanQueryKind
	Clan   *Clan  // Kind == ClanQueryPresent のときのみ非nil
	Reason string // Kind == ClanQueryError のときの失敗理由
}

// ClanPresent は所属クランありの結果を生成する。
func ClanPresent(c Clan) ClanQueryResult {
	return ClanQueryResult{Kind: ClanQueryPresent, Clan: &c}
}

// ClanAbsent はクランなしの結果を生成する。
func ClanAbsent() ClanQueryResult {
	return ClanQueryResult{Kind: ClanQueryAbsent}
}

// ClanFailed は取得失敗の結果を生成する。
func ClanFailed(reason string) ClanQueryResult {
	return ClanQueryResult{Kind: ClanQueryError, Reason: reason}
}

// IsPresent はクランありかどうかを返す。
func (r ClanQueryResult) IsPresent() bool { return r.Kind == ClanQueryPresent && r.Clan != nil }

// IsAbsent はクランなしかどうかを返す。
func (r ClanQueryResult) IsAbsent() bool { return r.Kind == ClanQueryAbsent }

// IsError は取得失敗かどうかを返す。
func (r ClanQueryResult) IsError() bool { return r.Kind == ClanQueryError }
