package gameapi

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusClass はゲームサーバーのHTTPステータスコードの分類。
type StatusClass int

const (
	// StatusClassOK は成功（2xx）。
	StatusClassOK StatusClass = iota
	// StatusClassNoClan は「認証済みだがクラン未所属」を示す識別ステータス（417）。
	StatusClassNoClan
	// StatusClassUnauthorized はセッションが拒否されたことを示す（401）。
	StatusClassUnauthorized
	// StatusClassFailure はその他の失敗。
	StatusClassFailure
)

// StatusNoClan はcurrent_clanが「クランなし」を表すステータスコード。
const StatusNoClan = http.StatusExpectationFailed

// ClassifyStatus はHTTPステータスコードを分類する。
func ClassifyStatus(statusCode int) StatusClass {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return StatusClassOK
	case statusCode == StatusNoClan:
		return StatusClassNoClan
	case statusCode == http.StatusUnauthorized:
		return StatusClassUnauthorized
	default:
		return StatusClassFailure
	}
}

// String は分類の文字列表現を返す。
func (c StatusClass) String() string {
	switch c {
	case StatusClassOK:
		return "ok"
	case StatusClassNoClan:
		return "no_clan"
	case StatusClassUnauthorized:
		return "unauthorized"
	default:
		return "failure"
	}
}

// StatusError はゲームサーバーが非2xxを返したことを表す。
type StatusError struct {
	Endpoint   string
	StatusCode int
}

// Error はerrorインターフェースを実装する。
func (e *StatusError) Error() string {
	return fmt.Sprintf("game server returned status %d for %s", e.StatusCode, e.Endpoint)
}

// IsUnauthorized はエラーがセッション拒否（401）によるものかを返す。
func IsUnauthorized(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return ClassifyStatus(se.StatusCode) == StatusClassUnauthorized
	}
	return false
}

// StatusCode はエラーに含まれるHTTPステータスコードを返す。通信エラーの場合は0。
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
