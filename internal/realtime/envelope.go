package realtime

import (
	"encoding/json"
	"fmt"
)

// Envelope はゲームサーバーが送るメッセージの外枠。
// Data の中身はゲーム描画側が解釈する。
type Envelope struct {
	Session string          `json:"session"`
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
}

// DecodeEnvelope は受信データを外枠としてデコードする。ログや診断用途に限る。
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("failed to decode envelope: %w", err)
	}
	return env, nil
}
