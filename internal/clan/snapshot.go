package clan

import (
	"github.com/hitoshi/vosdos-shell/internal/model"
)

// 表示用の固定文言
const (
	DisplayLoading = "Loading..."
	DisplayNoClan  = "None"
)

// Controls は画面に表示してよい操作。
type Controls struct {
	CanCreate bool
	CanJoin   bool
	CanLeave  bool
	CanDelete bool
}

// Snapshot はクラン管理画面の状態のコピー。
type Snapshot struct {
	Mounted   bool
	User      *model.User
	UserReady bool
	Clan      model.ClanQueryResult
	ClanReady bool
	Error     *model.APIError
	Form      Form
	Controls  Controls
}

// Ready はユーザーとクランの取得が両方とも完了しているかを返す。
func (s Snapshot) Ready() bool {
	return s.UserReady && s.ClanReady
}

// IsOwner は読み込み済みのユーザーがクランの所有者かを返す。
// 両方の取得が成功するまでは常にfalse。
func (s Snapshot) IsOwner() bool {
	if !s.Ready() || s.User == nil || !s.Clan.IsPresent() {
		return false
	}
	return s.Clan.Clan.IsOwnedBy(s.User)
}

// DisplayUser は表示用のユーザー名を返す。
func (s Snapshot) DisplayUser() string {
	if s.User == nil {
		return DisplayLoading
	}
	return s.User.Username
}

// DisplayClan は表示用のクラン名を返す。所属なしの場合は "None"。
func (s Snapshot) DisplayClan() string {
	if !s.Clan.IsPresent() {
		return DisplayNoClan
	}
	return s.Clan.Clan.Name
}

// ErrorMessage は表示用のエラーメッセージを返す。エラーがなければ空文字。
func (s Snapshot) ErrorMessage() string {
	if s.Error == nil {
		return ""
	}
	return s.Error.Message
}

// DeriveControls は状態から表示してよい操作を導出する。
// 所有者判定はユーザーとクランの両方の取得が完了してから評価する。
func DeriveControls(s Snapshot) Controls {
	if !s.Mounted || !s.Ready() {
		return Controls{}
	}

	if s.User == nil {
		return Controls{}
	}
	switch {
	case s.Clan.IsAbsent():
		return Controls{CanCreate: true, CanJoin: true}
	case s.Clan.IsPresent():
		owner := s.IsOwner()
		return Controls{CanLeave: !owner, CanDelete: owner}
	default:
		return Controls{}
	}
}

// checkAllowed は操作が現在の状態で許可されているかを検証する。
func checkAllowed(m mutation, s Snapshot) error {
	if !s.Ready() {
		return model.NewClanNotReadyError()
	}
	controls := DeriveControls(s)

	switch m {
	case mutationCreate, mutationJoin:
		if !controls.CanCreate {
			if s.Clan.IsPresent() {
				return model.NewClanActionDeniedError("Already in a clan")
			}
			return model.NewClanNotReadyError()
		}
	case mutationLeave:
		if !controls.CanLeave {
			if s.IsOwner() {
				return model.NewClanActionDeniedError("Clan owner cannot leave, delete the clan instead")
			}
			if s.Clan.IsAbsent() {
				return model.NewClanActionDeniedError("Not in a clan")
			}
			return model.NewClanNotReadyError()
		}
	case mutationDelete:
		if !controls.CanDelete {
			if s.Clan.IsPresent() && s.User != nil {
				return model.NewClanActionDeniedError("Only the clan owner can delete the clan")
			}
			if s.Clan.IsAbsent() {
				return model.NewClanActionDeniedError("Not in a clan")
			}
			return model.NewClanNotReadyError()
		}
	}
	return nil
}
