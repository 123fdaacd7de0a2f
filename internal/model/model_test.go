package model

import (
	"errors"
	"testing"
)

func TestClanQueryResult_Kinds(t *testing.T) {
	tests := []struct {
		name                    string
		result                  ClanQueryResult
		present, absent, failed bool
		kind                    string
	}{
		{"所属あり", ClanPresent(Clan{ID: 1, Name: "foo", OwnerID: 2}), true, false, false, "present"},
		{"所属なし", ClanAbsent(), false, true, false, "absent"},
		{"取得失敗", ClanFailed("500"), false, false, true, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.IsPresent(); got != tt.present {
				t.Errorf("IsPresent() = %v, want %v", got, tt.present)
			}
			if got := tt.result.IsAbsent(); got != tt.absent {
				t.Errorf("IsAbsent() = %v, want %v", got, tt.absent)
			}
			if got := tt.result.IsError(); got != tt.failed {
				t.Errorf("IsError() = %v, want %v", got, tt.failed)
			}
			if got := tt.result.Kind.String(); got != tt.kind {
				t.Errorf("Kind.String() = %q, want %q", got, tt.kind)
			}
		})
	}
}

func TestClanPresent_CopiesClan(t *testing.T) {
	c := Clan{ID: 1, Name: "foo", OwnerID: 2}
	r := ClanPresent(c)
	c.Name = "bar"

	if r.Clan.Name != "foo" {
		t.Errorf("ClanPresent は値をコピーするべき: %q", r.Clan.Name)
	}
}

func TestClan_IsOwnedBy(t *testing.T) {
	clan := &Clan{ID: 1, Name: "foo", OwnerID: 7}

	if !clan.IsOwnedBy(&User{ID: 7, Username: "owner"}) {
		t.Error("所有者として判定されるべき")
	}
	if clan.IsOwnedBy(&User{ID: 8, Username: "member"}) {
		t.Error("所有者ではない")
	}
	if clan.IsOwnedBy(nil) {
		t.Error("ユーザー不明のときは所有者ではない")
	}
	var none *Clan
	if none.IsOwnedBy(&User{ID: 7}) {
		t.Error("クランなしのときは所有者ではない")
	}
}

func TestAPIError_ErrorAndAs(t *testing.T) {
	var err error = NewInvalidTransitionError("spawned", "manage clan")

	if got := err.Error(); got != "[INVALID_TRANSITION] manage clan is not available from spawned" {
		t.Errorf("Error() = %q", got)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatal("errors.As で APIError を取り出せるべき")
	}
	if apiErr.Category != CategoryView {
		t.Errorf("Category = %q, want %q", apiErr.Category, CategoryView)
	}
}
