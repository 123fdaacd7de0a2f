package gameapi

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		code int
		want StatusClass
	}{
		{200, StatusClassOK},
		{201, StatusClassOK},
		{204, StatusClassOK},
		{417, StatusClassNoClan},
		{401, StatusClassUnauthorized},
		{400, StatusClassFailure},
		{403, StatusClassFailure},
		{404, StatusClassFailure},
		{500, StatusClassFailure},
		{302, StatusClassFailure},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.code), func(t *testing.T) {
			if got := ClassifyStatus(tt.code); got != tt.want {
				t.Errorf("ClassifyStatus(%d) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestIsUnauthorized(t *testing.T) {
	wrapped := fmt.Errorf("wrap: %w", &StatusError{Endpoint: PathCurrentUser, StatusCode: 401})
	if !IsUnauthorized(wrapped) {
		t.Error("ラップされた401は IsUnauthorized = true であるべき")
	}
	if IsUnauthorized(&StatusError{Endpoint: PathCurrentUser, StatusCode: 500}) {
		t.Error("500 は IsUnauthorized = false であるべき")
	}
	if IsUnauthorized(errors.New("dial tcp: connection refused")) {
		t.Error("通信エラーは IsUnauthorized = false であるべき")
	}
}

func TestStatusCode(t *testing.T) {
	if got := StatusCode(&StatusError{StatusCode: 503}); got != 503 {
		t.Errorf("StatusCode = %d, want 503", got)
	}
	if got := StatusCode(errors.New("boom")); got != 0 {
		t.Errorf("StatusCode = %d, want 0", got)
	}
}
