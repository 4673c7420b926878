package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

const testSecret = "test-secret"

func TestTokenSourceSignedOut(t *testing.T) {
	src := NewTokenSource(testSecret, "")
	sess, err := src.Session(context.Background())
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if sess != nil {
		t.Errorf("session = %+v, want nil", sess)
	}
}

func TestTokenSourceValid(t *testing.T) {
	token, err := IssueToken(testSecret, "user-7", "u7@example.com", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	src := NewTokenSource(testSecret, token)

	sess, err := src.Session(context.Background())
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if sess == nil || sess.UserID != "user-7" || sess.Email != "u7@example.com" {
		t.Fatalf("session = %+v", sess)
	}
	if sess.ExpiresAt.IsZero() {
		t.Error("expected expiry")
	}

	src.Clear()
	if sess, _ := src.Session(context.Background()); sess != nil {
		t.Errorf("after clear session = %+v, want nil", sess)
	}
}

func TestTokenSourceExpired(t *testing.T) {
	token, err := IssueToken(testSecret, "user-7", "", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	src := NewTokenSource(testSecret, token)
	src.now = func() time.Time { return time.Now().Add(time.Hour) }

	sess, err := src.Session(context.Background())
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if sess != nil {
		t.Errorf("expired token yielded session %+v", sess)
	}
}

func TestTokenSourceWrongSecret(t *testing.T) {
	token, err := IssueToken("other-secret", "user-7", "", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	src := NewTokenSource(testSecret, "")
	src.SetToken(token)

	_, err = src.Session(context.Background())
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestTokenSourceCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewTokenSource(testSecret, "x").Session(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestVerifyDoesNotHoldToken(t *testing.T) {
	token, err := IssueToken(testSecret, "user-9", "", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	src := NewTokenSource(testSecret, "")

	sess, err := src.Verify(token)
	if err != nil || sess == nil || sess.UserID != "user-9" {
		t.Fatalf("verify = %+v, %v", sess, err)
	}
	held, err := src.Session(context.Background())
	if err != nil || held != nil {
		t.Errorf("held session = %+v, %v, want signed out", held, err)
	}
	if _, err := src.Verify("garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("verify garbage err = %v", err)
	}
}
