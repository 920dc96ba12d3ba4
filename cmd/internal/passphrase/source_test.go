package passphrase

import (
	"errors"
	"testing"
)

func fakeSource(env map[string]string, terminal bool, secret string, readErr error) *Source {
	s := NewSource("UTILITY_KEYSTORE_PASS")
	s.lookupEnv = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	s.isTerminal = func() bool { return terminal }
	s.readSecret = func() ([]byte, error) { return []byte(secret), readErr }
	return s
}

func TestGetPrefersEnvironment(t *testing.T) {
	s := fakeSource(map[string]string{"UTILITY_KEYSTORE_PASS": " hunter2 "}, true, "prompted", nil)
	got, err := s.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != " hunter2 " {
		t.Fatalf("expected env value verbatim, got %q", got)
	}
}

func TestGetRejectsBlankEnvironment(t *testing.T) {
	s := fakeSource(map[string]string{"UTILITY_KEYSTORE_PASS": "   "}, true, "prompted", nil)
	if _, err := s.Get(); err == nil {
		t.Fatalf("expected blank env value to be rejected")
	}
}

func TestGetWithoutTerminal(t *testing.T) {
	s := fakeSource(nil, false, "", nil)
	if _, err := s.Get(); err == nil {
		t.Fatalf("expected error without terminal")
	}
}

func TestGetPromptsAndCaches(t *testing.T) {
	calls := 0
	s := fakeSource(nil, true, "prompted", nil)
	s.readSecret = func() ([]byte, error) {
		calls++
		return []byte("prompted"), nil
	}
	for i := 0; i < 2; i++ {
		got, err := s.Get()
		if err != nil || got != "prompted" {
			t.Fatalf("unexpected result %q %v", got, err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected a single prompt, got %d", calls)
	}
}

func TestGetPromptErrors(t *testing.T) {
	if _, err := fakeSource(nil, true, "", errors.New("tty closed")).Get(); err == nil {
		t.Fatalf("expected read error")
	}
	if _, err := fakeSource(nil, true, "  ", nil).Get(); err == nil {
		t.Fatalf("expected empty prompt to be rejected")
	}
}
