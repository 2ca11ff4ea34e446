package security

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(t.TempDir())
	if err := s.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return s
}

func TestStore_RoundTrip(t *testing.T) {
	s := newStore(t)

	err := s.Update(func(c *Credentials) {
		c.APIKey = "key"
		c.APISecret = "secret"
		c.TOTPSecret = "JBSWY3DPEHPK3PXP"
		c.ClientCode = "AB1234"
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	creds, err := s.Credentials()
	if err != nil {
		t.Fatalf("Credentials: %v", err)
	}
	if creds.APIKey != "key" || creds.APISecret != "secret" || creds.ClientCode != "AB1234" {
		t.Errorf("creds = %+v", creds)
	}

	if err := s.SetAccessToken("tok"); err != nil {
		t.Fatalf("SetAccessToken: %v", err)
	}
	token, err := s.AccessToken()
	if err != nil || token != "tok" {
		t.Errorf("AccessToken = %q, %v", token, err)
	}
}

func TestStore_SecretsNotOnDiskInPlaintext(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	if err := s.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := s.Update(func(c *Credentials) { c.APISecret = "hunter2secret" }); err != nil {
		t.Fatalf("Update: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "credentials.enc"))
	if err != nil {
		t.Fatalf("reading envelope: %v", err)
	}
	if bytes.Contains(data, []byte("hunter2secret")) {
		t.Error("secret stored in plaintext")
	}
}

func TestStore_InitializeIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	if err := s.Initialize(); err != nil {
		t.Fatalf("first Initialize: %v", err)
	}
	if err := s.Update(func(c *Credentials) { c.APIKey = "key" }); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := s.Initialize(); err != nil {
		t.Fatalf("second Initialize: %v", err)
	}

	key, err := s.APIKey()
	if err != nil || key != "key" {
		t.Errorf("APIKey after re-init = %q, %v", key, err)
	}
}

func TestRefreshIfStale_SingleRefreshAmongConcurrentCallers(t *testing.T) {
	s := newStore(t)
	if err := s.SetAccessToken("stale"); err != nil {
		t.Fatalf("SetAccessToken: %v", err)
	}

	var refreshes int32
	refresh := func(creds *Credentials) (string, error) {
		atomic.AddInt32(&refreshes, 1)
		return "fresh", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := s.RefreshIfStale("stale", refresh)
			if err != nil {
				t.Errorf("RefreshIfStale: %v", err)
				return
			}
			if token != "fresh" {
				t.Errorf("token = %q, want fresh", token)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&refreshes); got != 1 {
		t.Errorf("refreshes = %d, want exactly 1", got)
	}
}

func TestRefreshIfStale_SkipsWhenAlreadyRotated(t *testing.T) {
	s := newStore(t)
	if err := s.SetAccessToken("current"); err != nil {
		t.Fatalf("SetAccessToken: %v", err)
	}

	token, err := s.RefreshIfStale("old-stale", func(creds *Credentials) (string, error) {
		t.Error("refresh should not run when the token already rotated")
		return "", nil
	})
	if err != nil {
		t.Fatalf("RefreshIfStale: %v", err)
	}
	if token != "current" {
		t.Errorf("token = %q, want current", token)
	}
}

func TestChecksum(t *testing.T) {
	// sha256("abc") well-known digest
	got := Checksum("a", "b", "c")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Errorf("Checksum = %s, want %s", got, want)
	}
}

func TestMask(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"abc", "****"},
		{"12345678", "****"},
		{"secrettoken", "****oken"},
	}
	for _, tt := range tests {
		if got := Mask(tt.in); got != tt.want {
			t.Errorf("Mask(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidateTOTPSecret(t *testing.T) {
	if err := ValidateTOTPSecret("JBSWY3DPEHPK3PXP"); err != nil {
		t.Errorf("valid secret rejected: %v", err)
	}
	if err := ValidateTOTPSecret("not base32!!"); err == nil {
		t.Error("invalid secret accepted")
	}
}
