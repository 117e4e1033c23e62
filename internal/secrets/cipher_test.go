package secrets

import (
	"encoding/base64"
	"testing"
	"time"
)

func TestCipherRoundTrip(t *testing.T) {
	c := NewCipher("test-passphrase")
	out, err := c.Encrypt("hello 世界")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if out == "hello 世界" {
		t.Fatal("ciphertext equals plaintext")
	}
	got, ok := c.Decrypt(out)
	if !ok || got != "hello 世界" {
		t.Fatalf("Decrypt = %q, %v", got, ok)
	}
}

func TestCipherTamperDetection(t *testing.T) {
	c := NewCipher("test-passphrase")
	out, err := c.Encrypt("secret")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	raw, _ := base64.StdEncoding.DecodeString(out)
	raw[len(raw)-1] ^= 0xff
	tampered := base64.StdEncoding.EncodeToString(raw)
	if _, ok := c.Decrypt(tampered); ok {
		t.Fatal("tampered ciphertext decrypted successfully")
	}
	if _, ok := c.Decrypt("not base64!!!"); ok {
		t.Fatal("garbage input decrypted successfully")
	}
	if _, ok := c.Decrypt(""); ok {
		t.Fatal("empty input decrypted successfully")
	}
}

func TestCipherWrongKey(t *testing.T) {
	a := NewCipher("key-a")
	b := NewCipher("key-b")
	out, err := a.Encrypt("secret")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, ok := b.Decrypt(out); ok {
		t.Fatal("decrypt with wrong key succeeded")
	}
}

type memSettings map[string]string

func (m memSettings) GetSetting(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

func (m memSettings) SetSetting(key, value string) error {
	m[key] = value
	return nil
}

func (m memSettings) DeleteSetting(key string) error {
	delete(m, key)
	return nil
}

func TestCredentialStoreRoundTrip(t *testing.T) {
	cs := NewCredentialStore(memSettings{}, NewCipher("p"))
	if err := cs.SaveCredentials("bbs", "alice", "s3cret"); err != nil {
		t.Fatalf("SaveCredentials: %v", err)
	}
	u, p, ok := cs.Credentials("bbs")
	if !ok || u != "alice" || p != "s3cret" {
		t.Fatalf("Credentials = %q, %q, %v", u, p, ok)
	}
	if _, _, ok := cs.Credentials("other"); ok {
		t.Fatal("credentials leaked across source ids")
	}
	if err := cs.ClearCredentials("bbs"); err != nil {
		t.Fatalf("ClearCredentials: %v", err)
	}
	if _, _, ok := cs.Credentials("bbs"); ok {
		t.Fatal("credentials survived clear")
	}
}

func TestCookieMergeAndExpiry(t *testing.T) {
	cs := NewCredentialStore(memSettings{}, NewCipher("p"))
	base := []Cookie{
		{Name: "sid", Value: "old", Domain: ".example.com", Path: "/"},
		{Name: "auth", Value: "keep", Domain: ".example.com", Path: "/"},
	}
	if err := cs.SaveCookies("bbs", base, false); err != nil {
		t.Fatalf("SaveCookies: %v", err)
	}
	update := []Cookie{
		{Name: "sid", Value: "new", Domain: ".example.com", Path: "/"},
		{Name: "gone", Value: "x", Domain: ".example.com", Path: "/", Expires: time.Now().Add(-time.Hour)},
	}
	if err := cs.SaveCookies("bbs", update, true); err != nil {
		t.Fatalf("SaveCookies merge: %v", err)
	}
	got := cs.Cookies("bbs")
	values := map[string]string{}
	for _, c := range got {
		values[c.Name] = c.Value
	}
	if values["sid"] != "new" {
		t.Errorf("sid = %q, want merged value new", values["sid"])
	}
	if values["auth"] != "keep" {
		t.Errorf("auth cookie lost in merge")
	}
	if _, ok := values["gone"]; ok {
		t.Error("expired cookie returned from load")
	}

	header := cs.CookieHeader("bbs", "www.example.com")
	if header == "" {
		t.Fatal("empty cookie header for matching domain")
	}
	if other := cs.CookieHeader("bbs", "other.org"); other != "" {
		t.Errorf("cookie header leaked to foreign domain: %q", other)
	}
}
