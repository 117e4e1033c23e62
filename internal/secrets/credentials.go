package secrets

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// SettingStore is the slice of the persistence layer the credential store
// needs: arbitrary string key to string value settings.
type SettingStore interface {
	GetSetting(key string) (string, bool)
	SetSetting(key, value string) error
	DeleteSetting(key string) error
}

// Cookie is the persisted form of a session cookie. Expires is zero for
// session-scoped cookies.
type Cookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Domain  string    `json:"domain"`
	Path    string    `json:"path"`
	Expires time.Time `json:"expires,omitempty"`
}

// CredentialStore keeps login secrets and cookie jars encrypted at rest,
// keyed by source id. Non-secret settings pass through unencrypted.
type CredentialStore struct {
	store  SettingStore
	cipher *Cipher
}

func NewCredentialStore(store SettingStore, cipher *Cipher) *CredentialStore {
	return &CredentialStore{store: store, cipher: cipher}
}

func credentialKey(sourceID, field string) string {
	return fmt.Sprintf("login_%s_%s", sourceID, field)
}

// SaveCredentials stores an encrypted username and password for a source.
func (cs *CredentialStore) SaveCredentials(sourceID, username, password string) error {
	encUser, err := cs.cipher.Encrypt(username)
	if err != nil {
		return err
	}
	encPass, err := cs.cipher.Encrypt(password)
	if err != nil {
		return err
	}
	if err := cs.store.SetSetting(credentialKey(sourceID, "username"), encUser); err != nil {
		return err
	}
	return cs.store.SetSetting(credentialKey(sourceID, "password"), encPass)
}

// Credentials returns the decrypted login pair, or false when either half
// is missing or fails authentication.
func (cs *CredentialStore) Credentials(sourceID string) (username, password string, ok bool) {
	encUser, found := cs.store.GetSetting(credentialKey(sourceID, "username"))
	if !found {
		return "", "", false
	}
	encPass, found := cs.store.GetSetting(credentialKey(sourceID, "password"))
	if !found {
		return "", "", false
	}
	username, ok = cs.cipher.Decrypt(encUser)
	if !ok {
		return "", "", false
	}
	password, ok = cs.cipher.Decrypt(encPass)
	if !ok {
		return "", "", false
	}
	return username, password, true
}

// ClearCredentials removes the stored login pair and cookies for a source.
func (cs *CredentialStore) ClearCredentials(sourceID string) error {
	if err := cs.store.DeleteSetting(credentialKey(sourceID, "username")); err != nil {
		return err
	}
	if err := cs.store.DeleteSetting(credentialKey(sourceID, "password")); err != nil {
		return err
	}
	return cs.store.DeleteSetting(credentialKey(sourceID, "cookies"))
}

// SaveCookies persists a cookie jar for a source. With merge set, incoming
// cookies are merged by (name, domain, path) into the existing jar so a
// partial Set-Cookie response does not wipe unrelated session cookies.
func (cs *CredentialStore) SaveCookies(sourceID string, cookies []Cookie, merge bool) error {
	if merge {
		existing := cs.Cookies(sourceID)
		byKey := make(map[string]int, len(existing))
		for i, c := range existing {
			byKey[c.Name+"|"+c.Domain+"|"+c.Path] = i
		}
		for _, c := range cookies {
			if i, ok := byKey[c.Name+"|"+c.Domain+"|"+c.Path]; ok {
				existing[i] = c
			} else {
				existing = append(existing, c)
			}
		}
		cookies = existing
	}
	raw, err := json.Marshal(cookies)
	if err != nil {
		return err
	}
	enc, err := cs.cipher.Encrypt(string(raw))
	if err != nil {
		return err
	}
	return cs.store.SetSetting(credentialKey(sourceID, "cookies"), enc)
}

// Cookies loads the persisted jar for a source, skipping expired entries.
// Decryption or decode failures yield an empty jar.
func (cs *CredentialStore) Cookies(sourceID string) []Cookie {
	enc, found := cs.store.GetSetting(credentialKey(sourceID, "cookies"))
	if !found {
		return nil
	}
	raw, ok := cs.cipher.Decrypt(enc)
	if !ok {
		log.WithField("source", sourceID).Warn("stored cookies failed authentication, ignoring")
		return nil
	}
	var cookies []Cookie
	if err := json.Unmarshal([]byte(raw), &cookies); err != nil {
		log.WithField("source", sourceID).Warnf("stored cookies undecodable: %v", err)
		return nil
	}
	now := time.Now()
	live := cookies[:0]
	for _, c := range cookies {
		if !c.Expires.IsZero() && c.Expires.Before(now) {
			continue
		}
		live = append(live, c)
	}
	return live
}

// CookieHeader renders the jar as a literal Cookie header value, filtered
// to cookies whose domain matches the given host.
func (cs *CredentialStore) CookieHeader(sourceID, host string) string {
	var pairs []string
	for _, c := range cs.Cookies(sourceID) {
		if c.Domain != "" && !strings.HasSuffix(host, strings.TrimPrefix(c.Domain, ".")) {
			continue
		}
		pairs = append(pairs, c.Name+"="+c.Value)
	}
	return strings.Join(pairs, "; ")
}

// GetSetting exposes plaintext settings shared with the secrets table.
func (cs *CredentialStore) GetSetting(key string) (string, bool) {
	return cs.store.GetSetting(key)
}

// SetSetting stores a plaintext setting.
func (cs *CredentialStore) SetSetting(key, value string) error {
	return cs.store.SetSetting(key, value)
}

// DeleteSetting removes a plaintext setting.
func (cs *CredentialStore) DeleteSetting(key string) error {
	return cs.store.DeleteSetting(key)
}
