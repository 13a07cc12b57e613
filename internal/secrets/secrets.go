// Package secrets resolves site and mailbox passwords from the OS keychain
// with environment variables as the fallback.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/Korbielowski/AutoApply/internal/config"
)

// KeyringService groups the app's secrets in the OS keychain.
const KeyringService = "autoapply"

var ErrNoPassword = errors.New("password not found (set it in the keychain or via env)")

// Getenv is swapped in tests.
var Getenv = os.Getenv

// SiteAccount is the keychain account of a site's login password.
func SiteAccount(site config.Site) string {
	if a := strings.TrimSpace(site.KeyringAccount); a != "" {
		return a
	}
	return "autoapply:site:" + site.Name
}

// MailAccount is the keychain account of a site's verification mailbox.
func MailAccount(site config.Site) string {
	v := site.Verification
	if a := strings.TrimSpace(v.KeyringAccount); a != "" {
		return a
	}
	return fmt.Sprintf("autoapply:imap:%s@%s", v.Username, v.IMAPHost)
}

func mailEnvKey(site string) string {
	return strings.TrimSuffix(config.SiteEnvKey(site), "_PASSWORD") + "_IMAP_PASSWORD"
}

// SitePassword looks in the keychain first, then in
// AUTOAPPLY_SITE_<NAME>_PASSWORD.
func SitePassword(site config.Site) (string, error) {
	return lookup(SiteAccount(site), config.SiteEnvKey(site.Name))
}

// MailPassword looks in the keychain first, then in
// AUTOAPPLY_SITE_<NAME>_IMAP_PASSWORD.
func MailPassword(site config.Site) (string, error) {
	return lookup(MailAccount(site), mailEnvKey(site.Name))
}

func lookup(account, envKey string) (string, error) {
	pw, err := keyring.Get(KeyringService, account)
	if err == nil && strings.TrimSpace(pw) != "" {
		return pw, nil
	}
	if v := Getenv(envKey); strings.TrimSpace(v) != "" {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNoPassword, account)
}

func SetSitePassword(site config.Site, password string) error {
	return set(SiteAccount(site), password)
}

func SetMailPassword(site config.Site, password string) error {
	return set(MailAccount(site), password)
}

func set(account, password string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password is empty")
	}
	return keyring.Set(KeyringService, account, password)
}

func DeleteSitePassword(site config.Site) error {
	return keyring.Delete(KeyringService, SiteAccount(site))
}
