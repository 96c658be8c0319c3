package config

import (
	cerr "github.com/cockroachdb/errors"
)

// ApplyProfile применяет профиль затирания к конфигурации
func ApplyProfile(cfg *Config, profile string) error {
	switch profile {
	case "fast":
		cfg.Wipe.Method = "random"
		cfg.Wipe.Passes = 1
		cfg.Wipe.ZeroPass = false
		cfg.Wipe.BufferSize = 4 * 1024 * 1024 // 4MB
	case "dod":
		cfg.Wipe.Method = "dod"
		cfg.Wipe.Passes = 0
		cfg.Wipe.ZeroPass = false
	case "schneier":
		cfg.Wipe.Method = "schneier"
		cfg.Wipe.Passes = 0
		cfg.Wipe.ZeroPass = false
	case "paranoid":
		cfg.Wipe.Method = "gutmann"
		cfg.Wipe.Passes = 0
		cfg.Wipe.ZeroPass = true
		cfg.Wipe.BufferSize = 1024 * 1024
		cfg.Exclusion.LiveScan = true
	default:
		return cerr.Newf("неизвестный профиль: %s", profile)
	}
	return nil
}

// ListProfiles возвращает имена доступных профилей
func ListProfiles() []string {
	return []string{"fast", "dod", "schneier", "paranoid"}
}
