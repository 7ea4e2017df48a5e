package vaultfs

import "github.com/ag0st/cryptovault/cryptor"

// vaultFormat is the only on-disk format version this module understands.
const vaultFormat = 8

// VaultFormat exposes vaultFormat to callers outside the package (config
// loaders, CLI) that need to populate VaultConfig.Format.
const VaultFormat = vaultFormat

// VaultConfig is the subset of the vault.cryptomator claims this module
// acts on once the JWT has been verified and parsed by an external
// collaborator (see SPEC_FULL.md §2.3/§6): format version, cipher suite
// tag, and the shortening threshold for long encrypted names.
type VaultConfig struct {
	Format              int
	CipherCombo         cryptor.CipherCombo
	ShorteningThreshold int
}

func (c VaultConfig) validate() error {
	if c.Format != vaultFormat {
		return errUnsupportedVersion
	}
	switch c.CipherCombo {
	case cryptor.SivCtrMac, cryptor.SivGcm:
	default:
		return errUnsupportedVersion
	}
	if c.ShorteningThreshold <= 0 {
		return errInvalidThreshold
	}
	return nil
}
