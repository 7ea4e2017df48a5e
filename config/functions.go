/*
Package config allows to use a file as configuration for the service.

It uses gopkg.in/yaml.v3 package in order to parse the configuration file. It contains the whole structure of the
configuration with root element being the structure Config.

It offers the capacity to retrieve the configuration file path from different endpoints:
- CLI flag (-config [path]) default = config.yaml
- Environment variable (CONFIG_FILE=[path])

Particularities:
 1. If both endpoints are detected, it will use environment variable.
 2. If no endpoints explicitly given (no detection of env var & no flag given in argument) it will use the default path
    "./config.yaml"

Below, an example of how to use the package:

	cfgPath, err := config.ParseFlags()
	if err != nil {
		logging.Fatal(err)
	}
	cfg, err := config.NewConfig(cfgPath)
	if err != nil {
		logging.Fatal(err)
	}
*/
package config

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ag0st/cryptovault/cryptor"
	"github.com/ag0st/cryptovault/errs"
	"github.com/ag0st/cryptovault/masterkey"
)

var currentConfig *Config

// Declaration of the configuration type used inside the program.
// Using getter instead of public members to prevent the modification
// of the configuration.

type Config struct {
	vault  Vault
	mirror Mirror
}

func (c *Config) Vault() *Vault   { return &c.vault }
func (c *Config) Mirror() *Mirror { return &c.mirror }

type Vault struct {
	path                string
	key                 *masterkey.MasterKey
	shorteningThreshold int
	cipherCombo         cryptor.CipherCombo
}

func (v *Vault) Path() string                     { return v.path }
func (v *Vault) Key() *masterkey.MasterKey        { return v.key }
func (v *Vault) ShorteningThreshold() int         { return v.shorteningThreshold }
func (v *Vault) CipherCombo() cryptor.CipherCombo { return v.cipherCombo }

// Mirror holds the optional off-site S3-compatible backup target. When
// Enabled is false, no mirror connection should be attempted.
type Mirror struct {
	enabled   bool
	accessKey string
	secretKey string
	endpoint  string
	bucket    string
	useSSL    bool
	chunkSize uint64
}

func (m *Mirror) Enabled() bool     { return m.enabled }
func (m *Mirror) AccessKey() string { return m.accessKey }
func (m *Mirror) SecretKey() string { return m.secretKey }
func (m *Mirror) Endpoint() string  { return m.endpoint }
func (m *Mirror) Bucket() string    { return m.bucket }
func (m *Mirror) UseSSL() bool      { return m.useSSL }
func (m *Mirror) ChunkSize() uint64 { return m.chunkSize }

// ValidateConfigPath just makes sure, that the path provided is a file,
// that can be read
func ValidateConfigPath(path string) error {
	abs, err2 := filepath.Abs(path)
	if err2 != nil {
		return err2
	}
	s, err := os.Stat(abs)
	if err != nil {
		return err
	}
	if s.IsDir() {
		return errs.New(fmt.Sprintf("'%s' is a directory, not a normal file", path))
	}
	return nil
}

// ParseFlags will create and parse the CLI flags
// and return the path to be used elsewhere
func ParseFlags() (string, error) {
	// String that contains the configured configuration path
	var configPath string

	// Set up a CLI flag called "-config" to allow users
	// to supply the configuration file
	flag.StringVar(&configPath, "config", "config.yaml", "path to config file")

	// Actually parse the flags
	flag.Parse()

	getenv := os.Getenv("CONFIG_FILE")
	if len(getenv) > 0 {
		// use environment variable instead
		configPath = getenv
	}

	// Validate the path first
	if err := ValidateConfigPath(configPath); err != nil {
		return "", err
	}

	// Return the configuration path
	return configPath, nil
}

// NewConfig returns a new decoded Config struct
func NewConfig(configPath string) (*Config, error) {
	// Create config structure
	configyml := &ConfigYml{}

	// Open config file
	file, err := os.Open(configPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	// Init new YAML decode
	d := yaml.NewDecoder(file)

	// Start YAML decoding from file
	if err := d.Decode(&configyml); err != nil {
		return nil, err
	}

	key, err := decodeMasterKey(configyml.Vault.MasterKey)
	if err != nil {
		return nil, err
	}

	combo := cryptor.CipherCombo(configyml.Vault.CipherCombo)
	switch combo {
	case cryptor.SivCtrMac, cryptor.SivGcm:
	default:
		return nil, errs.New(fmt.Sprintf("unknown cipher_combo %q, use one of [%s, %s]", combo, cryptor.SivCtrMac, cryptor.SivGcm))
	}

	if configyml.Vault.ShorteningThreshold <= 0 {
		return nil, errs.New("shortening_threshold must be a positive integer")
	}

	chunkSize, err := extractSize(configyml.Mirror.ChunkSize)
	if err != nil {
		return nil, err
	} else if chunkSize != 0 && (chunkSize < 5<<20 || chunkSize > 5<<30) {
		return nil, errs.New("mirror chunk size must be between 5<<20 and 5<<30 (included)")
	}

	cfg := Config{
		vault: Vault{
			path:                configyml.Vault.Path,
			key:                 key,
			shorteningThreshold: configyml.Vault.ShorteningThreshold,
			cipherCombo:         combo,
		},
		mirror: Mirror{
			enabled:   configyml.Mirror.Enabled,
			accessKey: configyml.Mirror.AccessKey,
			secretKey: configyml.Mirror.SecretKey,
			endpoint:  configyml.Mirror.Endpoint,
			bucket:    configyml.Mirror.Bucket,
			useSSL:    configyml.Mirror.UseSSL,
			chunkSize: chunkSize,
		},
	}

	currentConfig = &cfg

	return currentConfig, nil
}

// decodeMasterKey turns the two hex-encoded subkeys from the config file
// into a masterkey.MasterKey, the same way the teacher's config decoded its
// single hex AES key into a fixed-size array.
func decodeMasterKey(y MasterKeyYml) (*masterkey.MasterKey, error) {
	enc, err := hex.DecodeString(y.EncKey)
	if err != nil {
		return nil, errs.WrapKind(err, errs.KindIo, "cannot decode master_key.enc_key")
	}
	mac, err := hex.DecodeString(y.MacKey)
	if err != nil {
		return nil, errs.WrapKind(err, errs.KindIo, "cannot decode master_key.mac_key")
	}
	key, err := masterkey.New(enc, mac)
	if err != nil {
		return nil, errs.WrapKind(err, errs.KindIo, "invalid master key")
	}
	return key, nil
}

// GetCurrent gives the current config. This method panic if NewConfig has not been called before without error
func GetCurrent() *Config {
	if currentConfig == nil {
		panic(errs.New("config not loaded"))
	}
	return currentConfig
}
