package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ag0st/cryptovault/errs"
)

// ConfigYml is the unmarshal target for the config.yaml file.
type ConfigYml struct {
	Vault  VaultYml  `yaml:"vault"`
	Mirror MirrorYml `yaml:"mirror"`
}

type VaultYml struct {
	Path                string       `yaml:"path"`
	MasterKey           MasterKeyYml `yaml:"master_key"`
	ShorteningThreshold int          `yaml:"shortening_threshold"`
	CipherCombo         string       `yaml:"cipher_combo"`
}

type MasterKeyYml struct {
	EncKey string `yaml:"enc_key"`
	MacKey string `yaml:"mac_key"`
}

type MirrorYml struct {
	Enabled   bool   `yaml:"enabled"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
	ChunkSize string `yaml:"chunk_size"`
}

// extractSize takes a string formatted size ("5 MBi", "0 B") and returns the
// number of bytes it denotes.
func extractSize(size string) (uint64, error) {
	split := strings.Split(size, " ") // space separator
	if len(split) != 2 {
		return 0, errs.New(fmt.Sprintf("cannot parse %s, must be of type: \n "+
			"xx yy : where xx is an int and yy is one of [B, KBi, MBi, GBi]", size))
	}
	var shifter = 0
	switch split[1] {
	case "B": // byte
		break
	case "KBi": // kilobytes
		shifter = 10
	case "MBi": // megabytes
		shifter = 20
	case "GBi": // gigabytes
		shifter = 30
	default:
		return 0, errs.New(fmt.Sprintf("unit uknown [%s], use [B, KBi, MBi, GBi]", split[1]))
	}
	quantity, err := strconv.Atoi(split[0])
	if err != nil {
		return 0, err
	}
	return uint64(quantity) << shifter, nil
}
