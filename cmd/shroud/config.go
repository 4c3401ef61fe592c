package main

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/zoobzio/shroud"
)

// envPrefix scopes environment overrides: SHROUD_VAULT_DIR, SHROUD_PASSWORD, ...
const envPrefix = "SHROUD"

// Configuration keys. Flags, environment variables and config file entries
// share these names.
const (
	keyConfig       = "config"
	keyVaultDir     = "vault-dir"
	keyKDF          = "kdf"
	keyIterations   = "iterations"
	keyPasswordHash = "password-hash"
	keyRules        = "rules"
	keyThreshold    = "threshold"
	keyTokenLength  = "token-length"
	keyFormat       = "format"
	keyLogLevel     = "log-level"
	keyPassword     = "password"
)

// config is the resolved CLI configuration.
type config struct {
	VaultDir     string
	KDF          shroud.KDF
	Iterations   int
	PasswordHash shroud.PasswordHash
	Rules        string
	Threshold    float64
	TokenLength  int
	Format       string
	LogLevel     string
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(keyVaultDir, "vault")
	v.SetDefault(keyKDF, string(shroud.KDFPBKDF2))
	v.SetDefault(keyIterations, shroud.MinIterations)
	v.SetDefault(keyPasswordHash, string(shroud.PasswordSHA256))
	v.SetDefault(keyThreshold, shroud.DefaultThreshold)
	v.SetDefault(keyTokenLength, shroud.DefaultTokenLength)
	v.SetDefault(keyFormat, "json")
	v.SetDefault(keyLogLevel, "info")
	return v
}

// addGlobalFlags registers the persistent flags. The master password has
// no flag so it never appears in a process listing.
func addGlobalFlags(fs *pflag.FlagSet) {
	fs.String(keyConfig, "", "Config file (yaml, json or toml)")
	fs.String(keyVaultDir, "vault", "Vault directory")
	fs.String(keyKDF, string(shroud.KDFPBKDF2), "Key derivation for new blobs (pbkdf2, argon2)")
	fs.Int(keyIterations, shroud.MinIterations, "PBKDF2 iterations")
	fs.String(keyPasswordHash, string(shroud.PasswordSHA256), "Master password verifier (sha256, bcrypt)")
	fs.String(keyRules, "", "YAML file of extra classification rules")
	fs.Float64(keyThreshold, shroud.DefaultThreshold, "Sensitivity threshold")
	fs.Int(keyTokenLength, shroud.DefaultTokenLength, "Pseudonym token length in hex characters")
	fs.StringP(keyFormat, "f", "json", "Output format (json, yaml, msgpack)")
	fs.String(keyLogLevel, "info", "Log level (debug, info, warn, error)")
}

// loadConfig resolves flag > env > config file > default.
func loadConfig(v *viper.Viper, fs *pflag.FlagSet) (*config, error) {
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}
	if path := v.GetString(keyConfig); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &config{
		VaultDir:     v.GetString(keyVaultDir),
		KDF:          shroud.KDF(v.GetString(keyKDF)),
		Iterations:   v.GetInt(keyIterations),
		PasswordHash: shroud.PasswordHash(v.GetString(keyPasswordHash)),
		Rules:        v.GetString(keyRules),
		Threshold:    v.GetFloat64(keyThreshold),
		TokenLength:  v.GetInt(keyTokenLength),
		Format:       v.GetString(keyFormat),
		LogLevel:     v.GetString(keyLogLevel),
	}
	if _, err := shroud.CodecFor(cfg.Format); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *config) newVault() (*shroud.Vault, error) {
	return shroud.NewVault(c.VaultDir,
		shroud.WithKDF(c.KDF),
		shroud.WithIterations(c.Iterations),
		shroud.WithPasswordHash(c.PasswordHash),
	)
}

func (c *config) newClassifier() (*shroud.Classifier, error) {
	opts := []shroud.ClassifierOption{shroud.WithThreshold(c.Threshold)}
	if c.Rules != "" {
		rs, err := shroud.LoadRules(c.Rules)
		if err != nil {
			return nil, err
		}
		opts = append(opts, shroud.WithRuleSet(rs))
	}
	return shroud.NewClassifier(opts...)
}

func (c *config) newPseudonymizer() (*shroud.Pseudonymizer, error) {
	return shroud.NewPseudonymizer(shroud.WithTokenLength(c.TokenLength))
}
