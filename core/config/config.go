package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	EnvPrivateKey         = "PRIV_KEY"
	EnvAPIKey             = "ALCHEMY_API_KEY"
	EnvAPIURL             = "ALCHEMY_API_URL"
	EnvGasManagerPolicyID = "ALCHEMY_GAS_MANAGER_POLICY_ID"

	defaultEnvFile = ".env"
)

// envDescriptions is used to build the message of a MissingEnvError
var envDescriptions = map[string]string{
	EnvPrivateKey:         "a private key",
	EnvAPIKey:             "an Alchemy API key",
	EnvAPIURL:             "an Alchemy API URL",
	EnvGasManagerPolicyID: "an Alchemy Gas Manager policy ID",
}

// Requirement declares which settings a command cannot run without.
type Requirement int

const (
	// BaseRequirement needs the private key, the API key and the API URL.
	BaseRequirement Requirement = iota
	// SponsoredRequirement additionally needs the gas manager policy ID.
	SponsoredRequirement
)

// MissingEnvError is returned when a required environment variable is absent or empty.
type MissingEnvError struct {
	Name string
}

func (e *MissingEnvError) Error() string {
	desc, ok := envDescriptions[e.Name]
	if !ok {
		desc = "a value"
	}
	return fmt.Sprintf("please provide %s in the .env file as %s", desc, e.Name)
}

// Config is built once at process start and passed down to the signer, the
// clients and the workflows.
type Config struct {
	// PrivateKey is the raw hex key, without the 0x prefix
	PrivateKey         string
	APIKey             string
	APIURL             string
	GasManagerPolicyID string

	Chain *ChainConfig
}

// LoadOptions controls where settings are read from besides the process environment.
type LoadOptions struct {
	// EnvFile is a dotenv file to load before reading the environment. When empty,
	// ./.env is used if it exists.
	EnvFile string
	// ConfigPath is an optional YAML file overriding the chain settings.
	ConfigPath string
	Chain      ChainEnv
}

type baseEnv struct {
	PrivateKey string `env:"PRIV_KEY" validate:"required"`
	APIKey     string `env:"ALCHEMY_API_KEY" validate:"required"`
	APIURL     string `env:"ALCHEMY_API_URL" validate:"required"`
}

type sponsoredEnv struct {
	baseEnv
	GasManagerPolicyID string `env:"ALCHEMY_GAS_MANAGER_POLICY_ID" validate:"required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report failures by environment variable name instead of Go field name
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("env")
	})
	return v
}

// Load reads the configuration for the given requirement. It never touches the
// network: a missing setting is reported before any client exists.
func Load(req Requirement, opts LoadOptions) (*Config, error) {
	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, err
	}

	base := baseEnv{
		PrivateKey: os.Getenv(EnvPrivateKey),
		APIKey:     os.Getenv(EnvAPIKey),
		APIURL:     os.Getenv(EnvAPIURL),
	}
	policyID := os.Getenv(EnvGasManagerPolicyID)

	var err error
	switch req {
	case SponsoredRequirement:
		err = checkRequired(sponsoredEnv{baseEnv: base, GasManagerPolicyID: policyID})
	default:
		err = checkRequired(base)
	}
	if err != nil {
		return nil, err
	}

	chain, err := LoadChainConfig(opts.Chain, opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	return &Config{
		PrivateKey:         base.PrivateKey,
		APIKey:             base.APIKey,
		APIURL:             base.APIURL,
		GasManagerPolicyID: policyID,
		Chain:              chain,
	}, nil
}

// checkRequired returns a MissingEnvError for the first missing variable, in
// declaration order.
func checkRequired(env any) error {
	err := validate.Struct(env)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &MissingEnvError{Name: verrs[0].Field()}
	}
	return err
}

func loadEnvFile(path string) error {
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil
		}
		return fmt.Errorf("cannot read env file %s: %w", path, err)
	}

	// godotenv.Load does not override variables already present in the process
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("cannot parse env file %s: %w", path, err)
	}
	return nil
}

// AARpcURL is the account abstraction endpoint for the configured chain and API key.
func (c *Config) AARpcURL() string {
	return c.Chain.AARpcBaseURL + c.APIKey
}

// Sponsored reports whether user operations should request gas sponsorship.
func (c *Config) Sponsored() bool {
	return c.GasManagerPolicyID != ""
}

// String never prints the private key.
func (c *Config) String() string {
	chain := "<nil>"
	if c.Chain != nil {
		chain = c.Chain.Name
	}
	return fmt.Sprintf("Config{chain: %s, apiURL: %s, apiKey: %s, gasPolicy: %s, privateKey: [redacted]}",
		chain, c.APIURL, redact(c.APIKey), c.GasManagerPolicyID)
}

func redact(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "****"
}
