package qiskit

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	// EnvApiToken overrides the api token of a credentials file
	EnvApiToken = "QISKIT_API_TOKEN"
	// EnvApiUrl overrides the url of a credentials file
	EnvApiUrl = "QISKIT_API_URL"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// IbmQInfo selects an IBM Q hub, group and project
type IbmQInfo struct {
	Hub     string `toml:"hub" yaml:"hub" validate:"required_with=Group Project"`
	Group   string `toml:"group" yaml:"group" validate:"required_with=Hub Project"`
	Project string `toml:"project" yaml:"project" validate:"required_with=Hub Group"`
}

// Credentials is what is needed to reach the API
type Credentials struct {
	ApiToken string            `toml:"api_token" yaml:"api_token" validate:"required"`
	Url      string            `toml:"url" yaml:"url" validate:"omitempty,url"`
	IbmQ     IbmQInfo          `toml:"ibmq" yaml:"ibmq"`
	Proxies  map[string]string `toml:"proxies" yaml:"proxies" validate:"omitempty,dive,keys,oneof=http https,endkeys,url"`
}

// LoadCredentials reads credentials from a TOML (.toml) or YAML (.yaml, .yml) file
// and applies the QISKIT_API_TOKEN and QISKIT_API_URL environment overrides.
// An empty path or a missing file leaves only the environment.
func LoadCredentials(path string) (Credentials, error) {
	var creds Credentials
	if path != "" {
		err := decodeCredentials(path, &creds)
		if errors.Is(err, fs.ErrNotExist) {
			log.WithField("path", path).Debug("no credentials file")
		} else if err != nil {
			return Credentials{}, err
		}
	}

	if token := strings.TrimSpace(os.Getenv(EnvApiToken)); token != "" {
		creds.ApiToken = token
	}
	if u := strings.TrimSpace(os.Getenv(EnvApiUrl)); u != "" {
		creds.Url = u
	}

	if err := validate.Struct(creds); err != nil {
		return Credentials{}, CredentialsErr{ApiErr{
			usrMsg: "invalid credentials, have you set an api token?",
			devMsg: err.Error(),
		}}
	}
	return creds, nil
}

func decodeCredentials(path string, creds *Credentials) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		meta, err := toml.DecodeFile(path, creds)
		if err != nil {
			return fmt.Errorf("load credentials %s: %w", path, err)
		}
		for _, key := range meta.Undecoded() {
			log.WithField("path", path).Warnf("unknown credentials key %q", key.String())
		}
		return nil
	case ".yaml", ".yml":
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("load credentials %s: %w", path, err)
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(creds); err != nil {
			return fmt.Errorf("load credentials %s: %w", path, err)
		}
		return nil
	default:
		return fmt.Errorf("load credentials %s: unsupported extension %q", path, ext)
	}
}

// DialOptions turns the credentials into options for Dial
func (c Credentials) DialOptions() []DialOption {
	opts := []DialOption{WithApiToken(c.ApiToken)}
	if c.Url != "" {
		opts = append(opts, WithApiUrl(c.Url))
	}
	if len(c.Proxies) > 0 {
		opts = append(opts, WithProxies(c.Proxies))
	}
	return opts
}

// ClientOptions turns the credentials into options for NewClient
func (c Credentials) ClientOptions() []ClientOption {
	if c.IbmQ.Hub == "" {
		return nil
	}
	return []ClientOption{WithIbmQInfo(c.IbmQ.Hub, c.IbmQ.Group, c.IbmQ.Project)}
}
