package qiskit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func clearCredentialsEnv(t *testing.T) {
	t.Setenv(EnvApiToken, "")
	t.Setenv(EnvApiUrl, "")
}

func TestLoadCredentials_TOML(t *testing.T) {
	clearCredentialsEnv(t)
	path := writeFile(t, "qconfig.toml", `
api_token = "abc123"
url = "https://quantumexperience.ng.bluemix.net/api"
unknown = "ignored"

[ibmq]
hub = "ibm-q"
group = "open"
project = "main"

[proxies]
https = "http://proxy.example.com:8080"
`)

	creds, err := LoadCredentials(path)
	require.NoError(t, err)
	assert.Equal(t, Credentials{
		ApiToken: "abc123",
		Url:      "https://quantumexperience.ng.bluemix.net/api",
		IbmQ:     IbmQInfo{Hub: "ibm-q", Group: "open", Project: "main"},
		Proxies:  map[string]string{"https": "http://proxy.example.com:8080"},
	}, creds)
}

func TestLoadCredentials_YAML(t *testing.T) {
	clearCredentialsEnv(t)

	path := writeFile(t, "qconfig.yaml", "api_token: abc123\nurl: https://example.com/api\n")
	creds, err := LoadCredentials(path)
	require.NoError(t, err)
	assert.Equal(t, Credentials{ApiToken: "abc123", Url: "https://example.com/api"}, creds)

	t.Run("unknown keys", func(t *testing.T) {
		path := writeFile(t, "qconfig.yml", "api_token: abc123\ntoken: oops\n")
		_, err := LoadCredentials(path)
		assert.ErrorContains(t, err, "field token not found")
	})
}

func TestLoadCredentials_Env(t *testing.T) {
	t.Setenv(EnvApiToken, " from-env ")
	t.Setenv(EnvApiUrl, "https://env.example.com/api")

	path := writeFile(t, "qconfig.toml", `api_token = "from-file"`)
	creds, err := LoadCredentials(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", creds.ApiToken)
	assert.Equal(t, "https://env.example.com/api", creds.Url)

	t.Run("missing file", func(t *testing.T) {
		creds, err := LoadCredentials(filepath.Join(t.TempDir(), "nope.toml"))
		require.NoError(t, err)
		assert.Equal(t, "from-env", creds.ApiToken)
	})

	t.Run("no file", func(t *testing.T) {
		creds, err := LoadCredentials("")
		require.NoError(t, err)
		assert.Equal(t, "from-env", creds.ApiToken)
	})
}

func TestLoadCredentials_Invalid(t *testing.T) {
	clearCredentialsEnv(t)

	testCases := map[string]string{
		"missing token":  `url = "https://example.com/api"`,
		"bad url":        "api_token = \"abc\"\nurl = \"not a url\"",
		"partial hub":    "api_token = \"abc\"\n[ibmq]\nhub = \"ibm-q\"",
		"bad proxy kind": "api_token = \"abc\"\n[proxies]\nftp = \"http://proxy.example.com\"",
	}
	for name, content := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadCredentials(writeFile(t, "qconfig.toml", content))
			var credErr CredentialsErr
			require.ErrorAs(t, err, &credErr)
			assert.NotEmpty(t, credErr.DevMessage())
		})
	}

	t.Run("nothing at all", func(t *testing.T) {
		_, err := LoadCredentials(filepath.Join(t.TempDir(), "nope.toml"))
		var credErr CredentialsErr
		assert.ErrorAs(t, err, &credErr)
	})

	t.Run("bad syntax", func(t *testing.T) {
		_, err := LoadCredentials(writeFile(t, "qconfig.toml", "api_token = "))
		assert.ErrorContains(t, err, "load credentials")
	})

	t.Run("unsupported extension", func(t *testing.T) {
		_, err := LoadCredentials(writeFile(t, "qconfig.json", `{"api_token": "abc"}`))
		assert.ErrorContains(t, err, `unsupported extension ".json"`)
	})
}

func TestCredentials_Options(t *testing.T) {
	creds := Credentials{
		ApiToken: "abc",
		Url:      "https://example.com/api/",
		Proxies:  map[string]string{"https": "http://proxy.example.com"},
	}

	var dopts dialOptions
	for _, opt := range creds.DialOptions() {
		opt(&dopts)
	}
	assert.Equal(t, "abc", dopts.apiToken)
	assert.Equal(t, "https://example.com/api", dopts.url)
	assert.Equal(t, creds.Proxies, dopts.proxyUrls)

	assert.Empty(t, creds.ClientOptions())

	creds.IbmQ = IbmQInfo{Hub: "h", Group: "g", Project: "p"}
	var copts clientOptions
	for _, opt := range creds.ClientOptions() {
		opt(&copts)
	}
	assert.Equal(t, clientOptions{hub: "h", group: "g", project: "p"}, copts)
}
