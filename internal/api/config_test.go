package api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AlexxIT/go2a2dp/internal/app"
	"github.com/AlexxIT/go2a2dp/pkg/yaml"
	"github.com/stretchr/testify/require"
)

const baseConfig = `# daemon config
api: # http
  username: admin # local only
a2dp:
  role: source
  codecs:
    ldac:
      priority: 5000
`

func writeConfig(t *testing.T, data string) string {
	path := filepath.Join(t.TempDir(), "go2a2dp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestMergeYAMLPreserveComments(t *testing.T) {
	path := writeConfig(t, baseConfig)

	out, err := mergeYAML(path, []byte("api:\n  password: secret\nlog:\n  a2dp: debug\n"))
	require.NoError(t, err)

	merged := string(out)
	require.Contains(t, merged, "# daemon config")
	require.Contains(t, merged, "api: # http")
	require.Contains(t, merged, "username: admin # local only")
	require.Contains(t, merged, "  password: secret\n")
	assertOrder(t, merged, "api:", "password:", "a2dp:", "log:")

	var cfg map[string]any
	require.NoError(t, yaml.Unmarshal(out, &cfg))
	require.Equal(t, "debug", cfg["log"].(map[string]any)["a2dp"])
}

func TestMergeYAMLNested(t *testing.T) {
	path := writeConfig(t, baseConfig)

	out, err := mergeYAML(path, []byte("a2dp:\n  codecs:\n    ldac:\n      priority: 100\n    aac:\n      priority: 9000\n"))
	require.NoError(t, err)

	var cfg struct {
		A2DP struct {
			Role   string `yaml:"role"`
			Codecs map[string]struct {
				Priority int `yaml:"priority"`
			} `yaml:"codecs"`
		} `yaml:"a2dp"`
	}
	require.NoError(t, yaml.Unmarshal(out, &cfg))
	require.Equal(t, "source", cfg.A2DP.Role)
	require.Equal(t, 100, cfg.A2DP.Codecs["ldac"].Priority)
	require.Equal(t, 9000, cfg.A2DP.Codecs["aac"].Priority)
}

func TestMergeYAMLRemove(t *testing.T) {
	path := writeConfig(t, baseConfig)

	out, err := mergeYAML(path, []byte("a2dp:\n  codecs: null\n"))
	require.NoError(t, err)
	require.NotContains(t, string(out), "codecs")
	require.Contains(t, string(out), "role: source")
}

func TestConfigHandler(t *testing.T) {
	prevPath, prevReadOnly := app.ConfigPath, app.ConfigReadOnly
	t.Cleanup(func() {
		app.ConfigPath, app.ConfigReadOnly = prevPath, prevReadOnly
	})

	app.ConfigPath = writeConfig(t, baseConfig)

	t.Run("GET", func(t *testing.T) {
		w := httptest.NewRecorder()
		configHandler(w, httptest.NewRequest("GET", "/api/config", nil))
		require.Equal(t, baseConfig, w.Body.String())
		require.Equal(t, "application/yaml", w.Header().Get("Content-Type"))
	})

	t.Run("POST invalid", func(t *testing.T) {
		w := httptest.NewRecorder()
		configHandler(w, httptest.NewRequest("POST", "/api/config", strings.NewReader("a2dp: [")))
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	app.ConfigReadOnly = true

	for _, method := range []string{"POST", "PATCH"} {
		t.Run(method+" read-only", func(t *testing.T) {
			req := httptest.NewRequest(method, "/api/config", strings.NewReader("log:\n  level: info\n"))
			w := httptest.NewRecorder()

			configHandler(w, req)

			require.Equal(t, http.StatusForbidden, w.Code)
			require.Contains(t, w.Body.String(), "read-only")
		})
	}
}

func TestParseExitCode(t *testing.T) {
	code, err := parseExitCode("3")
	require.NoError(t, err)
	require.Equal(t, 3, code)

	for _, s := range []string{"", "-1", "126", "x"} {
		_, err = parseExitCode(s)
		require.Error(t, err, s)
	}
}

func TestMiddlewareAuth(t *testing.T) {
	h := middlewareAuth("admin", "secret", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest("GET", "/api", nil)
	req.RemoteAddr = "192.168.1.10:5000"

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	req.SetBasicAuth("admin", "secret")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest("GET", "/api", nil)
	req.RemoteAddr = "127.0.0.1:5000"
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func assertOrder(t *testing.T, s string, items ...string) {
	t.Helper()

	last := -1
	for _, item := range items {
		idx := strings.Index(s, item)
		require.NotEqualf(t, -1, idx, "expected %q in output", item)
		require.Greaterf(t, idx, last, "expected %q after previous sections", item)
		last = idx
	}
}
