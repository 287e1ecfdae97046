package api

import (
	"io"
	"net/http"
	"os"
	"sort"

	"github.com/AlexxIT/go2a2dp/internal/app"
	"github.com/AlexxIT/go2a2dp/pkg/yaml"
)

func configHandler(w http.ResponseWriter, r *http.Request) {
	if app.ConfigPath == "" {
		http.Error(w, "", http.StatusGone)
		return
	}

	switch r.Method {
	case "GET":
		data, err := os.ReadFile(app.ConfigPath)
		if err != nil {
			http.Error(w, "", http.StatusNotFound)
			return
		}
		// https://www.ietf.org/archive/id/draft-ietf-httpapi-yaml-mediatypes-00.html
		Response(w, data, "application/yaml")

	case "POST", "PATCH":
		if app.ConfigReadOnly {
			http.Error(w, app.ErrConfigReadOnly.Error(), http.StatusForbidden)
			return
		}

		data, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if r.Method == "PATCH" {
			data, err = mergeYAML(app.ConfigPath, data)
		} else {
			var tmp map[string]any
			err = yaml.Unmarshal(data, &tmp)
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err = os.WriteFile(app.ConfigPath, data, 0644); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}

// mergeYAML patches every leaf of the patch document into the file,
// comments and formatting of untouched keys stay as is
func mergeYAML(path string, patch []byte) ([]byte, error) {
	// empty config is OK
	data, _ := os.ReadFile(path)

	var changes map[string]any
	if err := yaml.Unmarshal(patch, &changes); err != nil {
		return nil, err
	}

	return mergeMap(data, changes, nil)
}

func mergeMap(data []byte, changes map[string]any, path []string) ([]byte, error) {
	keys := make([]string, 0, len(changes))
	for k := range changes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var err error
	for _, k := range keys {
		if sub, ok := changes[k].(map[string]any); ok && len(sub) > 0 {
			data, err = mergeMap(data, sub, append(path[:len(path):len(path)], k))
		} else {
			data, err = yaml.Patch(data, k, changes[k], path...)
		}
		if err != nil {
			return nil, err
		}
	}
	return data, nil
}
