// Package out renders envelopes as JSON or plain text.
package out

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ggonzalez94/defai/internal/config"
	"github.com/ggonzalez94/defai/internal/model"
)

const modeJSON = "json"

func Render(w io.Writer, env model.Envelope, settings config.Settings) error {
	data := generic(env.Data)
	if len(settings.SelectFields) > 0 {
		data = project(data, settings.SelectFields)
	}

	switch {
	case settings.ResultsOnly && settings.OutputMode == modeJSON:
		return encode(w, data)
	case settings.ResultsOnly:
		return renderPlain(w, data)
	case settings.OutputMode == modeJSON:
		env.Data = data
		return encode(w, env)
	}

	if env.Error != nil {
		_, err := fmt.Fprintf(w, "error[%s]: %s\n", env.Error.Type, env.Error.Message)
		return err
	}
	for _, warning := range env.Warnings {
		if _, err := fmt.Fprintf(w, "warning: %s\n", warning); err != nil {
			return err
		}
	}
	return renderPlain(w, data)
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// generic converts typed payloads to their JSON shape so selection and plain
// rendering see the same field names as JSON consumers.
func generic(v any) any {
	if v == nil {
		return nil
	}
	buf, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(buf, &out); err != nil {
		return v
	}
	return out
}

// renderPlain prints chat replies verbatim, lists one item per line and
// everything else as sorted, flattened key=value pairs.
func renderPlain(w io.Writer, data any) error {
	switch t := data.(type) {
	case nil:
		_, err := fmt.Fprintln(w, "null")
		return err
	case []any:
		if len(t) == 0 {
			_, err := fmt.Fprintln(w, "[]")
			return err
		}
		for _, item := range t {
			if _, err := fmt.Fprintln(w, line(item)); err != nil {
				return err
			}
		}
		return nil
	case map[string]any:
		if text, ok := t["text"].(string); ok {
			_, err := fmt.Fprintln(w, text)
			return err
		}
	}
	_, err := fmt.Fprintln(w, line(data))
	return err
}

func line(v any) string {
	m, ok := v.(map[string]any)
	if !ok {
		buf, _ := json.Marshal(v)
		return string(buf)
	}
	flat := map[string]string{}
	flatten("", m, flat)
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+flat[k])
	}
	return strings.Join(parts, " ")
}

func flatten(prefix string, m map[string]any, dst map[string]string) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch t := v.(type) {
		case map[string]any:
			flatten(key, t, dst)
		case []any:
			items := make([]string, 0, len(t))
			for _, item := range t {
				items = append(items, fmt.Sprint(item))
			}
			dst[key] = strings.Join(items, ",")
		default:
			dst[key] = fmt.Sprint(v)
		}
	}
}

// project keeps only the selected fields. A field may be a dotted path into
// nested objects; the result keeps the path as its key.
func project(data any, fields []string) any {
	switch t := data.(type) {
	case []any:
		out := make([]any, 0, len(t))
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				out = append(out, pick(m, fields))
			}
		}
		return out
	case map[string]any:
		return pick(t, fields)
	default:
		return data
	}
}

func pick(m map[string]any, fields []string) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := lookup(m, f); ok {
			out[f] = v
		}
	}
	return out
}

func lookup(m map[string]any, path string) (any, bool) {
	var cur any = m
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = obj[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}
