package cmd

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/dataprof/internal/utils"
)

const (
	formatJSON     = "json"
	formatYAML     = "yaml"
	formatMarkdown = "markdown"
)

func checkFormat(f string, allowed ...string) (string, error) {
	f = strings.ToLower(strings.TrimSpace(f))
	if f == "md" {
		f = formatMarkdown
	}
	for _, a := range allowed {
		if f == a {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported --format: %s (use %s)", f, strings.Join(allowed, "|"))
}

// encode renders v as pretty JSON or block YAML. YAML goes through the JSON
// encoding first so key order and null handling match the JSON document.
func encode(v any, format string) ([]byte, error) {
	js, err := utils.PrettyJSON(v)
	if err != nil {
		return nil, err
	}
	if format != formatYAML {
		return append(js, '\n'), nil
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(js, &doc); err != nil {
		return nil, fmt.Errorf("convert to yaml: %w", err)
	}
	blockStyle(&doc)
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	return buf.Bytes(), nil
}

// blockStyle drops the flow and quoting styles the JSON input carries.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

// emit writes data to path when set, otherwise to w.
func emit(w io.Writer, path string, data []byte) error {
	if path == "" {
		_, err := w.Write(data)
		return err
	}
	if err := utils.SafeWriteFile(path, data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
