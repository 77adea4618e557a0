package director

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Encode writes v as two-space indented YAML.
func Encode(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// MarshalStoryboard renders the storyboard as YAML.
func MarshalStoryboard(sb *Storyboard) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, sb); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteStoryboard сохраняет раскадровку в YAML-файл
func WriteStoryboard(sb *Storyboard, path string) error {
	data, err := MarshalStoryboard(sb)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ReadStoryboard читает раскадровку из YAML-файла
func ReadStoryboard(path string) (*Storyboard, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var sb Storyboard
	if err := yaml.Unmarshal(data, &sb); err != nil {
		return nil, fmt.Errorf("parse storyboard %s: %w", path, err)
	}
	return &sb, nil
}

// WriteSceneReport writes the report to path, or to w when path is empty.
func WriteSceneReport(r *SceneReport, path string, w io.Writer) error {
	if path == "" {
		return Encode(w, r)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
