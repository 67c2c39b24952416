// Package document decrypts every ENC(...) scalar of a YAML document.
package document

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/systmms/dsenc/pkg/encryption"
	"gopkg.in/yaml.v3"
)

// Result is a resolved document.
type Result struct {
	Data []byte
	// Paths lists the decrypted values, e.g. "database.password".
	Paths []string
}

// Resolve parses data, replaces each placeholder scalar with its
// plaintext and re-encodes the document. Mapping keys are left alone.
func Resolve(data []byte, d encryption.ConfigDecryptor) (Result, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return Result{}, fmt.Errorf("failed to parse document: %w", err)
	}
	if root.Kind == 0 {
		return Result{Data: data}, nil
	}

	r := &resolver{decryptor: d}
	if err := r.walk(&root, nil); err != nil {
		return Result{}, err
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&root); err != nil {
		return Result{}, fmt.Errorf("failed to encode document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return Result{}, err
	}
	return Result{Data: buf.Bytes(), Paths: r.paths}, nil
}

type resolver struct {
	decryptor encryption.ConfigDecryptor
	paths     []string
}

func (r *resolver) walk(n *yaml.Node, path []string) error {
	switch n.Kind {
	case yaml.DocumentNode:
		for _, c := range n.Content {
			if err := r.walk(c, path); err != nil {
				return err
			}
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i].Value
			if err := r.walk(n.Content[i+1], append(path, key)); err != nil {
				return err
			}
		}
	case yaml.SequenceNode:
		for i, c := range n.Content {
			if err := r.walk(c, append(path, strconv.Itoa(i))); err != nil {
				return err
			}
		}
	case yaml.ScalarNode:
		return r.scalar(n, path)
	}
	return nil
}

func (r *resolver) scalar(n *yaml.Node, path []string) error {
	if n.Tag != "!!str" || !r.decryptor.IsEncrypted(n.Value) {
		return nil
	}
	name := strings.Join(path, ".")
	plain, err := r.decryptor.Decrypt(n.Value)
	if err != nil {
		return fmt.Errorf("%s (line %d): %w", name, n.Line, err)
	}
	n.Value = plain
	// let the encoder pick a style that keeps the value a string
	n.Style = 0
	n.Tag = "!!str"
	r.paths = append(r.paths, name)
	return nil
}
