// Package secret selects and reads the password of an encryptor from its
// configured origins.
//
// Origins are consulted in a fixed precedence order:
//
//  1. the literal password
//  2. the password file, whose path is given directly or through an
//     environment variable or process property naming it
//  3. an environment variable holding the password
//  4. a process property holding the password
//
// The first origin yielding a value wins; later origins are not consulted.
// Empty values count as absent.
package secret

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	dserrors "github.com/systmms/dsenc/internal/errors"
	"github.com/systmms/dsenc/internal/secure"
)

// Origin identifies where a password came from.
type Origin int

const (
	OriginNone Origin = iota
	OriginLiteral
	OriginFile
	OriginEnv
	OriginProperty
)

func (o Origin) String() string {
	switch o {
	case OriginLiteral:
		return "literal"
	case OriginFile:
		return "file"
	case OriginEnv:
		return "environment"
	case OriginProperty:
		return "property"
	default:
		return "none"
	}
}

// Dynamic reports whether the origin is read from outside the unit
// configuration and may therefore change between reads.
func (o Origin) Dynamic() bool {
	return o == OriginFile || o == OriginEnv || o == OriginProperty
}

// Source describes the possible origins of one password.
type Source struct {
	Password             string
	PasswordFile         string
	PasswordFileEnv      string
	PasswordFileProperty string
	PasswordEnv          string
	PasswordProperty     string
}

// IsZero reports whether no origin is configured at all.
func (s Source) IsZero() bool {
	return s == Source{}
}

// Selection is the active origin of a Source, before any file is read.
type Selection struct {
	Origin Origin
	// Name is the environment variable or property consulted, if any.
	Name string
	// Path is the password file for OriginFile.
	Path string
}

func (s Selection) String() string {
	switch s.Origin {
	case OriginFile:
		if s.Name != "" {
			return fmt.Sprintf("file %s (via %s)", s.Path, s.Name)
		}
		return "file " + s.Path
	case OriginEnv:
		return "environment variable " + s.Name
	case OriginProperty:
		return "property " + s.Name
	default:
		return s.Origin.String()
	}
}

// Material is a resolved password. Secret must be wiped or sealed by the
// receiver once consumed.
type Material struct {
	Selection
	Secret []byte
}

// Resolver evaluates Sources against an environment and property set.
type Resolver struct {
	Env        Lookuper
	Properties Lookuper
}

// NewResolver returns a resolver using the process environment and props.
func NewResolver(props Lookuper) Resolver {
	return Resolver{Env: OSEnvironment, Properties: props}
}

func lookup(l Lookuper, name string) (string, bool) {
	if l == nil || name == "" {
		return "", false
	}
	v, ok := l.Lookup(name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// FilePath returns the password file path of src, following the
// environment variable and property indirections.
func (r Resolver) FilePath(src Source) (path, via string, ok bool) {
	if src.PasswordFile != "" {
		return src.PasswordFile, "", true
	}
	if v, ok := lookup(r.Env, src.PasswordFileEnv); ok {
		return v, "environment variable " + src.PasswordFileEnv, true
	}
	if v, ok := lookup(r.Properties, src.PasswordFileProperty); ok {
		return v, "property " + src.PasswordFileProperty, true
	}
	return "", "", false
}

// Select determines the active origin of src without reading it.
func (r Resolver) Select(src Source) (Selection, error) {
	if src.Password != "" {
		return Selection{Origin: OriginLiteral}, nil
	}
	if path, via, ok := r.FilePath(src); ok {
		return Selection{Origin: OriginFile, Path: path, Name: via}, nil
	}
	if _, ok := lookup(r.Env, src.PasswordEnv); ok {
		return Selection{Origin: OriginEnv, Name: src.PasswordEnv}, nil
	}
	if _, ok := lookup(r.Properties, src.PasswordProperty); ok {
		return Selection{Origin: OriginProperty, Name: src.PasswordProperty}, nil
	}
	return Selection{}, dserrors.New(dserrors.KindSecretUnavailable, "", "resolve password",
		describeMissing(src), nil)
}

// Resolve selects the active origin of src and reads the password from it.
func (r Resolver) Resolve(src Source) (Material, error) {
	sel, err := r.Select(src)
	if err != nil {
		return Material{}, err
	}

	m := Material{Selection: sel}
	switch sel.Origin {
	case OriginLiteral:
		m.Secret = []byte(src.Password)
	case OriginFile:
		b, err := LoadFile(sel.Path)
		if err != nil {
			return Material{}, err
		}
		m.Secret = b
	case OriginEnv:
		v, _ := lookup(r.Env, sel.Name)
		m.Secret = []byte(v)
	case OriginProperty:
		v, _ := lookup(r.Properties, sel.Name)
		m.Secret = []byte(v)
	}
	return m, nil
}

// LoadFile reads a password file verbatim, without trimming. Invalid
// UTF-8 sequences are replaced by U+FFFD.
func LoadFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, dserrors.New(dserrors.KindSecretUnavailable, "", "resolve password",
			"unable to read password from file: "+path, err)
	}
	if !utf8.Valid(b) {
		valid := bytes.ToValidUTF8(b, []byte("\uFFFD"))
		secure.Wipe(b)
		b = valid
	}
	return b, nil
}

func describeMissing(src Source) string {
	var tried []string
	if src.PasswordFileEnv != "" {
		tried = append(tried, "password file environment variable "+src.PasswordFileEnv)
	}
	if src.PasswordFileProperty != "" {
		tried = append(tried, "password file property "+src.PasswordFileProperty)
	}
	if src.PasswordEnv != "" {
		tried = append(tried, "environment variable "+src.PasswordEnv)
	}
	if src.PasswordProperty != "" {
		tried = append(tried, "property "+src.PasswordProperty)
	}
	if len(tried) == 0 {
		return "no password origin configured"
	}
	return "no value found in " + strings.Join(tried, ", ")
}
