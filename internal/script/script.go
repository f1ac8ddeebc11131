// Package script reads TOML function scripts and replays them through the
// HIR builder. A script is a list of functions, each a list of steps naming
// a builder operation:
//
//	[[func]]
//	name = "add_one"
//	locals = [{ name = "tmp", type = "i32" }]
//
//	  [[func.step]]
//	  op = "load_context"
//	  dest = "x"
//	  offset = 16
//	  type = "i32"
//
//	  [[func.step]]
//	  op = "add"
//	  dest = "y"
//	  args = ["x", "1:i32"]
//
// Arguments name an earlier dest, a local ($tmp), a label (@exit), a symbol
// (&callee) or a typed literal (5:i32, -1.5:f64, 0x10:i64, 1,2,3,4:v128).
package script

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"recomp/internal/symbol"
)

// ErrUnknownOp is returned for a step whose op names no builder operation.
var ErrUnknownOp = errors.New("script: unknown op")

// File is a decoded script.
type File struct {
	Path  string `toml:"-"`
	Funcs []Func `toml:"func"`
}

// Func is one function to build.
type Func struct {
	Name       string   `toml:"name"`
	Address    uint64   `toml:"address"`
	Attributes []string `toml:"attributes"`
	Locals     []Local  `toml:"locals"`
	Steps      []Step   `toml:"step"`
}

type Local struct {
	Name string `toml:"name"`
	Type string `toml:"type"`
}

// Step is one builder call. Which fields apply depends on Op.
type Step struct {
	Op     string   `toml:"op"`
	Dest   string   `toml:"dest"`
	Args   []string `toml:"args"`
	Type   string   `toml:"type"`
	Part   string   `toml:"part"`
	Round  string   `toml:"round"`
	Pack   string   `toml:"pack"`
	Flags  uint16   `toml:"flags"`
	Offset uint64   `toml:"offset"`
	Text   string   `toml:"text"`
}

// ParseFile reads and decodes a script file.
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f.Path = path
	return f, nil
}

// Parse decodes a script. Unknown keys and duplicate function names are
// errors.
func Parse(data []byte) (*File, error) {
	var f File
	meta, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&f)
	if err != nil {
		return nil, fmt.Errorf("parse TOML: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	seen := make(map[string]bool, len(f.Funcs))
	for i, fn := range f.Funcs {
		name := strings.TrimSpace(fn.Name)
		if name == "" {
			return nil, fmt.Errorf("func #%d has no name", i+1)
		}
		if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
			return nil, fmt.Errorf("func %q: name must not contain path separators or \"..\"", name)
		}
		if seen[name] {
			return nil, fmt.Errorf("func %q declared twice", name)
		}
		seen[name] = true
	}
	return &f, nil
}

// Declare adds every function of f to syms so calls between them resolve.
func (f *File) Declare(syms *symbol.Table) error {
	var errs []error
	for _, fn := range f.Funcs {
		if _, err := syms.Declare(fn.Name, fn.Address); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Callees returns the distinct symbol names the steps of fn reference, in
// first-use order and without the & prefix.
func (fn *Func) Callees() []string {
	var names []string
	for _, s := range fn.Steps {
		for _, arg := range s.Args {
			name, ok := strings.CutPrefix(arg, "&")
			if ok && name != "" && !slices.Contains(names, name) {
				names = append(names, name)
			}
		}
	}
	return names
}
