package network

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/hyperledger-archives/composer-sub008/internal/acl"
	"github.com/hyperledger-archives/composer-sub008/internal/compiler"
	"github.com/hyperledger-archives/composer-sub008/internal/ir"
	"github.com/hyperledger-archives/composer-sub008/internal/model"
	"github.com/hyperledger-archives/composer-sub008/internal/queryir"
	"github.com/hyperledger-archives/composer-sub008/internal/queryparse"
	"github.com/hyperledger-archives/composer-sub008/internal/script"
)

// Well-known files of a network directory.
const (
	MetadataFile    = "network.yaml"
	PermissionsFile = "permissions.cue"
	QueriesFile     = "queries.qry"
	ModelsDir       = "models"
	ScriptsDir      = "lib"
)

// archiveFilesKey holds the file map inside an archive.
const archiveFilesKey = "files"

// Definition is a parsed business network: metadata, models, ACL rules,
// scripts and queries. A Definition is immutable once parsed.
type Definition struct {
	Metadata ir.NetworkMetadata
	Models   *model.Manager
	ACL      *acl.Manager
	Scripts  *script.Manager
	Queries  *queryir.QueryManager

	files map[string]string
}

// Parse builds a Definition from network files keyed by slash-separated
// path relative to the network root. network.yaml is required; every
// other file is optional. Files outside the known layout are ignored.
func Parse(files map[string]string) (*Definition, error) {
	def := &Definition{files: maps.Clone(files)}

	src, ok := files[MetadataFile]
	if !ok {
		return nil, &LoadError{Code: ErrCodeNotFound, File: MetadataFile, Message: "network metadata is required"}
	}
	if err := yaml.Unmarshal([]byte(src), &def.Metadata); err != nil {
		return nil, &LoadError{Code: ErrCodeMetadata, File: MetadataFile, Message: err.Error()}
	}
	if def.Metadata.Name == "" || def.Metadata.Version == "" {
		return nil, &LoadError{Code: ErrCodeMetadata, File: MetadataFile, Message: "name and version are required"}
	}

	ctx := cuecontext.New()
	decls, err := compileModels(ctx, files)
	if err != nil {
		return nil, err
	}

	var rules []ir.AclRule
	if src, ok := files[PermissionsFile]; ok {
		v := ctx.CompileString(src, cue.Filename(PermissionsFile))
		if err := v.Err(); err != nil {
			return nil, cueError(ErrCodeBuildFailed, PermissionsFile, err)
		}
		if rules, err = compiler.CompileAclRules(v); err != nil {
			return nil, convertCompileError(err, PermissionsFile)
		}
	}

	if verrs := compiler.ValidateNetwork(decls, rules); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, ve := range verrs {
			errs[i] = ve
		}
		return nil, fmt.Errorf("network %s: %w", def.Metadata.Name, errors.Join(errs...))
	}

	def.Models = model.NewManager()
	if err := def.Models.AddDeclarations(decls...); err != nil {
		return nil, &LoadError{Code: ErrCodeGeneric, File: ModelsDir, Message: err.Error()}
	}
	def.ACL = acl.NewManager(def.Models)
	if err := def.ACL.AddRules(rules...); err != nil {
		return nil, &LoadError{Code: ErrCodeGeneric, File: PermissionsFile, Message: err.Error()}
	}

	def.Scripts = script.NewManager(def.Models)
	for _, name := range filesUnder(files, ScriptsDir, ".star") {
		if _, err := def.Scripts.CreateScript(name, files[name]); err != nil {
			return nil, err
		}
	}

	def.Queries = &queryir.QueryManager{}
	if src, ok := files[QueriesFile]; ok {
		if def.Queries.File, err = queryparse.ParseFile(QueriesFile, src); err != nil {
			return nil, err
		}
	}

	for name := range files {
		if !def.known(name) {
			slog.Debug("ignoring network file", "network", def.Metadata.Name, "file", name)
		}
	}

	slog.Debug("parsed business network",
		"name", def.Metadata.Name,
		"version", def.Metadata.Version,
		"classes", len(decls),
		"rules", len(rules),
		"scripts", len(def.Scripts.Scripts()),
		"queries", len(def.Queries.Queries()),
	)
	return def, nil
}

// compileModels compiles every model file on its own, so positions name
// the right file, and unifies the results.
func compileModels(ctx *cue.Context, files map[string]string) ([]ir.ClassDeclaration, error) {
	names := filesUnder(files, ModelsDir, ".cue")
	if len(names) == 0 {
		return nil, nil
	}
	var merged cue.Value
	for i, name := range names {
		v := ctx.CompileString(files[name], cue.Filename(name))
		if err := v.Err(); err != nil {
			return nil, cueError(ErrCodeBuildFailed, name, err)
		}
		if i == 0 {
			merged = v
			continue
		}
		merged = merged.Unify(v)
	}
	if err := merged.Validate(); err != nil {
		return nil, cueError(ErrCodeBuildFailed, ModelsDir, err)
	}
	decls, err := compiler.CompileModels(merged)
	if err != nil {
		return nil, convertCompileError(err, ModelsDir)
	}
	return decls, nil
}

// filesUnder returns the sorted names of files below dir with ext.
func filesUnder(files map[string]string, dir, ext string) []string {
	var names []string
	for name := range files {
		if strings.HasPrefix(name, dir+"/") && path.Ext(name) == ext {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

func (d *Definition) known(name string) bool {
	switch {
	case name == MetadataFile, name == PermissionsFile, name == QueriesFile:
		return true
	case strings.HasPrefix(name, ModelsDir+"/") && path.Ext(name) == ".cue":
		return true
	case strings.HasPrefix(name, ScriptsDir+"/") && path.Ext(name) == ".star":
		return true
	}
	return false
}

// Identifier returns "<name>@<version>".
func (d *Definition) Identifier() string {
	return d.Metadata.Name + "@" + d.Metadata.Version
}

// Files returns a copy of the source files.
func (d *Definition) Files() map[string]string {
	return maps.Clone(d.files)
}

// Archive returns the content-addressable form of the definition: every
// source file keyed by path.
func (d *Definition) Archive() ir.Object {
	files := make(ir.Object, len(d.files))
	for name, src := range d.files {
		files[name] = ir.String(src)
	}
	return ir.Object{archiveFilesKey: files}
}

// Hash returns the content hash of the archive.
func (d *Definition) Hash() (string, error) {
	return ir.NetworkHash(d.Archive())
}

// FromArchive parses a definition from the output of Archive.
func FromArchive(archive ir.Object) (*Definition, error) {
	obj, ok := archive[archiveFilesKey].(ir.Object)
	if !ok {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "archive has no files"}
	}
	files := make(map[string]string, len(obj))
	for name, v := range obj {
		s, ok := v.(ir.String)
		if !ok {
			return nil, &LoadError{Code: ErrCodeLoadFailed, File: name, Message: fmt.Sprintf("archive entry is %T, not a string", v)}
		}
		files[name] = string(s)
	}
	return Parse(files)
}

// Load reads a network directory and parses it.
func Load(dir string) (*Definition, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("network directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing network directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	files, err := readFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(files) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no network files found in %s", dir)}
	}
	return Parse(files)
}

// readFiles returns the contents of every network source file below dir.
func readFiles(dir string) (map[string]string, error) {
	files := make(map[string]string)
	err := filepath.WalkDir(dir, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		switch filepath.Ext(p) {
		case ".yaml", ".cue", ".star", ".qry":
		default:
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	return files, err
}
