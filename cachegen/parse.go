// Package cachegen generates cache-aware wrappers for annotated methods.
//
// A method opts in with a directive in its doc comment:
//
//	//memocache:cached cache_time=10 cache_field_name=cache
//	func (b *Balances) Balance(ctx context.Context, address string) (uint64, error)
//
// For each such method the generator emits BalanceCached with the same
// parameters and results. It uses the first named, non-context parameter as the
// key and routes through b.cache.GetOrInsertWith. The policy is validated with
// cached.ParsePolicy, so the rules match the runtime wrapper exactly.
package cachegen

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/krisalay/memocache/cached"
)

// Directive marks a method for wrapper generation.
const Directive = "//memocache:cached"

// Suffix is appended to the method name to name the generated wrapper.
const Suffix = "Cached"

var ErrNoDirectives = errors.New("no " + Directive + " directives found")

// File is what the generator needs to know about one source file.
type File struct {
	Package string
	Methods []Method
	// Imports are the source imports referenced by the generated signatures.
	Imports []Import
}

type Import struct {
	Name string // explicit alias, empty if none
	Path string
}

// Method describes one annotated method.
type Method struct {
	Name      string
	Recv      string // receiver name used in the wrapper
	RecvType  string // e.g. "*Balances"
	Params    []Param
	Results   string // e.g. "(uint64, error)"
	ValueType string
	Key       string // wrapper parameter used as cache key
	Ctx       string // wrapper context parameter, empty if none
	Policy    cached.Policy
}

type Param struct {
	Name     string
	Type     string
	Variadic bool
}

// Forward renders the argument as passed on to the wrapped method.
func (p Param) Forward() string {
	if p.Variadic {
		return p.Name + "..."
	}
	return p.Name
}

// reserved names would shadow packages the generated code refers to.
var reserved = map[string]bool{"context": true, "time": true}

var versionElem = regexp.MustCompile(`^v[0-9]+$`)

// ParseFile parses src (anything go/parser accepts; nil reads filename) and
// collects the annotated methods. Any policy or signature problem is returned
// as a *cached.PolicyError and no File is produced.
func ParseFile(filename string, src any) (*File, error) {
	fset := token.NewFileSet()
	af, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}

	out := &File{Package: af.Name.Name}
	used := make(map[string]bool)
	ctxNames := importNames(af.Imports, "context")

	for _, decl := range af.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok || fd.Doc == nil {
			continue
		}

		opts, found := directiveOptions(fd.Doc)
		if !found {
			continue
		}

		target := fmt.Sprintf("%s: %s", fset.Position(fd.Pos()), fd.Name.Name)

		policy, err := cached.ParsePolicy(opts)
		if err != nil {
			var pe *cached.PolicyError
			if errors.As(err, &pe) {
				pe.Target = target
			}
			return nil, err
		}

		m, err := buildMethod(fd, policy, ctxNames, used)
		if err != nil {
			return nil, &cached.PolicyError{Target: target, Err: err}
		}

		out.Methods = append(out.Methods, m)
	}

	if len(out.Methods) == 0 {
		return nil, ErrNoDirectives
	}

	out.Imports = referencedImports(af.Imports, used)
	return out, nil
}

// directiveOptions returns the key=value options of the first directive in doc.
func directiveOptions(doc *ast.CommentGroup) (map[string]string, bool) {
	for _, c := range doc.List {
		rest, ok := strings.CutPrefix(c.Text, Directive)
		if !ok || (rest != "" && rest[0] != ' ' && rest[0] != '\t') {
			continue
		}

		opts := make(map[string]string)
		for _, field := range strings.Fields(rest) {
			k, v, _ := strings.Cut(field, "=")
			opts[k] = v
		}
		return opts, true
	}
	return nil, false
}

func buildMethod(fd *ast.FuncDecl, policy cached.Policy, ctxNames map[string]bool, used map[string]bool) (Method, error) {
	if fd.Recv == nil || len(fd.Recv.List) != 1 {
		return Method{}, fmt.Errorf("%w: %s has no receiver", cached.ErrUnsupportedSignature, fd.Name.Name)
	}

	m := Method{
		Name:     fd.Name.Name,
		RecvType: types.ExprString(fd.Recv.List[0].Type),
		Policy:   policy,
	}

	value, err := valueType(fd.Type.Results)
	if err != nil {
		return Method{}, err
	}
	m.ValueType = value
	m.Results = fmt.Sprintf("(%s, error)", value)

	// names the source already gives its parameters; synthesized names avoid them
	taken := make(map[string]bool)
	for _, field := range fd.Type.Params.List {
		for _, ident := range field.Names {
			if usable(ident) {
				taken[ident.Name] = true
			}
		}
	}

	i := 0
	for _, field := range fd.Type.Params.List {
		typ := field.Type
		variadic := false
		if ell, ok := typ.(*ast.Ellipsis); ok {
			typ = ell.Elt
			variadic = true
		}

		isCtx := isContext(typ, ctxNames)
		typeStr := types.ExprString(typ)
		if isCtx {
			// the generated file imports "context" under its own name
			typeStr = "context.Context"
		} else {
			collectPackages(typ, used)
		}

		names := field.Names
		if len(names) == 0 {
			names = []*ast.Ident{nil}
		}

		for _, ident := range names {
			bound := ident != nil && ident.Name != "_"
			var name string
			if usable(ident) {
				name = ident.Name
			} else {
				name = freshName(fmt.Sprintf("arg%d", i), taken)
			}
			i++

			m.Params = append(m.Params, Param{Name: name, Type: typeStr, Variadic: variadic})

			switch {
			case isCtx && m.Ctx == "":
				m.Ctx = name
			case !isCtx && bound && !variadic && m.Key == "":
				m.Key = name
			}
		}
	}

	if m.Key == "" {
		return Method{}, fmt.Errorf("%w in %s", cached.ErrNoKeyParameter, fd.Name.Name)
	}

	if names := fd.Recv.List[0].Names; len(names) == 1 && usable(names[0]) && !taken[names[0].Name] {
		m.Recv = names[0].Name
	} else {
		m.Recv = freshName("recv", taken)
	}

	collectPackages(fd.Type.Results, used)
	return m, nil
}

// usable reports whether a source identifier can be kept in the wrapper.
func usable(ident *ast.Ident) bool {
	return ident != nil && ident.Name != "_" && !reserved[ident.Name]
}

// freshName returns base, or base with a numeric suffix, whichever is not taken yet,
// and marks it taken.
func freshName(base string, taken map[string]bool) string {
	name := base
	for n := 1; taken[name]; n++ {
		name = fmt.Sprintf("%s_%d", base, n)
	}
	taken[name] = true
	return name
}

// valueType checks the results are (V, error) and returns V.
func valueType(results *ast.FieldList) (string, error) {
	var fields []ast.Expr
	if results != nil {
		for _, f := range results.List {
			n := len(f.Names)
			if n == 0 {
				n = 1
			}
			for j := 0; j < n; j++ {
				fields = append(fields, f.Type)
			}
		}
	}

	if len(fields) != 2 {
		return "", fmt.Errorf("%w: got %d results", cached.ErrUnsupportedSignature, len(fields))
	}
	if id, ok := fields[1].(*ast.Ident); !ok || id.Name != "error" {
		return "", fmt.Errorf("%w: last result must be error", cached.ErrUnsupportedSignature)
	}
	return types.ExprString(fields[0]), nil
}

// isContext reports whether expr is context.Context under any of the names
// the source imports "context" as.
func isContext(expr ast.Expr, ctxNames map[string]bool) bool {
	sel, ok := expr.(*ast.SelectorExpr)
	if !ok {
		return false
	}
	pkg, ok := sel.X.(*ast.Ident)
	return ok && ctxNames[pkg.Name] && sel.Sel.Name == "Context"
}

// importNames returns the local names under which specs import importPath.
func importNames(specs []*ast.ImportSpec, importPath string) map[string]bool {
	names := make(map[string]bool)
	for _, spec := range specs {
		p, err := strconv.Unquote(spec.Path.Value)
		if err != nil || p != importPath {
			continue
		}
		switch {
		case spec.Name == nil:
			names[localName(p)] = true
		case spec.Name.Name != "_" && spec.Name.Name != ".":
			names[spec.Name.Name] = true
		}
	}
	return names
}

// collectPackages records the package qualifiers used in a signature.
func collectPackages(node ast.Node, used map[string]bool) {
	ast.Inspect(node, func(n ast.Node) bool {
		if sel, ok := n.(*ast.SelectorExpr); ok {
			if id, ok := sel.X.(*ast.Ident); ok {
				used[id.Name] = true
			}
		}
		return true
	})
}

func referencedImports(specs []*ast.ImportSpec, used map[string]bool) []Import {
	var out []Import
	for _, spec := range specs {
		p, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}
		// the generated file always imports these under their own names;
		// only an alias needs a second import
		if (p == "context" || p == "time") && (spec.Name == nil || spec.Name.Name == p) {
			continue
		}

		imp := Import{Path: p}
		name := localName(p)
		if spec.Name != nil {
			imp.Name = spec.Name.Name
			name = spec.Name.Name
		}
		if used[name] {
			out = append(out, imp)
		}
	}
	return out
}

// localName guesses the package name of an import path: its last element,
// skipping a major version suffix.
func localName(importPath string) string {
	base := path.Base(importPath)
	if versionElem.MatchString(base) {
		base = path.Base(path.Dir(importPath))
	}
	return strings.ReplaceAll(base, "-", "_")
}
