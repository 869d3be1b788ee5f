// Package compiler wires the whole pipeline together: lexer -> parser ->
// semantic analyzer -> code generator -> bytecode emitter -> VM, the way
// the teacher's interp.Interpreter wires scanner -> parser -> genRun behind
// one Options-configured struct (DESIGN.md).
package compiler

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/axlang/ax/internal/ast"
	"github.com/axlang/ax/internal/bytecode"
	"github.com/axlang/ax/internal/codegen"
	"github.com/axlang/ax/internal/diag"
	"github.com/axlang/ax/internal/lexer"
	"github.com/axlang/ax/internal/parser"
	"github.com/axlang/ax/internal/runtime"
	"github.com/axlang/ax/internal/sema"
	"github.com/axlang/ax/internal/vm"
)

// Options mirrors the teacher's interp.Options: pluggable stdio, a
// replaceable source filesystem, and a handful of env-var-driven debug
// toggles read once at construction (matching the teacher's own
// YAEGI_AST_DOT/YAEGI_NO_RUN/YAEGI_FAST_CHAN pattern in interp.New).
type Options struct {
	Stdin          io.Reader
	Stdout, Stderr io.Writer

	// Args are the script's own argv, available to a future Process/Args
	// binding; unused by the pipeline itself today.
	Args []string

	// SourceFilesystem, if set, backs every source and import read instead
	// of the host filesystem (mirrors interp.Options.SourcecodeFilesystem).
	SourceFilesystem fs.FS

	// ImportPaths are extra search roots consulted, in order, when an
	// import's directly resolved path can't be read - analogous in spirit
	// to GOPATH search order, narrowed to this module's single-file-per-
	// import model.
	ImportPaths []string
}

// Compiler is the top-level pipeline driver.
type Compiler struct {
	opt Options

	astDot  bool
	noRun   bool
	gcTrace bool
}

// New constructs a Compiler, defaulting unset stdio to the process's own
// and reading the AX_AST_DOT/AX_NO_RUN/AX_GC_TRACE toggles from the
// environment exactly once.
func New(options Options) *Compiler {
	if options.Stdin == nil {
		options.Stdin = os.Stdin
	}
	if options.Stdout == nil {
		options.Stdout = os.Stdout
	}
	if options.Stderr == nil {
		options.Stderr = os.Stderr
	}
	c := &Compiler{opt: options}

	// astDot dumps the parsed module tree to Stderr before analysis runs.
	c.astDot, _ = strconv.ParseBool(os.Getenv("AX_AST_DOT"))

	// noRun compiles (through codegen) but never hands the result to the VM.
	c.noRun, _ = strconv.ParseBool(os.Getenv("AX_NO_RUN"))

	// gcTrace logs each collection cycle's live/freed counts to Stderr.
	c.gcTrace, _ = strconv.ParseBool(os.Getenv("AX_GC_TRACE"))

	return c
}

// readFile honors SourceFilesystem when set, falling back to the host
// filesystem otherwise.
func (c *Compiler) readFile(path string) ([]byte, error) {
	if c.opt.SourceFilesystem != nil {
		return fs.ReadFile(c.opt.SourceFilesystem, path)
	}
	return os.ReadFile(path)
}

// fileLoader implements sema.Loader against the Compiler's configured
// filesystem, falling back to ImportPaths search roots when the directly
// resolved path can't be read.
type fileLoader struct {
	c *Compiler
}

func (fl fileLoader) Load(resolvedPath string) ([]byte, error) {
	data, err := fl.c.readFile(resolvedPath)
	if err == nil {
		return data, nil
	}
	base := filepath.Base(resolvedPath)
	for _, root := range fl.c.opt.ImportPaths {
		if data, altErr := fl.c.readFile(filepath.Join(root, base)); altErr == nil {
			return data, nil
		}
	}
	return nil, err
}

// parseSource implements sema.ParseFunc: lex, then parse, collecting
// diagnostics from both stages in emission order.
func parseSource(src []byte, file string) (*ast.Node, []*diag.Diagnostic) {
	lx := lexer.New(src, file)
	toks := lx.Tokenize()
	p := parser.New(toks)
	mod := p.Parse()

	var diags []*diag.Diagnostic
	diags = append(diags, lx.Diags.All()...)
	diags = append(diags, p.Diags.All()...)
	return mod, diags
}

// Compile runs every phase through code generation and returns the
// resulting instruction stream, or nil (with the accumulated diagnostics)
// if a fatal diagnostic stopped the pipeline before codegen (spec.md §7:
// "the code generator refuses to run if any fatal diagnostic exists").
func (c *Compiler) Compile(path string) (*bytecode.Stream, []*diag.Diagnostic, error) {
	src, err := c.readFile(path)
	if err != nil {
		return nil, nil, err
	}
	return c.compileSource(src, path)
}

// CompileSource runs the same pipeline as Compile but against an
// in-memory buffer rather than a file read from disk; path still
// anchors relative import resolution (sema.Analyzer.resolvePath joins
// against its directory) and diagnostic locations. Any imports the
// source references are still loaded through the configured filesystem.
func (c *Compiler) CompileSource(src []byte, path string) (*bytecode.Stream, []*diag.Diagnostic, error) {
	return c.compileSource(src, path)
}

func (c *Compiler) compileSource(src []byte, path string) (*bytecode.Stream, []*diag.Diagnostic, error) {
	mod, parseDiags := parseSource(src, path)
	var bag diag.Bag
	for _, d := range parseDiags {
		bag.Add(d.Kind, d.Severity, d.Loc, d.Detail)
	}
	if bag.HasFatal() {
		return nil, bag.All(), nil
	}

	if c.astDot {
		dumpAST(c.opt.Stderr, mod)
	}

	analyzer := sema.New(fileLoader{c: c}, parseSource)
	analyzer.AnalyzeModule(mod, path)

	all := append(bag.All(), analyzer.Diags.All()...)
	if analyzer.Diags.HasFatal() {
		return nil, all, nil
	}

	stream := codegen.Generate(mod, path, analyzer.ResolvedModules())
	return stream, all, nil
}

// CompileToFile compiles path and writes the serialized bytecode image to
// outPath (spec.md §6's file layout, via bytecode.Emit).
func (c *Compiler) CompileToFile(path, outPath string) ([]*diag.Diagnostic, error) {
	stream, diags, err := c.Compile(path)
	if err != nil || stream == nil {
		return diags, err
	}
	f, err := os.Create(outPath)
	if err != nil {
		return diags, err
	}
	defer f.Close()
	return diags, bytecode.Emit(f, stream)
}

// Run compiles path in-memory and executes it immediately, unless AX_NO_RUN
// is set, in which case compilation still happens (and its diagnostics are
// still returned) but the VM never runs.
func (c *Compiler) Run(path string) ([]*diag.Diagnostic, error) {
	stream, diags, err := c.Compile(path)
	return c.runStream(stream, diags, err)
}

// RunSource is CompileSource followed immediately by execution, the entry
// point golden-file tests use to drive a scenario straight from an
// in-memory source buffer.
func (c *Compiler) RunSource(src []byte, path string) ([]*diag.Diagnostic, error) {
	stream, diags, err := c.CompileSource(src, path)
	return c.runStream(stream, diags, err)
}

func (c *Compiler) runStream(stream *bytecode.Stream, diags []*diag.Diagnostic, err error) ([]*diag.Diagnostic, error) {
	if err != nil || stream == nil || c.noRun {
		return diags, err
	}
	data, err := bytecode.EmitToBytes(stream)
	if err != nil {
		return diags, err
	}
	bs, err := bytecode.NewValidatedStream(data)
	if err != nil {
		return diags, err
	}
	return diags, c.exec(bs)
}

// RunBytecode executes an already-compiled .ac image from disk, the path a
// script takes when handed bytecode directly instead of source.
func (c *Compiler) RunBytecode(path string) error {
	bs, err := bytecode.NewFileStream(path)
	if err != nil {
		return err
	}
	return c.exec(bs)
}

func (c *Compiler) exec(bs bytecode.ByteStream) error {
	reg := runtime.Registry(c.opt.Stdout, c.opt.Stdin)
	machine := vm.New(bs, reg, c.opt.Stdout, c.opt.Stdin)
	if c.gcTrace {
		machine.GCTrace = c.opt.Stderr
	}
	return machine.Run()
}
