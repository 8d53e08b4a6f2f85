package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"sort"

	"github.com/spf13/afero"

	"github.com/xting1996/seqpipe/internal/ctxlog"
	"github.com/xting1996/seqpipe/internal/pipefile"
)

var errEmptyCommand = errors.New("empty command line")

// argPattern matches procedure-call argument tokens: key=value where
// key follows [A-Za-z_][A-Za-z0-9_]*.
var argPattern = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)=(.*)$`)

// Pipeline is the aggregate in-memory program: the set of procedures,
// the append-only pool of blocks (index 0 is always the default
// top-level block), and the configuration variables accumulated from
// `NAME=VALUE` lines and included/sidecar configuration files.
type Pipeline struct {
	fs afero.Fs

	procs   map[string]*Procedure
	procPos map[string]string // procedure name -> "file(line)" of its definition

	blocks []*Block

	config map[string]string

	finalChecked bool
}

// New returns an empty Pipeline backed by fs, with block 0 (the
// default block) already present and empty.
func New(fs afero.Fs) *Pipeline {
	return &Pipeline{
		fs:      fs,
		procs:   make(map[string]*Procedure),
		procPos: make(map[string]string),
		blocks:  []*Block{{}},
		config:  make(map[string]string),
	}
}

// HasProcedure reports whether name is a defined procedure.
func (p *Pipeline) HasProcedure(name string) bool {
	_, ok := p.procs[name]
	return ok
}

// BlockCount returns the number of blocks in the pool.
func (p *Pipeline) BlockCount() int {
	return len(p.blocks)
}

// Block returns the block at index, or an error if index is out of
// range. Invariant 3 (spec §3) guarantees every procedure's index is
// valid, so callers resolving through a Procedure never see this
// error.
func (p *Pipeline) Block(index int) (*Block, error) {
	if index < 0 || index >= len(p.blocks) {
		return nil, fmt.Errorf("block index %d out of range [0,%d)", index, len(p.blocks))
	}

	return p.blocks[index], nil
}

// DefaultBlock returns block 0.
func (p *Pipeline) DefaultBlock() *Block {
	return p.blocks[0]
}

// HasAnyDefaultCommand reports whether the default block has any items.
func (p *Pipeline) HasAnyDefaultCommand() bool {
	return p.blocks[0].HasAnyCommand()
}

// ProcedureBlock resolves name to its block, or an error if no such
// procedure exists. This can only happen for a malformed pipeline;
// RunProc treats it as an internal error (spec §4.5).
func (p *Pipeline) ProcedureBlock(name string) (*Block, error) {
	proc, ok := p.procs[name]
	if !ok {
		return nil, fmt.Errorf("no such procedure %q", name)
	}

	return p.blocks[proc.BlockIndex], nil
}

// ProcedureNames returns the defined procedure names matching pattern
// (a regular expression), sorted for deterministic output. Ported from
// the original implementation's Pipeline::GetProcNameList, used by the
// out-of-scope help/completion collaborator.
func (p *Pipeline) ProcedureNames(pattern string) ([]string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid procedure name pattern %q: %w", pattern, err)
	}

	var names []string

	for name := range p.procs {
		if re.MatchString(name) {
			names = append(names, name)
		}
	}

	sort.Strings(names)

	return names, nil
}

// ConfigValue returns a configuration variable's value and whether it
// was set. The launcher does not consult these in the core (spec §9);
// they are opaque storage available to callers that want it.
func (p *Pipeline) ConfigValue(name string) (string, bool) {
	v, ok := p.config[name]
	return v, ok
}

// SetDefaultBlock replaces block 0's contents with freshly tokenized
// cmdLines and sets its parallel flag. Used by the out-of-scope CLI
// dispatcher for ad-hoc `seqpipe parallel <cmd>...` invocations.
func (p *Pipeline) SetDefaultBlock(cmdLines []string, parallel bool) error {
	block := &Block{Parallel: parallel}

	for _, line := range cmdLines {
		item, err := newShellItem(line)
		if err != nil {
			return fmt.Errorf("invalid command %q: %w", line, err)
		}

		block.Items = append(block.Items, item)
	}

	p.blocks[0] = block
	p.finalChecked = false

	return nil
}

// Load reads filename and populates the Pipeline: procedures are
// registered into the block pool, top-level command lines are
// appended to block 0, `include` directives pull in sidecar
// configuration, and `NAME=VALUE` lines are recorded as configuration
// variables. Load does not run FinalCheckAfterLoad; callers must call
// it explicitly once loading (and any further SetDefaultBlock calls)
// is complete.
func (p *Pipeline) Load(ctx context.Context, filename string) error {
	file, err := pipefile.Open(p.fs, filename)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := p.loadFile(ctx, file); err != nil {
		return err
	}

	confFilename := filename + ".conf"
	if sysinfoExists(p.fs, confFilename) {
		if err := p.loadConf(confFilename); err != nil {
			return err
		}
	}

	return nil
}

func sysinfoExists(fs afero.Fs, filename string) bool {
	info, err := fs.Stat(filename)
	return err == nil && !info.IsDir()
}

func (p *Pipeline) loadFile(ctx context.Context, file *pipefile.File) error {
	for file.ReadLine() {
		line := file.CurrentLine()

		if pipefile.IsEmptyLine(line) {
			continue
		}

		if pipefile.IsCommentLine(line) {
			if pipefile.IsAttrLine(line) {
				if !pipefile.ParseAttrLine(line) {
					ctxlog.Warn(ctx, "malformed attribute line", "pos", file.Pos())
				}
			}

			continue
		}

		if incName, ok := pipefile.IsIncLine(line); ok {
			incPath := path.Join(path.Dir(file.Filename()), incName)
			if err := p.loadConf(incPath); err != nil {
				return err
			}

			continue
		}

		if name, value, ok := pipefile.IsVarLine(line); ok {
			p.config[name] = value
			continue
		}

		if name, bracket, ok := pipefile.IsFuncLine(line); ok {
			if prevPos, dup := p.procPos[name]; dup {
				return fmt.Errorf("%s: duplicated procedure %q\n  previous definition of %q was at %s",
					file.Pos(), name, name, prevPos)
			}

			p.procPos[name] = file.Pos()

			if err := p.loadProc(file, name, bracket); err != nil {
				return err
			}

			continue
		}

		item, err := newShellItem(line)
		if err != nil {
			return fmt.Errorf("%s: %s", file.Pos(), err)
		}

		p.blocks[0].Items = append(p.blocks[0].Items, item)
	}

	return nil
}

// loadProc implements LoadProc: having just seen a procedure header
// for name (optionally carrying bracket), it locates the opening
// bracket if the header didn't carry one, reads the body with
// loadBlock, appends the resulting block to the pool, and binds name
// to its index.
func (p *Pipeline) loadProc(file *pipefile.File, name, bracket string) error {
	if bracket == "" {
		var err error

		bracket, err = p.readLeftBracket(file)
		if err != nil {
			return err
		}
	}

	block, err := p.loadBlock(file, bracket == "{{")
	if err != nil {
		return err
	}

	blockIndex := len(p.blocks)
	p.blocks = append(p.blocks, block)
	p.procs[name] = &Procedure{Name: name, BlockIndex: blockIndex}

	return nil
}

// readLeftBracket scans forward past empty/comment lines for a bare
// '{' or '{{' line, as required when a procedure header omitted its
// opening brace. An attribute-comment line in that gap is an error.
func (p *Pipeline) readLeftBracket(file *pipefile.File) (string, error) {
	for file.ReadLine() {
		line := file.CurrentLine()

		if pipefile.IsEmptyLine(line) {
			continue
		}

		if pipefile.IsCommentLine(line) {
			if pipefile.IsAttrLine(line) {
				return "", fmt.Errorf("%s: unexpected attribute line", file.Pos())
			}

			continue
		}

		if bracket, ok := pipefile.IsLeftBracket(line); ok {
			return bracket, nil
		}

		return "", fmt.Errorf("%s: unexpected line\n  only '{' or '{{' was expected here", file.Pos())
	}

	return "", fmt.Errorf("%s: unexpected end of file\n  only '{' or '{{' was expected here", file.Pos())
}

// loadBlock implements LoadBlock: reads lines until a right bracket
// matching parallel is found, appending every other line as a command
// item. Nested blocks are not supported by the grammar; a bare '{' or
// '{{' line inside a block body is a hard load error ("nested blocks
// are not supported").
func (p *Pipeline) loadBlock(file *pipefile.File, parallel bool) (*Block, error) {
	block := &Block{Parallel: parallel}

	for file.ReadLine() {
		line := file.CurrentLine()

		if right, ok := pipefile.IsRightBracket(line); ok {
			switch {
			case !parallel && right == "}}":
				return nil, fmt.Errorf("%s: unexpected right bracket\n  right bracket '}' was expected here", file.Pos())
			case parallel && right == "}":
				return nil, fmt.Errorf("%s: unexpected right bracket\n  right bracket '}}' was expected here", file.Pos())
			}

			return block, nil
		}

		if pipefile.IsEmptyLine(line) || pipefile.IsCommentLine(line) {
			continue
		}

		if _, ok := pipefile.IsLeftBracket(line); ok {
			return nil, fmt.Errorf("%s: nested blocks are not supported", file.Pos())
		}

		item, err := newShellItem(line)
		if err != nil {
			return nil, fmt.Errorf("%s: %s", file.Pos(), err)
		}

		block.Items = append(block.Items, item)
	}

	return nil, fmt.Errorf("%s: unexpected end of file while looking for closing bracket", file.Filename())
}

// FinalCheckAfterLoad implements the post-load resolution pass (spec
// §4.3): every shell item whose program name matches a known
// procedure name has its arguments reinterpreted as key=value pairs;
// if every argument matches, the item is rewritten in place as a
// procedure call. The pass is idempotent: a shell item that failed
// promotion on a previous call is still Shell and is retried
// harmlessly (the same arguments will fail the same way), and an item
// already promoted to Proc is skipped outright.
func (p *Pipeline) FinalCheckAfterLoad(ctx context.Context) error {
	for _, block := range p.blocks {
		for _, item := range block.Items {
			if item.Kind != Shell {
				continue
			}

			if !p.HasProcedure(item.ShellCmd) {
				continue
			}

			args := NewProcArgs()
			promoted := true

			for _, arg := range item.ShellArgs {
				m := argPattern.FindStringSubmatch(arg)
				if m == nil {
					promoted = false

					ctxlog.Warn(ctx, "shell item names a procedure but has a non key=value argument; leaving as shell",
						"proc", item.ShellCmd, "arg", arg)

					break
				}

				args.Add(m[1], m[2])
			}

			if !promoted {
				continue
			}

			item.Kind = Proc
			item.ProcName = item.ShellCmd
			item.Args = args
		}
	}

	p.finalChecked = true

	return nil
}

// Save renders the pipeline back to its canonical text form: each
// procedure as "NAME() {"/body/"}" (sorted by name for deterministic
// output — map iteration order is not guaranteed in Go, unlike the
// source's std::map), followed by a blank line and the default block
// if it has any commands.
func (p *Pipeline) Save(filename string) error {
	return afero.WriteFile(p.fs, filename, []byte(p.SaveString()), 0o644)
}

// SaveString renders the pipeline as Save would, without writing it.
func (p *Pipeline) SaveString() string {
	var b []byte

	names := make([]string, 0, len(p.procs))
	for name := range p.procs {
		names = append(names, name)
	}

	sort.Strings(names)

	for i, name := range names {
		if i > 0 {
			b = append(b, '\n')
		}

		proc := p.procs[name]
		block := p.blocks[proc.BlockIndex]

		openBr, closeBr := "{", "}"
		if block.Parallel {
			openBr, closeBr = "{{", "}}"
		}

		b = append(b, name...)
		b = append(b, "() "...)
		b = append(b, openBr...)
		b = append(b, '\n')

		for _, item := range block.Items {
			b = append(b, '\t')
			b = append(b, item.ToString()...)
			b = append(b, '\n')
		}

		b = append(b, closeBr...)
		b = append(b, '\n')
	}

	if p.blocks[0].HasAnyCommand() {
		if len(names) > 0 {
			b = append(b, '\n')
		}

		for _, item := range p.blocks[0].Items {
			b = append(b, item.ToString()...)
			b = append(b, '\n')
		}
	}

	return string(b)
}
