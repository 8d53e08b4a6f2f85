// Package pipeline implements seqpipe's in-memory program
// representation and the recursive, bracket-delimited loader that
// builds it from a pipe-file: procedures, the indexed block pool, and
// the post-load pass that resolves shell-to-procedure calls.
package pipeline

import (
	"strings"

	"github.com/xting1996/seqpipe/internal/shellquote"
)

// ProcArgs is an insertion-ordered key/value map. It mirrors the
// original implementation's ProcArgs class: map semantics for lookup,
// but the source's argument order is preserved for display and for
// environment-variable export order.
type ProcArgs struct {
	values map[string]string
	order  []string
}

// NewProcArgs returns an empty ProcArgs.
func NewProcArgs() *ProcArgs {
	return &ProcArgs{values: make(map[string]string)}
}

// Add records key=value, appending key to the insertion order unless
// it is already present (a repeated key updates its value in place).
func (a *ProcArgs) Add(key, value string) {
	if _, exists := a.values[key]; !exists {
		a.order = append(a.order, key)
	}

	a.values[key] = value
}

// Has reports whether key was set.
func (a *ProcArgs) Has(key string) bool {
	_, ok := a.values[key]
	return ok
}

// Get returns the value for key, or "" if unset.
func (a *ProcArgs) Get(key string) string {
	return a.values[key]
}

// IsEmpty reports whether no arguments were set.
func (a *ProcArgs) IsEmpty() bool {
	return len(a.order) == 0
}

// Keys returns the argument names in insertion order.
func (a *ProcArgs) Keys() []string {
	return a.order
}

// Clear removes all arguments.
func (a *ProcArgs) Clear() {
	a.values = make(map[string]string)
	a.order = nil
}

// String renders "key=value key=value ..." in insertion order, with
// each value shell-quoted.
func (a *ProcArgs) String() string {
	var b strings.Builder

	for i, k := range a.order {
		if i > 0 {
			b.WriteByte(' ')
		}

		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(shellquote.Encode(a.values[k]))
	}

	return b.String()
}

// CommandKind tags the three shapes a CommandItem can take.
type CommandKind int

const (
	// Shell is a plain shell command line.
	Shell CommandKind = iota
	// Proc is a call to a named procedure with key/value arguments.
	Proc
	// BlockRef inlines a nested block by its index in the pool.
	BlockRef
)

func (k CommandKind) String() string {
	switch k {
	case Shell:
		return "shell"
	case Proc:
		return "proc"
	case BlockRef:
		return "block"
	default:
		return "unknown"
	}
}

// CommandItem is one entry in a Block: a shell invocation, a
// procedure call, or a reference to a nested block. Shell-to-procedure
// promotion (FinalCheckAfterLoad) mutates Kind, ProcName and Args
// in place on an item that started out as Shell.
type CommandItem struct {
	// Name is an optional symbolic label used for display; it is not
	// part of the load grammar and is empty for ordinary command lines.
	Name string

	Kind CommandKind

	// Shell attributes.
	CmdLine   string
	ShellCmd  string
	ShellArgs []string

	// Proc attributes.
	ProcName string
	Args     *ProcArgs

	// BlockRef attributes.
	BlockIndex int
}

// newShellItem tokenizes line into a Shell CommandItem.
func newShellItem(line string) (*CommandItem, error) {
	tokens, err := tokenize(line)
	if err != nil {
		return nil, err
	}

	if len(tokens) == 0 {
		return nil, errEmptyCommand
	}

	return &CommandItem{
		Kind:      Shell,
		CmdLine:   strings.TrimSpace(line),
		ShellCmd:  tokens[0],
		ShellArgs: tokens[1:],
	}, nil
}

// ToString renders the item the way Pipeline.Save emits it: the
// original command line for a shell item, or "name key=value ..." for
// a procedure call.
func (c *CommandItem) ToString() string {
	switch c.Kind {
	case Shell:
		return c.CmdLine
	case Proc:
		if c.Args == nil || c.Args.IsEmpty() {
			return c.ProcName
		}

		return c.ProcName + " " + c.Args.String()
	case BlockRef:
		return ""
	default:
		return ""
	}
}

// Block is an ordered sequence of command items plus a parallel flag.
// Blocks are owned by the Pipeline's block pool and referenced only by
// index, never by pointer, so the pool can grow without invalidating
// existing references.
type Block struct {
	Items    []*CommandItem
	Parallel bool
}

// HasAnyCommand reports whether the block has at least one item.
func (b *Block) HasAnyCommand() bool {
	return len(b.Items) > 0
}

// Procedure binds a name to a block index.
type Procedure struct {
	Name       string
	BlockIndex int
}
