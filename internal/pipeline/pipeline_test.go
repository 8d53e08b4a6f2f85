package pipeline

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xting1996/seqpipe/internal/ctxlog"
)

func newTestContext() context.Context {
	return ctxlog.New(context.Background(), ctxlog.DefaultLogger)
}

// Invariant 1 (spec §8): FinalCheckAfterLoad is idempotent.
func TestFinalCheckAfterLoad_Idempotent(t *testing.T) {
	fs := afero.NewMemMapFs()
	const src = `
build() {
	echo "building $name with $opts"
}

build name=pkg opts=-O2
`
	require.NoError(t, afero.WriteFile(fs, "test.pipe", []byte(src), 0o644))

	p := New(fs)
	ctx := newTestContext()
	require.NoError(t, p.Load(ctx, "test.pipe"))
	require.NoError(t, p.FinalCheckAfterLoad(ctx))

	first := p.SaveString()

	require.NoError(t, p.FinalCheckAfterLoad(ctx))
	assert.Equal(t, first, p.SaveString(), "a second FinalCheckAfterLoad call must change nothing")
}

// Invariant 2 (spec §8): Save(Load(f)) then Load of the output yields
// a structurally equal pipeline (modulo comments, which are not
// preserved).
func TestSaveThenLoad_RoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	const src = `
greet() {
	echo hello
	echo world
}

work() {{
	sleep 0.1
	echo done
}}

greet
`
	require.NoError(t, afero.WriteFile(fs, "test.pipe", []byte(src), 0o644))

	p := New(fs)
	ctx := newTestContext()
	require.NoError(t, p.Load(ctx, "test.pipe"))
	require.NoError(t, p.FinalCheckAfterLoad(ctx))

	require.NoError(t, p.Save("roundtrip.pipe"))

	p2 := New(fs)
	require.NoError(t, p2.Load(ctx, "roundtrip.pipe"))
	require.NoError(t, p2.FinalCheckAfterLoad(ctx))

	assert.Equal(t, p.SaveString(), p2.SaveString(), "re-saving the round-tripped pipeline must be byte-identical")

	for _, name := range []string{"greet", "work"} {
		assert.Equal(t, p.HasProcedure(name), p2.HasProcedure(name))

		block1, err := p.ProcedureBlock(name)
		require.NoError(t, err)
		block2, err := p2.ProcedureBlock(name)
		require.NoError(t, err)

		assert.Equal(t, block1.Parallel, block2.Parallel)
		require.Len(t, block2.Items, len(block1.Items))

		for i := range block1.Items {
			assert.Equal(t, block1.Items[i].ToString(), block2.Items[i].ToString())
		}
	}
}

// Invariant 3 (spec §8): for every procedure P, procList[P].blockIndex
// < len(blockList).
func TestLoad_EveryProcedureBlockIndexInRange(t *testing.T) {
	fs := afero.NewMemMapFs()
	const src = `
one() {
	echo 1
}

two() {{
	echo 2
}}
`
	require.NoError(t, afero.WriteFile(fs, "test.pipe", []byte(src), 0o644))

	p := New(fs)
	ctx := newTestContext()
	require.NoError(t, p.Load(ctx, "test.pipe"))

	require.Len(t, p.procs, 2)

	for name, proc := range p.procs {
		assert.Less(t, proc.BlockIndex, len(p.blocks), "procedure %q has an out-of-range block index", name)
	}
}

// Invariant 4 (spec §8): for every shell item after resolution,
// shellCmd is not a known procedure name.
func TestFinalCheckAfterLoad_NoPromotableShellItemsRemain(t *testing.T) {
	fs := afero.NewMemMapFs()
	const src = `
build() {
	echo "building $name"
}

build name=pkg
`
	require.NoError(t, afero.WriteFile(fs, "test.pipe", []byte(src), 0o644))

	p := New(fs)
	ctx := newTestContext()
	require.NoError(t, p.Load(ctx, "test.pipe"))
	require.NoError(t, p.FinalCheckAfterLoad(ctx))

	for _, block := range p.blocks {
		for _, item := range block.Items {
			if item.Kind == Shell {
				assert.False(t, p.HasProcedure(item.ShellCmd),
					"shell item %q still names a known procedure after resolution", item.ShellCmd)
			}
		}
	}
}

// Scenario 4 (spec §8): shell-to-proc promotion.
func TestFinalCheckAfterLoad_PromotesShellToProcCall(t *testing.T) {
	fs := afero.NewMemMapFs()
	const src = `
build() {
	echo "building $name with $opts"
}

build name=pkg opts=-O2
`
	require.NoError(t, afero.WriteFile(fs, "test.pipe", []byte(src), 0o644))

	p := New(fs)
	ctx := newTestContext()
	require.NoError(t, p.Load(ctx, "test.pipe"))
	require.NoError(t, p.FinalCheckAfterLoad(ctx))

	require.Len(t, p.blocks[0].Items, 1)

	item := p.blocks[0].Items[0]
	require.Equal(t, Proc, item.Kind)
	assert.Equal(t, "build", item.ProcName)
	assert.Equal(t, "pkg", item.Args.Get("name"))
	assert.Equal(t, "-O2", item.Args.Get("opts"))
}

// A non key=value argument leaves the item as a shell call (the
// documented open-question decision: stay permissive, warn instead of
// failing the load).
func TestFinalCheckAfterLoad_NonKeyValueArgumentStaysShell(t *testing.T) {
	fs := afero.NewMemMapFs()
	const src = `
build() {
	echo building
}

build justaword
`
	require.NoError(t, afero.WriteFile(fs, "test.pipe", []byte(src), 0o644))

	p := New(fs)
	ctx := newTestContext()
	require.NoError(t, p.Load(ctx, "test.pipe"))
	require.NoError(t, p.FinalCheckAfterLoad(ctx))

	require.Len(t, p.blocks[0].Items, 1)
	assert.Equal(t, Shell, p.blocks[0].Items[0].Kind)
}

// Scenario 6 (spec §8): duplicate procedure is a hard load error
// citing both definition lines.
func TestLoad_DuplicateProcedureIsHardError(t *testing.T) {
	fs := afero.NewMemMapFs()
	const src = `f() {
	echo one
}
f() {
	echo two
}
`
	require.NoError(t, afero.WriteFile(fs, "test.pipe", []byte(src), 0o644))

	p := New(fs)
	ctx := newTestContext()

	err := p.Load(ctx, "test.pipe")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicated procedure")
	assert.Contains(t, err.Error(), "test.pipe(4)", "the second header is where the duplicate is detected")
	assert.Contains(t, err.Error(), "test.pipe(1)", "the diagnostic also cites the first definition's line")
}

// Scenario 5 (spec §8): bracket mismatch is a hard load error naming
// the offending line and the bracket that was expected.
func TestLoad_BracketMismatchIsHardError(t *testing.T) {
	fs := afero.NewMemMapFs()
	const src = `f() {
	echo x
}}
`
	require.NoError(t, afero.WriteFile(fs, "test.pipe", []byte(src), 0o644))

	p := New(fs)
	ctx := newTestContext()

	err := p.Load(ctx, "test.pipe")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test.pipe(3)")
	assert.Contains(t, err.Error(), "'}' was expected")
}

// Nested include (spec §9's pinned decision): an include-d
// configuration file that itself carries an `include` line is a hard
// load error, not silently accepted or misreported by go-ini.
func TestLoad_NestedIncludeIsHardError(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "test.pipe", []byte("include sidecar.conf\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "sidecar.conf", []byte("FOO=bar\ninclude other.conf\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "other.conf", []byte("BAZ=qux\n"), 0o644))

	p := New(fs)
	ctx := newTestContext()

	err := p.Load(ctx, "test.pipe")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sidecar.conf(2)")
	assert.Contains(t, err.Error(), `nested include of "other.conf" is not permitted`)
}

func TestLoad_IncludeWithoutNestingSucceeds(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "test.pipe", []byte("include sidecar.conf\necho hi\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "sidecar.conf", []byte("FOO=bar\n"), 0o644))

	p := New(fs)
	ctx := newTestContext()
	require.NoError(t, p.Load(ctx, "test.pipe"))

	v, ok := p.ConfigValue("FOO")
	require.True(t, ok)
	assert.Equal(t, "bar", v)
}

func TestTokenize_SingleQuotesPreserveContentLiterally(t *testing.T) {
	tokens, err := tokenize(`echo 'a b $c "d"'`)
	require.NoError(t, err)
	assert.Equal(t, []string{"echo", `a b $c "d"`}, tokens)
}

func TestTokenize_DoubleQuotesAllowEscapes(t *testing.T) {
	tokens, err := tokenize(`echo "say \"hi\" and \\ok"`)
	require.NoError(t, err)
	assert.Equal(t, []string{"echo", `say "hi" and \ok`}, tokens)
}

func TestTokenize_UnterminatedSingleQuoteIsError(t *testing.T) {
	_, err := tokenize(`echo 'unterminated`)
	require.Error(t, err)
}

func TestTokenize_UnterminatedDoubleQuoteIsError(t *testing.T) {
	_, err := tokenize(`echo "unterminated`)
	require.Error(t, err)
}

func TestTokenize_EmptyLineIsNoTokens(t *testing.T) {
	tokens, err := tokenize("   ")
	require.NoError(t, err)
	assert.Empty(t, tokens)
}

func TestSetDefaultBlock_RejectsUnterminatedQuoting(t *testing.T) {
	p := New(afero.NewMemMapFs())

	err := p.SetDefaultBlock([]string{"echo 'unterminated"}, false)
	require.Error(t, err)
}
