package pipeline

import (
	"bufio"
	"bytes"
	"fmt"

	"github.com/go-ini/ini"
	"github.com/spf13/afero"

	"github.com/xting1996/seqpipe/internal/pipefile"
)

// loadConf implements the restricted "configuration file" grammar
// (spec §6): only empty lines, comments, and NAME=VALUE lines. It is
// used both for the `include <filename>` directive and for the
// sidecar `<pipeline>.conf` file. go-ini's default (section-less)
// section accepts this grammar natively; any other non-trivial line
// surfaces as an unparsable section, which is rejected as a hard
// error per spec §7.
//
// A configuration file reached this way is itself forbidden from
// carrying an `include` line (spec §9's nested-include decision); that
// grammar isn't go-ini's to reject, so it is scanned for up front.
func (p *Pipeline) loadConf(filename string) error {
	data, err := afero.ReadFile(p.fs, filename)
	if err != nil {
		return fmt.Errorf("%s: %w", filename, err)
	}

	if pos, incName, ok := findIncludeLine(filename, data); ok {
		return fmt.Errorf("%s: nested include of %q is not permitted", pos, incName)
	}

	opts := ini.LoadOptions{
		IgnoreInlineComment: true,
	}

	cfg, err := ini.LoadSources(opts, data)
	if err != nil {
		return fmt.Errorf("%s: invalid syntax in configuration file: %w", filename, err)
	}

	for _, section := range cfg.Sections() {
		if section.Name() != ini.DefaultSection {
			return fmt.Errorf("%s: invalid syntax of configuration file\n"+
				"  only global variable definitions could be included in a configuration file", filename)
		}

		for _, key := range section.Keys() {
			p.config[key.Name()] = key.Value()
		}
	}

	return nil
}

// findIncludeLine scans a configuration file's raw text for an
// `include` directive, returning its diagnostic position in the same
// "filename(lineno)" form pipefile.File.Pos produces.
func findIncludeLine(filename string, data []byte) (pos, name string, found bool) {
	scanner := bufio.NewScanner(bytes.NewReader(data))

	lineNo := 0

	for scanner.Scan() {
		lineNo++

		if incName, ok := pipefile.IsIncLine(scanner.Text()); ok {
			return fmt.Sprintf("%s(%d)", filename, lineNo), incName, true
		}
	}

	return "", "", false
}
