// Package sysinfo provides the small set of host and filesystem
// predicates seqpipe's loader and run-log manager need: hostname, the
// process's full command line, and the exists/directory/executable/
// text predicates used to decide whether something looks like a
// pipeline file.
package sysinfo

import (
	"bytes"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/spf13/afero"
)

// osHostname is a seam over os.Hostname so tests can stub the error
// path with gostub without actually renaming the host.
var osHostname = os.Hostname

// Hostname returns the local hostname, or "unknown" if it cannot be
// determined.
func Hostname() string {
	name, err := osHostname()
	if err != nil {
		return "unknown"
	}

	return name
}

// FullCommandLine reconstructs the process's command line as invoked,
// joining os.Args with spaces. It does not attempt to re-quote
// arguments; it is used for display in sysinfo.txt and the history
// log, not for re-execution.
func FullCommandLine() string {
	return strings.Join(os.Args, " ")
}

// CheckFileExists reports whether path exists and is a regular file
// (or at least not a directory).
func CheckFileExists(fs afero.Fs, path string) bool {
	info, err := fs.Stat(path)
	if err != nil {
		return false
	}

	return !info.IsDir()
}

// CheckDirectoryExists reports whether path exists and is a directory.
func CheckDirectoryExists(fs afero.Fs, path string) bool {
	info, err := fs.Stat(path)
	if err != nil {
		return false
	}

	return info.IsDir()
}

// IsExecutable reports whether path exists and any of its permission
// bits grant execute access.
func IsExecutable(fs afero.Fs, path string) bool {
	info, err := fs.Stat(path)
	if err != nil {
		return false
	}

	return info.Mode()&0o111 != 0
}

// sniffLen is how many leading bytes IsTextFile inspects.
const sniffLen = 512

// IsTextFile reports whether the file at path looks like text: it
// contains no NUL bytes in its first 512 bytes and decodes as valid
// UTF-8.
func IsTextFile(fs afero.Fs, path string) bool {
	f, err := fs.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, sniffLen)

	n, _ := f.Read(buf)
	buf = buf[:n]

	if bytes.IndexByte(buf, 0) != -1 {
		return false
	}

	return utf8.Valid(buf)
}

// LooksLikePipeFile reports whether path is the kind of file seqpipe's
// CLI dispatcher should attempt to load as a pipeline: it exists, is
// not itself an executable, and looks like text. Ported from the
// original implementation's Pipeline::CheckIfPipeFile.
func LooksLikePipeFile(fs afero.Fs, path string) bool {
	if !CheckFileExists(fs, path) {
		return false
	}

	if IsExecutable(fs, path) {
		return false
	}

	return IsTextFile(fs, path)
}
