// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	md2man "github.com/cpuguy83/go-md2man/v2/md2man"
)

// docgen reads docs/commands/*.md and writes, for each command:
//   - docs/man/share/man1/<prog>-<cmd>.1 rendered with md2man
//   - docs/tldr/<prog>-<cmd>.md from the Short description and Quick examples

const (
	defaultProg = "geocache"
	projectURL  = "https://github.com/staranto/geocache"
)

type page struct {
	prog     string
	cmd      string
	title    string
	short    string
	examples []example
}

type example struct {
	Desc string
	Cmd  string
}

func main() {
	var (
		repoRoot      string
		prog          string
		onlyIfChanged bool
	)

	flag.StringVar(&repoRoot, "root", ".", "repo root")
	flag.StringVar(&prog, "prog", defaultProg, "program name used in page names")
	flag.BoolVar(&onlyIfChanged, "only-if-changed", true, "only write files if content changed")
	flag.Parse()

	commandsDir := filepath.Join(repoRoot, "docs", "commands")
	manOutDir := filepath.Join(repoRoot, "docs", "man", "share", "man1")
	tldrOutDir := filepath.Join(repoRoot, "docs", "tldr")

	for _, dir := range []string{manOutDir, tldrOutDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fatalf("creating output dir %s: %v", dir, err)
		}
	}

	entries, err := os.ReadDir(commandsDir)
	if err != nil {
		fatalf("reading commands dir %s: %v", commandsDir, err)
	}

	processed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}

		inPath := filepath.Join(commandsDir, e.Name())
		raw, err := os.ReadFile(inPath)
		if err != nil {
			fatalf("reading %s: %v", inPath, err)
		}

		p := parsePage(prog, strings.TrimSuffix(e.Name(), ".md"), string(raw))

		manPath := filepath.Join(manOutDir, fmt.Sprintf("%s-%s.1", prog, p.cmd))
		if err := writeFileIfChanged(manPath, md2man.Render(raw), onlyIfChanged); err != nil {
			fatalf("writing man page for %s: %v", p.cmd, err)
		}

		tldrPath := filepath.Join(tldrOutDir, fmt.Sprintf("%s-%s.md", prog, p.cmd))
		if err := writeFileIfChanged(tldrPath, []byte(p.tldr()), onlyIfChanged); err != nil {
			fatalf("writing TLDR for %s: %v", p.cmd, err)
		}

		processed++
	}

	if processed == 0 {
		fatalf("no command markdown found under %s", commandsDir)
	}
}

func fatalf(f string, a ...any) {
	fmt.Fprintf(os.Stderr, f+"\n", a...)
	os.Exit(1)
}

func writeFileIfChanged(path string, content []byte, onlyIfChanged bool) error {
	if onlyIfChanged {
		old, err := os.ReadFile(path)
		switch {
		case err == nil && bytes.Equal(bytes.TrimSpace(old), bytes.TrimSpace(content)):
			return nil
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			return err
		}
	}
	return os.WriteFile(path, content, 0o644) //nolint:gosec
}

var h1Re = regexp.MustCompile(`(?m)^#\s+(.+)$`)

func parsePage(prog, cmd, md string) page {
	p := page{prog: prog, cmd: cmd}
	if m := h1Re.FindStringSubmatch(md); m != nil {
		p.title = strings.TrimSpace(m[1])
	}
	p.short = shortDescription(md)
	if p.short == "" && p.title != "" {
		p.short = p.title + "."
	}
	p.examples = quickExamples(md)
	return p
}

// section returns the text following the line that names header, matched
// case-insensitively.
func section(md, header string) (string, bool) {
	idx := strings.Index(strings.ToLower(md), header)
	if idx < 0 {
		return "", false
	}
	rest := md[idx:]
	if nl := strings.Index(rest, "\n"); nl >= 0 {
		rest = rest[nl+1:]
	}
	return rest, true
}

// shortDescription is the first paragraph under "Short description".
func shortDescription(md string) string {
	rest, ok := section(md, "short description")
	if !ok {
		return ""
	}

	var b strings.Builder
	for _, ln := range strings.Split(rest, "\n") {
		s := strings.TrimSpace(ln)
		if s == "" {
			if b.Len() > 0 {
				break
			}
			continue
		}
		if strings.HasPrefix(s, "#") || strings.HasSuffix(s, ":") {
			break
		}
		b.WriteString(s)
		b.WriteString(" ")
	}
	return strings.TrimSpace(b.String())
}

// quickExamples pairs each "# description" comment in the first fenced block
// under "Quick examples" with the command line after it.
func quickExamples(md string) []example {
	rest, ok := section(md, "quick examples")
	if !ok {
		return nil
	}

	const fence = "```"
	start := strings.Index(rest, fence)
	if start < 0 {
		return nil
	}
	rest = rest[start+len(fence):]
	// Skip an info string such as ```sh.
	if nl := strings.Index(rest, "\n"); nl >= 0 {
		rest = rest[nl+1:]
	}
	end := strings.Index(rest, fence)
	if end < 0 {
		return nil
	}

	var exs []example
	desc := ""
	for _, ln := range strings.Split(rest[:end], "\n") {
		s := strings.TrimSpace(strings.TrimRight(ln, "\r"))
		switch {
		case s == "":
			continue
		case strings.HasPrefix(s, "#"):
			desc = strings.TrimSpace(strings.TrimPrefix(s, "#"))
		default:
			if desc == "" {
				desc = "Example"
			}
			exs = append(exs, example{Desc: desc, Cmd: strings.Join(strings.Fields(s), " ")})
			desc = ""
		}
	}
	return exs
}

func (p page) tldr() string {
	name := p.prog + "-" + p.cmd

	var b strings.Builder
	b.WriteString("# " + name + "\n\n")
	switch {
	case p.short != "":
		b.WriteString("> " + p.short + "\n")
	default:
		b.WriteString("> " + p.prog + " " + p.cmd + "\n")
	}
	b.WriteString("> More information: " + projectURL + ".\n\n")

	if len(p.examples) == 0 {
		b.WriteString("- Show help for the command:\n\n")
		b.WriteString("`" + p.prog + " " + p.cmd + " --help`\n")
		return b.String()
	}

	for i, ex := range p.examples {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- " + ex.Desc + ":\n\n")
		b.WriteString("`" + ex.Cmd + "`\n")
	}
	return b.String()
}
