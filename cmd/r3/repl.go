package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/wippyai/librebol/errors"
	"github.com/wippyai/librebol/scan"
)

const (
	historyFile = ".r3_history"
	promptMain  = ">> "
	promptCont  = ".. "
	banner      = "librebol r3 (:quit to exit)"
)

func (s *session) repl() error {
	fmt.Println(banner)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	for {
		code, ok := readComplete(ln)
		if !ok {
			fmt.Println()
			break
		}
		line := strings.TrimSpace(code)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ":") {
			if done := s.command(line); done {
				break
			}
			continue
		}

		out, err := s.eval(code)
		if err != nil {
			fmt.Println(err)
		} else {
			printResult(os.Stdout, out)
		}
		ln.AppendHistory(strings.ReplaceAll(code, "\n", " "))
	}

	if f, err := os.Create(histPath); err == nil {
		_, _ = ln.WriteHistory(f)
		_ = f.Close()
	}
	return nil
}

// command handles :quit, :stats, :recycle and :tick.
func (s *session) command(line string) (exit bool) {
	switch strings.ToLower(strings.Fields(line)[0]) {
	case ":quit", ":exit":
		return true
	case ":stats":
		st := s.rt.Stats()
		fmt.Printf("handles: %d scope-bound, %d managed, %d unmanaged\n", st.ScopeBound, st.Managed, st.Unmanaged)
		fmt.Printf("buffers: %d (%d bytes), pending cleanups: %d, frames: %d\n",
			st.Buffers, st.BufferBytes, st.PendingCleanups, st.Frames)
		if names := s.loader.Names(); len(names) > 0 {
			fmt.Printf("extensions: %s\n", strings.Join(names, ", "))
		}
	case ":recycle":
		fmt.Printf("%d cleanup(s) ran\n", s.rt.Recycle())
	case ":tick":
		fmt.Println(s.rt.Tick())
	default:
		fmt.Println("commands: :quit :stats :recycle :tick")
	}
	return false
}

// readComplete reads lines until the scanner accepts the buffer, so open
// blocks and braced text continue on the next line.
func readComplete(ln *liner.State) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if err == io.EOF {
			return "", false
		}
		if err != nil {
			return "", true
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := b.String()
		if _, err := scan.String(src); err != nil && incomplete(err) {
			continue
		}
		return src, true
	}
}

func incomplete(err error) bool {
	var e *errors.Error
	return errors.As(err, &e) && e.Kind == errors.KindSyntax && strings.HasPrefix(e.Detail, "missing ")
}
