package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/umputun/litedrv/pkg/driver"
)

// repl reads statements interactively. Input accumulates until a trailing
// semicolon, dot-commands act immediately. Non-interactive input (a piped
// file) runs the same loop without prompts.
func repl(ctx context.Context, conn *driver.Connection, in io.Reader, out io.Writer) error {
	interactive := false
	if f, ok := in.(*os.File); ok {
		interactive = term.IsTerminal(int(f.Fd()))
	}
	if interactive {
		fmt.Fprintf(out, "litedrv %s, type .help for help\n", revision)
	}

	prompt := func(cont bool) {
		if !interactive {
			return
		}
		p := "sql> "
		if cont {
			p = "  -> "
		}
		fmt.Fprint(out, color.New(color.FgGreen).Sprint(p))
	}

	var buf strings.Builder
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024) // pasted statements can exceed the default 64K token limit
	prompt(false)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Text()

		if buf.Len() == 0 && strings.TrimSpace(line) == "" {
			prompt(false)
			continue
		}
		if buf.Len() == 0 && strings.HasPrefix(strings.TrimSpace(line), ".") {
			if quit := dotCommand(ctx, conn, out, strings.TrimSpace(line)); quit {
				return nil
			}
			prompt(false)
			continue
		}

		buf.WriteString(line)
		buf.WriteString("\n")
		if !strings.HasSuffix(strings.TrimSpace(buf.String()), ";") {
			prompt(true)
			continue
		}

		stmt := strings.TrimSuffix(strings.TrimSpace(buf.String()), ";")
		buf.Reset()
		if stmt != "" {
			if err := execAndPrint(ctx, conn, out, stmt); err != nil {
				fmt.Fprintf(out, "%v\n", color.New(color.FgHiRed).Sprint(err.Error()))
			}
		}
		prompt(false)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("can't read input: %w", err)
	}
	return conn.Commit(ctx)
}

// dotCommand handles shell commands, returns true on quit.
func dotCommand(ctx context.Context, conn *driver.Connection, out io.Writer, cmd string) bool {
	name, arg, _ := strings.Cut(cmd, " ")
	switch name {
	case ".quit", ".exit":
		if err := conn.Commit(ctx); err != nil {
			fmt.Fprintf(out, "%v\n", err)
		}
		return true
	case ".help":
		fmt.Fprint(out, `commands:
  .tables          list tables
  .schema [name]   show schema, optionally for one table
  .sync            sync with the remote replica
  .commit          commit the open transaction
  .rollback        roll back the open transaction
  .quit            commit and exit
`)
	case ".tables":
		runDot(ctx, conn, out, "SELECT name FROM sqlite_master WHERE type='table' ORDER BY name")
	case ".schema":
		q := "SELECT sql FROM sqlite_master WHERE sql IS NOT NULL ORDER BY name"
		if arg != "" {
			q = fmt.Sprintf("SELECT sql FROM sqlite_master WHERE name='%s'", strings.ReplaceAll(arg, "'", "''"))
		}
		runDot(ctx, conn, out, q)
	case ".sync":
		if err := conn.Sync(ctx); err != nil {
			fmt.Fprintf(out, "%v\n", err)
			return false
		}
		fmt.Fprintln(out, "synced")
	case ".commit":
		if err := conn.Commit(ctx); err != nil {
			fmt.Fprintf(out, "%v\n", err)
		}
	case ".rollback":
		if err := conn.Rollback(ctx); err != nil {
			fmt.Fprintf(out, "%v\n", err)
		}
	default:
		fmt.Fprintf(out, "unknown command %s, try .help\n", name)
	}
	return false
}

func runDot(ctx context.Context, conn *driver.Connection, out io.Writer, query string) {
	if err := execAndPrint(ctx, conn, out, query); err != nil {
		log.Printf("[WARN] %v", err)
		fmt.Fprintf(out, "%v\n", err)
	}
}
