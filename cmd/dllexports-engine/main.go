//go:build !wasip1

// Command dllexports-engine runs one export call in its own process. The call
// is read from stdin and the reply written to stdout, both as JSON.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/wippyai/dllexports/guest"
	"github.com/wippyai/dllexports/protocol"
)

func main() {
	entry := flag.String("entry", "", "Entry point the host expects to run (checked against the call)")
	list := flag.Bool("list", false, "List entry points and exit")
	flag.Parse()

	if *list {
		for _, name := range guest.EntryPoints() {
			fmt.Println(name)
		}
		return
	}

	if err := run(*entry, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
}

func run(entry string, in io.Reader, out io.Writer) error {
	payload, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read call: %w", err)
	}

	if entry != "" {
		call, err := protocol.DecodeCall(payload)
		if err == nil && call.Entry != entry {
			return fmt.Errorf("call names entry %q, expected %q", call.Entry, entry)
		}
	}

	if _, err := out.Write(guest.Handle(payload, nil)); err != nil {
		return fmt.Errorf("write reply: %w", err)
	}
	return nil
}
