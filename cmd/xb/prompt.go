package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"xb-go/internal/xb"
)

// errQuit is returned when the operator declines to choose a backup.
var errQuit = errors.New("quit")

// prompter reads operator answers line by line. Passphrases are read without
// echo when fd is a terminal.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
	fd  int
	tty bool
}

func newPrompter(in io.Reader, out io.Writer, fd int) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out, fd: fd, tty: term.IsTerminal(fd)}
}

func (p *prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// selectBackup lists records and asks for a 1-based index. "q" or end of
// input returns errQuit; invalid answers are asked again.
func (p *prompter) selectBackup(records []xb.BackupRecord) (xb.BackupRecord, error) {
	printCatalog(p.out, records, true)
	for {
		fmt.Fprintf(p.out, "Select a backup to restore [1-%d, q to quit]: ", len(records))
		answer, err := p.readLine()
		if errors.Is(err, io.EOF) {
			return xb.BackupRecord{}, errQuit
		}
		if err != nil {
			return xb.BackupRecord{}, err
		}
		if strings.EqualFold(answer, "q") {
			return xb.BackupRecord{}, errQuit
		}
		n, err := strconv.Atoi(answer)
		if err != nil || n < 1 || n > len(records) {
			fmt.Fprintf(p.out, "Invalid selection %q.\n", answer)
			continue
		}
		return records[n-1], nil
	}
}

// confirm asks question and reports whether the answer was exactly "yes".
func (p *prompter) confirm(question string) (bool, error) {
	fmt.Fprintf(p.out, "%s Type 'yes' to continue: ", question)
	answer, err := p.readLine()
	if errors.Is(err, io.EOF) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return answer == "yes", nil
}

// passphrase reads a secret without echo on a terminal, or a plain line
// otherwise.
func (p *prompter) passphrase(label string) (string, error) {
	fmt.Fprint(p.out, label)
	if p.tty {
		b, err := term.ReadPassword(p.fd)
		fmt.Fprintln(p.out)
		if err != nil {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		return string(b), nil
	}
	line, err := p.readLine()
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return line, nil
}

// newPassphrase asks twice and requires both answers to match.
func (p *prompter) newPassphrase() (string, error) {
	first, err := p.passphrase("New passphrase: ")
	if err != nil {
		return "", err
	}
	second, err := p.passphrase("Repeat passphrase: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", fmt.Errorf("passphrases do not match")
	}
	return first, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}

func printCatalog(w io.Writer, records []xb.BackupRecord, numbered bool) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, r := range records {
		if numbered {
			fmt.Fprintf(tw, "%d\t", i+1)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Kind, formatTime(r.Timestamp), humanize.IBytes(uint64(r.Size)), r.Key)
	}
	tw.Flush()
}

func printChain(w io.Writer, chain xb.Chain) {
	fmt.Fprintf(w, "Restore chain for %s (%d archive(s), %s):\n", chain.Target().Key, len(chain), humanize.IBytes(uint64(chain.TotalSize())))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, r := range chain {
		step := "prepare"
		switch {
		case i == 0 && len(chain) > 1:
			step = "prepare (log only)"
		case i > 0 && i < len(chain)-1:
			step = "merge (log only)"
		case i > 0:
			step = "merge (final)"
		}
		fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\n", i+1, r.Key, humanize.IBytes(uint64(r.Size)), step)
	}
	tw.Flush()
}

func printHistory(w io.Writer, runs []xb.RunRecord) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, r := range runs {
		status := "ok"
		if !r.Succeeded() {
			status = "error"
		}
		duration := r.Finished.Sub(r.Started).Truncate(time.Millisecond)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s", formatTime(r.Started), r.Op, r.Kind, status, duration, r.Key)
		switch {
		case !r.Succeeded():
			fmt.Fprintf(tw, "\t%s", r.Error)
		case r.Swept > 0:
			fmt.Fprintf(tw, "\tswept %d", r.Swept)
		}
		fmt.Fprintln(tw)
	}
	tw.Flush()
}

// reportError writes a fatal error to w with a timestamp and password-like
// text masked.
func reportError(w io.Writer, err error, now time.Time) {
	fmt.Fprintf(w, "%s\tERROR\t%s\n", now.UTC().Format(time.RFC3339), xb.NewRedactor().String(err.Error()))
}
