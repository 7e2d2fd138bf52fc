package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/abrezinsky/votosafe/internal/logger"
)

// ANSI escape codes
const (
	reset  = "\033[0m"
	yellow = "\033[33m"
	red    = "\033[31m"
	green  = "\033[32m"
	cyan   = "\033[36m"
	bold   = "\033[1m"
)

func printBanner(w io.Writer) {
	width := 62
	border := strings.Repeat("═", width)

	logo := []string{
		"   __     __    _          ____         __                 ",
		"   \\ \\   / /__ | |_ ___   / ___|  __ _ / _| ___            ",
		"    \\ \\ / / _ \\| __/ _ \\  \\___ \\ / _` | |_ / _ \\           ",
		"     \\ V / (_) | || (_) |  ___) | (_| |  _|  __/           ",
		"      \\_/ \\___/ \\__\\___/  |____/ \\__,_|_|  \\___|           ",
		"                                                          ",
	}

	fmt.Fprintf(w, "\n  %s╔%s╗%s\n", cyan, border, reset)
	for _, line := range logo {
		for len(line) < width {
			line += " "
		}
		fmt.Fprintf(w, "  %s║%s%s%s║%s\n", cyan, yellow, line, cyan, reset)
	}
	fmt.Fprintf(w, "  %s╚%s╝%s\n\n", cyan, border, reset)
}

// nextLogLevel returns the level after current in the cycle
// debug -> info -> warn -> error -> debug
func nextLogLevel(current string) string {
	switch strings.ToUpper(current) {
	case "DEBUG":
		return "info"
	case "INFO":
		return "warn"
	case "WARN":
		return "error"
	case "ERROR":
		return "debug"
	default:
		return "info"
	}
}

func cycleLogLevel(w io.Writer, appLog logger.Logger) {
	next := nextLogLevel(appLog.GetLevel().String())
	appLog.SetLevel(logger.ParseLevel(next))
	fmt.Fprintf(w, "%sLog level: %s%s%s\n", green, yellow, next, reset)
}

func printKeyboardHelp(w io.Writer) {
	fmt.Fprintf(w, "\n%s%s  Keyboard Shortcuts:%s\n", bold, green, reset)
	fmt.Fprintf(w, "    %sh%s      - Toggle HTTP request logging\n", cyan, reset)
	fmt.Fprintf(w, "    %sl%s      - Cycle log level (debug → info → warn → error)\n", cyan, reset)
	fmt.Fprintf(w, "    %sq%s      - Quit server\n", cyan, reset)
	fmt.Fprintf(w, "    %s?%s      - Show this help\n\n", cyan, reset)
}

// console maps single key presses to server actions
type console struct {
	out  io.Writer
	log  logger.Logger
	quit func()
}

// handle runs the action bound to key and reports whether the
// console should stop reading.
func (c *console) handle(key byte) bool {
	switch strings.ToLower(string(key)) {
	case "h":
		if c.log.IsHTTPLoggingEnabled() {
			c.log.DisableHTTPLogging()
			fmt.Fprintf(c.out, "%sHTTP logging disabled%s\n", yellow, reset)
		} else {
			c.log.EnableHTTPLogging()
			fmt.Fprintf(c.out, "%sHTTP logging enabled%s\n", green, reset)
		}
	case "l":
		cycleLogLevel(c.out, c.log)
	case "?":
		printKeyboardHelp(c.out)
	case "q", "\x03": // q or Ctrl+C
		fmt.Fprintf(c.out, "%sShutting down server...%s\n", yellow, reset)
		c.quit()
		return true
	}
	return false
}

// listen reads keys from in until quit or EOF
func (c *console) listen(in io.Reader) {
	r := bufio.NewReader(in)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return
		}
		if c.handle(b) {
			return
		}
	}
}

// crlfWriter restores carriage returns while the terminal is in raw
// mode, where output post-processing is off.
type crlfWriter struct {
	w io.Writer
}

func (c crlfWriter) Write(p []byte) (int, error) {
	if _, err := c.w.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}
