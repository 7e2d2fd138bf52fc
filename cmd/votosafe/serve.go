package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/abrezinsky/votosafe/internal/app"
	"github.com/abrezinsky/votosafe/web"
)

type serveFlags struct {
	port       int
	noKeyboard bool
	noBanner   bool
}

func serveCommand() *cobra.Command {
	var flags serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the voting web server",
		Example: `  votosafe serve                        # Run on port 8000 with votosafe.db
  votosafe serve --port 8080            # Run on port 8080
  votosafe serve --store badger --db ./data
  votosafe serve --no-keyboard          # Disable keyboard shortcuts`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveRun(cmd, flags)
		},
	}
	cmd.Flags().IntVar(&flags.port, "port", 0, "HTTP server port (default from config, 8000)")
	cmd.Flags().BoolVar(&flags.noKeyboard, "no-keyboard", false, "disable keyboard shortcuts")
	cmd.Flags().BoolVar(&flags.noBanner, "no-banner", false, "skip the startup banner")
	return cmd
}

func serveRun(cmd *cobra.Command, flags serveFlags) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = flags.port
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var out io.Writer = os.Stdout
	fd := int(os.Stdin.Fd())
	keyboard := !flags.noKeyboard && term.IsTerminal(fd)
	if keyboard {
		oldState, err := term.MakeRaw(fd)
		if err != nil {
			keyboard = false
		} else {
			defer term.Restore(fd, oldState)
			out = crlfWriter{w: os.Stdout}
		}
	}

	if !flags.noBanner {
		printBanner(out)
	}

	log := newLogger(cfg, out)
	a, err := app.New(cfg, log, newRegistry(cfg, log), web.GetTemplatesFS(), web.GetStaticFS())
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer a.Close()

	if keyboard {
		printKeyboardHelp(out)
		c := &console{out: out, log: log, quit: stop}
		go c.listen(os.Stdin)
	} else {
		fmt.Fprintf(out, "%sKeyboard shortcuts disabled%s\n\n", yellow, reset)
	}

	if err := a.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
