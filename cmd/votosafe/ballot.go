package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/abrezinsky/votosafe/internal/auth"
	"github.com/abrezinsky/votosafe/internal/models"
	"github.com/abrezinsky/votosafe/internal/repository"
	"github.com/abrezinsky/votosafe/internal/services"
	"github.com/abrezinsky/votosafe/internal/store"
)

var errSessionExpired = errors.New("tu sesión ha expirado")

func ballotCommand() *cobra.Command {
	var qrDir string
	cmd := &cobra.Command{
		Use:   "ballot",
		Short: "Log in and vote from the terminal",
		Long: `Log in and vote from the terminal.

Runs the same login, verification code and session countdown as the web
client against the configured store. Badger stores cannot be shared with
a running server.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log := newLogger(cfg, io.Discard)

			st, err := store.Open(cfg, log)
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			repo := repository.New(st, repository.WithLogger(log))
			defer repo.Close()

			sessions := services.NewSessionService(log, repo, auth.NewArgon2(), newRegistry(cfg, log), cfg.SessionTimeout)
			elections := services.NewElectionService(log, repo)
			voting := services.NewVotingService(log, repo, elections, sessions)

			v := &terminalVoter{
				in:        bufio.NewReader(os.Stdin),
				out:       cmd.OutOrStdout(),
				readPIN:   readHiddenPIN,
				flow:      auth.NewFlow(sessions, sessions.Timeout()),
				elections: elections,
				voting:    voting,
				qrDir:     qrDir,
			}
			return v.run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&qrDir, "qr-dir", "", "write a receipt QR code PNG into this directory")
	return cmd
}

func readHiddenPIN() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("PIN entry needs a terminal")
	}
	b, err := term.ReadPassword(fd)
	fmt.Println()
	return string(b), err
}

// terminalVoter walks one voter through login and ballots on a text
// terminal
type terminalVoter struct {
	in        *bufio.Reader
	out       io.Writer
	readPIN   func() (string, error)
	flow      *auth.Flow
	elections *services.ElectionService
	voting    *services.VotingService
	qrDir     string
}

func (v *terminalVoter) run(ctx context.Context) error {
	if err := v.login(ctx); err != nil {
		return err
	}
	sess := v.flow.Session()
	fmt.Fprintf(v.out, "\n%sHola, %s%s\n", green, sess.User.FullName(), reset)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	v.flow.OnExpire(func() {
		fmt.Fprintf(v.out, "\n%sTu sesión ha expirado%s\n", red, reset)
		cancel()
	})
	go v.flow.Run(ctx)
	defer v.flow.Logout(context.WithoutCancel(ctx))

	for {
		e, err := v.chooseElection(ctx)
		if err != nil || e == nil {
			return err
		}
		if err := v.vote(ctx, e); err != nil {
			if errors.Is(err, errSessionExpired) {
				return err
			}
			fmt.Fprintf(v.out, "%s%v%s\n", red, err, reset)
		}
	}
}

func (v *terminalVoter) prompt(label string) (string, error) {
	fmt.Fprintf(v.out, "%s%s:%s ", cyan, label, reset)
	line, err := v.in.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (v *terminalVoter) login(ctx context.Context) error {
	if err := v.flow.Begin(); err != nil {
		return err
	}
	for {
		dni, err := v.prompt("DNI")
		if err != nil {
			return err
		}
		fmt.Fprintf(v.out, "%sPIN:%s ", cyan, reset)
		pin, err := v.readPIN()
		if err != nil {
			return err
		}

		code, err := v.flow.SubmitCredentials(ctx, dni, pin)
		if err != nil {
			fmt.Fprintf(v.out, "%s%v%s\n", red, err, reset)
			continue
		}
		fmt.Fprintf(v.out, "%sCódigo de verificación: %s%s%s\n", green, bold, code, reset)
		break
	}

	for {
		code, err := v.prompt("Código")
		if err != nil {
			return err
		}
		if _, err := v.flow.SubmitCode(ctx, code); err != nil {
			fmt.Fprintf(v.out, "%s%v%s\n", red, err, reset)
			continue
		}
		return nil
	}
}

// chooseElection lists elections and returns the pick, or nil when the
// voter enters 0 to leave.
func (v *terminalVoter) chooseElection(ctx context.Context) (*models.Election, error) {
	list, err := v.elections.List(ctx)
	if err != nil {
		return nil, err
	}
	sess := v.flow.Session()
	if sess == nil {
		return nil, errSessionExpired
	}

	fmt.Fprintf(v.out, "\n%sElecciones%s (%d s restantes)\n", bold, reset, v.flow.Remaining())
	for i, e := range list {
		mark := ""
		if sess.User.HasVotedIn(e.ID) {
			mark = yellow + " (votaste)" + reset
		}
		fmt.Fprintf(v.out, "  %d) %s [%s]%s\n", i+1, e.Nombre, e.Estado, mark)
	}
	fmt.Fprintf(v.out, "  0) Salir\n")

	for {
		n, err := v.promptNumber("Elección", len(list))
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, nil
		}
		e := list[n-1]
		if sess.User.HasVotedIn(e.ID) {
			fmt.Fprintf(v.out, "%sYa votaste en esta elección%s\n", yellow, reset)
			continue
		}
		return &e, nil
	}
}

func (v *terminalVoter) promptNumber(label string, limit int) (int, error) {
	for {
		s, err := v.prompt(label)
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(s)
		if err == nil && n >= 0 && n <= limit {
			return n, nil
		}
		fmt.Fprintf(v.out, "%sOpción inválida%s\n", red, reset)
	}
}

func (v *terminalVoter) vote(ctx context.Context, e *models.Election) error {
	ballot, err := v.elections.Ballot(ctx, e.ID)
	if err != nil {
		return err
	}
	selections, err := v.fillBallot(ballot)
	if err != nil {
		return err
	}

	sess := v.flow.Session()
	if sess == nil {
		return errSessionExpired
	}
	result, err := v.voting.SubmitVote(ctx, sess, ballot.ID, selections)
	if err != nil {
		return err
	}
	v.flow.Refresh(result.Session)

	fmt.Fprintf(v.out, "\n%sVoto registrado.%s Comprobante: %s%s%s\n", green, reset, bold, result.Receipt, reset)
	if v.qrDir != "" {
		return v.writeQR(ctx, sess.User.DNI, ballot.ID)
	}
	return nil
}

// fillBallot asks for one choice per category. Empty input skips a
// category when the election allows partial ballots.
func (v *terminalVoter) fillBallot(e *models.Election) ([]models.Selection, error) {
	var selections []models.Selection
	for _, c := range e.Categorias {
		fmt.Fprintf(v.out, "\n%s%s%s\n", bold, c.Nombre, reset)
		for i, cand := range c.Candidatos {
			fmt.Fprintf(v.out, "  %d) %s - %s\n", i+1, cand.Nombre, cand.Partido)
		}
		if e.AllowNullVote {
			fmt.Fprintf(v.out, "  0) %s\n", models.NullParty)
		}

		for {
			s, err := v.prompt("Opción")
			if err != nil {
				return nil, err
			}
			if s == "" && !e.RequireAllCategories {
				break
			}
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 || n > len(c.Candidatos) || (n == 0 && !e.AllowNullVote) {
				fmt.Fprintf(v.out, "%sOpción inválida%s\n", red, reset)
				continue
			}
			sel := models.Selection{Categoria: c.ID, CandidatoID: models.NullCandidateID}
			if n > 0 {
				sel.CandidatoID = c.Candidatos[n-1].ID
			}
			selections = append(selections, sel)
			break
		}
	}
	return selections, nil
}

func (v *terminalVoter) writeQR(ctx context.Context, dni, electionID string) error {
	png, err := v.voting.ReceiptQR(ctx, dni, electionID)
	if err != nil {
		return err
	}
	path := filepath.Join(v.qrDir, fmt.Sprintf("receipt-%s.png", electionID))
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return fmt.Errorf("failed to write QR code: %w", err)
	}
	fmt.Fprintf(v.out, "QR: %s\n", path)
	return nil
}
