package services

import (
	"context"
	"crypto/sha256"
	"encoding/base32"
	"fmt"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"

	"github.com/abrezinsky/votosafe/internal/logger"
	"github.com/abrezinsky/votosafe/internal/models"
	"github.com/abrezinsky/votosafe/internal/repository"
)

// BallotProvider resolves the ballot a vote is checked against
type BallotProvider interface {
	Ballot(ctx context.Context, id string) (*models.Election, error)
}

// SessionRefresher restarts a session after a successful vote
type SessionRefresher interface {
	Refresh(ctx context.Context, token string) (*models.Session, error)
}

// VotingService handles vote-related business logic
type VotingService struct {
	log         logger.Logger
	repo        repository.VoteRepository
	ballots     BallotProvider
	sessions    SessionRefresher
	now         func() time.Time
	broadcaster Broadcaster
	recorder    Recorder
}

// NewVotingService creates a new VotingService
func NewVotingService(log logger.Logger, repo repository.VoteRepository, ballots BallotProvider, sessions SessionRefresher) *VotingService {
	return &VotingService{
		log:      log,
		repo:     repo,
		ballots:  ballots,
		sessions: sessions,
		now:      time.Now,
		recorder: nopRecorder{},
	}
}

// SetClock replaces the time source used to stamp votes
func (s *VotingService) SetClock(now func() time.Time) {
	s.now = now
}

// SetBroadcaster sets the broadcaster for sending updates to clients
func (s *VotingService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// SetRecorder sets the metrics recorder
func (s *VotingService) SetRecorder(r Recorder) {
	s.recorder = r
}

// VoteResult contains the result of a vote submission
type VoteResult struct {
	Receipt string          `json:"receipt"`
	Vote    models.Vote     `json:"vote"`
	Session *models.Session `json:"session,omitempty"`
}

// SubmitVote records the selections of the session user for electionID.
// A nil session is ignored.
func (s *VotingService) SubmitVote(ctx context.Context, sess *models.Session, electionID string, selections []models.Selection) (*VoteResult, error) {
	if sess == nil {
		return nil, nil
	}

	ballot, err := s.ballots.Ballot(ctx, electionID)
	if err != nil {
		return nil, err
	}

	votos, err := checkSelections(ballot, selections)
	if err != nil {
		return nil, err
	}

	vote := models.Vote{
		UserID:     sess.User.DNI,
		ElectionID: ballot.ID,
		Fecha:      s.now().UTC(),
		Votos:      votos,
	}
	vote.Receipt = ReceiptCode(vote)

	user, err := s.repo.RecordVote(ctx, vote)
	if err != nil {
		return nil, translate(err, ErrUserNotFound)
	}

	s.recorder.VoteRecorded(vote.ElectionID)
	s.log.Info("Vote recorded", "dni", vote.UserID, "election", vote.ElectionID, "selections", len(votos))
	s.broadcastVote(ctx, vote.ElectionID)

	result := &VoteResult{Receipt: vote.Receipt, Vote: vote}
	refreshed, err := s.sessions.Refresh(ctx, sess.Token)
	if err != nil {
		s.log.Warn("Session refresh after vote failed", "dni", vote.UserID, "error", err)
		snapshot := *sess
		snapshot.User = user.Redacted()
		refreshed = &snapshot
	}
	result.Session = refreshed
	return result, nil
}

// checkSelections validates selections against the ballot and snapshots
// each party at submission time.
func checkSelections(ballot *models.Election, selections []models.Selection) ([]models.Selection, error) {
	if ballot.RequireAllCategories && len(selections) != len(ballot.Categorias) {
		return nil, ErrIncompleteBallot
	}
	if len(selections) == 0 {
		return nil, invalid("EMPTY_BALLOT", "Selecciona al menos un candidato")
	}

	seen := make(map[string]bool, len(selections))
	out := make([]models.Selection, 0, len(selections))
	for _, sel := range selections {
		cat, ok := ballot.FindCategory(sel.Categoria)
		if !ok {
			return nil, invalid("INVALID_SELECTION", "Categoría desconocida: %s", sel.Categoria)
		}
		if seen[cat.ID] {
			return nil, invalid("INVALID_SELECTION", "Categoría repetida: %s", cat.ID)
		}
		seen[cat.ID] = true

		if sel.IsNull() {
			if !ballot.AllowNullVote {
				return nil, invalid("NULL_VOTE_NOT_ALLOWED", "Esta elección no permite voto nulo")
			}
			out = append(out, models.Selection{Categoria: cat.ID, CandidatoID: models.NullCandidateID, Partido: models.NullParty})
			continue
		}

		cand, ok := cat.FindCandidate(sel.CandidatoID)
		if !ok {
			return nil, invalid("INVALID_SELECTION", "Candidato desconocido en %s: %s", cat.Nombre, sel.CandidatoID)
		}
		out = append(out, models.Selection{Categoria: cat.ID, CandidatoID: cand.ID, Partido: cand.Partido})
	}
	return out, nil
}

var receiptEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// ReceiptCode derives a short readable code from the vote content
func ReceiptCode(v models.Vote) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s", v.UserID, v.ElectionID, v.Fecha.UTC().Format(time.RFC3339Nano))
	for _, sel := range v.Votos {
		fmt.Fprintf(h, "|%s=%s", sel.Categoria, sel.CandidatoID)
	}
	code := receiptEncoding.EncodeToString(h.Sum(nil))[:10]
	return code[:5] + "-" + code[5:]
}

// Receipt returns the vote dni cast in electionID
func (s *VotingService) Receipt(ctx context.Context, dni, electionID string) (*models.Vote, error) {
	v, err := s.repo.GetVote(ctx, dni, electionID)
	if err != nil {
		return nil, translate(err, ErrVoteNotFound)
	}
	if v.Receipt == "" {
		v.Receipt = ReceiptCode(*v)
	}
	return v, nil
}

// ReceiptQR renders the receipt of dni's vote in electionID as a PNG
func (s *VotingService) ReceiptQR(ctx context.Context, dni, electionID string) ([]byte, error) {
	v, err := s.Receipt(ctx, dni, electionID)
	if err != nil {
		return nil, err
	}
	payload := strings.Join([]string{"VOTOSAFE", v.ElectionID, v.Receipt}, ":")
	return qrcode.Encode(payload, qrcode.Medium, 256)
}

func (s *VotingService) broadcastVote(ctx context.Context, electionID string) {
	if s.broadcaster == nil {
		return
	}
	votes, err := s.repo.ListVotes(ctx)
	if err != nil {
		s.log.Warn("Failed to count votes for broadcast", "error", err)
		return
	}
	n := 0
	for _, v := range votes {
		if v.ElectionID == electionID {
			n++
		}
	}
	s.broadcaster.BroadcastVoteCast(electionID, n)
}
