// Package analysis drives the trial-gated analysis flow: replay guard, quota
// consumption, one completion call, result storage.
package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/bayerngomez/retouchlab/internal/gemini"
	"github.com/bayerngomez/retouchlab/internal/quota"
	"github.com/bayerngomez/retouchlab/internal/session"
	"github.com/google/uuid"
)

var ErrNoImage = errors.New("no image selected")

// A fixed near-zero temperature keeps scores repeatable across repeated
// calls on the same photo.
const samplingTemperature = 0.1

const (
	basePrompt     = "请分析这张图片。"
	userNotePrefix = " 用户需求："
)

// QuotaConsumer is the ledger operation the service needs: an atomic
// increment-with-ceiling for one trial use.
type QuotaConsumer interface {
	Consume(phone string, pro bool) (quota.Record, error)
}

// HistoryWriter persists completed VIP analyses.
type HistoryWriter interface {
	SaveRecord(phone string, rec *session.Record, favorite bool) error
}

// Service runs analyses against the completion API.
type Service struct {
	completer gemini.Completer
	ledger    QuotaConsumer
	history   HistoryWriter // nil disables VIP persistence
	modes     map[Mode]ModeConfig
}

func NewService(completer gemini.Completer, ledger QuotaConsumer, history HistoryWriter, modes map[Mode]ModeConfig) *Service {
	return &Service{
		completer: completer,
		ledger:    ledger,
		history:   history,
		modes:     modes,
	}
}

// ResolveMode looks a mode selection up in the mode table.
func (s *Service) ResolveMode(selection string) (ModeConfig, error) {
	cfg, ok := s.modes[Mode(selection)]
	if !ok {
		return ModeConfig{}, ErrUnknownMode
	}
	return cfg, nil
}

// Analyze runs one analysis for the session's current image.
//
// For guests, an unchanged image with a cached report is replayed for free:
// the replay check runs before any quota mutation, so re-clicking "analyze"
// never charges twice. A consumed trial use is not refunded when the
// completion call fails afterwards.
func (s *Service) Analyze(ctx context.Context, sess *session.Session, modeSelection, userNote string) (*session.Record, error) {
	cfg, err := s.ResolveMode(modeSelection)
	if err != nil {
		return nil, err
	}

	img := sess.Image()
	if img.Kind == session.ImageNone || len(img.Data) == 0 {
		return nil, ErrNoImage
	}
	hash := contentHash(img.Data)

	if sess.Role == session.RoleGuest {
		if cached, cachedHash := sess.Report(); cached != nil && cachedHash == hash {
			return cached, nil
		}
		if _, err := s.ledger.Consume(sess.Phone, cfg.Mode == ModePro); err != nil {
			return nil, err
		}
	}

	prompt := basePrompt
	if userNote != "" {
		prompt += userNotePrefix + userNote
	}

	resp, err := s.completer.Complete(ctx, gemini.Request{
		Model:             cfg.ModelID,
		SystemInstruction: cfg.Instruction,
		Prompt:            prompt,
		ImageData:         img.Data,
		ImageMIME:         http.DetectContentType(img.Data),
		Temperature:       samplingTemperature,
	})
	if err != nil {
		// The prior report, if any, stays visible.
		return nil, err
	}

	rec := &session.Record{
		ID:         uuid.NewString(),
		Timestamp:  time.Now(),
		Mode:       string(cfg.Mode),
		ReportText: resp.Text,
		Thumbnail:  thumbnail(img.Data),
	}
	sess.StoreReport(rec, hash)
	sess.SetNote(userNote)

	if sess.Role == session.RoleVIP && s.history != nil {
		if err := s.history.SaveRecord(sess.Phone, rec, false); err != nil {
			log.Printf("Failed to persist history for %s: %v", sess.Phone, err)
		}
	}
	return rec, nil
}

// Favorite copies a history record into the session favorites and, for VIPs,
// persists the flag.
func (s *Service) Favorite(sess *session.Session, recordID string) (*session.Record, error) {
	rec, ok := sess.FindRecord(recordID)
	if !ok {
		return nil, errors.New("record not found")
	}
	sess.AddFavorite(rec)
	if sess.Role == session.RoleVIP && s.history != nil {
		if err := s.history.SaveRecord(sess.Phone, rec, true); err != nil {
			log.Printf("Failed to persist favorite for %s: %v", sess.Phone, err)
		}
	}
	return rec, nil
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
