package session

import (
	"sync"
	"time"
)

// Role distinguishes paid members from trial users.
type Role string

const (
	RoleGuest Role = "guest"
	RoleVIP   Role = "vip"
)

// HistoryLimit caps the per-session analysis history. Favorites are unbounded.
const HistoryLimit = 5

// ImageKind tags the origin of the current image. Upload and capture are
// mutually exclusive: setting one replaces the other.
type ImageKind int

const (
	ImageNone ImageKind = iota
	ImageUploaded
	ImageCaptured
)

// ImageSource is the tagged union holding the session's current image.
type ImageSource struct {
	Kind ImageKind
	Data []byte
}

// Record is one completed analysis. Immutable once created.
type Record struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Mode       string    `json:"mode"`
	ReportText string    `json:"report_text"`
	Thumbnail  string    `json:"thumbnail_b64,omitempty"`
}

// Prefs holds UI preferences carried per session.
type Prefs struct {
	Theme string `json:"theme"`
}

// Session is the per-user mutable state, created at login and destroyed at
// logout. Guests live only in memory; VIP history is additionally persisted.
type Session struct {
	mu sync.Mutex

	ID     string
	Role   Role
	Phone  string
	Expiry time.Time

	image     ImageSource
	report    *Record
	imageHash string // content hash of the image the report was computed from

	note      string
	history   []*Record
	favorites []*Record
	prefs     Prefs

	CreatedAt time.Time
}

// New creates a fresh session for a phone number.
func New(id, phone string, role Role, expiry time.Time) *Session {
	return &Session{
		ID:        id,
		Role:      role,
		Phone:     phone,
		Expiry:    expiry,
		CreatedAt: time.Now(),
	}
}

// SetImage replaces the current image. Any previously selected source is
// discarded and the cached report no longer corresponds to the new image.
func (s *Session) SetImage(kind ImageKind, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.image = ImageSource{Kind: kind, Data: data}
	s.imageHash = ""
}

// Image returns the current image source.
func (s *Session) Image() ImageSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.image
}

// ClearImage resets the image selection and the cached report linkage.
func (s *Session) ClearImage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.image = ImageSource{}
	s.imageHash = ""
	s.report = nil
}

// Report returns the current report together with the content hash of the
// image it was computed from. Nil when no analysis has completed since the
// image last changed.
func (s *Session) Report() (*Record, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report, s.imageHash
}

// StoreReport records a successful analysis: it becomes the current report
// and is appended to the history, evicting the oldest entry past the cap.
func (s *Session) StoreReport(rec *Record, imageHash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report = rec
	s.imageHash = imageHash
	s.history = append(s.history, rec)
	if len(s.history) > HistoryLimit {
		s.history = s.history[len(s.history)-HistoryLimit:]
	}
}

// SetNote remembers the user note that accompanied the last analysis, for
// report export.
func (s *Session) SetNote(note string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.note = note
}

// Note returns the note of the last analysis.
func (s *Session) Note() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.note
}

// History returns a copy of the history, oldest first, newest last.
func (s *Session) History() []*Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Record, len(s.history))
	copy(out, s.history)
	return out
}

// SeedHistory replaces the history wholesale, used when restoring a VIP
// session from persisted records. Keeps only the newest HistoryLimit entries.
func (s *Session) SeedHistory(records []*Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(records) > HistoryLimit {
		records = records[len(records)-HistoryLimit:]
	}
	s.history = append([]*Record(nil), records...)
}

// AddFavorite copies a record into the favorites list.
func (s *Session) AddFavorite(rec *Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.favorites = append(s.favorites, rec)
}

// Favorites returns a copy of the favorites list.
func (s *Session) Favorites() []*Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Record, len(s.favorites))
	copy(out, s.favorites)
	return out
}

// SeedFavorites replaces the favorites wholesale when restoring a VIP session.
func (s *Session) SeedFavorites(records []*Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.favorites = append([]*Record(nil), records...)
}

// FindRecord looks a record up by ID across history and favorites.
func (s *Session) FindRecord(id string) (*Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.history {
		if rec.ID == id {
			return rec, true
		}
	}
	for _, rec := range s.favorites {
		if rec.ID == id {
			return rec, true
		}
	}
	return nil, false
}

// SetPrefs updates the UI preferences.
func (s *Session) SetPrefs(p Prefs) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs = p
}

// GetPrefs returns the UI preferences.
func (s *Session) GetPrefs() Prefs {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs
}

// Expired reports whether the session has outlived its expiry.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.Expiry)
}
