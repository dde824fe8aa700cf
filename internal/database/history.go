package database

import (
	"fmt"

	"github.com/bayerngomez/retouchlab/internal/session"
)

// SaveRecord upserts a completed analysis for a phone number. When favorite
// is set the flag is turned on and never turned back off.
func (s *Store) SaveRecord(phone string, rec *session.Record, favorite bool) error {
	var insert string
	if s.dbType == "postgres" {
		insert = `INSERT INTO analysis_records (id, phone, created_at, mode, report_text, thumbnail, favorite)
			VALUES (?, ?, ?, ?, ?, ?, FALSE)
			ON CONFLICT (id) DO NOTHING`
	} else {
		insert = `INSERT OR IGNORE INTO analysis_records (id, phone, created_at, mode, report_text, thumbnail, favorite)
			VALUES (?, ?, ?, ?, ?, ?, 0)`
	}
	if _, err := s.db.Exec(s.rebind(insert), rec.ID, phone, rec.Timestamp, rec.Mode, rec.ReportText, rec.Thumbnail); err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}

	if favorite {
		mark := `UPDATE analysis_records SET favorite = ` + boolTrue(s.dbType) + ` WHERE id = ?`
		if _, err := s.db.Exec(s.rebind(mark), rec.ID); err != nil {
			return fmt.Errorf("failed to mark favorite: %w", err)
		}
	}
	return nil
}

// LoadHistory returns the newest bounded history (oldest first, newest last)
// and the full favorites list for a phone number.
func (s *Store) LoadHistory(phone string) (history, favorites []*session.Record, err error) {
	historyQuery := fmt.Sprintf(`SELECT id, created_at, mode, report_text, thumbnail FROM (
			SELECT id, created_at, mode, report_text, thumbnail
			FROM analysis_records
			WHERE phone = ?
			ORDER BY created_at DESC
			LIMIT %d
		) recent ORDER BY created_at ASC`, session.HistoryLimit)
	history, err = s.queryRecords(historyQuery, phone)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load history: %w", err)
	}

	favQuery := `SELECT id, created_at, mode, report_text, thumbnail
		FROM analysis_records
		WHERE phone = ? AND favorite = ` + boolTrue(s.dbType) + `
		ORDER BY created_at ASC`
	favorites, err = s.queryRecords(favQuery, phone)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load favorites: %w", err)
	}
	return history, favorites, nil
}

func (s *Store) queryRecords(query string, args ...interface{}) ([]*session.Record, error) {
	rows, err := s.db.Query(s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*session.Record
	for rows.Next() {
		rec := &session.Record{}
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.Mode, &rec.ReportText, &rec.Thumbnail); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func boolTrue(dbType string) string {
	if dbType == "postgres" {
		return "TRUE"
	}
	return "1"
}
