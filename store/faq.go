package store

import (
	"database/sql"
	"fmt"
)

// ReplaceFAQItems replaces the parent's Q/A rows in one transaction.
// Delete-then-insert keeps re-crawls of the same page idempotent.
func (s *Store) ReplaceFAQItems(documentURL string, items []FAQItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM faq_items WHERE document_url = ?`, documentURL); err != nil {
			return fmt.Errorf("clear faq items for %s: %w", documentURL, err)
		}
		for _, it := range items {
			_, err := tx.Exec(`
				INSERT INTO faq_items
					(document_url, question_text, answer_text, answer_raw_html, answer_mode, link_depth_to_answer)
				VALUES (?, ?, ?, ?, ?, ?)`,
				documentURL, it.QuestionText, it.AnswerText, it.AnswerRawHTML,
				it.AnswerMode, it.LinkDepthToAnswer)
			if err != nil {
				return fmt.Errorf("insert faq item for %s: %w", documentURL, err)
			}
		}
		return nil
	})
}

// FAQItemsFor returns the parent's Q/A rows in insertion order.
func (s *Store) FAQItemsFor(documentURL string) ([]FAQItem, error) {
	rows, err := s.db.Query(`
		SELECT id, document_url, question_text, answer_text, answer_raw_html, answer_mode, link_depth_to_answer
		FROM faq_items WHERE document_url = ? ORDER BY id`, documentURL)
	if err != nil {
		return nil, fmt.Errorf("faq items for %s: %w", documentURL, err)
	}
	defer rows.Close()
	return scanFAQItems(rows)
}

// ListFAQItems returns every Q/A row ordered by id.
func (s *Store) ListFAQItems() ([]FAQItem, error) {
	rows, err := s.db.Query(`
		SELECT id, document_url, question_text, answer_text, answer_raw_html, answer_mode, link_depth_to_answer
		FROM faq_items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list faq items: %w", err)
	}
	defer rows.Close()
	return scanFAQItems(rows)
}

func scanFAQItems(rows *sql.Rows) ([]FAQItem, error) {
	var items []FAQItem
	for rows.Next() {
		var it FAQItem
		var depth sql.NullInt64
		if err := rows.Scan(&it.ID, &it.DocumentURL, &it.QuestionText, &it.AnswerText,
			&it.AnswerRawHTML, &it.AnswerMode, &depth); err != nil {
			return nil, fmt.Errorf("scan faq item: %w", err)
		}
		if depth.Valid {
			d := int(depth.Int64)
			it.LinkDepthToAnswer = &d
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// inTx runs fn inside a transaction. Callers hold s.mu.
func (s *Store) inTx(fn func(*sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
