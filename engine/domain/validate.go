package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Source keys double as blob object names, so they stay within a safe alphabet.
var sourceKeyRegex = regexp.MustCompile(`^[A-Z0-9][A-Z0-9_]*$`)

var (
	ErrInvalidArticle   = errors.New("invalid article")
	ErrInvalidSourceKey = errors.New("invalid source key")
	ErrQuestionTooLong  = errors.New("question too long")
)

const maxQuestionRunes = 4096

// ValidateArticle checks an article before it is persisted.
func ValidateArticle(a Article) error {
	if strings.TrimSpace(a.Source) == "" {
		return NewValidationError("source", a.Source, ErrInvalidArticle)
	}
	if strings.TrimSpace(a.ArticleID) == "" {
		return NewValidationError("article_id", a.ArticleID, ErrInvalidArticle)
	}
	if strings.ContainsRune(a.ArticleID, '/') {
		return NewValidationError("article_id", a.ArticleID, ErrInvalidArticle)
	}
	return nil
}

// ValidateQuestion checks a retrieval request.
func ValidateQuestion(question string, topK int) error {
	text := strings.TrimSpace(question)
	if text == "" {
		return NewValidationError("question", question, ErrInvalidQuery)
	}
	if utf8.RuneCountInString(text) > maxQuestionRunes {
		return NewValidationError("question", string([]rune(text)[:32]), fmt.Errorf("%w: %w", ErrInvalidQuery, ErrQuestionTooLong))
	}
	if topK < 1 {
		return NewValidationError("top_k", fmt.Sprint(topK), ErrInvalidQuery)
	}
	return nil
}

// ValidateCatalogue rejects duplicate or malformed source keys.
func ValidateCatalogue(c Catalogue) error {
	if len(c) == 0 {
		return fmt.Errorf("%w: empty source catalogue", ErrConfiguration)
	}
	seen := make(map[string]bool, len(c))
	for _, s := range c {
		if !sourceKeyRegex.MatchString(s.Key) {
			return fmt.Errorf("%w: %w", ErrConfiguration, NewValidationError("key", s.Key, ErrInvalidSourceKey))
		}
		if seen[s.Key] {
			return fmt.Errorf("%w: duplicate source %q", ErrConfiguration, s.Key)
		}
		seen[s.Key] = true
	}
	return nil
}
