package model

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// MaxKeywordsLength is the maximum number of characters accepted for the keyword phrase.
	MaxKeywordsLength = 500
	// MaxDateRange is the maximum span between the start and end dates of a generation.
	MaxDateRange = 365 * 24 * time.Hour

	dateLayout = "2006-01-02"
)

// Letters, digits, underscore, whitespace, comma, hyphen and the ideographic comma.
var keywordsRegexp = regexp.MustCompile(`^[\w\p{L}\p{N}\s,\-、]+$`)

// GenerateRequest is the keyword filtered PDF generation form.
type GenerateRequest struct {
	Keywords string
	// DateStart and DateEnd use the YYYY-MM-DD format, both or none must be set.
	DateStart    string
	DateEnd      string
	SendToKindle bool
	KindleEmail  string
}

// Validate validates the generation form locally, no network is involved.
func (g GenerateRequest) Validate() error {
	if err := ValidateKeywords(g.Keywords); err != nil {
		return err
	}

	if err := validateDateRange(g.DateStart, g.DateEnd); err != nil {
		return err
	}

	if g.SendToKindle {
		if strings.TrimSpace(g.KindleEmail) == "" {
			return fmt.Errorf("kindle email is required when sending to kindle: %w", ErrNotValid)
		}
		if _, err := mail.ParseAddress(g.KindleEmail); err != nil {
			return fmt.Errorf("kindle email %q is invalid: %w", g.KindleEmail, ErrNotValid)
		}
	}

	return nil
}

// ValidateKeywords validates the keyword phrase of a generation.
func ValidateKeywords(keywords string) error {
	keywords = strings.TrimSpace(keywords)
	if keywords == "" {
		return fmt.Errorf("keywords are required: %w", ErrNotValid)
	}

	if !keywordsRegexp.MatchString(keywords) {
		return fmt.Errorf("keywords contain invalid characters (allowed: letters, digits, spaces, commas, hyphens): %w", ErrNotValid)
	}

	if utf8.RuneCountInString(keywords) > MaxKeywordsLength {
		return fmt.Errorf("keywords must be at most %d characters: %w", MaxKeywordsLength, ErrNotValid)
	}

	return nil
}

func validateDateRange(start, end string) error {
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	if start == "" && end == "" {
		return nil
	}

	if start == "" || end == "" {
		return fmt.Errorf("both start and end dates must be set, or none: %w", ErrNotValid)
	}

	startDate, err := time.Parse(dateLayout, start)
	if err != nil {
		return fmt.Errorf("start date %q is invalid (expected YYYY-MM-DD): %w", start, ErrNotValid)
	}
	endDate, err := time.Parse(dateLayout, end)
	if err != nil {
		return fmt.Errorf("end date %q is invalid (expected YYYY-MM-DD): %w", end, ErrNotValid)
	}

	if startDate.After(endDate) {
		return fmt.Errorf("start date must be before end date: %w", ErrNotValid)
	}

	if endDate.Sub(startDate) > MaxDateRange {
		return fmt.Errorf("date range must be within 1 year: %w", ErrNotValid)
	}

	return nil
}
