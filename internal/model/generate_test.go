package model_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rainpipe/pdfwatch/internal/model"
)

func TestGenerateRequestValidate(t *testing.T) {
	tests := map[string]struct {
		req    model.GenerateRequest
		expErr bool
	}{
		"Keywords only should be valid.": {
			req: model.GenerateRequest{Keywords: "Obsidian"},
		},
		"Japanese keywords with ideographic comma should be valid.": {
			req: model.GenerateRequest{Keywords: "生成AI、Obsidian, go-lang"},
		},
		"Empty keywords should fail.": {
			req:    model.GenerateRequest{Keywords: ""},
			expErr: true,
		},
		"Whitespace keywords should fail.": {
			req:    model.GenerateRequest{Keywords: "   \t "},
			expErr: true,
		},
		"Keywords with injection characters should fail.": {
			req:    model.GenerateRequest{Keywords: `Obsidian"; DROP TABLE jobs;--`},
			expErr: true,
		},
		"Too long keywords should fail.": {
			req:    model.GenerateRequest{Keywords: strings.Repeat("a", model.MaxKeywordsLength+1)},
			expErr: true,
		},
		"Valid date range should be valid.": {
			req: model.GenerateRequest{Keywords: "Obsidian", DateStart: "2025-01-01", DateEnd: "2025-03-31"},
		},
		"Only start date should fail.": {
			req:    model.GenerateRequest{Keywords: "Obsidian", DateStart: "2025-01-01"},
			expErr: true,
		},
		"Only end date should fail.": {
			req:    model.GenerateRequest{Keywords: "Obsidian", DateEnd: "2025-01-01"},
			expErr: true,
		},
		"Inverted date range should fail.": {
			req:    model.GenerateRequest{Keywords: "Obsidian", DateStart: "2025-03-01", DateEnd: "2025-01-01"},
			expErr: true,
		},
		"Date range over a year should fail.": {
			req:    model.GenerateRequest{Keywords: "Obsidian", DateStart: "2024-01-01", DateEnd: "2025-06-01"},
			expErr: true,
		},
		"Malformed date should fail.": {
			req:    model.GenerateRequest{Keywords: "Obsidian", DateStart: "01/01/2025", DateEnd: "2025-02-01"},
			expErr: true,
		},
		"Send to kindle with email should be valid.": {
			req: model.GenerateRequest{Keywords: "Obsidian", SendToKindle: true, KindleEmail: "reader@kindle.com"},
		},
		"Send to kindle without email should fail.": {
			req:    model.GenerateRequest{Keywords: "Obsidian", SendToKindle: true},
			expErr: true,
		},
		"Send to kindle with invalid email should fail.": {
			req:    model.GenerateRequest{Keywords: "Obsidian", SendToKindle: true, KindleEmail: "not-an-email"},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			err := test.req.Validate()
			if test.expErr {
				assert.Error(t, err)
				assert.True(t, errors.Is(err, model.ErrNotValid))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSessionValidate(t *testing.T) {
	tests := map[string]struct {
		session model.Session
		expErr  bool
	}{
		"Missing ID should fail.": {
			session: model.Session{JobID: "abc"},
			expErr:  true,
		},
		"Missing job ID should fail.": {
			session: model.Session{ID: "01ARZ3NDEKTSV4RRFFQ69G5FAV"},
			expErr:  true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			err := test.session.Validate()
			if test.expErr {
				assert.ErrorIs(t, err, model.ErrNotValid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
