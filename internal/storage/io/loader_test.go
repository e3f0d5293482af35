package io

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rainpipe/pdfwatch/internal/model"
)

func TestProfileYAMLRepository_GetProfile(t *testing.T) {
	tests := map[string]struct {
		fs         fstest.MapFS
		path       string
		expProfile model.Profile
		expErr     bool
		errMsg     string
	}{
		"Complete profile should load successfully": {
			fs: fstest.MapFS{
				"profile.yaml": &fstest.MapFile{
					Data: []byte(`api:
  url: http://pdf.local:4567
  requests_per_second: 2.5
kindle:
  send: true
  email: me@kindle.com
db_path: /tmp/pdfwatch.db
`),
				},
			},
			path: "profile.yaml",
			expProfile: model.Profile{
				APIURL:            "http://pdf.local:4567",
				RequestsPerSecond: 2.5,
				SendToKindle:      true,
				KindleEmail:       "me@kindle.com",
				DBPath:            "/tmp/pdfwatch.db",
			},
		},
		"Empty profile should load successfully": {
			fs: fstest.MapFS{
				"empty.yaml": &fstest.MapFile{
					Data: []byte(`---
`),
				},
			},
			path:       "empty.yaml",
			expProfile: model.Profile{},
		},
		"Missing file should return error": {
			fs:     fstest.MapFS{},
			path:   "nonexistent.yaml",
			expErr: true,
			errMsg: "reading profile file",
		},
		"Invalid YAML should return error": {
			fs: fstest.MapFS{
				"invalid.yaml": &fstest.MapFile{
					Data: []byte(`invalid: yaml: content: {}`),
				},
			},
			path:   "invalid.yaml",
			expErr: true,
			errMsg: "parsing YAML",
		},
		"Non http API URL should return error": {
			fs: fstest.MapFS{
				"profile.yaml": &fstest.MapFile{
					Data: []byte(`api:
  url: ftp://pdf.local
`),
				},
			},
			path:   "profile.yaml",
			expErr: true,
			errMsg: "invalid profile",
		},
		"Send to kindle without email should return error": {
			fs: fstest.MapFS{
				"profile.yaml": &fstest.MapFile{
					Data: []byte(`kindle:
  send: true
`),
				},
			},
			path:   "profile.yaml",
			expErr: true,
			errMsg: "kindle email is required",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			repo := NewProfileYAMLRepository(tc.fs)
			prof, err := repo.GetProfile(context.Background(), tc.path)

			if tc.expErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errMsg)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expProfile, prof)
		})
	}
}

func TestProfileYAMLRepository_GetProfile_ContextCancellation(t *testing.T) {
	fs := fstest.MapFS{
		"test.yaml": &fstest.MapFile{
			Data: []byte(`api:
  url: http://localhost:4567
`),
		},
	}

	repo := NewProfileYAMLRepository(fs)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.GetProfile(ctx, "test.yaml")
	require.Error(t, err)
	assert.Equal(t, context.Canceled, err)
}
