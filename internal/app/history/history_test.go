package history_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rainpipe/pdfwatch/internal/api/apimock"
	"github.com/rainpipe/pdfwatch/internal/app/history"
	"github.com/rainpipe/pdfwatch/internal/log"
	"github.com/rainpipe/pdfwatch/internal/model"
	"github.com/rainpipe/pdfwatch/internal/storage/storagemock"
)

func TestNewService(t *testing.T) {
	tests := map[string]struct {
		config history.ServiceConfig
		expErr bool
	}{
		"valid config should create service": {
			config: history.ServiceConfig{
				Client:     &apimock.MockClient{},
				Repository: &storagemock.MockRepository{},
				Logger:     log.Noop,
			},
		},
		"missing repository is optional": {
			config: history.ServiceConfig{
				Client: &apimock.MockClient{},
			},
		},
		"missing client should fail": {
			config: history.ServiceConfig{
				Repository: &storagemock.MockRepository{},
			},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)

			svc, err := history.NewService(test.config)

			if test.expErr {
				require.Error(err)
				require.Nil(svc)
			} else {
				require.NoError(err)
				require.NotNil(svc)
			}
		})
	}
}

func records(n int) []model.JobRecord {
	createdAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rs := make([]model.JobRecord, 0, n)
	for i := 0; i < n; i++ {
		rs = append(rs, model.JobRecord{
			UUID:      fmt.Sprintf("job-%02d", i),
			Keywords:  "obsidian",
			CreatedAt: createdAt.Add(-time.Duration(i) * time.Hour),
			Status:    model.JobStatusCompleted,
		})
	}
	return rs
}

func TestServiceList(t *testing.T) {
	tests := map[string]struct {
		mock        func(mc *apimock.MockClient, mr *storagemock.MockRepository)
		req         history.ListRequest
		expIDs      []string
		expCurrent  string
		expViewOnly map[string]bool
		expErr      bool
	}{
		"More jobs than the limit should be truncated keeping server order.": {
			mock: func(mc *apimock.MockClient, mr *storagemock.MockRepository) {
				mc.On("JobHistory", mock.Anything, 10).Once().Return(records(12), nil)
				mr.On("ListSessions", mock.Anything).Once().Return(nil, nil)
			},
			expIDs: []string{"job-00", "job-01", "job-02", "job-03", "job-04", "job-05", "job-06", "job-07", "job-08", "job-09"},
		},

		"The latest active local session should mark the current job.": {
			mock: func(mc *apimock.MockClient, mr *storagemock.MockRepository) {
				rs := records(3)
				rs[1].Status = model.JobStatusProcessing
				mc.On("JobHistory", mock.Anything, 10).Once().Return(rs, nil)
				mr.On("ListSessions", mock.Anything).Once().Return([]model.Session{
					{ID: "s3", JobID: "job-00", LastStatus: model.JobStatusCompleted},
					{ID: "s2", JobID: "job-01", LastStatus: model.JobStatusProcessing},
					{ID: "s1", JobID: "job-02", LastStatus: model.JobStatusPending},
				}, nil)
			},
			expIDs:      []string{"job-00", "job-01", "job-02"},
			expCurrent:  "job-01",
			expViewOnly: map[string]bool{"job-00": true, "job-01": false, "job-02": true},
		},

		"An explicit current job should not use the local sessions.": {
			mock: func(mc *apimock.MockClient, mr *storagemock.MockRepository) {
				mc.On("JobHistory", mock.Anything, 10).Once().Return(records(3), nil)
			},
			req:        history.ListRequest{CurrentJobID: "job-02"},
			expIDs:     []string{"job-00", "job-01", "job-02"},
			expCurrent: "job-02",
		},

		"A failing session store should not fail the listing.": {
			mock: func(mc *apimock.MockClient, mr *storagemock.MockRepository) {
				mc.On("JobHistory", mock.Anything, 10).Once().Return(records(1), nil)
				mr.On("ListSessions", mock.Anything).Once().Return(nil, fmt.Errorf("something"))
			},
			expIDs: []string{"job-00"},
		},

		"Unknown statuses should be view only.": {
			mock: func(mc *apimock.MockClient, mr *storagemock.MockRepository) {
				rs := records(1)
				rs[0].Status = "paused"
				mc.On("JobHistory", mock.Anything, 10).Once().Return(rs, nil)
				mr.On("ListSessions", mock.Anything).Once().Return(nil, nil)
			},
			expIDs:      []string{"job-00"},
			expViewOnly: map[string]bool{"job-00": true},
		},

		"An error getting the history should fail.": {
			mock: func(mc *apimock.MockClient, mr *storagemock.MockRepository) {
				mc.On("JobHistory", mock.Anything, 10).Once().Return(nil, model.ErrTransport)
			},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			mc := &apimock.MockClient{}
			mr := &storagemock.MockRepository{}
			test.mock(mc, mr)

			svc, err := history.NewService(history.ServiceConfig{Client: mc, Repository: mr})
			require.NoError(err)

			items, err := svc.List(context.TODO(), test.req)

			if test.expErr {
				assert.Error(err)
			} else if assert.NoError(err) {
				gotIDs := []string{}
				for _, it := range items {
					gotIDs = append(gotIDs, it.Record.UUID)
					assert.Equal(it.Record.UUID == test.expCurrent, it.Current, it.Record.UUID)
					if exp, ok := test.expViewOnly[it.Record.UUID]; ok {
						assert.Equal(exp, it.ViewOnly, it.Record.UUID)
					}
				}
				assert.Equal(test.expIDs, gotIDs)
			}

			mc.AssertExpectations(t)
			mr.AssertExpectations(t)
		})
	}
}

func TestServiceSelect(t *testing.T) {
	tests := map[string]struct {
		jobID   string
		mock    func(mc *apimock.MockClient)
		expLogs []model.LogEntry
		expErr  error
	}{
		"Logs should be deduplicated and ordered newest first.": {
			jobID: "abc",
			mock: func(mc *apimock.MockClient) {
				mc.On("LogHistory", mock.Anything, "abc").Once().Return([]model.LogEntry{
					{Timestamp: "2026-03-01T10:00:01Z", Stage: "filtering", Message: "T1"},
					{Timestamp: "2026-03-01T10:00:00Z", Stage: "filtering", Message: "T0"},
					{Timestamp: "2026-03-01T10:00:02Z", Stage: "filtering", Message: "T2"},
					{Timestamp: "2026-03-01T10:00:01Z", Stage: "filtering", Message: "T1"},
				}, nil)
			},
			expLogs: []model.LogEntry{
				{Timestamp: "2026-03-01T10:00:02Z", Stage: "filtering", Message: "T2"},
				{Timestamp: "2026-03-01T10:00:01Z", Stage: "filtering", Message: "T1"},
				{Timestamp: "2026-03-01T10:00:00Z", Stage: "filtering", Message: "T0"},
			},
		},

		"Missing job id should fail without calling the API.": {
			jobID:  "",
			mock:   func(mc *apimock.MockClient) {},
			expErr: model.ErrNotValid,
		},

		"API errors should be returned.": {
			jobID: "abc",
			mock: func(mc *apimock.MockClient) {
				mc.On("LogHistory", mock.Anything, "abc").Once().Return(nil, model.ErrTransport)
			},
			expErr: model.ErrTransport,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			mc := &apimock.MockClient{}
			test.mock(mc)

			svc, err := history.NewService(history.ServiceConfig{Client: mc})
			require.NoError(err)

			logs, err := svc.Select(context.TODO(), test.jobID)

			if test.expErr != nil {
				assert.ErrorIs(err, test.expErr)
			} else if assert.NoError(err) {
				assert.Equal(test.expLogs, logs)
			}

			mc.AssertExpectations(t)
		})
	}
}
