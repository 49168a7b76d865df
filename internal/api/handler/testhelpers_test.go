package handler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/datacove/exporttrack/internal/client"
	"github.com/datacove/exporttrack/internal/domain"
	"github.com/datacove/exporttrack/internal/tracker"
)

// testLogger returns a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeBackend is a test implementation of client.Client.
type fakeBackend struct {
	mu sync.Mutex

	page        *client.RecordPage
	fetchErr    error
	downloadURL string
	downloadErr error
	reimportID  domain.ObjectID
	reimportErr error
	exportID    domain.RecordID
	exportErr   error
}

func (f *fakeBackend) FetchExportRecords(ctx context.Context, objectID domain.ObjectID) (*client.RecordPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if f.page == nil {
		return &client.RecordPage{SourceUpdatedAt: testTime}, nil
	}
	return f.page, nil
}

func (f *fakeBackend) RequestExport(ctx context.Context, objectID domain.ObjectID, format string) (domain.RecordID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.exportErr != nil {
		return "", f.exportErr
	}
	return f.exportID, nil
}

func (f *fakeBackend) RequestDownload(ctx context.Context, recordID domain.RecordID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.downloadErr != nil {
		return "", f.downloadErr
	}
	return f.downloadURL, nil
}

func (f *fakeBackend) RequestReimport(ctx context.Context, recordID domain.RecordID) (domain.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reimportErr != nil {
		return "", f.reimportErr
	}
	return f.reimportID, nil
}

func (f *fakeBackend) ArchiveURL(recordID domain.RecordID) string {
	return "https://backend.example.org/api/exports/" + recordID.String() + "/archive"
}

var testTime = time.Date(2025, 3, 2, 8, 0, 0, 0, time.UTC)

func pageWith(records ...domain.RawRecord) *client.RecordPage {
	return &client.RecordPage{
		SourceUpdatedAt: testTime,
		Records:         records,
	}
}

func readyRecord(id string) domain.RawRecord {
	return domain.RawRecord{
		ID:         id,
		CreateTime: testTime.Format(time.RFC3339),
		Format:     "rocrate.zip",
		State:      "ready",
	}
}

func preparingRecord(id string) domain.RawRecord {
	raw := readyRecord(id)
	raw.State = "preparing"
	return raw
}

// newTestRegistry builds a registry backed by the fake, with a long poll
// interval so scheduled fetches never interfere with a test.
func newTestRegistry(f *fakeBackend) *tracker.Registry {
	return tracker.NewRegistry(f, tracker.Config{
		PollInterval:     time.Hour,
		MaxFetchFailures: 5,
	}, testLogger())
}
