package fetch

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/ballotflow/mailballot/internal/testutil"
	"github.com/ballotflow/mailballot/pkg/dataset"
	"github.com/ballotflow/mailballot/pkg/soda"
)

func newTestFetcher(t *testing.T, mock *testutil.MockSoda, pageSize int) *Fetcher {
	t.Helper()

	client, err := soda.New(soda.Config{
		ResourceURL: mock.URL(),
		UserAgent:   "mailballot-test/1.0.0 (test@example.com)",
	})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	return New(client, Config{PageSize: pageSize, PageTimeout: 10 * time.Second})
}

// assertAscending verifies the seq column is 0..n-1 in row order.
func assertAscending(t *testing.T, table *dataset.Table) {
	t.Helper()

	for i, r := range table.Rows {
		seq, ok := r.Get("seq")
		if !ok {
			t.Fatalf("Row %d has no seq field", i)
		}
		if seq != strconv.Itoa(i) {
			t.Fatalf("Row %d has seq %q, records out of fetch order", i, seq)
		}
	}
}

func TestNew_Defaults(t *testing.T) {
	f := New(nil, Config{})

	if f.config.PageSize != 50000 {
		t.Errorf("PageSize = %d, want 50000", f.config.PageSize)
	}
	if f.config.PageTimeout != 60*time.Second {
		t.Errorf("PageTimeout = %v, want 60s", f.config.PageTimeout)
	}
}

func TestFetchAll_AllPages(t *testing.T) {
	mock := testutil.NewMockSoda()
	defer mock.Close()
	mock.SetRecords(testutil.GenRecords(1200))

	fetcher := newTestFetcher(t, mock, 500)

	result, err := fetcher.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll() failed: %v", err)
	}

	if result.Total != 1200 {
		t.Errorf("Total = %d, want 1200", result.Total)
	}
	if result.Table.Len() != 1200 {
		t.Errorf("Rows = %d, want 1200", result.Table.Len())
	}
	if result.Pages != 3 {
		t.Errorf("Pages = %d, want 3 (ceil(1200/500))", result.Pages)
	}
	if result.Partial {
		t.Error("Partial = true, want false for a complete fetch")
	}

	offsets := mock.PageOffsets()
	want := []int{0, 500, 1000}
	if len(offsets) != len(want) {
		t.Fatalf("Page offsets = %v, want %v", offsets, want)
	}
	for i := range want {
		if offsets[i] != want[i] {
			t.Fatalf("Page offsets = %v, want %v", offsets, want)
		}
	}

	if mock.CountRequests() != 1 {
		t.Errorf("Count requests = %d, want 1", mock.CountRequests())
	}

	assertAscending(t, result.Table)
}

func TestFetchAll_ExactPageBoundary(t *testing.T) {
	mock := testutil.NewMockSoda()
	defer mock.Close()
	mock.SetRecords(testutil.GenRecords(1000))

	fetcher := newTestFetcher(t, mock, 500)

	result, err := fetcher.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll() failed: %v", err)
	}

	// 1000 rows at page size 500: exactly 2 requests, no probe beyond
	// the count bound.
	if result.Pages != 2 {
		t.Errorf("Pages = %d, want 2", result.Pages)
	}
	if result.Table.Len() != 1000 {
		t.Errorf("Rows = %d, want 1000", result.Table.Len())
	}
	if result.Partial {
		t.Error("Partial = true, want false")
	}
}

func TestFetchAll_CountFailureIsFatal(t *testing.T) {
	mock := testutil.NewMockSoda()
	defer mock.Close()
	mock.SetRecords(testutil.GenRecords(100))
	mock.SetCountStatus(http.StatusInternalServerError)

	fetcher := newTestFetcher(t, mock, 50)

	_, err := fetcher.FetchAll(context.Background())
	if !errors.Is(err, soda.ErrCountUnavailable) {
		t.Fatalf("Expected ErrCountUnavailable, got %v", err)
	}
	if mock.PageRequests() != 0 {
		t.Errorf("Page requests = %d, want 0 when the count query fails", mock.PageRequests())
	}
}

func TestFetchAll_PageFailureKeepsPartialData(t *testing.T) {
	mock := testutil.NewMockSoda()
	defer mock.Close()
	mock.SetRecords(testutil.GenRecords(1000))
	mock.SetPageStatus(600, http.StatusServiceUnavailable)

	fetcher := newTestFetcher(t, mock, 300)

	result, err := fetcher.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("A failed page must not surface as an error, got %v", err)
	}

	// Pages at offsets 0 and 300 succeed, 600 fails, 900 is never
	// requested.
	if result.Table.Len() != 600 {
		t.Errorf("Rows = %d, want 600", result.Table.Len())
	}
	if !result.Partial {
		t.Error("Partial = false, want true after a page failure")
	}
	if mock.PageRequests() != 3 {
		t.Errorf("Page requests = %d, want 3 (no request after the failure)", mock.PageRequests())
	}
	assertAscending(t, result.Table)
}

func TestFetchAll_EmptyPageStops(t *testing.T) {
	mock := testutil.NewMockSoda()
	defer mock.Close()
	mock.SetRecords(testutil.GenRecords(1000))
	mock.SetEmptyFrom(600)

	fetcher := newTestFetcher(t, mock, 300)

	result, err := fetcher.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("An empty page must not surface as an error, got %v", err)
	}

	if result.Table.Len() != 600 {
		t.Errorf("Rows = %d, want 600", result.Table.Len())
	}
	if !result.Partial {
		t.Error("Partial = false, want true when the loop stopped early")
	}
	if mock.PageRequests() != 3 {
		t.Errorf("Page requests = %d, want 3", mock.PageRequests())
	}
}

func TestFetchAll_EmptyFirstPageWithNonZeroCount(t *testing.T) {
	// Upstream inconsistency: the count says 10 rows but the first
	// page is empty. The result is an empty dataset, not an error.
	mock := testutil.NewMockSoda()
	defer mock.Close()
	mock.SetTotal(10)

	fetcher := newTestFetcher(t, mock, 50000)

	result, err := fetcher.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll() failed: %v", err)
	}

	if result.Table.Len() != 0 {
		t.Errorf("Rows = %d, want 0", result.Table.Len())
	}
	if mock.PageRequests() != 1 {
		t.Errorf("Page requests = %d, want 1", mock.PageRequests())
	}
	if !result.Partial {
		t.Error("Partial = false, want true")
	}
}

func TestFetchAll_Idempotent(t *testing.T) {
	mock := testutil.NewMockSoda()
	defer mock.Close()
	mock.SetRecords(testutil.GenRecords(750))

	fetcher := newTestFetcher(t, mock, 250)

	first, err := fetcher.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("First FetchAll() failed: %v", err)
	}
	second, err := fetcher.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("Second FetchAll() failed: %v", err)
	}

	if !first.Table.Equal(second.Table) {
		t.Error("Two fetches of an unchanged resource returned different datasets")
	}
}

// scriptedClient is a PageClient with canned responses, for paths that
// are awkward to provoke over HTTP.
type scriptedClient struct {
	total     int
	pages     map[int][]dataset.Record // offset -> rows
	pageErrs  map[int]error            // offset -> error
	countErr  error
	pageCalls []int
}

func (c *scriptedClient) Count(ctx context.Context) (int, error) {
	return c.total, c.countErr
}

func (c *scriptedClient) Page(ctx context.Context, limit, offset int) ([]dataset.Record, error) {
	c.pageCalls = append(c.pageCalls, offset)
	if err := c.pageErrs[offset]; err != nil {
		return nil, err
	}
	return c.pages[offset], nil
}

func TestFetchAll_TransportErrorTreatedAsPageFailure(t *testing.T) {
	client := &scriptedClient{
		total: 6,
		pages: map[int][]dataset.Record{
			0: {{"seq": "0"}, {"seq": "1"}},
		},
		pageErrs: map[int]error{
			2: errors.New("dial tcp: connection reset"),
		},
	}

	fetcher := New(client, Config{PageSize: 2})

	result, err := fetcher.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("Transport error on a page must not surface as an error, got %v", err)
	}

	if result.Table.Len() != 2 {
		t.Errorf("Rows = %d, want 2", result.Table.Len())
	}
	if !result.Partial {
		t.Error("Partial = false, want true")
	}
	if len(client.pageCalls) != 2 {
		t.Errorf("Page calls = %v, want [0 2]", client.pageCalls)
	}
}

func TestFetchAll_PageTimeout(t *testing.T) {
	slow := &slowClient{total: 2, delay: 200 * time.Millisecond}
	fetcher := New(slow, Config{PageSize: 2, PageTimeout: 20 * time.Millisecond})

	result, err := fetcher.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("A timed-out page must degrade to a partial result, got %v", err)
	}
	if result.Table.Len() != 0 {
		t.Errorf("Rows = %d, want 0", result.Table.Len())
	}
	if !result.Partial {
		t.Error("Partial = false, want true")
	}
}

type slowClient struct {
	total int
	delay time.Duration
}

func (c *slowClient) Count(ctx context.Context) (int, error) {
	return c.total, nil
}

func (c *slowClient) Page(ctx context.Context, limit, offset int) ([]dataset.Record, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(c.delay):
		return []dataset.Record{{"seq": "0"}, {"seq": "1"}}, nil
	}
}
