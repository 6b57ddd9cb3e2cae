// Package testutil provides testing utilities for the mailballot module.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
)

// MockSoda is a configurable mock Socrata resource for testing. It
// serves the two request shapes the fetcher uses: the aggregate count
// query (`$select=count(*)`) and the offset/limit page query.
type MockSoda struct {
	server *httptest.Server

	mu          sync.RWMutex
	records     []map[string]string
	total       int
	countStatus int
	pageStatus  map[int]int // offset -> forced status
	emptyFrom   int         // offsets >= emptyFrom serve zero rows (-1: disabled)

	// Tracking
	countRequests int
	pageRequests  int
	pageOffsets   []int
}

// NewMockSoda creates a new mock resource with no rows.
func NewMockSoda() *MockSoda {
	mock := &MockSoda{
		countStatus: http.StatusOK,
		pageStatus:  make(map[int]int),
		emptyFrom:   -1,
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the mock resource URL.
func (m *MockSoda) URL() string {
	return m.server.URL + "/resource/mcba-yywm.json"
}

// Close shuts down the mock server.
func (m *MockSoda) Close() {
	m.server.Close()
}

// SetRecords replaces the served rows and sets the reported total to
// match.
func (m *MockSoda) SetRecords(records []map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = records
	m.total = len(records)
}

// SetTotal overrides the count reported by the count query, allowing it
// to diverge from the rows actually served.
func (m *MockSoda) SetTotal(total int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total = total
}

// SetCountStatus forces the count query to respond with the given
// status.
func (m *MockSoda) SetCountStatus(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.countStatus = status
}

// SetPageStatus forces the page request at the given offset to respond
// with the given status.
func (m *MockSoda) SetPageStatus(offset, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pageStatus[offset] = status
}

// SetEmptyFrom makes page requests at or beyond the given offset return
// zero rows regardless of the record set.
func (m *MockSoda) SetEmptyFrom(offset int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emptyFrom = offset
}

// CountRequests returns the number of count queries received.
func (m *MockSoda) CountRequests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.countRequests
}

// PageRequests returns the number of page queries received.
func (m *MockSoda) PageRequests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pageRequests
}

// PageOffsets returns the offsets of the page queries received, in
// arrival order.
func (m *MockSoda) PageOffsets() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]int, len(m.pageOffsets))
	copy(out, m.pageOffsets)
	return out
}

// GenRecords produces n sequential ballot-request rows with a seq field
// for order assertions.
func GenRecords(n int) []map[string]string {
	records := make([]map[string]string, n)
	for i := range records {
		records[i] = map[string]string{
			"seq":        strconv.Itoa(i),
			"countyname": fmt.Sprintf("COUNTY %d", i%5),
			"party":      []string{"D", "R", "NOP"}[i%3],
		}
	}
	return records
}

func (m *MockSoda) handle(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	if query.Get("$select") == "count(*)" {
		m.handleCount(w)
		return
	}
	m.handlePage(w, query.Get("$limit"), query.Get("$offset"))
}

func (m *MockSoda) handleCount(w http.ResponseWriter) {
	m.mu.Lock()
	m.countRequests++
	status := m.countStatus
	total := m.total
	m.mu.Unlock()

	if status != http.StatusOK {
		w.WriteHeader(status)
		fmt.Fprintf(w, `{"error": true, "message": "mock count failure"}`)
		return
	}

	// Socrata reports the aggregate as a numeric string.
	fmt.Fprintf(w, `[{"count": "%d"}]`, total)
}

func (m *MockSoda) handlePage(w http.ResponseWriter, limitStr, offsetStr string) {
	limit, _ := strconv.Atoi(limitStr)
	offset, _ := strconv.Atoi(offsetStr)

	m.mu.Lock()
	m.pageRequests++
	m.pageOffsets = append(m.pageOffsets, offset)
	status, forced := m.pageStatus[offset]
	emptyFrom := m.emptyFrom
	records := m.records
	m.mu.Unlock()

	if forced && status != http.StatusOK {
		w.WriteHeader(status)
		fmt.Fprintf(w, `{"error": true, "message": "mock page failure"}`)
		return
	}

	page := []map[string]string{}
	if !(emptyFrom >= 0 && offset >= emptyFrom) && offset < len(records) {
		end := offset + limit
		if end > len(records) {
			end = len(records)
		}
		page = records[offset:end]
	}

	if err := json.NewEncoder(w).Encode(page); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
