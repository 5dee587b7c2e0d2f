package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"testing"

	"github.com/go-logr/logr/testr"
	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/corefreq/cpu-freq-manager/internal/dispatch"
	"github.com/corefreq/cpu-freq-manager/internal/freqtable"
)

type recordedRequest struct {
	core     uint
	target   freqtable.Frequency
	relation freqtable.Relation
}

type fakeManager struct {
	mu        sync.Mutex
	current   map[uint]freqtable.Frequency
	suspended map[uint]bool
	requests  []recordedRequest
	reqErr    error
}

func newFakeManager(cores ...uint) *fakeManager {
	m := &fakeManager{
		current:   make(map[uint]freqtable.Frequency),
		suspended: make(map[uint]bool),
	}
	for _, core := range cores {
		m.current[core] = 300000
	}
	return m
}

func (m *fakeManager) RequestFrequency(core uint, target freqtable.Frequency, rel freqtable.Relation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, recordedRequest{core: core, target: target, relation: rel})
	if m.reqErr != nil {
		return m.reqErr
	}
	m.current[core] = target
	return nil
}

func (m *fakeManager) InitializeCore(core uint) error { return nil }

func (m *fakeManager) CurrentFrequency(core uint) (freqtable.Frequency, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	freq, ok := m.current[core]
	return freq, ok
}

func (m *fakeManager) Suspended(core uint) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.suspended[core]
}

func (m *fakeManager) Cores() []uint {
	m.mu.Lock()
	defer m.mu.Unlock()
	cores := make([]uint, 0, len(m.current))
	for core := range m.current {
		cores = append(cores, core)
	}
	return cores
}

func (m *fakeManager) setAll(suspended bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for core := range m.current {
		m.suspended[core] = suspended
	}
}

func (m *fakeManager) setCore(core uint, suspended bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suspended[core] = suspended
}

func (m *fakeManager) SuspendAll()                    { m.setAll(true) }
func (m *fakeManager) ResumeAll()                     { m.setAll(false) }
func (m *fakeManager) OnCoreOnline(core uint)         { m.setCore(core, false) }
func (m *fakeManager) OnCoreOfflinePrepare(core uint) { m.setCore(core, true) }
func (m *fakeManager) OnCoreOfflineAborted(core uint) { m.setCore(core, false) }
func (m *fakeManager) Stop()                          {}

type activeStater struct{}

func (activeStater) IsActive(uint) bool { return true }

func newTestClient(t *testing.T, mgr dispatch.Manager) *Client {
	t.Helper()

	ln := fasthttputil.NewInmemoryListener()
	srv := NewServer(mgr, activeStater{}, testr.New(t))
	go srv.Serve(ln) //nolint:errcheck
	t.Cleanup(func() { ln.Close() })

	httpClient := &http.Client{
		Transport: &http.Transport{
			DialContext: func(context.Context, string, string) (net.Conn, error) {
				return ln.Dial()
			},
		},
	}
	rc := resty.NewWithClient(httpClient).
		SetBaseURL("http://corefreq-agent").
		SetHeader("Content-Type", "application/json")
	return &Client{rc: rc}
}

func TestServer_SetFrequency(t *testing.T) {
	mgr := newFakeManager(0, 1)
	client := newTestClient(t, mgr)

	resp, err := client.SetFrequency(1, 600000, "at-least")
	require.NoError(t, err)
	assert.Equal(t, uint(1), resp.Core)
	assert.Equal(t, uint(600000), resp.FrequencyKHz)

	require.Len(t, mgr.requests, 1)
	assert.Equal(t, recordedRequest{core: 1, target: 600000, relation: freqtable.RelationAtLeast}, mgr.requests[0])
}

func TestServer_SetFrequency_ErrorMapping(t *testing.T) {
	tcases := []struct {
		testCase string
		reqErr   error
		status   string
	}{
		{
			testCase: "unsupported frequency maps to 400",
			reqErr:   fmt.Errorf("%w: core 0 target 1 kHz", dispatch.ErrUnsupportedFrequency),
			status:   "400",
		},
		{
			testCase: "suspended core maps to 409",
			reqErr:   fmt.Errorf("%w: core 0", dispatch.ErrDeviceSuspended),
			status:   "409",
		},
		{
			testCase: "unavailable core maps to 503",
			reqErr:   fmt.Errorf("%w: core 0 is offline", dispatch.ErrCoreUnavailable),
			status:   "503",
		},
	}

	for _, tc := range tcases {
		t.Log(tc.testCase)

		mgr := newFakeManager(0)
		mgr.reqErr = tc.reqErr
		client := newTestClient(t, mgr)

		_, err := client.SetFrequency(0, 600000, "at-least")
		require.Error(t, err)
		assert.Contains(t, err.Error(), tc.status)
	}
}

func TestServer_SetFrequency_BadInput(t *testing.T) {
	client := newTestClient(t, newFakeManager(0))

	r, err := client.rc.R().
		SetBody(`{"targetKHz": 600000}`).
		Post("/v1/cores/zero/frequency")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, r.StatusCode(), "non-numeric core id")

	r, err = client.rc.R().
		SetBody(`{"targetKHz": [`).
		Post("/v1/cores/0/frequency")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, r.StatusCode(), "malformed body")

	r, err = client.rc.R().
		SetBody(FrequencyRequest{TargetKHz: 600000, Relation: "closest"}).
		Post("/v1/cores/0/frequency")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, r.StatusCode(), "unknown relation")
}

func TestServer_Status(t *testing.T) {
	mgr := newFakeManager(0, 2)
	mgr.setCore(2, true)
	client := newTestClient(t, mgr)

	resp, err := client.Status()
	require.NoError(t, err)
	require.Len(t, resp.Cores, 2)

	// the listing is sorted by core id
	assert.Equal(t, uint(0), resp.Cores[0].Core)
	assert.Equal(t, uint(2), resp.Cores[1].Core)
	assert.Equal(t, uint(300000), resp.Cores[0].FrequencyKHz)
	assert.True(t, resp.Cores[0].Active)
	assert.False(t, resp.Cores[0].Suspended)
	assert.True(t, resp.Cores[1].Suspended)
}

func TestServer_SuspendResume(t *testing.T) {
	mgr := newFakeManager(0, 1)
	client := newTestClient(t, mgr)

	require.NoError(t, client.Suspend())
	assert.True(t, mgr.Suspended(0))
	assert.True(t, mgr.Suspended(1))

	require.NoError(t, client.Resume())
	assert.False(t, mgr.Suspended(0))
	assert.False(t, mgr.Suspended(1))
}

func TestServer_CoreLifecycleHooks(t *testing.T) {
	mgr := newFakeManager(3)
	client := newTestClient(t, mgr)

	require.NoError(t, client.CoreOfflinePrepare(3))
	assert.True(t, mgr.Suspended(3))

	require.NoError(t, client.CoreOfflineAbort(3))
	assert.False(t, mgr.Suspended(3))

	require.NoError(t, client.CoreOfflinePrepare(3))
	require.NoError(t, client.CoreOnline(3))
	assert.False(t, mgr.Suspended(3))
}
