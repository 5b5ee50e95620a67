package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/triage"
	"github.com/aretw0/triage/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEngine struct {
	got triage.RunRequest
	err error
}

func (e *stubEngine) Run(_ context.Context, req triage.RunRequest) (*triage.RunResult, error) {
	e.got = req
	if e.err != nil {
		return nil, e.err
	}
	state := domain.NewState("exec-1", req.VisitID, req.HumanNote)
	state.FinalDecision = domain.Ptr(domain.FinalAdmit)
	return &triage.RunResult{State: state, ExecutionID: "exec-1", VisitID: req.VisitID}, nil
}

func (e *stubEngine) Topology() triage.Topology {
	return triage.Topology{Entry: domain.NodeFetchData, Nodes: []string{domain.NodeFetchData, domain.NodeFinalize}}
}

func TestHandleRun(t *testing.T) {
	eng := &stubEngine{}
	s := NewServer(eng)

	res, err := s.handleRun(context.Background(), mcp.CallToolRequest{}, map[string]interface{}{
		"visit_id":       float64(42),
		"human_note":     "chest tightness",
		"human_override": 0.7,
	})
	require.NoError(t, err)

	assert.Equal(t, "exec-1", res.ExecutionID)
	assert.Equal(t, domain.FinalAdmit, res.Decision())
	assert.Equal(t, int64(42), eng.got.VisitID)
	assert.Equal(t, "chest tightness", eng.got.HumanNote)
	require.NotNil(t, eng.got.HumanOverride)
	assert.InDelta(t, 0.7, *eng.got.HumanOverride, 1e-9)
}

func TestHandleRun_BadArguments(t *testing.T) {
	s := NewServer(&stubEngine{})

	_, err := s.handleRun(context.Background(), mcp.CallToolRequest{}, map[string]interface{}{})
	assert.ErrorContains(t, err, "visit_id is required")

	_, err = s.handleRun(context.Background(), mcp.CallToolRequest{}, map[string]interface{}{"visit_id": 1.5})
	assert.ErrorContains(t, err, "must be an integer")
}

func TestHandleRun_EngineError(t *testing.T) {
	s := NewServer(&stubEngine{err: domain.ErrVisitNotFound})

	_, err := s.handleRun(context.Background(), mcp.CallToolRequest{}, map[string]interface{}{"visit_id": float64(9)})
	assert.ErrorIs(t, err, domain.ErrVisitNotFound)
}

func TestReadGraph(t *testing.T) {
	s := NewServer(&stubEngine{})

	contents, err := s.readGraph(context.Background(), mcp.ReadResourceRequest{})
	require.NoError(t, err)
	require.Len(t, contents, 1)

	text, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, GraphURI, text.URI)

	var topo triage.Topology
	require.NoError(t, json.Unmarshal([]byte(text.Text), &topo))
	assert.Equal(t, domain.NodeFetchData, topo.Entry)
}
