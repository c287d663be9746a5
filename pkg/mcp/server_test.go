package mcp

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/munin/pkg/match"
	"github.com/orneryd/munin/pkg/session"
)

func newTestServer(t *testing.T) (*session.Store, *httptest.Server) {
	t.Helper()
	store := session.NewStore(match.DefaultConfig(), nil)
	srv := httptest.NewServer(NewServer(store, nil, nil).Router())
	t.Cleanup(srv.Close)
	return store, srv
}

// callTool posts to the plain-HTTP tool route and decodes the text payload.
func callTool(t *testing.T, srv *httptest.Server, name string, args map[string]interface{}) (map[string]interface{}, bool) {
	t.Helper()

	body, err := json.Marshal(CallToolRequest{Name: name, Arguments: args})
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/mcp/tools/call", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var toolResp CallToolResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&toolResp))
	require.NotEmpty(t, toolResp.Content)

	if toolResp.IsError {
		return map[string]interface{}{"error": toolResp.Content[0].Text}, true
	}
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(toolResp.Content[0].Text), &payload))
	return payload, false
}

func TestInitializeJSONRPC(t *testing.T) {
	_, srv := newTestServer(t)

	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	resp, err := http.Post(srv.URL+"/mcp", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var rpc struct {
		Result InitResponse `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rpc))
	assert.Equal(t, ProtocolVersion, rpc.Result.ProtocolVersion)
	assert.Equal(t, "Munin Graph Server", rpc.Result.ServerInfo.Name)
}

func TestListToolsContainsDispatchTable(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/mcp/tools/list")
	require.NoError(t, err)
	defer resp.Body.Close()

	var list ListToolsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))

	names := make(map[string]bool, len(list.Tools))
	for _, tool := range list.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{
		ToolAddFacts, ToolAddRelationship, ToolFindNode, ToolForget,
		ToolShortestPath, ToolAskGraph, ToolExportGraph,
	} {
		assert.True(t, names[want], "tool %s missing from tools/list", want)
	}
}

func TestAddFactsAndFindNode(t *testing.T) {
	_, srv := newTestServer(t)

	payload, isErr := callTool(t, srv, ToolAddFacts, map[string]interface{}{
		"facts": []interface{}{
			[]interface{}{"AuthService", "depends_on", "Database"},
		},
	})
	require.False(t, isErr)
	assert.Equal(t, float64(2), payload["nodes_added"])
	assert.Equal(t, float64(1), payload["edges_added"])

	// Normalized lookup finds the canonical label.
	payload, isErr = callTool(t, srv, ToolFindNode, map[string]interface{}{
		"query": "auth service",
	})
	require.False(t, isErr)
	assert.Equal(t, float64(1), payload["count"])
	results := payload["results"].([]interface{})
	node := results[0].(map[string]interface{})["node"].(map[string]interface{})
	assert.Equal(t, "AuthService", node["label"])
}

func TestAddRelationshipReportsCanonicalLabels(t *testing.T) {
	_, srv := newTestServer(t)

	_, isErr := callTool(t, srv, ToolAddNodes, map[string]interface{}{
		"nodes": []interface{}{"AuthService", "UserRepository"},
	})
	require.False(t, isErr)

	payload, isErr := callTool(t, srv, ToolAddRelationship, map[string]interface{}{
		"source":   "auth service",
		"target":   "UserRepository",
		"relation": "depends_on",
	})
	require.False(t, isErr)
	assert.Equal(t, true, payload["created"])
	assert.Equal(t, true, payload["source_matched"], "normalized hit must be reported as a substitution")
	assert.Equal(t, false, payload["target_matched"])

	edge := payload["edge"].(map[string]interface{})
	assert.Equal(t, "AuthService", edge["source"])
	assert.Equal(t, "UserRepository", edge["target"])
}

func TestAddRelationshipUnknownEndpointFails(t *testing.T) {
	_, srv := newTestServer(t)

	_, isErr := callTool(t, srv, ToolAddNodes, map[string]interface{}{
		"nodes": []interface{}{"AuthService"},
	})
	require.False(t, isErr)

	payload, isErr := callTool(t, srv, ToolAddRelationship, map[string]interface{}{
		"source":   "AuthService",
		"target":   "CompletelyUnknown",
		"relation": "uses",
	})
	require.True(t, isErr)
	assert.Contains(t, payload["error"], "not found")
	assert.Contains(t, payload["error"], "AuthService", "error should list example labels")
}

func TestGraphInfoDoesNotCreateGraphs(t *testing.T) {
	store, srv := newTestServer(t)

	payload, isErr := callTool(t, srv, ToolGetGraphInfo, map[string]interface{}{
		"graph": "never-created",
	})
	require.True(t, isErr)
	assert.Contains(t, payload["error"], "not found")
	assert.Equal(t, 0, store.Len(), "introspection must not create sessions")
}

func TestToolsSupplySessionsOnDemand(t *testing.T) {
	store, srv := newTestServer(t)

	// A lookup against a graph nobody ever created is an empty result set,
	// not a session error.
	payload, isErr := callTool(t, srv, ToolFindNode, map[string]interface{}{
		"graph": "fresh",
		"query": "anything",
	})
	require.False(t, isErr)
	assert.Equal(t, float64(0), payload["count"])
	assert.Equal(t, 1, store.Len(), "the lookup supplies the session")

	// Analysis on the supplied-but-empty graph fails on emptiness, not on
	// the session.
	payload, isErr = callTool(t, srv, ToolShortestPath, map[string]interface{}{
		"graph":  "fresh",
		"source": "a",
		"target": "b",
	})
	require.True(t, isErr)
	assert.Contains(t, payload["error"], "no nodes")

	payload, isErr = callTool(t, srv, ToolListNodes, map[string]interface{}{
		"graph": "another",
	})
	require.False(t, isErr)
	assert.Equal(t, float64(0), payload["total"])
	assert.Equal(t, 2, store.Len())
}

func TestAnalysisOnEmptyGraphFails(t *testing.T) {
	store, srv := newTestServer(t)
	store.GetOrCreate("empty")

	payload, isErr := callTool(t, srv, ToolShortestPath, map[string]interface{}{
		"graph":  "empty",
		"source": "a",
		"target": "b",
	})
	require.True(t, isErr)
	assert.Contains(t, payload["error"], "no nodes")
}

func TestForgetRemovesNodeAndEdges(t *testing.T) {
	_, srv := newTestServer(t)

	_, isErr := callTool(t, srv, ToolAddFacts, map[string]interface{}{
		"facts": []interface{}{
			[]interface{}{"A", "uses", "B"},
			[]interface{}{"B", "uses", "C"},
		},
	})
	require.False(t, isErr)

	payload, isErr := callTool(t, srv, ToolForget, map[string]interface{}{
		"label": "B",
	})
	require.False(t, isErr)
	assert.Equal(t, "B", payload["removed"])

	info, isErr := callTool(t, srv, ToolGetGraphInfo, map[string]interface{}{})
	require.False(t, isErr)
	stats := info["stats"].(map[string]interface{})
	assert.Equal(t, float64(2), stats["node_count"])
	assert.Equal(t, float64(0), stats["edge_count"])
}

func TestDeleteGraph(t *testing.T) {
	store, srv := newTestServer(t)
	store.GetOrCreate("doomed")

	payload, isErr := callTool(t, srv, ToolDeleteGraph, map[string]interface{}{
		"graph": "doomed",
	})
	require.False(t, isErr)
	assert.Equal(t, true, payload["deleted"])

	payload, isErr = callTool(t, srv, ToolDeleteGraph, map[string]interface{}{
		"graph": "doomed",
	})
	require.False(t, isErr)
	assert.Equal(t, false, payload["deleted"])
}

func TestUnknownToolIsError(t *testing.T) {
	_, srv := newTestServer(t)
	payload, isErr := callTool(t, srv, "no_such_tool", nil)
	require.True(t, isErr)
	assert.Contains(t, payload["error"], "unknown tool")
}

func TestExportRoundTrip(t *testing.T) {
	_, srv := newTestServer(t)

	_, isErr := callTool(t, srv, ToolAddFacts, map[string]interface{}{
		"facts": []interface{}{
			[]interface{}{"A", "uses", "B"},
		},
	})
	require.False(t, isErr)

	payload, isErr := callTool(t, srv, ToolExportGraph, map[string]interface{}{
		"format": "json",
	})
	require.False(t, isErr)
	data := payload["data"].(string)

	imported, isErr := callTool(t, srv, ToolImportGraph, map[string]interface{}{
		"graph":  "copy",
		"format": "json",
		"data":   data,
	})
	require.False(t, isErr)
	assert.Equal(t, float64(2), imported["nodes_added"])
	assert.Equal(t, float64(1), imported["edges_added"])
}

func TestHealthEndpoint(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health["status"])
}
