package hetzner

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeJSONBody(r *http.Request, out interface{}) error {
	return json.NewDecoder(r.Body).Decode(out)
}

func newTestProvider(server *httptest.Server) *Provider {
	return &Provider{
		cfg:     &Config{APIKey: "token", NodeLabel: "autopilot", NodePrefix: "node-autopilot-", NodeImage: "ubuntu-24.04", NodeType: "cx22", NodeLocation: "fsn1"},
		http:    server.Client(),
		baseURL: server.URL,
	}
}

func TestListNodesPaginatesUntilLastPage(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		page := r.URL.Query().Get("page")
		switch page {
		case "1":
			fmt.Fprint(w, `{"servers":[{"id":1,"name":"a","created":"2026-07-31T00:00:00+00:00","labels":{"Type":"autopilot","Status":"Running"}}],"meta":{"pagination":{"last_page":2}}}`)
		default:
			fmt.Fprint(w, `{"servers":[{"id":2,"name":"b","created":"2026-07-31T00:00:00+00:00","labels":{"Type":"autopilot","Status":"Creating"}}],"meta":{"pagination":{"last_page":2}}}`)
		}
	}))
	defer server.Close()

	p := newTestProvider(server)
	nodes, err := p.ListNodes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Len(t, nodes, 2)
	assert.Equal(t, "1", nodes[0].ID)
	assert.Equal(t, "2", nodes[1].ID)
}

func TestListNodesNonSuccessStatusIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	p := newTestProvider(server)
	_, err := p.ListNodes(context.Background())
	assert.Error(t, err)
}

func TestCreateNodeSendsExpectedLabelsAndName(t *testing.T) {
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, decodeJSONBody(r, &gotBody))
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"server":{"id":42,"name":"node-autopilot-placeholder","labels":{"Type":"autopilot","Status":"Creating"}}}`)
	}))
	defer server.Close()

	p := newTestProvider(server)
	node, err := p.CreateNode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "42", node.ID)

	labels := gotBody["labels"].(map[string]interface{})
	assert.Equal(t, "autopilot", labels["Type"])
	assert.Equal(t, "Creating", labels["Status"])
	assert.Equal(t, node.Name, gotBody["name"])
}

func TestCreateNodeFailureStatusIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	p := newTestProvider(server)
	_, err := p.CreateNode(context.Background())
	assert.Error(t, err)
}

func TestDeleteNodeSucceedsOn200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p := newTestProvider(server)
	assert.True(t, p.DeleteNode(context.Background(), "123"))
}

func TestUpdateLabelsReplacesFullSet(t *testing.T) {
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		require.NoError(t, decodeJSONBody(r, &gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p := newTestProvider(server)
	ok := p.UpdateLabels(context.Background(), "123", map[string]string{"Type": "autopilot", "Status": "Draining"})
	require.True(t, ok)

	labels := gotBody["labels"].(map[string]interface{})
	assert.Equal(t, "Draining", labels["Status"])
}
