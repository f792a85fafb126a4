package bot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerClient_StartScrape(t *testing.T) {
	var received ScrapeRequestDTO
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/scrape", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(StartTaskResponse{TaskID: "task-1"})
	}))
	defer ts.Close()

	client := NewServerClient(ts.URL, 5*time.Second)
	resp, err := client.StartScrape(context.Background(), &ScrapeRequestDTO{Group: "@golang", Kind: "members", Limit: 10})
	require.NoError(t, err)

	assert.Equal(t, "task-1", resp.TaskID)
	assert.Equal(t, "@golang", received.Group)
	assert.Equal(t, "members", received.Kind)
	assert.Equal(t, 10, received.Limit)
}

func TestServerClient_StartScrape_BadStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer ts.Close()

	client := NewServerClient(ts.URL, 5*time.Second)
	_, err := client.StartScrape(context.Background(), &ScrapeRequestDTO{Group: "@golang", Kind: "members"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status code")
}

func TestServerClient_GetTaskStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/tasks/task-1", r.URL.Path)
		_ = json.NewEncoder(w).Encode(TaskStatusResponse{
			TaskID: "task-1",
			Status: "completed",
			Result: &ResultDTO{GroupTitle: "Go Chat", FilePath: "output/go_chat_members.csv", Rows: 5},
		})
	}))
	defer ts.Close()

	client := NewServerClient(ts.URL, 5*time.Second)
	status, err := client.GetTaskStatus(context.Background(), "task-1")
	require.NoError(t, err)

	assert.Equal(t, "completed", status.Status)
	require.NotNil(t, status.Result)
	assert.Equal(t, "Go Chat", status.Result.GroupTitle)
	assert.Equal(t, 5, status.Result.Rows)
}

func TestServerClient_DownloadResultFile(t *testing.T) {
	content := []byte("user_id,username\n1,gopher\n")
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/tasks/task-1/file", r.URL.Path)
		_, _ = w.Write(content)
	}))
	defer ts.Close()

	client := NewServerClient(ts.URL, 5*time.Second)
	data, err := client.DownloadResultFile(context.Background(), "task-1")
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestServerClient_DownloadResultFile_NotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer ts.Close()

	client := NewServerClient(ts.URL, 5*time.Second)
	_, err := client.DownloadResultFile(context.Background(), "task-1")
	require.Error(t, err)
}
