package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForwardPayloadShape(t *testing.T) {
	var got map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	svc := NewFeedbackService(srv.URL, 5*time.Second)

	recordID := int64(123)
	require.NoError(t, svc.Forward(context.Background(),
		"U1", "Alice", 4, &recordID, "-", "service"))

	// 下游约定的六个固定字段名
	assert.JSONEq(t, `"U1"`, string(got["userId"]))
	assert.JSONEq(t, `"Alice"`, string(got["displayName"]))
	assert.JSONEq(t, `4`, string(got["feedback"]))
	assert.JSONEq(t, `123`, string(got["recordId"]))
	assert.JSONEq(t, `"-"`, string(got["feedbacktxt"]))
	assert.JSONEq(t, `"service"`, string(got["list"]))
	assert.Len(t, got, 6)
}

func TestForwardNullRecordID(t *testing.T) {
	var got map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	svc := NewFeedbackService(srv.URL, 5*time.Second)

	// 用户还没有过 Postback 反馈时记录ID为空，下游收到 null
	require.NoError(t, svc.Forward(context.Background(),
		"U1", "Alice", 0, nil, "great service", "service"))

	assert.JSONEq(t, `null`, string(got["recordId"]))
}

func TestForwardDownstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	svc := NewFeedbackService(srv.URL, 5*time.Second)

	err := svc.Forward(context.Background(), "U1", "Alice", 0, nil, "", "")
	assert.Error(t, err)
}
