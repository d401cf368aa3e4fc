package service_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/evetabi/memeoracle/internal/config"
	"github.com/evetabi/memeoracle/internal/domain"
	"github.com/evetabi/memeoracle/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// messagesRequest is the part of a Messages API request the mock inspects.
type messagesRequest struct {
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
	Messages  []struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"messages"`
}

// mockMessagesAPI answers like the Anthropic Messages API and records the
// decoded requests.
func mockMessagesAPI(t *testing.T, calls *int64, requests chan<- messagesRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(calls, 1)
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.NotEmpty(t, r.Header.Get("anthropic-version"))

		var req messagesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) != 1 || len(req.Messages[0].Content) != 1 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if requests != nil {
			select {
			case requests <- req:
			default:
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          "msg_test",
			"type":        "message",
			"role":        "assistant",
			"model":       req.Model,
			"content":     []map[string]string{{"type": "text", "text": "MOON. The vibes are immaculate."}},
			"stop_reason": "end_turn",
			"usage":       map[string]int{"input_tokens": 10, "output_tokens": 8},
		})
	}))
}

// promptOf returns the text of the single user message.
func promptOf(req messagesRequest) string {
	return req.Messages[0].Content[0].Text
}

func commentaryConfig(url string) config.CommentaryConfig {
	return config.CommentaryConfig{
		BaseURL: url, APIKey: "test-key", Model: "test-model", MaxTokens: 1024, Timeout: 3 * time.Second,
	}
}

func TestMarketCommentary(t *testing.T) {
	var calls int64
	requests := make(chan messagesRequest, 1)
	srv := mockMessagesAPI(t, &calls, requests)
	defer srv.Close()

	l := newLedger(t, nil)
	m := createMarket(t, l)
	stakeOn(t, l, m.ID, "meme-hunter", "yes", "200")
	stakeOn(t, l, m.ID, "rug-detector", "no", "100")

	svc := service.NewCommentaryService(commentaryConfig(srv.URL), l, service.NewTrendingService(), nil)
	c, err := svc.MarketCommentary(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CommentaryMarket, c.Kind)
	assert.Equal(t, "WOJAK", c.Subject)
	assert.Contains(t, c.Text, "MOON")

	req := <-requests
	assert.Equal(t, "test-model", req.Model)
	assert.Equal(t, 400, req.MaxTokens)
	assert.Equal(t, "user", req.Messages[0].Role)
	prompt := promptOf(req)
	assert.Contains(t, prompt, m.Question)
	assert.Contains(t, prompt, "YES pool: 200.00 | NO pool: 100.00")
	assert.Contains(t, prompt, "Number of predictions: 2")
	assert.Contains(t, prompt, "rug-detector")

	// Unchanged market is served from cache.
	_, err = svc.MarketCommentary(context.Background(), m.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt64(&calls))

	// A new stake invalidates it.
	stakeOn(t, l, m.ID, "degen-ai", "yes", "300")
	_, err = svc.MarketCommentary(context.Background(), m.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt64(&calls))
}

func TestCommentaryDisabled(t *testing.T) {
	l := newLedger(t, nil)
	m := createMarket(t, l)
	cfg := commentaryConfig("http://127.0.0.1:0")
	cfg.APIKey = ""
	svc := service.NewCommentaryService(cfg, l, service.NewTrendingService(), nil)

	_, err := svc.MarketCommentary(context.Background(), m.ID)
	assert.ErrorIs(t, err, domain.ErrCommentaryUnavailable)
	_, err = svc.RugCheck(context.Background(), "WOJAK")
	assert.ErrorIs(t, err, domain.ErrCommentaryUnavailable)
}

func TestCommentaryUpstreamFailure(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	l := newLedger(t, nil)
	m := createMarket(t, l)
	svc := service.NewCommentaryService(commentaryConfig(srv.URL), l, nil, nil)

	_, err := svc.MarketCommentary(context.Background(), m.ID)
	assert.ErrorIs(t, err, domain.ErrCommentaryUnavailable)
	assert.EqualValues(t, 1, atomic.LoadInt64(&calls), "failed calls are not retried")

	// The ledger is unaffected by a failed collaborator.
	stakeOn(t, l, m.ID, "A", "yes", "1")
}

func TestCommentaryUnknownTargets(t *testing.T) {
	l := newLedger(t, nil)
	svc := service.NewCommentaryService(commentaryConfig("http://127.0.0.1:0"), l, service.NewTrendingService(), nil)

	_, err := svc.MarketCommentary(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrMarketNotFound)
	_, err = svc.AnalyzeCoin(context.Background(), "NOTACOIN")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestCoinPrompts(t *testing.T) {
	var calls int64
	requests := make(chan messagesRequest, 2)
	srv := mockMessagesAPI(t, &calls, requests)
	defer srv.Close()

	svc := service.NewCommentaryService(commentaryConfig(srv.URL), newLedger(t, nil), service.NewTrendingService(), nil)

	c, err := svc.AnalyzeCoin(context.Background(), "wojak")
	require.NoError(t, err)
	assert.Equal(t, domain.CommentaryMeme, c.Kind)
	assert.True(t, strings.Contains(promptOf(<-requests), "Symbol: WOJAK, Name: Wojak Coin"))

	c, err = svc.RugCheck(context.Background(), "RUGGED")
	require.NoError(t, err)
	assert.Equal(t, domain.CommentaryRugCheck, c.Kind)
	assert.Contains(t, promptOf(<-requests), "SAFE/CAUTION/DANGER")
}
