package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assistant/internal/domain"
	"assistant/internal/generator/mock"
	"assistant/internal/hub"
	"assistant/internal/knowledge"
	"assistant/internal/protocol"
	"assistant/internal/service"
	"assistant/internal/session"
)

type testEnv struct {
	server *Server
	store  *session.Store
	hub    *hub.Hub
	kb     *knowledge.KnowledgeBase
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	kb := knowledge.Build([]string{
		"Oil changes cost $30 and take 20 minutes.",
		"Brake service starts at $80.",
	})
	store := session.NewStore(session.Options{})
	orch, err := service.NewOrchestrator(store, kb, mock.New())
	require.NoError(t, err)

	h := hub.NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	s := NewServer(Deps{
		Chat:      orch,
		Knowledge: kb,
		Sessions:  store,
		Hub:       h,
		Summary:   "Oil changes cost $30.",
		WS:        WSConfig{PingInterval: time.Second},
	})
	t.Cleanup(func() {
		_ = s.Shutdown(context.Background())
		cancel()
		<-done
	})
	return &testEnv{server: s, store: store, hub: h, kb: kb}
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.EqualValues(t, 2, body["chunks"])
	assert.Equal(t, "Oil changes cost $30.", body["summary"])
}

func TestChat(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/chat", `{"content":"How much is an oil change","sessionId":"s1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var out domain.OutboundMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "s1", out.SessionID)
	assert.Equal(t, domain.MessageTypeBot, out.Type)
	assert.Contains(t, out.Content, "Oil changes cost $30")

	snap, ok := env.store.Get("s1")
	require.True(t, ok)
	assert.Equal(t, []string{"How much is an oil change"}, snap.UserMessages)
	assert.Len(t, snap.BotMessages, 1)
}

func TestChat_Command(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/chat", `{"content":"/hours","sessionId":"s1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var out domain.OutboundMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, service.CommandHours.Response(), out.Content)
}

func TestChat_AllocatesSessionID(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/chat", `{"content":"/help"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var out domain.OutboundMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.True(t, strings.HasPrefix(out.SessionID, "sess_"))
	_, ok := env.store.Get(out.SessionID)
	assert.True(t, ok)
}

func TestChat_Validation(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/chat", `{"content":"   ","sessionId":"s1"}`).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/chat", `{not json`).Code)
	assert.Zero(t, env.store.Len())
}

func TestWelcome(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/chat/welcome?sessionId=s1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var out domain.OutboundMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, service.WelcomeMessage, out.Content)
	assert.Equal(t, "s1", out.SessionID)
	_, ok := env.store.Get("s1")
	assert.False(t, ok)
}

func TestKnowledgeSearch(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/knowledge/search?q=brake", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Results []string `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"Brake service starts at $80."}, body.Results)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/knowledge/search", "").Code)
}

func TestKnowledgeContext(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/knowledge/context?q=oil+change&k=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		K       int                `json:"k"`
		Results []knowledge.Result `json:"results"`
		Context string             `json:"context"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.K)
	require.Len(t, body.Results, 1)
	assert.Equal(t, 0, body.Results[0].Index)
	assert.Greater(t, body.Results[0].Score, 0.0)
	assert.Equal(t, "Oil changes cost $30 and take 20 minutes.", body.Context)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/knowledge/context?q=oil&k=zero", "").Code)
}

func TestKnowledgeContext_MatchesRetriever(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/knowledge/context?q=oil+brake&k=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Context string `json:"context"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, env.kb.RetrieveRelevantContext("oil brake", 2), body.Context)
	assert.Contains(t, body.Context, "\n\n")
}

func TestGetSession(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/sessions/missing", "").Code)

	require.NoError(t, env.store.AddUserMessage("s1", "hello"))
	rec := env.do(t, http.MethodGet, "/api/sessions/s1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Session session.Snapshot `json:"session"`
		Idle    bool             `json:"idle"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"hello"}, body.Session.UserMessages)
	assert.False(t, body.Idle)
}

func dialWS(t *testing.T, env *testEnv, query string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(env.server.Handler())
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(v))
}

func TestWebSocket_SubscribeAndChat(t *testing.T) {
	env := newTestEnv(t)
	conn := dialWS(t, env, "")

	require.NoError(t, conn.WriteJSON(protocol.SubscribeMessage{BaseMessage: protocol.BaseMessage{Type: protocol.TypeSubscribe, SessionID: "ws1"}}))
	var ack protocol.SubscribedMessage
	readJSON(t, conn, &ack)
	assert.Equal(t, protocol.TypeSubscribed, ack.Type)
	assert.Equal(t, "ws1", ack.SessionID)

	require.NoError(t, conn.WriteJSON(protocol.ChatMessage{
		BaseMessage: protocol.BaseMessage{Type: protocol.TypeChatMessage, RequestID: "r1"},
		Content:     "/contact",
	}))

	var echo, reply protocol.ChatReplyMessage
	readJSON(t, conn, &echo)
	readJSON(t, conn, &reply)
	assert.Equal(t, domain.MessageTypeUser, echo.Message.Type)
	assert.Equal(t, "/contact", echo.Message.Content)
	assert.Equal(t, domain.MessageTypeBot, reply.Message.Type)
	assert.Equal(t, service.CommandContact.Response(), reply.Message.Content)
	assert.Equal(t, "r1", reply.RequestID)
}

func TestWebSocket_RESTChatReachesSubscribers(t *testing.T) {
	env := newTestEnv(t)
	conn := dialWS(t, env, "?sessionId=shared")
	var ack protocol.SubscribedMessage
	readJSON(t, conn, &ack)
	require.Equal(t, "shared", ack.SessionID)

	rec := env.do(t, http.MethodPost, "/api/chat", `{"content":"/services","sessionId":"shared"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var echo, reply protocol.ChatReplyMessage
	readJSON(t, conn, &echo)
	readJSON(t, conn, &reply)
	assert.Equal(t, "/services", echo.Message.Content)
	assert.Equal(t, service.CommandServices.Response(), reply.Message.Content)
}

func TestWebSocket_RequiresSubscription(t *testing.T) {
	env := newTestEnv(t)
	conn := dialWS(t, env, "")

	require.NoError(t, conn.WriteJSON(protocol.ChatMessage{
		BaseMessage: protocol.BaseMessage{Type: protocol.TypeChatMessage},
		Content:     "hello",
	}))
	var errMsg protocol.ErrorMessage
	readJSON(t, conn, &errMsg)
	assert.Equal(t, protocol.TypeError, errMsg.Type)
	assert.Equal(t, protocol.ErrorCodeSessionRequired, errMsg.Code)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{oops")))
	readJSON(t, conn, &errMsg)
	assert.Equal(t, protocol.ErrorCodeInvalidMessage, errMsg.Code)
}

func TestWebSocket_Welcome(t *testing.T) {
	env := newTestEnv(t)
	conn := dialWS(t, env, "?sessionId=w1")
	var ack protocol.SubscribedMessage
	readJSON(t, conn, &ack)

	require.NoError(t, conn.WriteJSON(protocol.BaseMessage{Type: protocol.TypeChatWelcome}))
	var reply protocol.ChatReplyMessage
	readJSON(t, conn, &reply)
	assert.Equal(t, service.WelcomeMessage, reply.Message.Content)
	_, ok := env.store.Get("w1")
	assert.False(t, ok)
}
