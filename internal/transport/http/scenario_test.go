package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/cwrk-planet/dm-service/internal/service"
	"github.com/cwrk-planet/dm-service/internal/transport/ws"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// Полный сценарий: live-пуш через WS, история через REST,
// REST-отправка долетает в открытые соединения.

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dialWS(t *testing.T, srv *httptest.Server, userID int64) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") +
		"/ws?access_token=test-token&user_id=" + strconv.FormatInt(userID, 10)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) mustRead() ws.Message {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg ws.Message
	require.NoError(c.t, c.conn.ReadJSON(&msg))
	return msg
}

func (c *wsClient) expectSilence() {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var msg ws.Message
	require.Error(c.t, c.conn.ReadJSON(&msg), "expected no message, got %+v", msg)
}

func deliveredItem(t *testing.T, msg ws.Message) ws.MessageItem {
	t.Helper()
	require.Equal(t, ws.TypeDelivered, msg.Type)
	b, err := json.Marshal(msg.Payload)
	require.NoError(t, err)
	var p ws.DeliveredPayload
	require.NoError(t, json.Unmarshal(b, &p))
	return p.Message
}

func TestScenario_LiveAndHistory(t *testing.T) {
	req := require.New(t)

	repo := newFakeRepo()
	dialogSvc := service.NewDialogService(repo)
	wsServer := ws.NewServer(ws.NewHub(), dialogSvc)
	h := NewHandler(dialogSvc, wsServer) // REST-отправка фанаутит через WS
	srv := httptest.NewServer(NewRouter(h, wsServer))
	t.Cleanup(srv.Close)

	a := dialWS(t, srv, 1)
	b := dialWS(t, srv, 2)

	// A sends "hello" over the socket
	require.NoError(t, a.conn.WriteJSON(ws.Message{
		Type:    ws.TypeSend,
		Payload: ws.SendPayload{ReceiverID: "2", Text: "hello"},
	}))

	item := deliveredItem(t, a.mustRead())
	req.Equal("1", item.ID)
	req.Equal(ws.TypeSendAck, a.mustRead().Type)

	item = deliveredItem(t, b.mustRead())
	req.Equal("1", item.ID)
	req.Equal("1", item.SenderID)
	req.Equal("2", item.ReceiverID)
	req.Equal("hello", item.Text)
	pushedAt := item.CreatedAt

	// B fetches the history snapshot
	httpReq, err := http.NewRequest(http.MethodGet, srv.URL+"/dialogs/1/messages", nil)
	req.NoError(err)
	httpReq.Header.Set("Authorization", "Bearer test-token")
	httpReq.Header.Set("X-User-ID", "2")
	resp, err := http.DefaultClient.Do(httpReq)
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusOK, resp.StatusCode)

	var hist HistoryResponse
	req.NoError(json.NewDecoder(resp.Body).Decode(&hist))
	req.Len(hist.Items, 1)
	req.Equal("1", hist.Items[0].ID)
	req.Equal("hello", hist.Items[0].Text)
	// both sources must agree on the timestamp to the tick, or the
	// client-side merge re-sort breaks
	req.True(hist.Items[0].CreatedAt.Equal(pushedAt),
		"history %s vs push %s", hist.Items[0].CreatedAt, pushedAt)

	// A sends "hi" over REST: both live connections get exactly one push
	e := &env{srv: srv}
	resp2 := e.do(t, http.MethodPost, "/messages", 1,
		SendMessageRequest{ReceiverID: "2", Text: "hi"})
	req.Equal(http.StatusCreated, resp2.StatusCode)

	req.Equal("2", deliveredItem(t, a.mustRead()).ID)
	req.Equal("2", deliveredItem(t, b.mustRead()).ID)
	a.expectSilence()
	b.expectSilence()
}
