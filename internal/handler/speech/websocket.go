package speech

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/elera-assistant/console/internal/handler/httperr"
	speechmodel "github.com/zhouzirui/elera-assistant/console/internal/model/speech"
	"github.com/zhouzirui/elera-assistant/console/internal/service/speech"
)

var errBridgeClosed = errors.New("voice bridge closed")

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
	eventBuffer  = 64
)

// WebSocketHandler 浏览器与语音循环之间的媒体桥：二进制帧为 16kHz 单声道 PCM，文本帧为控制消息
type WebSocketHandler struct {
	parent   *Handler
	upgrader websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(parent *Handler) *WebSocketHandler {
	return &WebSocketHandler{
		parent: parent,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// ConfigMessage 配置消息
type ConfigMessage struct {
	Language   string `json:"language"`
	Voice      string `json:"voice"`
	Continuous *bool  `json:"continuous,omitempty"`
}

// PermissionMessage 麦克风授权结果
type PermissionMessage struct {
	Granted bool `json:"granted"`
}

type outgoingMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// wsConn 串行化写操作，gorilla 连接不允许并发写
type wsConn struct {
	conn      *websocket.Conn
	sessionID string

	mu sync.Mutex
}

func (c *wsConn) writeJSON(msg outgoingMessage) error {
	payload, err := sonic.Marshal(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

func (c *wsConn) sendInfo(kind string, data any) error {
	return c.writeJSON(outgoingMessage{
		Type:      kind,
		SessionID: c.sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

func (c *wsConn) sendError(message string) {
	_ = c.writeJSON(outgoingMessage{
		Type:      "error",
		SessionID: c.sessionID,
		Data:      map[string]string{"message": message},
		Timestamp: time.Now().Unix(),
	})
}

// sendAudio 以 base64 推送合成音频，客户端播放完毕后回传 playback_done
func (c *wsConn) sendAudio(audio speechmodel.Audio) error {
	return c.sendInfo("audio", map[string]any{
		"audioData":   base64.StdEncoding.EncodeToString(audio.Data),
		"contentType": audio.ContentType,
	})
}

type audioRequest struct {
	audio  speechmodel.Audio
	result chan error
}

// outbox 语音循环的唯一下发通道：音频发出前先把已产生的事件写完，
// 客户端因此总是先收到 reply 与 speaking，再收到音频
type outbox struct {
	conn   *wsConn
	events <-chan speech.Event
	audio  chan audioRequest
	done   chan struct{}
}

func newOutbox(conn *wsConn) *outbox {
	return &outbox{
		conn:  conn,
		audio: make(chan audioRequest),
		done:  make(chan struct{}),
	}
}

func (o *outbox) run(ctx context.Context) {
	defer close(o.done)
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-o.events:
			if !ok {
				return
			}
			if err := o.conn.sendInfo("event", e); err != nil {
				return
			}
		case req := <-o.audio:
			o.drain()
			req.result <- o.conn.sendAudio(req.audio)
		}
	}
}

func (o *outbox) drain() {
	for {
		select {
		case e, ok := <-o.events:
			if !ok {
				return
			}
			_ = o.conn.sendInfo("event", e)
		default:
			return
		}
	}
}

// sendAudio 交给写循环发送并等待结果
func (o *outbox) sendAudio(ctx context.Context, audio speechmodel.Audio) error {
	req := audioRequest{audio: audio, result: make(chan error, 1)}
	select {
	case o.audio <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-o.done:
		return errBridgeClosed
	}
	return <-req.result
}

// handleWebSocket 处理WebSocket连接
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s := httperr.Session(w, r, h.parent.sessions)
	if s == nil {
		return
	}
	logger := h.parent.logger.With().Str("session", s.ID).Logger()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	out := &wsConn{conn: conn, sessionID: s.ID}
	box := newOutbox(out)
	mic := speech.NewStreamMicrophone(speech.DefaultPCMFormat)
	player := speech.NewStreamPlayer(box.sendAudio, 0)
	ctrl := h.parent.newController(s, mic, player)
	s.AttachVoice(ctrl)
	defer s.DetachVoice(ctrl)

	logger.Info().Msg("voice bridge connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, unsubscribe := ctrl.Subscribe(eventBuffer)
	defer unsubscribe()
	box.events = events
	go box.run(ctx)

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	go h.pingLoop(ctx, out)

	st := ctrl.Status()
	_ = out.sendInfo("connected", map[string]any{
		"language":    st.Language,
		"voice":       st.VoiceID,
		"continuous":  st.Continuous,
		"sample_rate": speech.DefaultPCMFormat.SampleRate,
		"channels":    speech.DefaultPCMFormat.Channels,
	})

	for {
		kind, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Msg("websocket read failed")
			}
			logger.Info().Msg("voice bridge disconnected")
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		switch kind {
		case websocket.BinaryMessage:
			mic.Feed(payload)
		case websocket.TextMessage:
			var msg inboundMessage
			if err := sonic.ConfigStd.Unmarshal(payload, &msg); err != nil {
				out.sendError("invalid message")
				continue
			}
			if msg.SessionID != "" && msg.SessionID != s.ID {
				out.sendError("session mismatch")
				continue
			}
			h.handleMessage(ctx, out, ctrl, mic, player, &msg)
		}
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, out *wsConn, ctrl *speech.Controller, mic *speech.StreamMicrophone, player *speech.StreamPlayer, msg *inboundMessage) {
	switch msg.Type {
	case "start":
		h.reply(out, ctrl, ctrl.Start(ctx))
	case "stop":
		h.reply(out, ctrl, ctrl.Stop())
	case "halt":
		ctrl.Halt()
		h.reply(out, ctrl, nil)
	case "permission":
		var p PermissionMessage
		if len(msg.Data) > 0 {
			if err := sonic.ConfigStd.Unmarshal(msg.Data, &p); err != nil {
				out.sendError("invalid permission payload")
				return
			}
		}
		mic.SetPermission(p.Granted)
		if !p.Granted {
			h.reply(out, ctrl, nil)
			return
		}
		h.reply(out, ctrl, ctrl.GrantPermission(ctx))
	case "grant_permission":
		mic.SetPermission(true)
		h.reply(out, ctrl, ctrl.GrantPermission(ctx))
	case "playback_done":
		player.PlaybackDone()
	case "config":
		var cfg ConfigMessage
		if err := sonic.ConfigStd.Unmarshal(msg.Data, &cfg); err != nil {
			out.sendError("invalid config payload")
			return
		}
		h.reply(out, ctrl, applyConfig(ctrl, cfg))
	default:
		out.sendError("unsupported message type: " + msg.Type)
	}
}

func applyConfig(ctrl *speech.Controller, cfg ConfigMessage) error {
	return applySettings(ctrl, settingsPayload{
		Language:   cfg.Language,
		VoiceID:    cfg.Voice,
		Continuous: cfg.Continuous,
	})
}

// reply 回传控制结果与最新状态
func (h *WebSocketHandler) reply(out *wsConn, ctrl *speech.Controller, err error) {
	if err != nil {
		if !errors.Is(err, speech.ErrNotRecording) {
			h.parent.logger.Debug().Err(err).Str("session", out.sessionID).Msg("voice control rejected")
		}
		out.sendError(err.Error())
		return
	}
	_ = out.sendInfo("status", ctrl.Status())
}

// pingLoop 定期发送ping消息
func (h *WebSocketHandler) pingLoop(ctx context.Context, out *wsConn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := out.ping(); err != nil {
				return
			}
		}
	}
}
