package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/qs3c/prodscope_tracker/config"
	"github.com/qs3c/prodscope_tracker/internal/pkg/response"
	"github.com/qs3c/prodscope_tracker/internal/pkg/token"
	"github.com/qs3c/prodscope_tracker/internal/pkg/ws"
)

type WebSocketHandler struct {
	hub *ws.Hub
	cfg *config.JWTConfig

	upgrader websocket.Upgrader
}

func NewWebSocketHandler(hub *ws.Hub, cfg *config.JWTConfig) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
		cfg: cfg,
		upgrader: websocket.Upgrader{
			// 浏览器侧跨域由 CORS 中间件把关，升级这里不再重复校验
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ticketRequest topic 缺省为全量订阅
type ticketRequest struct {
	Topic string `json:"topic"`
}

// IssueTicket 换取一张短有效期的 WebSocket 入场券。
// 浏览器的 WebSocket API 带不了 Authorization 头，只能走 query string，
// 所以不直接复用长期凭证，而是签发一次性短票
// POST /api/v1/ws/ticket
func (h *WebSocketHandler) IssueTicket(c *gin.Context) {
	var req ticketRequest
	// body 可省略，省略时订阅全量
	_ = c.ShouldBindJSON(&req)
	if req.Topic == "" {
		req.Topic = ws.TopicAll
	}

	ticket, err := token.GenerateTicket(req.Topic, h.cfg.Secret, h.cfg.TicketExpireSec)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.Success(c, gin.H{
		"ticket":     ticket,
		"topic":      req.Topic,
		"expires_in": h.cfg.TicketExpireSec,
	})
}

// Serve 校验入场券并升级连接，之后推送由 Hub 负责
// GET /api/v1/ws?ticket=xxx
func (h *WebSocketHandler) Serve(c *gin.Context) {
	ticket := c.Query("ticket")
	if ticket == "" {
		response.AuthError(c, "missing ticket")
		return
	}

	claims, err := token.ParseTicket(ticket, h.cfg.Secret)
	if err != nil {
		response.AuthError(c, "invalid ticket")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &ws.Client{Topic: claims.Topic, Conn: conn}
	h.hub.Register(client)

	// 读循环只为感知断开，看板方向不收业务消息
	go func() {
		defer func() {
			h.hub.Unregister(client)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
