package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// Hub 面向看板前端的扇出中枢，按任务 topic 分组。
// 同一任务可以有多个连接（多标签页、重连等场景）
type Hub struct {
	topics map[string]map[*Client]struct{}
	mu     sync.RWMutex
}

type Client struct {
	Topic string // 订阅的任务 id，"*" 表示全量（通知流）
	Conn  *websocket.Conn
	mu    sync.Mutex // 写锁，防止并发写入
}

// TopicAll 全量订阅 topic
const TopicAll = "*"

type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func NewHub() *Hub {
	return &Hub{
		topics: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.topics[client.Topic] == nil {
		h.topics[client.Topic] = make(map[*Client]struct{})
	}
	h.topics[client.Topic][client] = struct{}{}

	log.Printf("Client subscribed to %s, topic_conns: %d, total: %d", client.Topic, len(h.topics[client.Topic]), h.totalLocked())
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.topics[client.Topic]; ok {
		delete(conns, client)
		if len(conns) == 0 {
			delete(h.topics, client.Topic)
		}
	}
	log.Printf("Client unsubscribed from %s", client.Topic)
}

// SendToTopic 向某任务 topic 的所有连接发送消息，全量订阅者也会收到
func (h *Hub) SendToTopic(topic string, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.mu.RLock()
	// 复制一份引用，避免长时间持锁
	clients := make([]*Client, 0, len(h.topics[topic])+len(h.topics[TopicAll]))
	for c := range h.topics[topic] {
		clients = append(clients, c)
	}
	if topic != TopicAll {
		for c := range h.topics[TopicAll] {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.mu.Lock()
		err := c.Conn.WriteMessage(websocket.TextMessage, data)
		c.mu.Unlock()
		if err != nil {
			log.Printf("SendToTopic write error for topic %s: %v", topic, err)
		}
	}
	return nil
}

// Broadcast 向所有连接发送消息（通知流）
func (h *Hub) Broadcast(msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.mu.RLock()
	clients := make([]*Client, 0)
	for _, conns := range h.topics {
		for c := range conns {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.mu.Lock()
		err := c.Conn.WriteMessage(websocket.TextMessage, data)
		c.mu.Unlock()
		if err != nil {
			log.Printf("Broadcast write error: %v", err)
		}
	}
	return nil
}

// HasSubscribers 某 topic 是否有在线连接
func (h *Hub) HasSubscribers(topic string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns, ok := h.topics[topic]
	return ok && len(conns) > 0
}

// ConnectionCount 获取在线连接数
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalLocked()
}

func (h *Hub) totalLocked() int {
	total := 0
	for _, conns := range h.topics {
		total += len(conns)
	}
	return total
}
