package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// DetailsKind 日志附加信息的变体标签，在解析时确定一次，渲染时不再探测
type DetailsKind int

const (
	DetailsNone DetailsKind = iota
	DetailsList
	DetailsMap
	DetailsScalar
)

// LogDetails 日志附加信息。上游可能发 null、数组、对象或标量，
// UnmarshalJSON 统一归一到带标签的变体
type LogDetails struct {
	Kind   DetailsKind
	List   []string
	Map    map[string]string
	Scalar string
}

func (d *LogDetails) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		d.Kind = DetailsNone
		return nil
	}

	switch trimmed[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		d.Kind = DetailsList
		d.List = make([]string, 0, len(items))
		for _, it := range items {
			d.List = append(d.List, scalarString(it))
		}
	case '{':
		var m map[string]json.RawMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		d.Kind = DetailsMap
		d.Map = make(map[string]string, len(m))
		for k, v := range m {
			d.Map[k] = scalarString(v)
		}
	default:
		d.Kind = DetailsScalar
		d.Scalar = scalarString(data)
	}
	return nil
}

func (d LogDetails) MarshalJSON() ([]byte, error) {
	switch d.Kind {
	case DetailsList:
		return json.Marshal(d.List)
	case DetailsMap:
		return json.Marshal(d.Map)
	case DetailsScalar:
		return json.Marshal(d.Scalar)
	}
	return []byte("null"), nil
}

// String 渲染为单行文本：数组拼接、对象序列化为 k=v、标量原样
func (d LogDetails) String() string {
	switch d.Kind {
	case DetailsList:
		return strings.Join(d.List, ", ")
	case DetailsMap:
		keys := make([]string, 0, len(d.Map))
		for k := range d.Map {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", k, d.Map[k]))
		}
		return strings.Join(parts, ", ")
	case DetailsScalar:
		return d.Scalar
	}
	return ""
}

func scalarString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// LogEntry 流水线单步事件
type LogEntry struct {
	Step      string     `json:"step"`
	Message   string     `json:"message"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Details   LogDetails `json:"details,omitempty"`
}

// Equal 用于合并去重：step + message + timestamp 视为同一条
func (e LogEntry) Equal(other LogEntry) bool {
	if e.Step != other.Step || e.Message != other.Message {
		return false
	}
	if (e.Timestamp == nil) != (other.Timestamp == nil) {
		return false
	}
	if e.Timestamp != nil && !e.Timestamp.Equal(*other.Timestamp) {
		return false
	}
	return true
}
