package model

import "encoding/json"

// APIConnections 上游各外部服务的连通状态。
// 原始载荷里 LLM 连通性历史上出现过 anthropic / claude / openai 三种字段名，
// 这里按优先级链在解析时一次性归一，下游不再重新推导
type APIConnections struct {
	LLM    bool `json:"llm"`
	Reddit bool `json:"reddit"`
}

func (c *APIConnections) UnmarshalJSON(data []byte) error {
	var raw struct {
		Anthropic *bool `json:"anthropic"`
		Claude    *bool `json:"claude"`
		OpenAI    *bool `json:"openai"`
		Reddit    *bool `json:"reddit"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	// 优先级: anthropic > claude > openai
	for _, v := range []*bool{raw.Anthropic, raw.Claude, raw.OpenAI} {
		if v != nil {
			c.LLM = *v
			break
		}
	}
	if raw.Reddit != nil {
		c.Reddit = *raw.Reddit
	}
	return nil
}

// StatusOverview 上游全局状态，由状态轮询器以固定间隔拉取
type StatusOverview struct {
	ScrapeInProgress bool           `json:"scrape_in_progress"`
	PostsCount       int            `json:"posts_count"`
	ProductsCount    int            `json:"products_count"`
	AnalysesCount    int            `json:"analyses_count"`
	APIConnections   APIConnections `json:"api_connections"`
}
