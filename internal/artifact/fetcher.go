package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"github.com/qs3c/prodscope_tracker/config"
	"github.com/qs3c/prodscope_tracker/internal/client"
	"github.com/qs3c/prodscope_tracker/internal/model"
)

// Fetcher 任务终态后的一次性成品拉取
type Fetcher interface {
	Fetch(ctx context.Context, job *model.Job) (json.RawMessage, error)
}

// APIFetcher 通过上游 REST 接口拉取成品：分析任务拉分析详情，
// 推荐任务拉对应类型的推荐列表
type APIFetcher struct {
	api *client.Client
}

func NewAPIFetcher(api *client.Client) *APIFetcher {
	return &APIFetcher{api: api}
}

func (f *APIFetcher) Fetch(ctx context.Context, job *model.Job) (json.RawMessage, error) {
	switch job.Parameters.Type {
	case model.JobTypeRecommendations:
		return f.api.GetRecommendations(ctx, job.Parameters.RecommendationType)
	default:
		return f.api.GetAnalysis(ctx, job.ID)
	}
}

// OSSFetcher 从 OSS 桶拉取成品 JSON，后端把大结果落到
// results/{jobID}.json 时走这条路径
type OSSFetcher struct {
	bucket *oss.Bucket
}

func NewOSSFetcher(cfg *config.OSSConfig) (*OSSFetcher, error) {
	cli, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create OSS client: %w", err)
	}

	bucket, err := cli.Bucket(cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket: %w", err)
	}

	return &OSSFetcher{bucket: bucket}, nil
}

func (f *OSSFetcher) Fetch(ctx context.Context, job *model.Job) (json.RawMessage, error) {
	objectKey := fmt.Sprintf("results/%s.json", job.ID)

	body, err := f.bucket.GetObject(objectKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get result object: %w", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read result object: %w", err)
	}
	return data, nil
}
