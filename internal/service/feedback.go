package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// FeedbackPayload 转发给下游流程的反馈载荷（字段名为下游约定，不可改）
type FeedbackPayload struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Feedback    int    `json:"feedback"`
	RecordID    *int64 `json:"recordId"`
	FeedbackTxt string `json:"feedbacktxt"`
	List        string `json:"list"`
}

// FeedbackService 反馈转发服务（推送到 Power Automate 流程）
type FeedbackService struct {
	flowURL string
	client  *http.Client
}

// NewFeedbackService 创建反馈转发服务
func NewFeedbackService(flowURL string, timeout time.Duration) *FeedbackService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &FeedbackService{
		flowURL: flowURL,
		client: &http.Client{
			Timeout: timeout, // 下游变慢时不能拖住单个事件的处理
		},
	}
}

// Forward 同步推送一条反馈到下游流程
// 不重试、不校验响应内容；失败只记日志，永远不影响给平台的回复。
func (s *FeedbackService) Forward(ctx context.Context, userID, displayName string,
	feedback int, recordID *int64, feedbackTxt, listType string) error {

	payload := FeedbackPayload{
		UserID:      userID,
		DisplayName: displayName,
		Feedback:    feedback,
		RecordID:    recordID,
		FeedbackTxt: feedbackTxt,
		List:        listType,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化反馈载荷失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.flowURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("构造下游请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		logrus.Errorf("❌ 反馈转发失败: %v", err)
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		logrus.WithFields(logrus.Fields{
			"状态码": resp.StatusCode,
		}).Error("❌ 下游流程返回错误状态")
		return fmt.Errorf("下游流程返回状态 %d", resp.StatusCode)
	}

	logrus.WithFields(logrus.Fields{
		"用户ID": userID,
		"评分":   feedback,
		"列表":   listType,
	}).Debug("✓ 反馈已转发到下游流程")
	return nil
}
