package line

import (
	"context"
	"fmt"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// Profile 用户资料
type Profile struct {
	UserID      string
	DisplayName string
}

// Client LINE Messaging API 客户端（官方 SDK 的薄封装，只暴露本服务用到的两个接口）
type Client struct {
	api *messaging_api.MessagingApiAPI
}

// NewClient 创建 LINE API 客户端，baseURL 为空时使用 SDK 默认地址
func NewClient(accessToken, baseURL string) (*Client, error) {
	var opts []messaging_api.MessagingApiAPIOption
	if baseURL != "" {
		opts = append(opts, messaging_api.WithEndpoint(baseURL))
	}

	api, err := messaging_api.NewMessagingApiAPI(accessToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("创建 LINE API 客户端失败: %w", err)
	}

	return &Client{api: api}, nil
}

// GetProfile 获取用户资料
func (c *Client) GetProfile(_ context.Context, userID string) (*Profile, error) {
	resp, err := c.api.GetProfile(userID)
	if err != nil {
		return nil, fmt.Errorf("获取用户资料失败: %w", err)
	}

	return &Profile{
		UserID:      resp.UserId,
		DisplayName: resp.DisplayName,
	}, nil
}

// ReplyText 用一次性 reply token 回复一条文本消息
func (c *Client) ReplyText(_ context.Context, replyToken, text string) error {
	_, err := c.api.ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages: []messaging_api.MessageInterface{
			messaging_api.TextMessage{Text: text},
		},
	})
	if err != nil {
		return fmt.Errorf("发送回复失败: %w", err)
	}

	return nil
}
