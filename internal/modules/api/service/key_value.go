package service

import (
	"context"

	"github.com/pkg/errors"

	"trade_terminal/internal/models"
)

// GetKeyValue: серверная пользовательская настройка. Ключа нет: "", false.
func (c *Client) GetKeyValue(ctx context.Context, key string) (string, bool, error) {
	var resp keyValueResponse
	if err := c.get(ctx, "get_key_value", keyValuePath, map[string]string{"key": key}, &resp); err != nil {
		return "", false, err
	}
	if resp.Result != models.ResultOk {
		return "", false, errors.Errorf("get key %s: %s", key, resp.Result.Message())
	}
	if resp.Data == nil || *resp.Data == "" {
		return "", false, nil
	}
	return *resp.Data, true, nil
}

func (c *Client) SetKeyValue(ctx context.Context, key, value string) error {
	var resp operationResponse
	if err := c.post(ctx, "set_key_value", keyValuePath, keyValueRequest{Key: key, Value: value}, &resp, false); err != nil {
		return err
	}
	if resp.Result != models.ResultOk {
		return errors.Errorf("set key %s: %s", key, resp.Result.Message())
	}
	return nil
}
