package position

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"worldwise/internal/city"
	"worldwise/internal/errs"
	"worldwise/internal/form"
	"worldwise/internal/logger"
)

// Remote：向城市存储服务的 GET /position 询问调用方位置（服务端按来源 IP 定位）
type Remote struct {
	baseURL string
	http    *http.Client
}

func NewRemote(baseURL string, client *http.Client) *Remote {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &Remote{baseURL: baseURL, http: client}
}

func (r *Remote) Current(ctx context.Context) (form.Position, error) {
	const op = "position.Remote"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/position", nil)
	if err != nil {
		return form.Position{}, errs.Wrap(errs.KindTransport, op, "could not build position request", err)
	}
	resp, err := r.http.Do(req)
	if err != nil {
		logger.L().Error("position_http_error", "err", err)
		return form.Position{}, errs.Wrap(errs.KindTransport, op, "Could not get your position", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return form.Position{}, errs.Wrap(errs.KindTransport, op, "Could not get your position",
			fmt.Errorf("status %d", resp.StatusCode))
	}
	var p city.Position
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return form.Position{}, errs.Wrap(errs.KindTransport, op, "Could not get your position", err)
	}
	return form.At(p.Lat, p.Lng), nil
}
