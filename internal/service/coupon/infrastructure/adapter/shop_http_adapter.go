package adapter

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"bazaar/internal/pkg/httpclient"
)

// ShopHTTPAdapter 是 port.ShopOwnership 的 HTTP 实现，
// 调用店铺服务的归属查询接口。
type ShopHTTPAdapter struct {
	client  *httpclient.Client
	baseURL string
}

// NewShopHTTPAdapter 创建店铺归属适配器。
func NewShopHTTPAdapter(client *httpclient.Client, baseURL string) *ShopHTTPAdapter {
	return &ShopHTTPAdapter{client: client, baseURL: baseURL}
}

type ownershipResponse struct {
	Owns bool `json:"owns"`
}

// OwnsShop 查询卖家是否拥有店铺。
func (a *ShopHTTPAdapter) OwnsShop(ctx context.Context, sellerID, shopID int64) (bool, error) {
	params := url.Values{}
	params.Set("seller_id", strconv.FormatInt(sellerID, 10))
	params.Set("shop_id", strconv.FormatInt(shopID, 10))

	var resp ownershipResponse
	if err := a.client.GetJSON(ctx, a.baseURL+"/internal/shops/ownership", params, &resp); err != nil {
		return false, fmt.Errorf("shop ownership check failed: %w", err)
	}
	return resp.Owns, nil
}
