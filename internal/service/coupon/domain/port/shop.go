package port

import "context"

// ShopOwnership 回答"卖家 X 是否拥有店铺 Y"。
// 店铺数据归属店铺服务，这里只是出站端口，
// 具体实现见 infrastructure/adapter。
type ShopOwnership interface {
	OwnsShop(ctx context.Context, sellerID, shopID int64) (bool, error)
}
