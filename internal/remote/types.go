package remote

import "time"

// serverTimeLayout is the backend's fixed timestamp format, always UTC.
const serverTimeLayout = "2006-01-02 15:04:05"

// ParseServerTime decodes a backend timestamp. Absent or unparsable values
// report false; they must never fail a merge.
func ParseServerTime(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(serverTimeLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// UserPayload identifies the backend account created or returned by
// bootstrap.
type UserPayload struct {
	ID    int64  `json:"id"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

type BootstrapResponse struct {
	OK                    bool         `json:"ok"`
	User                  *UserPayload `json:"user,omitempty"`
	UpdateIntervalSeconds *int         `json:"update_interval_seconds,omitempty"`
	LastGlobalRun         string       `json:"last_global_run,omitempty"`
	Error                 string       `json:"error,omitempty"`
}

// HistoryPointPayload is one server-side price observation. Both fields are
// optional on the wire; a point missing either is dropped during merge.
type HistoryPointPayload struct {
	TS         string   `json:"ts,omitempty"`
	PriceValue *float64 `json:"price_value,omitempty"`
}

// ItemPayload is the server's view of one tracked item. Optional fields are
// pointers so the merge can tell "absent" from "zero".
type ItemPayload struct {
	ID                int64                 `json:"id"`
	ASIN              string                `json:"asin"`
	URL               *string               `json:"url,omitempty"`
	TargetPriceValue  *float64              `json:"target_price_value,omitempty"`
	CreatedAt         string                `json:"created_at,omitempty"`
	Title             *string               `json:"title,omitempty"`
	CurrentPriceText  *string               `json:"current_price_text,omitempty"`
	CurrentPriceValue *float64              `json:"current_price_value,omitempty"`
	DiscountPercent   *int                  `json:"discount_percent,omitempty"`
	CouponText        *string               `json:"coupon_text,omitempty"`
	CouponPercents    []int                 `json:"coupon_percents,omitempty"`
	SellerName        *string               `json:"seller_name,omitempty"`
	LastCheckedAt     string                `json:"last_checked_at,omitempty"`
	LastError         *string               `json:"last_error,omitempty"`
	History           []HistoryPointPayload `json:"history,omitempty"`
}

type ItemsResponse struct {
	OK                    bool          `json:"ok"`
	Items                 []ItemPayload `json:"items,omitempty"`
	UpdateIntervalSeconds *int          `json:"update_interval_seconds,omitempty"`
	LastGlobalRun         string        `json:"last_global_run,omitempty"`
	Error                 string        `json:"error,omitempty"`
}

type ItemResponse struct {
	OK      bool         `json:"ok"`
	Item    *ItemPayload `json:"item,omitempty"`
	Created bool         `json:"created,omitempty"`
	Error   string       `json:"error,omitempty"`
}

type CheckAllResponse struct {
	OK            bool          `json:"ok"`
	Items         []ItemPayload `json:"items,omitempty"`
	UpdatedItems  int           `json:"updated_items,omitempty"`
	ErrorItems    int           `json:"error_items,omitempty"`
	LastGlobalRun string        `json:"last_global_run,omitempty"`
	Error         string        `json:"error,omitempty"`
}

type DeleteResponse struct {
	OK      bool   `json:"ok"`
	Deleted bool   `json:"deleted,omitempty"`
	Error   string `json:"error,omitempty"`
}

// envelope is the minimal shape every backend response carries; non-2xx
// bodies are decoded into it to extract a human-readable message.
type envelope struct {
	OK    *bool  `json:"ok,omitempty"`
	Error string `json:"error,omitempty"`
}

// request bodies

type bootstrapRequest struct {
	Email string `json:"email"`
}

type addItemRequest struct {
	UserID           int64    `json:"user_id"`
	ASIN             string   `json:"asin"`
	URL              string   `json:"url"`
	TargetPriceValue *float64 `json:"target_price_value,omitempty"`
}

type updateTargetRequest struct {
	UserID           int64   `json:"user_id"`
	TargetPriceValue float64 `json:"target_price_value"`
}

type userScopedRequest struct {
	UserID int64 `json:"user_id"`
}
