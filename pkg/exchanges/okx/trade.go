package okx

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"okx-trader/pkg/exchanges/common"
)

type attachedAlgo struct {
	TpTriggerPx string `json:"tpTriggerPx,omitempty"`
	TpOrdPx     string `json:"tpOrdPx,omitempty"`
	SlTriggerPx string `json:"slTriggerPx,omitempty"`
	SlOrdPx     string `json:"slOrdPx,omitempty"`
}

type orderBody struct {
	InstID         string         `json:"instId"`
	TdMode         string         `json:"tdMode"`
	Side           string         `json:"side"`
	OrdType        string         `json:"ordType"`
	Sz             string         `json:"sz"`
	Px             string         `json:"px,omitempty"`
	ClOrdID        string         `json:"clOrdId,omitempty"`
	ReduceOnly     bool           `json:"reduceOnly,omitempty"`
	AttachAlgoOrds []attachedAlgo `json:"attachAlgoOrds,omitempty"`
}

// codeDuplicateClientID is returned when clOrdId matches an order the venue
// already accepted, typically on a resend after a lost reply.
const codeDuplicateClientID = "51016"

type orderAck struct {
	OrdID   string `json:"ordId"`
	ClOrdID string `json:"clOrdId"`
	SCode   string `json:"sCode"`
	SMsg    string `json:"sMsg"`
}

// CreateOrder places a cross-margin order. Size is in base currency and is
// converted to contracts; stop-loss and take-profit are attached as market
// trigger orders.
func (c *Client) CreateOrder(ctx context.Context, req common.OrderRequest) (common.OrderRecord, error) {
	inst, err := c.Instrument(ctx)
	if err != nil {
		return common.OrderRecord{}, err
	}
	contracts, err := inst.ToContracts(req.Size)
	if err != nil {
		return common.OrderRecord{}, &common.APIError{Kind: common.Permanent, Op: "order", Msg: err.Error(), Err: err}
	}
	symbol := req.Symbol
	if symbol == "" {
		symbol = c.cfg.Symbol
	}
	body := orderBody{
		InstID:     symbol,
		TdMode:     "cross",
		Side:       string(req.Side),
		OrdType:    "market",
		Sz:         contracts.String(),
		ClOrdID:    req.ClientID,
		ReduceOnly: req.ReduceOnly,
	}
	if req.Price > 0 {
		body.OrdType = "limit"
		body.Px = formatFloat(req.Price)
	}
	if req.StopLoss > 0 || req.TakeProfit > 0 {
		var algo attachedAlgo
		if req.StopLoss > 0 {
			algo.SlTriggerPx = formatFloat(req.StopLoss)
			algo.SlOrdPx = "-1"
		}
		if req.TakeProfit > 0 {
			algo.TpTriggerPx = formatFloat(req.TakeProfit)
			algo.TpOrdPx = "-1"
		}
		body.AttachAlgoOrds = []attachedAlgo{algo}
	}

	var acks []orderAck
	if err := c.do(ctx, "order", http.MethodPost, "/api/v5/trade/order", nil, body, true, &acks); err != nil {
		if isDuplicateClientID(err) && req.ClientID != "" {
			return c.alreadyPlaced(ctx, symbol, req.ClientID)
		}
		return common.OrderRecord{}, err
	}
	if len(acks) == 0 {
		return common.OrderRecord{}, common.NewPermanent("order", "", "empty order acknowledgement")
	}
	a := acks[0]
	if a.SCode == codeDuplicateClientID && req.ClientID != "" {
		return c.alreadyPlaced(ctx, symbol, req.ClientID)
	}
	if a.SCode != "" && a.SCode != "0" {
		return common.OrderRecord{}, classify("order", http.StatusOK, a.SCode, a.SMsg)
	}
	return common.OrderRecord{
		OrderID:  a.OrdID,
		ClientID: a.ClOrdID,
		Status:   common.StatusNew,
		Code:     a.SCode,
		Message:  a.SMsg,
	}, nil
}

func isDuplicateClientID(err error) bool {
	var apiErr *common.APIError
	return errors.As(err, &apiErr) && apiErr.Code == codeDuplicateClientID
}

// alreadyPlaced resolves a duplicate clOrdId to the order the venue holds,
// so a resent submission reports the original acceptance.
func (c *Client) alreadyPlaced(ctx context.Context, symbol, clientID string) (common.OrderRecord, error) {
	rec, err := c.OrderByClientID(ctx, symbol, clientID)
	if err != nil {
		return common.OrderRecord{}, err
	}
	c.log.Warn().Str("client_id", clientID).Str("order_id", rec.OrderID).Msg("order already placed, resolved duplicate client id")
	return rec, nil
}

// OrderByClientID fetches one order by its client order id.
func (c *Client) OrderByClientID(ctx context.Context, symbol, clientID string) (common.OrderRecord, error) {
	q := url.Values{}
	q.Set("instId", symbol)
	q.Set("clOrdId", clientID)
	var data []struct {
		OrdID   string `json:"ordId"`
		ClOrdID string `json:"clOrdId"`
		State   string `json:"state"`
	}
	if err := c.do(ctx, "order-lookup", http.MethodGet, "/api/v5/trade/order", q, nil, true, &data); err != nil {
		return common.OrderRecord{}, err
	}
	if len(data) == 0 || data[0].OrdID == "" {
		return common.OrderRecord{}, common.NewTransient("order-lookup", errors.New("order "+clientID+" not visible yet"))
	}
	return common.OrderRecord{
		OrderID:  data[0].OrdID,
		ClientID: data[0].ClOrdID,
		Status:   mapState(data[0].State),
		Code:     codeDuplicateClientID,
	}, nil
}

// CancelOrder cancels an order by exchange id.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	body := map[string]string{"instId": c.cfg.Symbol, "ordId": orderID}
	var acks []orderAck
	if err := c.do(ctx, "cancel-order", http.MethodPost, "/api/v5/trade/cancel-order", nil, body, true, &acks); err != nil {
		return err
	}
	if len(acks) > 0 && acks[0].SCode != "" && acks[0].SCode != "0" {
		return classify("cancel-order", http.StatusOK, acks[0].SCode, acks[0].SMsg)
	}
	return nil
}

// PendingOrder is an unfilled order on the instrument.
type PendingOrder struct {
	OrderID  string
	ClientID string
	Side     common.Side
	Price    float64
	Size     float64 // contracts
	Filled   float64 // contracts
	Status   common.OrderStatus
}

// OpenOrders lists pending orders for the instrument.
func (c *Client) OpenOrders(ctx context.Context) ([]PendingOrder, error) {
	q := url.Values{}
	q.Set("instType", "SWAP")
	q.Set("instId", c.cfg.Symbol)
	var data []struct {
		OrdID     string `json:"ordId"`
		ClOrdID   string `json:"clOrdId"`
		Side      string `json:"side"`
		Px        string `json:"px"`
		Sz        string `json:"sz"`
		AccFillSz string `json:"accFillSz"`
		State     string `json:"state"`
	}
	if err := c.do(ctx, "orders-pending", http.MethodGet, "/api/v5/trade/orders-pending", q, nil, true, &data); err != nil {
		return nil, err
	}
	out := make([]PendingOrder, 0, len(data))
	for _, d := range data {
		px, _ := parseFloat(d.Px)
		sz, _ := parseFloat(d.Sz)
		filled, _ := parseFloat(d.AccFillSz)
		out = append(out, PendingOrder{
			OrderID:  d.OrdID,
			ClientID: d.ClOrdID,
			Side:     common.Side(d.Side),
			Price:    px,
			Size:     sz,
			Filled:   filled,
			Status:   mapState(d.State),
		})
	}
	return out, nil
}

func mapState(s string) common.OrderStatus {
	switch s {
	case "live":
		return common.StatusNew
	case "partially_filled":
		return common.StatusPartial
	case "filled":
		return common.StatusFilled
	case "canceled", "mmp_canceled":
		return common.StatusCanceled
	default:
		return common.StatusUnknown
	}
}
