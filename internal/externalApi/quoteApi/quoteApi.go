package quoteApi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"tradeledger/config"
	"tradeledger/internal/externalApi"
	"tradeledger/internal/model"
	"tradeledger/internal/model/quoteModel"
	"tradeledger/utils"
)

type QuoteApi struct {
	client *resty.Client
	token  string
}

func New(cfg *config.Config) *QuoteApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.QuoteApi.Url)
	return &QuoteApi{client: client, token: cfg.API.QuoteApi.Token}
}

func (a *QuoteApi) GetQuote(ctx context.Context, symbol string) (model.Quote, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	url := fmt.Sprintf("/stable/stock/%s/quote", symbol)

	slog.Debug("start QuoteApi.GetQuote request", slog.String("rqID", rqID), slog.String("symbol", symbol))

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParam("token", a.token).
		Get(url)

	if err != nil {
		slog.Error("error while dialing QuoteApi", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return model.Quote{}, err
	}

	if resp.StatusCode() == http.StatusNotFound {
		slog.Warn("symbol not found in QuoteApi", slog.String("rqID", rqID), slog.String("symbol", symbol))
		return model.Quote{}, externalApi.ErrNotFound
	}

	if resp.IsError() {
		slog.Error("QuoteApi returned error status", slog.Int("status", resp.StatusCode()), slog.String("rqID", rqID))
		return model.Quote{}, fmt.Errorf("quote api status %d", resp.StatusCode())
	}

	rawQuote := quoteModel.RawQuote{}
	err = json.Unmarshal(resp.Body(), &rawQuote)
	if err != nil {
		slog.Error("can't unmarshall response into quoteModel.RawQuote", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return model.Quote{}, err
	}

	if rawQuote.Symbol == "" || rawQuote.LatestPrice == nil {
		return model.Quote{}, externalApi.ErrNotFound
	}

	price := decimal.NewFromFloat(*rawQuote.LatestPrice)

	slog.Debug("QuoteApi.GetQuote request complete", slog.String("rqID", rqID))

	return model.Quote{
		Symbol: rawQuote.Symbol,
		Name:   rawQuote.CompanyName,
		Price:  price,
	}, nil
}
