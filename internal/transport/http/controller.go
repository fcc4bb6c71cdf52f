package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradeledger/config"
	"tradeledger/internal/model"
	"tradeledger/internal/service"
	"tradeledger/internal/transport/http/middleware"
	"tradeledger/utils"
)

const internalErrMsg = "something went wrong"

type TradingService interface {
	Register(ctx context.Context, username, password string) (userID int64, err error)
	Login(ctx context.Context, username, password string) (userID int64, err error)
	GetQuote(ctx context.Context, symbol string) (model.Quote, error)
	GetPortfolio(ctx context.Context, userID int64) (model.Portfolio, error)
	Buy(ctx context.Context, userID int64, symbol string, shares int) (totalCost decimal.Decimal, err error)
	Sell(ctx context.Context, userID int64, symbol string, shares int) (totalSale decimal.Decimal, err error)
	Deposit(ctx context.Context, userID int64, amount int) error
	GetHoldings(ctx context.Context, userID int64) ([]model.Holding, error)
	GetHistory(ctx context.Context, userID int64) ([]model.Transaction, error)
	GenerateHistoryReport(ctx context.Context, userID int64) (fileBytes []byte, fileExtension string, err error)
}

type Session interface {
	GetSession(ctx context.Context, token string) (model.Session, error)
	SetSession(ctx context.Context, token string, sess model.Session) error
	DeleteSession(ctx context.Context, token string) error
}

type Controller struct {
	cfg            *config.Config
	tradingService TradingService
	session        Session
}

func NewController(cfg *config.Config, tradingService TradingService, session Session) *Controller {
	return &Controller{
		cfg:            cfg,
		tradingService: tradingService,
		session:        session,
	}
}

func (ctrl *Controller) apology(c *gin.Context, status int, message string) {
	c.HTML(status, "apology.html", gin.H{"Message": message})
}

func (ctrl *Controller) sessionFromCtx(c *gin.Context) (model.Session, string) {
	sess, _ := c.MustGet(middleware.SessionKey).(model.Session)
	token, _ := c.MustGet(middleware.TokenKey).(string)
	return sess, token
}

// bindSession opens a fresh session for the user and hands the token to the
// browser.
func (ctrl *Controller) bindSession(ctx context.Context, c *gin.Context, userID int64) error {
	token := uuid.NewString()
	if err := ctrl.session.SetSession(ctx, token, model.Session{UserID: userID}); err != nil {
		return err
	}

	c.SetCookie(middleware.SessionCookie, token, int(ctrl.cfg.SessionExpiration.Seconds()), "/", "", false, true)
	return nil
}

// clearSession forgets any session the request arrived with.
func (ctrl *Controller) clearSession(ctx context.Context, c *gin.Context) {
	token, err := c.Cookie(middleware.SessionCookie)
	if err != nil {
		return
	}
	_ = ctrl.session.DeleteSession(ctx, token)
	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", false, true)
}

func (ctrl *Controller) setFlash(ctx context.Context, c *gin.Context, message string) {
	sess, token := ctrl.sessionFromCtx(c)
	sess.Flash = message
	if err := ctrl.session.SetSession(ctx, token, sess); err != nil {
		slog.Error("got error from session.SetSession", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.String("err", err.Error()))
	}
}

// popFlash returns the pending flash message and clears it.
func (ctrl *Controller) popFlash(ctx context.Context, c *gin.Context) string {
	sess, token := ctrl.sessionFromCtx(c)
	if sess.Flash == "" {
		return ""
	}

	flash := sess.Flash
	sess.Flash = ""
	if err := ctrl.session.SetSession(ctx, token, sess); err != nil {
		slog.Error("got error from session.SetSession", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.String("err", err.Error()))
	}
	return flash
}

func (ctrl *Controller) RegisterPage(c *gin.Context) {
	c.HTML(http.StatusOK, "register.html", nil)
}

func (ctrl *Controller) Register(c *gin.Context) {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	ctrl.clearSession(ctx, c)

	username := c.PostForm("username")
	password := c.PostForm("password")
	confirmation := c.PostForm("confirmation")

	if username == "" {
		ctrl.apology(c, http.StatusBadRequest, "must provide username")
		return
	}
	if password == "" {
		ctrl.apology(c, http.StatusBadRequest, "must provide password")
		return
	}
	if confirmation == "" {
		ctrl.apology(c, http.StatusBadRequest, "must confirm password")
		return
	}
	if password != confirmation {
		ctrl.apology(c, http.StatusBadRequest, "passwords do not match")
		return
	}

	userID, err := ctrl.tradingService.Register(ctx, username, password)
	if err != nil {
		if errors.Is(err, service.ErrAlreadyExists) {
			ctrl.apology(c, http.StatusBadRequest, "username already exists")
			return
		}
		slog.Error("got error from tradingService.Register", slog.String("rqID", rqID), slog.String("err", err.Error()))
		ctrl.apology(c, http.StatusInternalServerError, internalErrMsg)
		return
	}

	if err := ctrl.bindSession(ctx, c, userID); err != nil {
		slog.Error("got error from bindSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
		ctrl.apology(c, http.StatusInternalServerError, internalErrMsg)
		return
	}

	c.Redirect(http.StatusSeeOther, "/")
}

func (ctrl *Controller) LoginPage(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", nil)
}

func (ctrl *Controller) Login(c *gin.Context) {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	ctrl.clearSession(ctx, c)

	username := c.PostForm("username")
	password := c.PostForm("password")

	if username == "" {
		ctrl.apology(c, http.StatusForbidden, "must provide username")
		return
	}
	if password == "" {
		ctrl.apology(c, http.StatusForbidden, "must provide password")
		return
	}

	userID, err := ctrl.tradingService.Login(ctx, username, password)
	if err != nil {
		if errors.Is(err, service.ErrWrongCredentials) {
			ctrl.apology(c, http.StatusForbidden, "invalid username and/or password")
			return
		}
		slog.Error("got error from tradingService.Login", slog.String("rqID", rqID), slog.String("err", err.Error()))
		ctrl.apology(c, http.StatusInternalServerError, internalErrMsg)
		return
	}

	if err := ctrl.bindSession(ctx, c, userID); err != nil {
		slog.Error("got error from bindSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
		ctrl.apology(c, http.StatusInternalServerError, internalErrMsg)
		return
	}

	c.Redirect(http.StatusSeeOther, "/")
}

func (ctrl *Controller) Logout(c *gin.Context) {
	ctx := utils.CreateCtxWithRqID(c)
	ctrl.clearSession(ctx, c)
	c.Redirect(http.StatusSeeOther, "/")
}

func (ctrl *Controller) Index(c *gin.Context) {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)
	sess, _ := ctrl.sessionFromCtx(c)

	portfolio, err := ctrl.tradingService.GetPortfolio(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			ctrl.apology(c, http.StatusBadRequest, "Invalid symbol")
			return
		}
		slog.Error("got error from tradingService.GetPortfolio", slog.String("rqID", rqID), slog.String("err", err.Error()))
		ctrl.apology(c, http.StatusInternalServerError, internalErrMsg)
		return
	}

	c.HTML(http.StatusOK, "index.html", gin.H{
		"Positions":  portfolio.Positions,
		"Cash":       portfolio.Cash,
		"TotalValue": portfolio.TotalValue,
		"GrandTotal": portfolio.GrandTotal,
		"Flash":      ctrl.popFlash(ctx, c),
	})
}

func (ctrl *Controller) QuotePage(c *gin.Context) {
	c.HTML(http.StatusOK, "quote.html", gin.H{})
}

func (ctrl *Controller) Quote(c *gin.Context) {
	ctx := utils.CreateCtxWithRqID(c)

	symbol := c.PostForm("symbol")
	if symbol == "" {
		ctrl.apology(c, http.StatusBadRequest, "Invalid symbol")
		return
	}

	quote, err := ctrl.tradingService.GetQuote(ctx, symbol)
	if err != nil {
		ctrl.apology(c, http.StatusBadRequest, "Invalid symbol")
		return
	}

	c.HTML(http.StatusOK, "quote.html", gin.H{"Quote": quote})
}

func (ctrl *Controller) BuyPage(c *gin.Context) {
	c.HTML(http.StatusOK, "buy.html", nil)
}

func (ctrl *Controller) Buy(c *gin.Context) {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)
	sess, _ := ctrl.sessionFromCtx(c)

	symbol := strings.ToUpper(c.PostForm("symbol"))
	if symbol == "" {
		ctrl.apology(c, http.StatusBadRequest, "must provide symbol")
		return
	}

	shares, err := strconv.Atoi(c.PostForm("shares"))
	if err != nil || shares <= 0 {
		ctrl.apology(c, http.StatusBadRequest, "must provide a positive integer number of shares")
		return
	}

	totalCost, err := ctrl.tradingService.Buy(ctx, sess.UserID, symbol, shares)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			ctrl.apology(c, http.StatusBadRequest, "symbol not found")
		case errors.Is(err, service.ErrInsufficientFunds):
			ctrl.apology(c, http.StatusBadRequest, "not enough cash")
		default:
			slog.Error("got error from tradingService.Buy", slog.String("rqID", rqID), slog.String("err", err.Error()))
			ctrl.apology(c, http.StatusInternalServerError, internalErrMsg)
		}
		return
	}

	ctrl.setFlash(ctx, c, fmt.Sprintf("Bought %d shares of %s for %s!", shares, symbol, utils.FormatUSD(totalCost)))
	c.Redirect(http.StatusSeeOther, "/")
}

func (ctrl *Controller) SellPage(c *gin.Context) {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)
	sess, _ := ctrl.sessionFromCtx(c)

	holdings, err := ctrl.tradingService.GetHoldings(ctx, sess.UserID)
	if err != nil {
		slog.Error("got error from tradingService.GetHoldings", slog.String("rqID", rqID), slog.String("err", err.Error()))
		ctrl.apology(c, http.StatusInternalServerError, internalErrMsg)
		return
	}

	c.HTML(http.StatusOK, "sell.html", gin.H{"Holdings": holdings})
}

func (ctrl *Controller) Sell(c *gin.Context) {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)
	sess, _ := ctrl.sessionFromCtx(c)

	symbol := strings.ToUpper(c.PostForm("symbol"))
	if symbol == "" {
		ctrl.apology(c, http.StatusBadRequest, "must provide symbol")
		return
	}

	shares, err := strconv.Atoi(c.PostForm("shares"))
	if err != nil || shares <= 0 {
		ctrl.apology(c, http.StatusBadRequest, "must provide a positive integer number of shares")
		return
	}

	totalSale, err := ctrl.tradingService.Sell(ctx, sess.UserID, symbol, shares)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			ctrl.apology(c, http.StatusBadRequest, "symbol not found")
		case errors.Is(err, service.ErrInsufficientShares):
			ctrl.apology(c, http.StatusBadRequest, "not enough shares")
		default:
			slog.Error("got error from tradingService.Sell", slog.String("rqID", rqID), slog.String("err", err.Error()))
			ctrl.apology(c, http.StatusInternalServerError, internalErrMsg)
		}
		return
	}

	ctrl.setFlash(ctx, c, fmt.Sprintf("Sold %d shares of %s for %s!", shares, symbol, utils.FormatUSD(totalSale)))
	c.Redirect(http.StatusSeeOther, "/")
}

func (ctrl *Controller) WalletPage(c *gin.Context) {
	c.HTML(http.StatusOK, "wallet.html", nil)
}

func (ctrl *Controller) Wallet(c *gin.Context) {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)
	sess, _ := ctrl.sessionFromCtx(c)

	amount, err := strconv.Atoi(c.PostForm("amount"))
	if err != nil || amount <= 0 {
		ctrl.apology(c, http.StatusBadRequest, "must provide a positive integer amount")
		return
	}

	if err := ctrl.tradingService.Deposit(ctx, sess.UserID, amount); err != nil {
		slog.Error("got error from tradingService.Deposit", slog.String("rqID", rqID), slog.String("err", err.Error()))
		ctrl.apology(c, http.StatusInternalServerError, internalErrMsg)
		return
	}

	ctrl.setFlash(ctx, c, fmt.Sprintf("Added %s to your account!", utils.FormatUSD(decimal.NewFromInt(int64(amount)))))
	c.Redirect(http.StatusSeeOther, "/")
}

func (ctrl *Controller) History(c *gin.Context) {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)
	sess, _ := ctrl.sessionFromCtx(c)

	trxs, err := ctrl.tradingService.GetHistory(ctx, sess.UserID)
	if err != nil {
		slog.Error("got error from tradingService.GetHistory", slog.String("rqID", rqID), slog.String("err", err.Error()))
		ctrl.apology(c, http.StatusInternalServerError, internalErrMsg)
		return
	}

	c.HTML(http.StatusOK, "history.html", gin.H{"Transactions": trxs})
}

func (ctrl *Controller) HistoryExport(c *gin.Context) {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)
	sess, _ := ctrl.sessionFromCtx(c)

	fileBytes, fileExtension, err := ctrl.tradingService.GenerateHistoryReport(ctx, sess.UserID)
	if err != nil {
		slog.Error("got error from tradingService.GenerateHistoryReport", slog.String("rqID", rqID), slog.String("err", err.Error()))
		ctrl.apology(c, http.StatusInternalServerError, internalErrMsg)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "history"+fileExtension))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", fileBytes)
}
