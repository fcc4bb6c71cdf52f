package http

import (
	"html/template"

	"github.com/gin-gonic/gin"

	"tradeledger/config"
	"tradeledger/internal/transport/http/middleware"
	"tradeledger/utils"
)

func NewRouter(cfg *config.Config, ctrl *Controller, session middleware.Session) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger())

	r.SetFuncMap(template.FuncMap{
		"usd": utils.FormatUSD,
	})
	r.LoadHTMLGlob(cfg.HTTP.TemplatesGlob)

	r.GET("/register", ctrl.RegisterPage)
	r.POST("/register", ctrl.Register)
	r.GET("/login", ctrl.LoginPage)
	r.POST("/login", ctrl.Login)
	r.GET("/logout", ctrl.Logout)

	authorized := r.Group("/", middleware.Auth(session))
	{
		authorized.GET("/", ctrl.Index)
		authorized.GET("/quote", ctrl.QuotePage)
		authorized.POST("/quote", ctrl.Quote)
		authorized.GET("/buy", ctrl.BuyPage)
		authorized.POST("/buy", ctrl.Buy)
		authorized.GET("/sell", ctrl.SellPage)
		authorized.POST("/sell", ctrl.Sell)
		authorized.GET("/wallet", ctrl.WalletPage)
		authorized.POST("/wallet", ctrl.Wallet)
		authorized.GET("/history", ctrl.History)
		authorized.GET("/history/export", ctrl.HistoryExport)
	}

	return r
}
