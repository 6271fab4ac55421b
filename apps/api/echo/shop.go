package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/coin"
	"github.com/trezcool/darasa/core/shop"
)

type shopApi struct {
	svc      shop.ServiceInterface
	coinSvc  coin.ServiceInterface
	validate *validator.Validate
}

func registerShopAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc shop.ServiceInterface,
	coinSvc coin.ServiceInterface,
	validate *validator.Validate,
) {
	api := shopApi{svc: svc, coinSvc: coinSvc, validate: validate}

	sg := g.Group("/shop", jwt)
	sg.GET("/items", api.items)
	sg.POST("/items", api.createItem, adminMiddleware())
	sg.POST("/purchase", api.purchase, studentMiddleware())
	sg.GET("/inventory", api.inventory)
	sg.PUT("/inventory/:id/equip", api.equip)

	cg := g.Group("/coins", jwt)
	cg.GET("/balance", api.balance)
	cg.GET("/history", api.history)
	cg.POST("/adjust", api.adjust, adminMiddleware())
}

// Handlers

func (api *shopApi) items(ctx echo.Context) error {
	items, err := api.svc.Items(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying items")
	}
	if items == nil {
		items = []shop.Item{}
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *shopApi) createItem(ctx echo.Context) error {
	var data shop.NewItem
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewItem")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	item, err := api.svc.CreateItem(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating item")
	}
	return ctx.JSON(http.StatusCreated, item)
}

func (api *shopApi) purchase(ctx echo.Context) error {
	var data shop.PurchaseRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PurchaseRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	res, err := api.svc.Purchase(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "purchasing item")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *shopApi) inventory(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	inv, err := api.svc.Inventory(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying inventory")
	}
	if inv == nil {
		inv = []shop.InventoryItem{}
	}
	return ctx.JSON(http.StatusOK, inv)
}

func (api *shopApi) equip(ctx echo.Context) error {
	var data shop.EquipRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EquipRequest")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	inv, err := api.svc.SetEquipped(ctx.Request().Context(), claims.Subject, ctx.Param("id"), data.Equipped)
	if err != nil {
		return errors.Wrap(err, "equipping item")
	}
	return ctx.JSON(http.StatusOK, inv)
}

func (api *shopApi) balance(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	balance, err := api.coinSvc.Balance(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "reading balance")
	}
	return ctx.JSON(http.StatusOK, BalanceResponse{Balance: balance})
}

func (api *shopApi) history(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	txs, err := api.coinSvc.History(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying transactions")
	}
	if txs == nil {
		txs = []coin.Transaction{}
	}
	return ctx.JSON(http.StatusOK, txs)
}

func (api *shopApi) adjust(ctx echo.Context) error {
	var data coin.Adjustment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Adjustment")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	tx, err := api.coinSvc.Adjust(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "adjusting balance")
	}
	return ctx.JSON(http.StatusCreated, tx)
}

type BalanceResponse struct {
	Balance int `json:"balance"`
}
