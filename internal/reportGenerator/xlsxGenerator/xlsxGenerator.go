package xlsxGenerator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"tradeledger/internal/model"
	"tradeledger/utils"
)

const sheetName = "History"

type XLSXGenerator struct{}

func New() *XLSXGenerator {
	return &XLSXGenerator{}
}

// Generate renders the transaction history as a single-sheet xlsx workbook.
func (g *XLSXGenerator) Generate(ctx context.Context, trxs []model.Transaction) (fileBytes []byte, fileExtension string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XLSXGenerator.Generate"

	slog.Debug("Generate start", slog.String("rqID", rqID), slog.String("op", op))

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("got error while closing file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}()

	if err := g.fillSheet(f, trxs); err != nil {
		slog.Error("got error while filling sheet", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		slog.Error("got error while saving file to bytes buffer", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	slog.Debug("Generate completed", slog.String("rqID", rqID), slog.String("op", op))

	return buf.Bytes(), ".xlsx", nil
}

func (g *XLSXGenerator) fillSheet(f *excelize.File, trxs []model.Transaction) error {
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	if err := f.MergeCell(sheetName, "A1", "E1"); err != nil {
		return err
	}

	f.SetCellValue(sheetName, "A1", "Transaction history")

	styleID, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Font: &excelize.Font{
			Bold: true,
			Size: 11,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{"#cfe2f3"},
		},
	})
	if err != nil {
		return err
	}

	if err := f.SetCellStyle(sheetName, "A1", "A1", styleID); err != nil {
		return fmt.Errorf("apply style: %w", err)
	}

	_ = f.SetCellStr(sheetName, "A2", "symbol")
	_ = f.SetCellStr(sheetName, "B2", "shares")
	_ = f.SetCellStr(sheetName, "C2", "price")
	_ = f.SetCellStr(sheetName, "D2", "total")
	_ = f.SetCellStr(sheetName, "E2", "date")

	for i, trx := range trxs {
		row := i + 3
		total := trx.Price.Mul(decimal.NewFromInt(int64(trx.Shares)))

		_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", row), trx.Symbol)
		_ = f.SetCellInt(sheetName, fmt.Sprintf("B%d", row), int64(trx.Shares))
		_ = f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), trx.Price.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), total.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), trx.DtCreate)
	}

	return nil
}
