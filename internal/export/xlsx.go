package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/Proton-105/inovabank/internal/domain"
)

// SheetName is the worksheet holding the client list.
const SheetName = "Clientes"

// WriteXLSX writes the client list as a single-sheet workbook. Balances are numeric cells.
func WriteXLSX(w io.Writer, clients []domain.Client) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]interface{}, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write xlsx header: %w", err)
	}

	for i := range clients {
		c := &clients[i]
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}

		row := []interface{}{
			c.Matricula,
			domain.StringOrEmpty(c.FullName),
			domain.StringOrEmpty(c.Email),
			domain.StringOrEmpty(c.Phone),
			c.StartingBalance().InexactFloat64(),
			c.Status(),
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("write xlsx row %d: %w", i, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}
