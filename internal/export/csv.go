// Package export renders the admin client list as downloadable files and
// stores scheduled snapshots.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/Proton-105/inovabank/internal/domain"
)

// Content types of the produced files.
const (
	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Header is the fixed column layout of every export.
var Header = []string{"Matrícula", "Nome", "Email", "Telefone", "Saldo", "Status"}

// Row renders one client in Header order. Unset text is empty and an unset balance is 0.
func Row(c *domain.Client) []string {
	return []string{
		strconv.FormatInt(c.Matricula, 10),
		domain.StringOrEmpty(c.FullName),
		domain.StringOrEmpty(c.Email),
		domain.StringOrEmpty(c.Phone),
		c.StartingBalance().String(),
		c.Status(),
	}
}

// WriteCSV writes the header and one row per client, in the given order.
func WriteCSV(w io.Writer, clients []domain.Client) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for i := range clients {
		if err := cw.Write(Row(&clients[i])); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// Filename returns the download name for the export date, e.g. clientes_2024-05-01.csv.
func Filename(now time.Time, ext string) string {
	return fmt.Sprintf("clientes_%s.%s", now.UTC().Format("2006-01-02"), ext)
}
