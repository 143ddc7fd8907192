package services

import (
	"fmt"
	"strings"

	"github.com/skip2/go-qrcode"
)

const tableQRSize = 256

// TableURL is the address a diner lands on after scanning the table QR.
func TableURL(baseURL, slug string, tableNumber uint) string {
	return fmt.Sprintf("%s/r/%s/t/%d", strings.TrimRight(baseURL, "/"), slug, tableNumber)
}

// TableQR renders the table URL as a PNG.
func TableQR(baseURL, slug string, tableNumber uint) ([]byte, error) {
	return qrcode.Encode(TableURL(baseURL, slug, tableNumber), qrcode.Medium, tableQRSize)
}
