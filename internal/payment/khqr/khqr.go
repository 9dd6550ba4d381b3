// Package khqr собирает EMVCo-совместимую строку KHQR (Bakong, Камбоджа).
package khqr

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// EMV теги верхнего уровня
const (
	tagPayloadFormat     = "00"
	tagPointOfInitiation = "01"
	tagIndividualAccount = "29"
	tagMerchantAccount   = "30"
	tagMCC               = "52"
	tagCurrency          = "53"
	tagAmount            = "54"
	tagCountry           = "58"
	tagMerchantName      = "59"
	tagMerchantCity      = "60"
	tagAdditionalData    = "62"
	tagTimestamp         = "99"
	tagCRC               = "63"
)

const (
	CurrencyUSD = "840"
	CurrencyKHR = "116"

	dynamicQR       = "12"
	defaultMCC      = "5999"
	maxNameLength   = 25
	maxCityLength   = 15
	maxFieldLength  = 99
	maxAddDataField = 25
)

var (
	ErrMissingAccount      = errors.New("khqr: bakong account id is required")
	ErrMissingMerchant     = errors.New("khqr: merchant name is required")
	ErrUnsupportedCurrency = errors.New("khqr: unsupported currency")
	ErrInvalidAmount       = errors.New("khqr: amount must be positive")
)

// Merchant - статические данные получателя.
// Если MerchantID задан, строится merchant QR (тег 30), иначе individual (тег 29).
type Merchant struct {
	BakongAccountID string
	MerchantID      string
	AcquiringBank   string
	Name            string
	City            string
	StoreLabel      string
	TerminalLabel   string
	MCC             string
}

// Payment - данные конкретной оплаты.
type Payment struct {
	Amount     decimal.Decimal
	Currency   string // ISO-код: USD или KHR
	BillNumber string
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// Build возвращает строку KHQR с контрольной суммой CRC16 в конце.
func Build(m Merchant, p Payment) (string, error) {
	if m.BakongAccountID == "" {
		return "", ErrMissingAccount
	}
	if m.Name == "" {
		return "", ErrMissingMerchant
	}
	if !p.Amount.IsPositive() {
		return "", ErrInvalidAmount
	}
	currencyCode, err := numericCurrency(p.Currency)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(field(tagPayloadFormat, "01"))
	b.WriteString(field(tagPointOfInitiation, dynamicQR))

	if m.MerchantID != "" {
		account := field("00", m.BakongAccountID) + field("01", m.MerchantID)
		if m.AcquiringBank != "" {
			account += field("02", truncate(m.AcquiringBank, maxAddDataField))
		}
		b.WriteString(field(tagMerchantAccount, account))
	} else {
		account := field("00", m.BakongAccountID)
		if m.AcquiringBank != "" {
			account += field("02", truncate(m.AcquiringBank, maxAddDataField))
		}
		b.WriteString(field(tagIndividualAccount, account))
	}

	mcc := m.MCC
	if mcc == "" {
		mcc = defaultMCC
	}
	b.WriteString(field(tagMCC, mcc))
	b.WriteString(field(tagCurrency, currencyCode))
	b.WriteString(field(tagAmount, formatAmount(p.Amount, currencyCode)))
	b.WriteString(field(tagCountry, "KH"))
	b.WriteString(field(tagMerchantName, truncate(m.Name, maxNameLength)))
	b.WriteString(field(tagMerchantCity, truncate(m.City, maxCityLength)))

	var additional strings.Builder
	if p.BillNumber != "" {
		additional.WriteString(field("01", truncate(p.BillNumber, maxAddDataField)))
	}
	if m.StoreLabel != "" {
		additional.WriteString(field("03", truncate(m.StoreLabel, maxAddDataField)))
	}
	if m.TerminalLabel != "" {
		additional.WriteString(field("07", truncate(m.TerminalLabel, maxAddDataField)))
	}
	if additional.Len() > 0 {
		b.WriteString(field(tagAdditionalData, additional.String()))
	}

	if !p.CreatedAt.IsZero() {
		ts := field("00", strconv.FormatInt(p.CreatedAt.UnixMilli(), 10))
		if !p.ExpiresAt.IsZero() {
			ts += field("01", strconv.FormatInt(p.ExpiresAt.UnixMilli(), 10))
		}
		b.WriteString(field(tagTimestamp, ts))
	}

	payload := b.String() + tagCRC + "04"
	return payload + fmt.Sprintf("%04X", CRC16(payload)), nil
}

// MD5 - ключ, по которому Bakong API ищет транзакцию.
func MD5(qr string) string {
	sum := md5.Sum([]byte(qr))
	return hex.EncodeToString(sum[:])
}

// Verify проверяет длины TLV и контрольную сумму строки.
func Verify(qr string) bool {
	if len(qr) < 8 || qr[len(qr)-8:len(qr)-4] != tagCRC+"04" {
		return false
	}
	want := fmt.Sprintf("%04X", CRC16(qr[:len(qr)-4]))
	if !strings.EqualFold(want, qr[len(qr)-4:]) {
		return false
	}
	_, err := Parse(qr)
	return err == nil
}

// Parse разбирает верхний уровень TLV в карту тег -> значение.
func Parse(qr string) (map[string]string, error) {
	out := make(map[string]string)
	for i := 0; i < len(qr); {
		if i+4 > len(qr) {
			return nil, fmt.Errorf("khqr: truncated tag at %d", i)
		}
		tag := qr[i : i+2]
		n, err := strconv.Atoi(qr[i+2 : i+4])
		if err != nil {
			return nil, fmt.Errorf("khqr: bad length for tag %s", tag)
		}
		if i+4+n > len(qr) {
			return nil, fmt.Errorf("khqr: value overflow for tag %s", tag)
		}
		out[tag] = qr[i+4 : i+4+n]
		i += 4 + n
	}
	return out, nil
}

func field(tag, value string) string {
	if len(value) > maxFieldLength {
		value = value[:maxFieldLength]
	}
	return fmt.Sprintf("%s%02d%s", tag, len(value), value)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func numericCurrency(iso string) (string, error) {
	switch strings.ToUpper(iso) {
	case "USD", CurrencyUSD:
		return CurrencyUSD, nil
	case "KHR", CurrencyKHR:
		return CurrencyKHR, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedCurrency, iso)
}

// KHR не имеет дробной части.
func formatAmount(amount decimal.Decimal, currencyCode string) string {
	if currencyCode == CurrencyKHR {
		return amount.Round(0).String()
	}
	return amount.StringFixed(2)
}
