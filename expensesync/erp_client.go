package expensesync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/expenses_backend/models"
	"github.com/shopspring/decimal"
)

type erpBill struct {
	ID              json.Number `json:"id"`
	TransactionDate string      `json:"transaction_date"`
	Status          string      `json:"status"`
	VendorId        json.Number `json:"vendor_id"`
	Currency        string      `json:"currency"`
	TransactionType string      `json:"transaction_type"`
}

type erpBillDetail struct {
	Total     json.Number `json:"total"`
	UserTotal json.Number `json:"user_total"`
	Memo      string      `json:"memo"`
	Currency  string      `json:"currency"`
}

type erpLineItem struct {
	Department string `json:"department"`
	Location   string `json:"location"`
	Category   string `json:"category"`
	Memo       string `json:"memo"`
}

type erpVendor struct {
	ID          json.Number `json:"id"`
	DisplayName string      `json:"display_name"`
	CompanyName string      `json:"company_name"`
}

// ERPClient fetches vendor bills from the ERP's REST surface. Credentials and
// base URL are injected so tests can substitute a fake adapter.
type ERPClient struct {
	baseURL   string
	apiKey    string
	apiKeyHdr string
	http      *http.Client
	limiter   <-chan time.Time
}

func NewERPClient(baseURL string, apiKey string) (*ERPClient, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = strings.TrimSpace(os.Getenv("ERP_API_BASE_URL"))
	}
	if baseURL == "" {
		return nil, errors.New("erp base url is empty")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("erp api key is empty")
	}
	apiKeyHeader := strings.TrimSpace(os.Getenv("ERP_API_KEY_HEADER"))
	if apiKeyHeader == "" {
		apiKeyHeader = "X-API-Key"
	}
	rateLimitPerMin := int64(60)
	if v := strings.TrimSpace(os.Getenv("ERP_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			rateLimitPerMin = n
		}
	}
	interval := time.Minute / time.Duration(rateLimitPerMin)

	return &ERPClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiKeyHdr: apiKeyHeader,
		http:      &http.Client{Timeout: 30 * time.Second},
		limiter:   time.Tick(interval),
	}, nil
}

func (c *ERPClient) Source() models.SourceSystem {
	return models.SourceSystemERP
}

func (c *ERPClient) FetchRecords(ctx context.Context, fromDate time.Time) ([]RawRecord, error) {
	params := url.Values{}
	params.Set("from", fromDate.UTC().Format("2006-01-02"))

	var bills []erpBill
	if err := c.getJSON(ctx, "/v1/vendor-bills", params, &bills); err != nil {
		return nil, err
	}

	records := make([]RawRecord, 0, len(bills))
	for _, bill := range bills {
		extID := strings.TrimSpace(bill.ID.String())
		if extID == "" {
			continue
		}
		records = append(records, RawRecord{
			ExternalId:      extID,
			Source:          models.SourceSystemERP,
			Date:            parseDateOrNow(bill.TransactionDate),
			StatusRaw:       strings.TrimSpace(bill.Status),
			Currency:        strings.TrimSpace(bill.Currency),
			TransactionType: strings.TrimSpace(bill.TransactionType),
			VendorRef:       strings.TrimSpace(bill.VendorId.String()),
		})
	}
	return records, nil
}

func (c *ERPClient) FetchDetails(ctx context.Context, externalId string) (*RawDetail, error) {
	var detail erpBillDetail
	if err := c.getJSON(ctx, "/v1/vendor-bills/"+url.PathEscape(externalId), nil, &detail); err != nil {
		return nil, err
	}
	return &RawDetail{
		Total:     decimalFromNumber(detail.Total),
		UserTotal: decimalFromNumber(detail.UserTotal),
		Memo:      strings.TrimSpace(detail.Memo),
		Currency:  strings.TrimSpace(detail.Currency),
	}, nil
}

func (c *ERPClient) FetchLineItems(ctx context.Context, externalId string) ([]RawLineItem, error) {
	var items []erpLineItem
	if err := c.getJSON(ctx, "/v1/vendor-bills/"+url.PathEscape(externalId)+"/line-items", nil, &items); err != nil {
		return nil, err
	}
	out := make([]RawLineItem, 0, len(items))
	for _, item := range items {
		out = append(out, RawLineItem{
			Department: strings.TrimSpace(item.Department),
			Branch:     strings.TrimSpace(item.Location),
			Category:   strings.TrimSpace(item.Category),
			Memo:       strings.TrimSpace(item.Memo),
		})
	}
	return out, nil
}

func (c *ERPClient) FetchRelatedName(ctx context.Context, refId string) (string, error) {
	if strings.TrimSpace(refId) == "" {
		return "", errors.New("vendor ref is empty")
	}
	var vendor erpVendor
	if err := c.getJSON(ctx, "/v1/vendors/"+url.PathEscape(refId), nil, &vendor); err != nil {
		return "", err
	}
	name := strings.TrimSpace(vendor.DisplayName)
	if name == "" {
		name = strings.TrimSpace(vendor.CompanyName)
	}
	if name == "" {
		return "", errors.New("vendor name is empty")
	}
	return name, nil
}

func (c *ERPClient) getJSON(ctx context.Context, path string, params url.Values, dest interface{}) error {
	<-c.limiter
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set(c.apiKeyHdr, c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("erp api error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.Unmarshal(body, dest)
}

func decimalFromNumber(num json.Number) decimal.Decimal {
	if num.String() == "" {
		return decimal.Zero
	}
	if d, err := decimal.NewFromString(num.String()); err == nil {
		return d
	}
	return decimal.Zero
}

func parseDateOrNow(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Now()
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t
	}
	return time.Now()
}
