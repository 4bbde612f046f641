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
)

type cardTransaction struct {
	ID              string            `json:"id"`
	TransactionDate string            `json:"transaction_date"`
	Status          string            `json:"status"`
	SyncStatus      string            `json:"sync_status"`
	MerchantName    string            `json:"merchant_name"`
	UserId          string            `json:"user_id"`
	Currency        string            `json:"currency"`
	TransactionType string            `json:"transaction_type"`
	Description     string            `json:"description"`
	CustomFields    []cardCustomField `json:"custom_fields"`
}

type cardCustomField struct {
	FieldUUID string `json:"field_uuid"`
	Value     string `json:"value"`
}

type cardTransactionDetail struct {
	Total     json.Number `json:"total"`
	UserTotal json.Number `json:"user_total"`
	Memo      string      `json:"memo"`
	Currency  string      `json:"currency"`
}

type cardLineItem struct {
	Department string `json:"department"`
	Branch     string `json:"branch"`
	Category   string `json:"category"`
	Memo       string `json:"memo"`
}

type cardUser struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type cardFieldDefinition struct {
	UUID  string `json:"uuid"`
	Label string `json:"label"`
}

// CardClient fetches spend transactions from the card platform. The platform
// exposes its own downstream-sync status per transaction, which drives the
// partitioned historical queries.
type CardClient struct {
	baseURL string
	token   string
	http    *http.Client
	limiter <-chan time.Time

	// label -> uuid, cached after first lookup; custom-field definitions
	// change rarely and the lookup is one extra round trip per run otherwise.
	fieldUUIDs map[string]string
}

func NewCardClient(baseURL string, token string) (*CardClient, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = strings.TrimSpace(os.Getenv("CARD_API_BASE_URL"))
	}
	if baseURL == "" {
		return nil, errors.New("card platform base url is empty")
	}
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("card platform token is empty")
	}
	rateLimitPerMin := int64(60)
	if v := strings.TrimSpace(os.Getenv("CARD_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			rateLimitPerMin = n
		}
	}
	interval := time.Minute / time.Duration(rateLimitPerMin)

	return &CardClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		http:       &http.Client{Timeout: 30 * time.Second},
		limiter:    time.Tick(interval),
		fieldUUIDs: map[string]string{},
	}, nil
}

func (c *CardClient) Source() models.SourceSystem {
	return models.SourceSystemCard
}

func (c *CardClient) FetchRecords(ctx context.Context, fromDate time.Time) ([]RawRecord, error) {
	params := url.Values{}
	params.Set("from", fromDate.UTC().Format("2006-01-02"))
	return c.fetchTransactions(ctx, params, "")
}

// FetchRecordsBySyncState queries one downstream-sync-state partition over the
// trailing daysBack window. The same transaction id can appear in more than
// one partition; callers merge with MergeBySyncState.
func (c *CardClient) FetchRecordsBySyncState(ctx context.Context, daysBack int, state string) ([]RawRecord, error) {
	params := url.Values{}
	params.Set("days_back", strconv.Itoa(daysBack))
	params.Set("sync_status", state)
	return c.fetchTransactions(ctx, params, state)
}

func (c *CardClient) fetchTransactions(ctx context.Context, params url.Values, state string) ([]RawRecord, error) {
	var txns []cardTransaction
	if err := c.getJSON(ctx, "/v1/transactions", params, &txns); err != nil {
		return nil, err
	}

	records := make([]RawRecord, 0, len(txns))
	for _, txn := range txns {
		providerId := strings.TrimSpace(txn.ID)
		if providerId == "" {
			continue
		}
		syncState := strings.TrimSpace(txn.SyncStatus)
		if syncState == "" {
			syncState = state
		}
		fields := make([]CustomFieldValue, 0, len(txn.CustomFields))
		for _, f := range txn.CustomFields {
			fields = append(fields, CustomFieldValue{FieldUUID: f.FieldUUID, Value: f.Value})
		}
		records = append(records, RawRecord{
			ExternalId:      CardExternalIdPrefix + providerId,
			Source:          models.SourceSystemCard,
			Date:            parseDateOrNow(txn.TransactionDate),
			StatusRaw:       strings.TrimSpace(txn.Status),
			SyncState:       syncState,
			Currency:        strings.TrimSpace(txn.Currency),
			TransactionType: strings.TrimSpace(txn.TransactionType),
			MerchantName:    strings.TrimSpace(txn.MerchantName),
			CardholderId:    strings.TrimSpace(txn.UserId),
			Description:     strings.TrimSpace(txn.Description),
			CustomFields:    fields,
		})
	}
	return records, nil
}

func (c *CardClient) FetchDetails(ctx context.Context, externalId string) (*RawDetail, error) {
	providerId := strings.TrimPrefix(externalId, CardExternalIdPrefix)
	var detail cardTransactionDetail
	if err := c.getJSON(ctx, "/v1/transactions/"+url.PathEscape(providerId), nil, &detail); err != nil {
		return nil, err
	}
	return &RawDetail{
		Total:     decimalFromNumber(detail.Total),
		UserTotal: decimalFromNumber(detail.UserTotal),
		Memo:      strings.TrimSpace(detail.Memo),
		Currency:  strings.TrimSpace(detail.Currency),
	}, nil
}

func (c *CardClient) FetchLineItems(ctx context.Context, externalId string) ([]RawLineItem, error) {
	providerId := strings.TrimPrefix(externalId, CardExternalIdPrefix)
	var items []cardLineItem
	if err := c.getJSON(ctx, "/v1/transactions/"+url.PathEscape(providerId)+"/line-items", nil, &items); err != nil {
		return nil, err
	}
	out := make([]RawLineItem, 0, len(items))
	for _, item := range items {
		out = append(out, RawLineItem{
			Department: strings.TrimSpace(item.Department),
			Branch:     strings.TrimSpace(item.Branch),
			Category:   strings.TrimSpace(item.Category),
			Memo:       strings.TrimSpace(item.Memo),
		})
	}
	return out, nil
}

// FetchRelatedName resolves a merchant display name. The platform embeds the
// merchant name on the transaction itself, so this is only hit when that
// field is blank.
func (c *CardClient) FetchRelatedName(ctx context.Context, refId string) (string, error) {
	if strings.TrimSpace(refId) == "" {
		return "", errors.New("merchant ref is empty")
	}
	var merchant struct {
		Name string `json:"name"`
	}
	if err := c.getJSON(ctx, "/v1/merchants/"+url.PathEscape(refId), nil, &merchant); err != nil {
		return "", err
	}
	if strings.TrimSpace(merchant.Name) == "" {
		return "", errors.New("merchant name is empty")
	}
	return strings.TrimSpace(merchant.Name), nil
}

func (c *CardClient) UserNameMapping(ctx context.Context) (map[string]string, error) {
	var users []cardUser
	if err := c.getJSON(ctx, "/v1/users", nil, &users); err != nil {
		return nil, err
	}
	mapping := make(map[string]string, len(users))
	for _, u := range users {
		id := strings.TrimSpace(u.ID)
		if id == "" {
			continue
		}
		name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
		if name == "" {
			continue
		}
		mapping[id] = name
	}
	return mapping, nil
}

func (c *CardClient) CustomFieldUUIDByLabel(ctx context.Context, label string) (string, error) {
	if uuid, ok := c.fieldUUIDs[label]; ok {
		return uuid, nil
	}
	var defs []cardFieldDefinition
	if err := c.getJSON(ctx, "/v1/custom-fields", nil, &defs); err != nil {
		return "", err
	}
	for _, def := range defs {
		c.fieldUUIDs[strings.TrimSpace(def.Label)] = strings.TrimSpace(def.UUID)
	}
	return c.fieldUUIDs[label], nil
}

func (c *CardClient) ExtractCustomFieldValue(rec RawRecord, fieldUUID string) *string {
	if strings.TrimSpace(fieldUUID) == "" {
		return nil
	}
	for _, f := range rec.CustomFields {
		if f.FieldUUID == fieldUUID {
			v := strings.TrimSpace(f.Value)
			if v == "" {
				return nil
			}
			return &v
		}
	}
	return nil
}

func (c *CardClient) getJSON(ctx context.Context, path string, params url.Values, dest interface{}) error {
	<-c.limiter
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("card api error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.Unmarshal(body, dest)
}
