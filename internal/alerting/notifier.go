package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"ratewatcher/internal/model"
)

// Alert is the payload handed to the notification gateway for one subscriber.
type Alert struct {
	To           string
	LocationName string
	LocationCode string
	RateType     model.RateType
	OldRate      decimal.Decimal
	NewRate      decimal.Decimal
	ChangePct    decimal.Decimal
}

// Notifier delivers rate alerts. The gateway is a black box; failures are
// logged by callers and never abort the run.
type Notifier interface {
	SendRateAlert(ctx context.Context, alert Alert) error
}

// GatewayNotifier posts alerts to an HTTP mail gateway.
type GatewayNotifier struct {
	baseURL string
	apiKey  string
	from    string
	client  *http.Client
	logger  zerolog.Logger
}

// NewGatewayNotifier constructs the HTTP gateway notifier.
func NewGatewayNotifier(baseURL, apiKey, from string, timeout time.Duration, logger zerolog.Logger) *GatewayNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GatewayNotifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		from:    from,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "alert_gateway").Logger(),
	}
}

type gatewayPayload struct {
	To        string `json:"to"`
	From      string `json:"from"`
	Location  string `json:"location"`
	RateType  string `json:"rateType"`
	OldRate   string `json:"oldRate"`
	NewRate   string `json:"newRate"`
	ChangePct string `json:"changePercent"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

// SendRateAlert posts one alert to the gateway's send endpoint.
func (n *GatewayNotifier) SendRateAlert(ctx context.Context, alert Alert) error {
	payload := gatewayPayload{
		To:        alert.To,
		From:      n.from,
		Location:  alert.LocationName,
		RateType:  string(alert.RateType),
		OldRate:   alert.OldRate.StringFixed(3),
		NewRate:   alert.NewRate.StringFixed(3),
		ChangePct: alert.ChangePct.StringFixed(2),
		Subject:   renderSubject(alert),
		Body:      renderBody(alert),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal alert payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/v1/alerts/rate", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+n.apiKey)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send alert request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("alert gateway responded %d", resp.StatusCode)
	}

	n.logger.Info().
		Str("to", alert.To).
		Str("location", alert.LocationCode).
		Str("rate_type", string(alert.RateType)).
		Msg("alert delivered")
	return nil
}

func renderSubject(alert Alert) string {
	return fmt.Sprintf("Rate drop in %s: %s now at %s%%",
		alert.LocationName, alert.RateType, alert.NewRate.StringFixed(3))
}

func renderBody(alert Alert) string {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("The %s rate for %s moved from %s%% to %s%%",
		alert.RateType, alert.LocationName, alert.OldRate.StringFixed(3), alert.NewRate.StringFixed(3)))
	builder.WriteString(fmt.Sprintf(" (%s%%).\n", alert.ChangePct.StringFixed(2)))
	builder.WriteString("You are receiving this because of your rate alert subscription.\n")
	return builder.String()
}

var _ Notifier = (*GatewayNotifier)(nil)
