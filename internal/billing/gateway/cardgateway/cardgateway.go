package cardgateway

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/henriquesd/dev-store/internal/billing/gateway"
	"github.com/henriquesd/dev-store/internal/util"
)

// CardGateway is a stand-in card processor. It approves structurally valid
// cards and refuses the rest, mimicking the acquirer responses the billing
// workflow has to handle. Swap it for a real acquirer client in production.
type CardGateway struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *CardGateway {
	return &CardGateway{logger: logger}
}

func (g *CardGateway) Authorize(_ context.Context, card gateway.Card, amount float64) (*gateway.Result, error) {
	if reason := validateCard(card); reason != "" {
		g.logger.Info("Card authorization refused", zap.String("reason", reason))
		return &gateway.Result{Status: gateway.StatusRefused, Reason: reason}, nil
	}
	if amount <= 0 {
		return &gateway.Result{Status: gateway.StatusRefused, Reason: "invalid amount"}, nil
	}
	return &gateway.Result{Status: gateway.StatusApproved, Ref: "auth-" + util.GenerateUUID()}, nil
}

func (g *CardGateway) Capture(_ context.Context, ref string, amount float64) (*gateway.Result, error) {
	if ref == "" {
		return &gateway.Result{Status: gateway.StatusRefused, Reason: "unknown authorization reference"}, nil
	}
	if amount <= 0 {
		return &gateway.Result{Status: gateway.StatusRefused, Reason: "invalid amount"}, nil
	}
	return &gateway.Result{Status: gateway.StatusApproved, Ref: "cap-" + util.GenerateUUID()}, nil
}

func (g *CardGateway) Cancel(_ context.Context, ref string) (*gateway.Result, error) {
	if ref == "" {
		return &gateway.Result{Status: gateway.StatusRefused, Reason: "unknown authorization reference"}, nil
	}
	return &gateway.Result{Status: gateway.StatusApproved, Ref: "void-" + util.GenerateUUID()}, nil
}

func validateCard(card gateway.Card) string {
	if strings.TrimSpace(card.Holder) == "" {
		return "missing card holder"
	}
	if !luhnValid(card.Number) {
		return "invalid card number"
	}
	if !expirationValid(card.Expiration, time.Now()) {
		return "card expired"
	}
	if len(card.SecurityCode) < 3 || len(card.SecurityCode) > 4 {
		return "invalid security code"
	}
	for _, r := range card.SecurityCode {
		if r < '0' || r > '9' {
			return "invalid security code"
		}
	}
	return ""
}

func luhnValid(number string) bool {
	number = strings.ReplaceAll(number, " ", "")
	if len(number) < 13 || len(number) > 19 {
		return false
	}
	var sum int
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		r := number[i]
		if r < '0' || r > '9' {
			return false
		}
		d := int(r - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// expirationValid parses MM/YY and accepts cards valid through the end of
// the expiration month.
func expirationValid(expiration string, now time.Time) bool {
	parts := strings.Split(expiration, "/")
	if len(parts) != 2 {
		return false
	}
	month, err := strconv.Atoi(parts[0])
	if err != nil || month < 1 || month > 12 {
		return false
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 2 {
		return false
	}
	year += 2000

	expiry, err := time.Parse("2006-01", fmt.Sprintf("%04d-%02d", year, month))
	if err != nil {
		return false
	}
	endOfMonth := expiry.AddDate(0, 1, 0)
	return now.Before(endOfMonth)
}
