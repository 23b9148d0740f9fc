package payments

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"restbucks/internal/usecase/interfaces"

	"github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

var ErrMissingMercadoPagoAccessToken = errors.New("missing MERCADOPAGO_ACCESS_TOKEN")
var ErrMercadoPagoGatewayNotConfigured = errors.New("mercado pago gateway not configured")

// paymentCreator is the slice of payment.Client used here.
type paymentCreator interface {
	Create(ctx context.Context, request payment.Request) (*payment.Response, error)
}

type MercadoPagoGateway struct {
	client   paymentCreator
	mockMode bool
	now      func() time.Time
}

var _ interfaces.IPaymentGateway = (*MercadoPagoGateway)(nil)

// NewMercadoPagoGateway builds the SDK client. In mock mode every charge is
// approved locally and no token is needed.
func NewMercadoPagoGateway(accessToken string, mock bool) (*MercadoPagoGateway, error) {
	if mock {
		zlog.Info().Msg("[payment][gateway] mercado pago mock mode enabled")
		return &MercadoPagoGateway{mockMode: true, now: time.Now}, nil
	}

	if accessToken == "" {
		zlog.Warn().Msg("[payment][gateway] missing MERCADOPAGO_ACCESS_TOKEN")
		return nil, ErrMissingMercadoPagoAccessToken
	}

	cfg, err := config.New(accessToken)
	if err != nil {
		zlog.Error().Err(err).Msg("[payment][gateway] failed creating sdk config")
		return nil, err
	}
	zlog.Info().Msg("[payment][gateway] Mercado Pago client initialized")

	return &MercadoPagoGateway{client: payment.NewClient(cfg), now: time.Now}, nil
}

func (g *MercadoPagoGateway) Pay(ctx context.Context, req interfaces.PaymentRequest) (interfaces.PaymentResponse, error) {
	logger := zerolog.Ctx(ctx).With().Str("order_id", req.OrderID).Logger()

	if g != nil && g.mockMode {
		id := "MP-" + strconv.FormatInt(g.now().UTC().UnixNano(), 10)
		logger.Info().Str("transaction_id", id).Msg("[payment][gateway] mock create success")
		return interfaces.PaymentResponse{Approved: true, Status: "approved", TransactionID: id}, nil
	}

	if g == nil || g.client == nil {
		logger.Warn().Msg("[payment][gateway] gateway not configured")
		return interfaces.PaymentResponse{}, ErrMercadoPagoGatewayNotConfigured
	}
	logger.Info().Str("amount", req.Amount.StringFixed(2)).Msg("[payment][gateway] create start")

	resp, err := g.client.Create(ctx, payment.Request{
		TransactionAmount: req.Amount.InexactFloat64(),
		Description:       fmt.Sprintf("Restbucks order %s", req.OrderID),
		ExternalReference: req.OrderID,
		PaymentMethodID:   "account_money",
		Installments:      1,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("[payment][gateway] sdk create failed")
		return interfaces.PaymentResponse{}, err
	}

	logger.Info().Int("provider_payment_id", resp.ID).Str("provider_status", resp.Status).Msg("[payment][gateway] create success")
	return interfaces.PaymentResponse{
		Approved:      resp.Status == "approved",
		Status:        resp.Status,
		TransactionID: strconv.Itoa(resp.ID),
	}, nil
}
