package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCreator struct {
	got  payment.Request
	resp *payment.Response
	err  error
}

func (f *fakeCreator) Create(_ context.Context, req payment.Request) (*payment.Response, error) {
	f.got = req
	return f.resp, f.err
}

func TestMercadoPagoGateway(t *testing.T) {
	t.Run("mock mode approves", func(t *testing.T) {
		g, err := NewMercadoPagoGateway("", true)
		require.NoError(t, err)
		g.now = func() time.Time { return time.Unix(0, 42) }

		resp, err := g.Pay(context.Background(), paymentReq())
		require.NoError(t, err)
		assert.True(t, resp.Approved)
		assert.Equal(t, "MP-42", resp.TransactionID)
	})

	t.Run("missing token", func(t *testing.T) {
		_, err := NewMercadoPagoGateway("", false)
		assert.ErrorIs(t, err, ErrMissingMercadoPagoAccessToken)
	})

	t.Run("sdk result mapping", func(t *testing.T) {
		f := &fakeCreator{resp: &payment.Response{ID: 123, Status: "rejected"}}
		g := &MercadoPagoGateway{client: f, now: time.Now}

		resp, err := g.Pay(context.Background(), paymentReq())
		require.NoError(t, err)
		assert.False(t, resp.Approved)
		assert.Equal(t, "123", resp.TransactionID)
		assert.Equal(t, 4.0, f.got.TransactionAmount)
		assert.Equal(t, "o-1", f.got.ExternalReference)
	})

	t.Run("sdk error", func(t *testing.T) {
		g := &MercadoPagoGateway{client: &fakeCreator{err: errors.New("401")}, now: time.Now}
		_, err := g.Pay(context.Background(), paymentReq())
		assert.Error(t, err)
	})

	t.Run("nil gateway", func(t *testing.T) {
		var g *MercadoPagoGateway
		_, err := g.Pay(context.Background(), paymentReq())
		assert.ErrorIs(t, err, ErrMercadoPagoGatewayNotConfigured)
	})
}
