package paygate

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"consult-system/internal/status"

	pubnub "github.com/pubnub/go/v7"
	"github.com/shopspring/decimal"
)

type (
	Config struct {
		BaseURL string

		PartnerID  string
		ClientID   string
		ClientKey  string
		HMACKey    string
		MerchantID string

		PNSubKey    string
		PNSubSecret string
		PNUUID      string
		PNChannel   string
		PNCipherKey string
	}

	// Paygate talks to the paygate backend over HTTP and receives
	// settled-payment events over the provider's PubNub channel.
	Paygate struct {
		merchantID string

		pnSubKey    string
		pnSubSecret string
		pnUUID      string
		pnChannels  []string
		pnCipherKey string

		sub *subscribe

		client *Client
	}
)

// payload is the provider's wire format for a settled payment.
type payload struct {
	RefID         string          `json:"refNo"`
	BillNumber    string          `json:"billNumber"`
	Ccy           string          `json:"sourceCurrency"`
	Payer         string          `json:"sourceName"`
	AccountNumber string          `json:"sourceAccount"`
	Amount        decimal.Decimal `json:"txnAmount"`
	CreatedAt     string          `json:"txnDateTime"`
}

// New returns a connected Paygate instance: authenticated against the
// HTTP api, token refresher running, PubNub subscription established.
func New(ctx context.Context, cfg *Config) (*Paygate, error) {
	client := newClient(ctx, &ClientConfig{
		BaseURL:   cfg.BaseURL,
		PartnerID: cfg.PartnerID,
		ClientID:  cfg.ClientID,
		ClientKey: cfg.ClientKey,
		HMACKey:   cfg.HMACKey,
	})

	token, err := client.connect(ctx)
	if err != nil {
		return nil, err
	}
	client.setAccessToken(token)

	go client.notifyAccessTokenExpired(ctx)

	p := &Paygate{
		merchantID: cfg.MerchantID,

		pnSubKey:    cfg.PNSubKey,
		pnSubSecret: cfg.PNSubSecret,
		pnUUID:      cfg.PNUUID,
		pnChannels:  []string{cfg.PNChannel},
		pnCipherKey: cfg.PNCipherKey,

		client: client,
	}

	pnCfg := pubnub.NewConfigWithUserId(pubnub.UserId(p.pnUUID))
	pnCfg.SubscribeKey = p.pnSubKey
	pnCfg.CipherKey = p.pnCipherKey
	pnCfg.SecretKey = p.pnSubSecret

	sub, err := p.newSubscription(ctx, pnCfg)
	if err != nil {
		return nil, fmt.Errorf("subscribe to paygate channel: %v", err)
	}

	sub.pn.AddListener(sub.lis)
	p.sub = sub

	return p, nil
}

type subscribe struct {
	pn  *pubnub.PubNub
	lis *pubnub.Listener
	ch  chan *status.ProviderEvent
}

func (p *Paygate) newSubscription(ctx context.Context, pnCfg *pubnub.Config) (*subscribe, error) {
	sub := &subscribe{
		pn:  pubnub.NewPubNub(pnCfg),
		lis: pubnub.NewListener(),
	}

	go sub.processSubscription(ctx)

	return sub, nil
}

func (s *subscribe) processSubscription(ctx context.Context) {
	listener := s.lis
	for {
		select {
		case st := <-listener.Status:
			switch st.Category {
			case pubnub.PNConnectedCategory:
				log.Println("paygate: connected to pubnub")

			case pubnub.PNReconnectedCategory:
				log.Println("paygate: reconnected to pubnub")

			case pubnub.PNDisconnectedCategory:
				log.Println("paygate: disconnected from pubnub")

			case pubnub.PNAccessDeniedCategory:
				log.Println("paygate: pubnub access denied")

			case pubnub.PNTimeoutCategory:
				log.Println("paygate: pubnub timeout")

			default:
				log.Printf("paygate: pubnub status %v", st.Category)
			}

		case message := <-listener.Message:
			raw, ok := message.Message.(string)
			if !ok {
				log.Printf("paygate: unexpected message type %T", message.Message)
				continue
			}

			var pl payload
			dec := json.NewDecoder(strings.NewReader(raw))
			if err := dec.Decode(&pl); err != nil {
				log.Println("paygate: decode event:", err)
				continue
			}

			event, err := pl.ToDomain()
			if err != nil {
				log.Println("paygate: map event:", err)
				continue
			}

			if s.ch != nil {
				s.ch <- event
			}

		case <-ctx.Done():
			log.Println("paygate: closing subscription")
			return
		}
	}
}

func (p *payload) ToDomain() (*status.ProviderEvent, error) {
	ts, err := time.ParseInLocation("2006-01-02 15:04:05", p.CreatedAt, time.Local)
	if err != nil {
		return nil, err
	}

	return &status.ProviderEvent{
		RefID:             p.RefID,
		ProviderPaymentID: p.BillNumber,
		Payer:             p.Payer,
		AccountNumber:     p.AccountNumber,
		Ccy:               p.Ccy,
		Amount:            p.Amount,
		CreatedAt:         ts,
	}, nil
}

// addChannel starts listening for this charge's settlement events,
// replaying the last two minutes in case the payment already landed.
func (p *Paygate) addChannel(_ context.Context, providerPaymentID string) {
	channel := fmt.Sprintf("%s_%s", p.merchantID, providerPaymentID)

	tt := time.Now().Add(-2*time.Minute).Unix() * 10000

	p.sub.pn.Subscribe().Channels([]string{channel}).Timetoken(tt).Execute()
}

func (p *Paygate) Unsubscribe(_ context.Context) {
	p.sub.pn.UnsubscribeAll()
}

func (p *Paygate) SetEventChannel(ch chan *status.ProviderEvent) {
	p.sub.ch = ch
}

func (p *Paygate) CheckPayment(ctx context.Context, providerPaymentID string) (*status.ProviderEvent, error) {
	return p.client.checkPayment(ctx, providerPaymentID)
}

func (p *Paygate) GenQRCode(ctx context.Context, f *status.ChargeForm) (string, error) {
	if f.MerchantID == "" {
		f.MerchantID = p.merchantID
	}
	emvCode, err := p.client.getQRFromPaygate(ctx, f)
	if err != nil {
		return "", err
	}

	p.addChannel(ctx, f.ProviderPaymentID)

	return emvCode, nil
}
